package metadata

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestHTTPFetcher_ExtractsMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:title" content="A Page">
			<meta property="og:description" content="About things">
			<meta property="og:image" content="/img/x.png">
		</head></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, testLogger())
	md, finalURL, err := f.FetchWithFinalURL(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/page", finalURL, "No redirect means finalURL equals the input")
	assert.Equal(t, "A Page", md.Title)
	assert.Equal(t, "About things", md.Description)
	assert.Equal(t, srv.URL+"/img/x.png", md.ThumbnailURL, "Relative thumbnail resolved against the fetched URL")
	assert.True(t, md.HasRealData())
}

func TestHTTPFetcher_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, testLogger())
	_, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Contains(t, gotUA, "linkdock")
}

func TestHTTPFetcher_RedirectYieldsFinalURL(t *testing.T) {
	dest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><head><meta property="og:title" content="Destination"></head></html>`))
	}))
	defer dest.Close()

	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dest.URL+"/landing", http.StatusMovedPermanently)
	}))
	defer short.Close()

	f := NewHTTPFetcher(5*time.Second, testLogger())
	md, finalURL, err := f.FetchWithFinalURL(context.Background(), short.URL+"/abc")

	require.NoError(t, err)
	assert.Equal(t, dest.URL+"/landing", finalURL, "finalURL must be the redirect destination, not the input")
	assert.Equal(t, "Destination", md.Title)
	assert.Equal(t, ExtractDomain(dest.URL), md.Domain, "Domain must come from the destination URL")
}

func TestHTTPFetcher_NoMetadataFallsBackToDomain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>nothing here</p></body></html>`))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5*time.Second, testLogger())
	md, err := f.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, md.Domain, md.Title, "Missing title falls back to the domain")
	assert.False(t, md.HasRealData())
	assert.Empty(t, md.Description)
	assert.Empty(t, md.ThumbnailURL)
}

func TestHTTPFetcher_ErrorStatusesNeverFail(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		f := NewHTTPFetcher(5*time.Second, testLogger())
		md, finalURL, err := f.FetchWithFinalURL(context.Background(), srv.URL+"/missing")

		require.NoError(t, err, "status %d must not surface as an error", status)
		assert.Equal(t, srv.URL+"/missing", finalURL)
		assert.Equal(t, md.Domain, md.Title, "status %d yields domain-only metadata", status)
		assert.False(t, md.HasRealData())

		srv.Close()
	}
}

func TestHTTPFetcher_ConnectionRefusedNeverFails(t *testing.T) {
	// Grab a port nobody is listening on.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	deadURL := "http://" + l.Addr().String()
	require.NoError(t, l.Close())

	f := NewHTTPFetcher(2*time.Second, testLogger())
	md, finalURL, err := f.FetchWithFinalURL(context.Background(), deadURL)

	require.NoError(t, err, "connection refused must degrade, not fail")
	assert.Equal(t, deadURL, finalURL, "No redirect was confirmed, so finalURL is the input")
	assert.Equal(t, "127.0.0.1", md.Domain)
	assert.Equal(t, md.Domain, md.Title)
}

func TestHTTPFetcher_StalledBodyTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Send headers and a partial body, then stall without closing.
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html><head>"))
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(500*time.Millisecond, testLogger())

	start := time.Now()
	md, _, err := f.FetchWithFinalURL(context.Background(), srv.URL)
	elapsed := time.Since(start)

	require.NoError(t, err, "a stalled body must degrade, not fail")
	assert.Less(t, elapsed, 3*time.Second, "the timeout must cover the body read, not just the headers")
	assert.Equal(t, md.Domain, md.Title, "a stalled body yields fallback metadata")
}

func TestHTTPFetcher_InvalidURLNeverFails(t *testing.T) {
	f := NewHTTPFetcher(time.Second, testLogger())

	md, finalURL, err := f.FetchWithFinalURL(context.Background(), "http://%zz")

	require.NoError(t, err)
	assert.Equal(t, "http://%zz", finalURL)
	assert.Equal(t, md.Domain, md.Title)
}
