package metadata

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"linkdock/internal/domain"
)

const (
	// DefaultTimeout bounds one fetch end to end, including the body read.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a response we parse. Metadata lives in
	// <head>, so anything past this is waste.
	maxBodyBytes = 2 << 20

	userAgent = "Mozilla/5.0 (compatible; linkdock/1.0)"
)

// Fetcher fetches page metadata for a URL.
//
// Implementations degrade to fallback metadata rather than failing: the
// HTTP implementation never returns a non-nil error. The error channel
// exists for alternative implementations and test doubles.
type Fetcher interface {
	// FetchWithFinalURL fetches metadata and reports the URL reached after
	// following redirects.
	FetchWithFinalURL(ctx context.Context, rawURL string) (domain.LinkMetadata, string, error)

	// Fetch is FetchWithFinalURL for callers that don't need the final URL.
	Fetch(ctx context.Context, rawURL string) (domain.LinkMetadata, error)
}

// HTTPFetcher fetches metadata over plain HTTP.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewHTTPFetcher creates an HTTP metadata fetcher. A timeout of zero means
// DefaultTimeout.
func NewHTTPFetcher(timeout time.Duration, logger logrus.FieldLogger) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{
		// Redirects are followed by the default client policy; the final
		// URL is read back from the response's request.
		client:  &http.Client{},
		timeout: timeout,
		log:     logger.WithField("component", "fetcher"),
	}
}

// FetchWithFinalURL implements Fetcher. The returned error is always nil;
// every failure mode degrades to fallback metadata.
func (f *HTTPFetcher) FetchWithFinalURL(ctx context.Context, rawURL string) (domain.LinkMetadata, string, error) {
	res := f.fetch(ctx, rawURL)
	return res.Metadata, res.FinalURL, nil
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (domain.LinkMetadata, error) {
	res := f.fetch(ctx, rawURL)
	return res.Metadata, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, rawURL string) domain.FetchResult {
	log := f.log.WithField("url", rawURL)

	// Last-resort identity if nothing past the input URL is ever known.
	inputDomain := ExtractDomain(rawURL)
	fallback := domain.FetchResult{
		Metadata: domain.Fallback(inputDomain),
		FinalURL: rawURL,
	}

	// One deadline for connect, headers and the full body read. A body
	// stream that stalls past this counts as a timeout.
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		log.WithError(err).Warn("Invalid URL, using fallback metadata")
		return fallback
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("Fetch failed, using fallback metadata")
		return fallback
	}
	defer resp.Body.Close()

	// Redirects may have moved us to a different host; from here on the
	// final URL is the link's identity.
	finalURL := resp.Request.URL.String()
	finalDomain := ExtractDomain(finalURL)

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("Non-200 response, using fallback metadata")
		return domain.FetchResult{
			Metadata: domain.Fallback(finalDomain),
			FinalURL: finalURL,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.WithError(err).Warn("Body read failed, using fallback metadata")
		return domain.FetchResult{
			Metadata: domain.Fallback(finalDomain),
			FinalURL: finalURL,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Warn("HTML parse failed, using fallback metadata")
		return domain.FetchResult{
			Metadata: domain.Fallback(finalDomain),
			FinalURL: finalURL,
		}
	}

	page := Extract(doc, finalURL)
	md := domain.LinkMetadata{
		Title:        page.Title,
		Description:  page.Description,
		ThumbnailURL: page.ThumbnailURL,
		Domain:       finalDomain,
	}
	if md.Title == "" {
		md.Title = finalDomain
	}

	log.WithFields(logrus.Fields{
		"final_url": finalURL,
		"has_data":  md.HasRealData(),
	}).Debug("Metadata fetch completed")

	return domain.FetchResult{Metadata: md, FinalURL: finalURL}
}
