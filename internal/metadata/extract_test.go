package metadata

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err, "Failed to parse test HTML")
	return doc
}

func TestExtract_TitlePriorityOrder(t *testing.T) {
	const base = "https://example.com/page"

	fullDoc := `<html><head>
		<meta property="og:title" content="OG Title">
		<meta name="twitter:title" content="Twitter Title">
		<title>Plain Title</title>
	</head><body></body></html>`

	page := Extract(parseHTML(t, fullDoc), base)
	assert.Equal(t, "OG Title", page.Title, "og:title should win over all others")

	noOG := `<html><head>
		<meta name="twitter:title" content="Twitter Title">
		<title>Plain Title</title>
	</head><body></body></html>`

	page = Extract(parseHTML(t, noOG), base)
	assert.Equal(t, "Twitter Title", page.Title, "twitter:title should win over <title>")

	plainOnly := `<html><head><title>  Plain Title  </title></head><body></body></html>`

	page = Extract(parseHTML(t, plainOnly), base)
	assert.Equal(t, "Plain Title", page.Title, "<title> text should be used and trimmed")
}

func TestExtract_DescriptionPriorityOrder(t *testing.T) {
	const base = "https://example.com/page"

	doc := parseHTML(t, `<html><head>
		<meta property="og:description" content="OG Desc">
		<meta name="twitter:description" content="Twitter Desc">
		<meta name="description" content="Meta Desc">
	</head></html>`)
	assert.Equal(t, "OG Desc", Extract(doc, base).Description)

	doc = parseHTML(t, `<html><head>
		<meta name="twitter:description" content="Twitter Desc">
		<meta name="description" content="Meta Desc">
	</head></html>`)
	assert.Equal(t, "Twitter Desc", Extract(doc, base).Description)

	doc = parseHTML(t, `<html><head>
		<meta name="description" content="Meta Desc">
	</head></html>`)
	assert.Equal(t, "Meta Desc", Extract(doc, base).Description)
}

func TestExtract_EmptyDocument(t *testing.T) {
	page := Extract(parseHTML(t, `<html><head></head><body><p>hi</p></body></html>`), "https://example.com")

	assert.Empty(t, page.Title, "No title-bearing tag should leave Title empty for the caller's domain fallback")
	assert.Empty(t, page.Description)
	assert.Empty(t, page.ThumbnailURL)
}

func TestExtract_EmptyTagsAreSkipped(t *testing.T) {
	// An empty og:title must not shadow the lower-priority tags.
	doc := parseHTML(t, `<html><head>
		<meta property="og:title" content="   ">
		<title>Plain Title</title>
	</head></html>`)

	assert.Equal(t, "Plain Title", Extract(doc, "https://example.com").Title)
}

func TestExtract_ThumbnailAbsolutization(t *testing.T) {
	const base = "https://example.com/page"

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"absolute url unchanged", "https://cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"protocol relative gets base scheme", "//cdn.example.com/x.png", "https://cdn.example.com/x.png"},
		{"root relative resolved against base", "/img/x.png", "https://example.com/img/x.png"},
		{"relative resolved against base path", "img/x.png", "https://example.com/img/x.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseHTML(t, `<html><head><meta property="og:image" content="`+tt.content+`"></head></html>`)
			assert.Equal(t, tt.want, Extract(doc, base).ThumbnailURL)
		})
	}
}

func TestExtract_ThumbnailPriorityOrder(t *testing.T) {
	doc := parseHTML(t, `<html><head>
		<meta property="og:image" content="https://example.com/og.png">
		<meta name="twitter:image" content="https://example.com/tw.png">
	</head></html>`)
	assert.Equal(t, "https://example.com/og.png", Extract(doc, "https://example.com").ThumbnailURL)

	doc = parseHTML(t, `<html><head>
		<meta name="twitter:image" content="https://example.com/tw.png">
	</head></html>`)
	assert.Equal(t, "https://example.com/tw.png", Extract(doc, "https://example.com").ThumbnailURL)
}

func TestExtract_EntityDecoding(t *testing.T) {
	doc := parseHTML(t, `<html><head>
		<meta property="og:title" content="A &amp; B">
		<meta property="og:description" content="&lt;fast&gt; &quot;cheap&quot; &#39;good&#39;">
	</head></html>`)

	page := Extract(doc, "https://example.com")
	assert.Equal(t, "A & B", page.Title)
	assert.Equal(t, `<fast> "cheap" 'good'`, page.Description)
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain host", "https://example.com/page", "example.com"},
		{"www stripped", "https://www.example.com/page", "example.com"},
		{"uppercase lowered", "https://WWW.Example.COM", "example.com"},
		{"port dropped", "http://example.com:8080/x", "example.com"},
		{"subdomain kept", "https://blog.example.com", "blog.example.com"},
		{"malformed returned unchanged", "http://%zz", "http://%zz"},
		{"hostless returned unchanged", "not a url", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.in))
		})
	}
}
