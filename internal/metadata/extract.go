package metadata

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMetadata is the partial record extracted from an HTML document.
// Empty fields mean the page carried no matching tag.
type PageMetadata struct {
	Title        string
	Description  string
	ThumbnailURL string
}

// Extract pulls title, description and thumbnail out of a parsed document.
// Open Graph tags win over Twitter Card tags, which win over generic HTML
// tags. Relative thumbnail URLs are resolved against baseURL. Extraction
// never fails; missing tags simply leave fields empty.
func Extract(doc *goquery.Document, baseURL string) PageMetadata {
	var page PageMetadata

	page.Title = firstMetaContent(doc,
		"meta[property='og:title']",
		"meta[name='twitter:title']",
	)
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	page.Description = firstMetaContent(doc,
		"meta[property='og:description']",
		"meta[name='twitter:description']",
		"meta[name='description']",
	)

	if thumb := firstMetaContent(doc,
		"meta[property='og:image']",
		"meta[name='twitter:image']",
	); thumb != "" {
		page.ThumbnailURL = resolveThumbnail(thumb, baseURL)
	}

	return page
}

// firstMetaContent returns the first non-empty trimmed content attribute
// among the given selectors, in priority order.
func firstMetaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok {
			if v := strings.TrimSpace(content); v != "" {
				return v
			}
		}
	}
	return ""
}

// resolveThumbnail makes a thumbnail URL absolute. Protocol-relative URLs
// inherit the base URL's scheme; relative references are resolved against
// the base per standard URL-resolution rules.
func resolveThumbnail(raw, baseURL string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return raw
	}

	if strings.HasPrefix(raw, "//") {
		scheme := base.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + ":" + raw
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// ExtractDomain returns the host of a URL, lowercased and with a leading
// "www." stripped. If the URL cannot be parsed or has no host, the input is
// returned unchanged so callers always have something to display.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return normalizeHost(u.Hostname())
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
