package metadata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"linkdock/internal/domain"
)

// RodFetcher fetches metadata through a headless browser, for pages that
// only populate their meta tags from JavaScript. It shares the Fetcher
// contract: failures degrade to fallback metadata.
type RodFetcher struct {
	browser *rod.Browser
	timeout time.Duration
	log     logrus.FieldLogger
}

// NewRodFetcher launches a headless browser and returns a fetcher backed by
// it. Callers must Close the fetcher to shut the browser down.
func NewRodFetcher(timeout time.Duration, logger logrus.FieldLogger) (*RodFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	u, err := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodFetcher{
		browser: browser,
		timeout: timeout,
		log:     logger.WithField("component", "rod_fetcher"),
	}, nil
}

// Close shuts down the browser instance.
func (f *RodFetcher) Close() error {
	return f.browser.Close()
}

// FetchWithFinalURL implements Fetcher. The returned error is always nil.
func (f *RodFetcher) FetchWithFinalURL(ctx context.Context, rawURL string) (domain.LinkMetadata, string, error) {
	res := f.fetch(ctx, rawURL)
	return res.Metadata, res.FinalURL, nil
}

// Fetch implements Fetcher.
func (f *RodFetcher) Fetch(ctx context.Context, rawURL string) (domain.LinkMetadata, error) {
	res := f.fetch(ctx, rawURL)
	return res.Metadata, nil
}

func (f *RodFetcher) fetch(ctx context.Context, rawURL string) domain.FetchResult {
	log := f.log.WithField("url", rawURL)

	inputDomain := ExtractDomain(rawURL)
	fallback := domain.FetchResult{
		Metadata: domain.Fallback(inputDomain),
		FinalURL: rawURL,
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	page, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		log.WithError(err).Warn("Failed to create page, using fallback metadata")
		return fallback
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			log.WithError(closeErr).Debug("Error closing page")
		}
	}()

	page = page.Context(ctx)

	if err := page.Navigate(rawURL); err != nil {
		log.WithError(err).Warn("Navigation failed, using fallback metadata")
		return fallback
	}
	if err := page.WaitLoad(); err != nil {
		log.WithError(err).Warn("Page load failed or timed out, using fallback metadata")
		return fallback
	}

	// The browser followed any redirects; its current URL is the final one.
	finalURL := rawURL
	if info, err := page.Info(); err == nil && info.URL != "" && info.URL != "about:blank" {
		finalURL = info.URL
	}
	finalDomain := ExtractDomain(finalURL)

	html, err := page.HTML()
	if err != nil {
		log.WithError(err).Warn("Failed to read page HTML, using fallback metadata")
		return domain.FetchResult{
			Metadata: domain.Fallback(finalDomain),
			FinalURL: finalURL,
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.WithError(err).Warn("HTML parse failed, using fallback metadata")
		return domain.FetchResult{
			Metadata: domain.Fallback(finalDomain),
			FinalURL: finalURL,
		}
	}

	extracted := Extract(doc, finalURL)
	md := domain.LinkMetadata{
		Title:        extracted.Title,
		Description:  extracted.Description,
		ThumbnailURL: extracted.ThumbnailURL,
		Domain:       finalDomain,
	}
	if md.Title == "" {
		md.Title = finalDomain
	}

	return domain.FetchResult{Metadata: md, FinalURL: finalURL}
}
