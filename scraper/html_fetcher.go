package scraper

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"fairval/retry"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPageBytes     = 5 << 20
)

// PageFetcher downloads raw page HTML.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTMLFetcher downloads pages over plain HTTP with browser-like headers.
type HTMLFetcher struct {
	client *http.Client
	Retry  retry.Options
}

// NewHTMLFetcher creates a fetcher that makes two attempts per page, two
// seconds apart, each limited to timeout.
func NewHTMLFetcher(timeout time.Duration) *HTMLFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTMLFetcher{
		client: NewSafeHTTPClient(0),
		Retry: retry.Options{
			MaxRetries: 2,
			BaseDelay:  2 * time.Second,
			Timeout:    timeout,
			OnRetry: func(attempt int, err error) {
				log.Printf("⚠️  Fetch attempt %d/2 failed: %v", attempt, err)
			},
		},
	}
}

// Fetch returns the page body. Non-2xx responses are errors.
func (f *HTMLFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	html, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return f.fetchOnce(ctx, rawURL)
	}, f.Retry)
	if err != nil {
		return "", fmt.Errorf("failed to fetch page after %d attempts: %w", f.Retry.MaxRetries, err)
	}
	return html, nil
}

func (f *HTMLFetcher) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", desktopUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}
