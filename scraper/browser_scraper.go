package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/shopspring/decimal"

	"fairval/models"
	"fairval/retry"
)

var unavailableKeywords = []string{"out of stock", "sold out", "unavailable", "discontinued"}

// BrowserScraper reads prices from supported retailers through the remote
// scraping browser.
type BrowserScraper struct {
	session  *BrowserSession
	parser   *PriceParser
	detector *BotDetector

	// Navigation controls page loads; each attempt gets its own timeout.
	Navigation retry.Options
}

// NewBrowserScraper creates a new browser scraper
func NewBrowserScraper(session *BrowserSession, navigationTimeout time.Duration) *BrowserScraper {
	if navigationTimeout <= 0 {
		navigationTimeout = 30 * time.Second
	}
	return &BrowserScraper{
		session:  session,
		parser:   NewPriceParser(),
		detector: NewBotDetector(),
		Navigation: retry.Options{
			MaxRetries: 3,
			BaseDelay:  2 * time.Second,
			Timeout:    navigationTimeout,
			OnRetry:    retry.LogRetries("navigation"),
		},
	}
}

func (s *BrowserScraper) Name() string { return "browser" }

// Supports reports whether u belongs to a retailer the browser path knows.
func (s *BrowserScraper) Supports(u *url.URL) bool {
	return IsSupportedRetailer(u.Hostname())
}

// CheckPrice opens productURL in a stealth page and reads the product off it.
func (s *BrowserScraper) CheckPrice(ctx context.Context, productURL string) (*models.PriceCheckResult, error) {
	page, err := s.session.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Printf("⚠️  Failed to close page: %v", err)
		}
	}()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             1920,
		Height:            1080,
		DeviceScaleFactor: 1,
	}); err != nil {
		return nil, fmt.Errorf("set viewport: %w", err)
	}

	log.Printf("🌐 Navigating to: %s", productURL)
	if err := s.navigate(ctx, page, productURL); err != nil {
		return nil, err
	}
	log.Printf("Page loaded, extracting product data...")

	result, err := s.extractProduct(rodDocument{page: page.Context(ctx)}, SelectorsForURL(productURL))
	if err != nil {
		return nil, err
	}
	result.URL = productURL
	return result, nil
}

func (s *BrowserScraper) navigate(ctx context.Context, page *rod.Page, productURL string) error {
	return navigateWithRetry(ctx, productURL, s.Navigation, func(ctx context.Context) error {
		p := page.Context(ctx)
		if err := p.Navigate(productURL); err != nil {
			return err
		}
		return p.WaitLoad()
	})
}

func navigateWithRetry(ctx context.Context, productURL string, opts retry.Options, load func(ctx context.Context) error) error {
	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, load(ctx)
	}, opts)
	if err != nil {
		return fmt.Errorf("navigation to %s failed after %d attempts: %w", productURL, opts.MaxRetries, err)
	}
	return nil
}

// extractProduct runs the selector engine over doc. It needs a positive
// price from the price selectors or, failing that, the page text.
func (s *BrowserScraper) extractProduct(doc Document, selectors RetailerSelectorSet) (*models.PriceCheckResult, error) {
	priceText := TrySelectors(doc, selectors.Price, "")
	if priceText == "" {
		priceText = TrySelectors(doc, selectors.Price, "content")
	}

	title := TrySelectors(doc, selectors.Title, "")
	if title == "" {
		if t, err := doc.Title(); err == nil {
			title = cleanText(t)
		}
	}

	imageURL := TrySelectors(doc, selectors.Image, "src")
	if imageURL == "" {
		imageURL = TrySelectors(doc, selectors.Image, "content")
	}

	available := isAvailable(TrySelectors(doc, selectors.Availability, ""))

	price, currency, err := s.parser.ParsePrice(priceText)
	if priceText == "" || err != nil || !price.IsPositive() {
		price, currency, err = s.priceFromVisibleText(doc, title)
		if err != nil {
			return nil, err
		}
	}

	if currency == "" {
		currency = "USD"
	}
	if title == "" {
		title = "Unknown Product"
	}

	log.Printf("✅ Extracted price %s %s for %q", price.StringFixed(2), currency, title)
	return &models.PriceCheckResult{
		CurrentPrice: price,
		Currency:     currency,
		Available:    available,
		Title:        title,
		ImageURL:     imageURL,
		Source:       models.SourceBrowser,
	}, nil
}

func (s *BrowserScraper) priceFromVisibleText(doc Document, title string) (decimal.Decimal, string, error) {
	text, textErr := doc.VisibleText()
	if textErr != nil {
		return decimal.Zero, "", fmt.Errorf("%w: %v", ErrPriceNotFound, textErr)
	}

	if detection := s.detector.Detect(text, title); detection.Blocked {
		log.Printf("🛡️  Bot protection detected (%s, score %.2f): %s",
			detection.Kind, detection.Score, strings.Join(detection.Reasons, ", "))
		return decimal.Zero, "", fmt.Errorf("%w (%s)", ErrBlocked, detection.Kind)
	}

	if amounts := s.parser.FindDollarAmounts(text); len(amounts) > 0 {
		log.Printf("💲 Price selectors missed, using first dollar amount in page text")
		return amounts[0], "USD", nil
	}
	return decimal.Zero, "", ErrPriceNotFound
}

func isAvailable(availabilityText string) bool {
	lower := strings.ToLower(availabilityText)
	for _, keyword := range unavailableKeywords {
		if strings.Contains(lower, keyword) {
			return false
		}
	}
	return true
}
