package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"fairval/ai"
	"fairval/models"
)

const aiPriceMaxTokens = 500

const aiPricePrompt = `Extract product information from this HTML. Look for price indicators like "$", "price", "cost", class names with "price", data attributes, etc.

HTML:
%s

Return ONLY valid JSON (no markdown, no explanation):
{
  "title": "Full product name",
  "price": 29.99,
  "monthly_price": 33.00,
  "payment_months": 24,
  "currency": "USD",
  "available": true,
  "image_url": "https://..."
}

CRITICAL RULES:
- price MUST be a number (convert "$29.99" to 29.99)
- Look in meta tags, JSON data, class="price", id="price", data-price attributes
- If you find a FULL one-time purchase price, put it in "price" and set monthly_price to null
- If you ONLY find monthly/installment prices (e.g., "$33/mo", "per month"), extract:
  * monthly_price: the monthly payment amount
  * payment_months: number of months (look for "24 months", "24-month", "over 24 mo", "for 24 months", etc.)
  * ONLY set payment_months if you can find it explicitly on the page
  * If months not found, set payment_months to null
- Common patterns: "$33/mo for 24 months", "$33.25/month", "24 monthly payments of $33"
- currency defaults to "USD"
- available defaults to true`

// AIScraper reads prices from arbitrary pages: structured data first, then
// the extraction model over a trimmed copy of the HTML.
type AIScraper struct {
	fetcher PageFetcher
	model   ai.Model
	name    string
}

// NewAIScraper creates a new AI scraper
func NewAIScraper(fetcher PageFetcher, model ai.Model, modelName string) *AIScraper {
	return &AIScraper{fetcher: fetcher, model: model, name: modelName}
}

func (s *AIScraper) Name() string { return "ai" }

// Supports reports true for every URL.
func (s *AIScraper) Supports(*url.URL) bool { return true }

// CheckPrice extracts the price from productURL. Errors are *StageError.
func (s *AIScraper) CheckPrice(ctx context.Context, productURL string) (*models.PriceCheckResult, error) {
	log.Printf("🤖 Using AI extraction for: %s", productURL)

	html, err := s.fetcher.Fetch(ctx, productURL)
	if err != nil {
		return nil, &StageError{Stage: StageFetch, URL: productURL, Err: err}
	}
	log.Printf("📄 Fetched HTML length: %d", len(html))

	if product := ExtractStructuredData(html); product != nil {
		log.Printf("✅ Extracted from structured data (%s): %s at %s", product.Method, product.Title, product.Price.StringFixed(2))
		return &models.PriceCheckResult{
			URL:          productURL,
			CurrentPrice: product.Price,
			Currency:     product.Currency,
			Available:    product.Available,
			Title:        product.Title,
			ImageURL:     product.ImageURL,
			Source:       models.SourceStructuredData,
		}, nil
	}

	if s.model == nil {
		return nil, &StageError{Stage: StageModel, URL: productURL, Err: ErrModelNotConfigured}
	}

	relevant := RelevantHTML(html)
	log.Printf("📤 Sending %d chars to the extraction model", len(relevant))

	answer, err := s.model.Complete(ctx, ai.Request{
		Model:     s.name,
		MaxTokens: aiPriceMaxTokens,
		Prompt:    fmt.Sprintf(aiPricePrompt, relevant),
	})
	if err != nil {
		return nil, &StageError{Stage: StageModel, URL: productURL, Err: err}
	}

	result, err := parseAIPrice(answer)
	if err != nil {
		return nil, &StageError{Stage: StageParse, URL: productURL, Err: err}
	}
	result.URL = productURL
	return result, nil
}

// aiPricePayload is the model's answer. Numbers may come back as strings.
type aiPricePayload struct {
	Title         string     `json:"title"`
	Price         flexAmount `json:"price"`
	MonthlyPrice  flexAmount `json:"monthly_price"`
	PaymentMonths flexAmount `json:"payment_months"`
	Currency      string     `json:"currency"`
	Available     *bool      `json:"available"`
	ImageURL      string     `json:"image_url"`
}

// flexAmount decodes a JSON number, a price string like "$29.99", or null.
// Strings without a price ("N/A") leave the amount unset.
type flexAmount struct {
	Value decimal.Decimal
	Set   bool
}

func (f *flexAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			return nil
		}
		value, _, err := defaultPriceParser.ParsePrice(s)
		if err != nil {
			return nil
		}
		if strings.HasPrefix(strings.TrimSpace(s), "-") {
			value = value.Neg()
		}
		f.Value, f.Set = value, true
		return nil
	}

	value, err := decimal.NewFromString(string(data))
	if err != nil {
		return fmt.Errorf("invalid amount %s", data)
	}
	f.Value, f.Set = value, true
	return nil
}

func parseAIPrice(answer string) (*models.PriceCheckResult, error) {
	var payload aiPricePayload
	if err := ai.DecodeJSON(answer, &payload); err != nil {
		return nil, err
	}

	price := payload.Price.Value
	if price.IsNegative() {
		return nil, fmt.Errorf("%w: model returned %s", ErrInvalidPrice, price.String())
	}

	monthly, months := payload.MonthlyPrice.Value, payload.PaymentMonths.Value
	switch {
	case monthly.IsPositive() && months.IsPositive():
		calculated := monthly.Mul(months)
		log.Printf("📊 Calculated full price from monthly: $%s/mo × %s months = $%s",
			monthly.StringFixed(2), months.String(), calculated.StringFixed(2))
		if price.IsZero() || calculated.GreaterThan(price) {
			price = calculated
		}
	case monthly.IsPositive():
		log.Printf("⚠️  Found monthly price $%s/mo but no payment_months specified. Cannot calculate full price.",
			monthly.StringFixed(2))
	}

	title := cleanText(payload.Title)
	if title == "" {
		title = "Unknown Product"
	}
	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &models.PriceCheckResult{
		CurrentPrice: price,
		Currency:     currency,
		Available:    payload.Available == nil || *payload.Available,
		Title:        title,
		ImageURL:     payload.ImageURL,
		Source:       models.SourceAI,
	}, nil
}
