package scraper

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"fairval/models"
	"fairval/validation"
)

// PriceStrategy is one way of reading a product price.
type PriceStrategy interface {
	Name() string
	Supports(u *url.URL) bool
	CheckPrice(ctx context.Context, productURL string) (*models.PriceCheckResult, error)
}

// PriceChecker runs strategies in order until one returns a usable price.
type PriceChecker struct {
	strategies []PriceStrategy
	now        func() time.Time
}

// NewPriceChecker creates a checker that tries strategies in the given
// order, typically browser then AI.
func NewPriceChecker(strategies ...PriceStrategy) *PriceChecker {
	return &PriceChecker{strategies: strategies, now: time.Now}
}

// CheckProductPrice validates rawURL and returns the first successful
// strategy result. When every applicable strategy fails the error is a
// *PriceCheckError listing each failure.
func (pc *PriceChecker) CheckProductPrice(ctx context.Context, rawURL string) (*models.PriceCheckResult, error) {
	u, err := validation.ValidateProductURL(rawURL)
	if err != nil {
		return nil, err
	}
	productURL := u.String()

	checkErr := &PriceCheckError{URL: productURL}
	for _, strategy := range pc.strategies {
		if !strategy.Supports(u) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Printf("🔍 Checking price via %s: %s", strategy.Name(), productURL)
		result, err := strategy.CheckPrice(ctx, productURL)
		if err == nil {
			err = checkResult(result)
		}
		if err != nil {
			log.Printf("⚠️  %s price check failed for %s: %v", strategy.Name(), productURL, err)
			checkErr.Failures = append(checkErr.Failures, StrategyFailure{Strategy: strategy.Name(), Err: err})
			continue
		}

		pc.normalize(result, productURL)
		log.Printf("✅ %s price for %s: %s %s", strategy.Name(), productURL, result.CurrentPrice.StringFixed(2), result.Currency)
		return result, nil
	}

	return nil, checkErr
}

func checkResult(result *models.PriceCheckResult) error {
	if result == nil {
		return ErrEmptyResult
	}
	if result.CurrentPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func (pc *PriceChecker) normalize(result *models.PriceCheckResult, productURL string) {
	if result.URL == "" {
		result.URL = productURL
	}
	result.Currency = strings.ToUpper(strings.TrimSpace(result.Currency))
	if result.Currency == "" {
		result.Currency = "USD"
	}
	result.CurrentPrice = result.CurrentPrice.Round(2)
	result.Timestamp = pc.now().UTC()
}
