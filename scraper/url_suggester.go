package scraper

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"fairval/ai"
	"fairval/apperrors"
	"fairval/models"
	"fairval/retry"
	"fairval/validation"
)

// MaxURLSuggestions caps how many product pages are suggested.
const MaxURLSuggestions = 3

const suggestURLPrompt = `Find the official product page URL for "%s" from %s.

Search for: %s

Requirements:
1. Find the actual product page URL from the retailer's website
2. Prioritize URLs from these domains: %s
3. Return up to %d most relevant product page URLs
4. Each URL should be a direct link to the specific product, not a search results page

Return your response in this exact JSON format:
{
  "suggestions": [
    {
      "url": "https://example.com/product-page",
      "title": "Product Name",
      "confidence": "high|medium|low",
      "source": "Domain name"
    }
  ]
}`

var (
	bareURLPattern      = regexp.MustCompile(`https?://[^\s"'<>]+`)
	trailingPunctuation = regexp.MustCompile(`[,.)\]]+$`)
)

// URLSuggester asks the model for product pages on supported retailers, so
// a purchase can be tracked without the user pasting a link.
type URLSuggester struct {
	model     ai.Model
	modelName string
	Retry     retry.Options
}

func NewURLSuggester(model ai.Model, modelName string) *URLSuggester {
	opts := retry.DefaultOptions()
	opts.ShouldRetry = apperrors.IsRetryable
	opts.OnRetry = retry.LogRetries("url suggestion")
	return &URLSuggester{model: model, modelName: modelName, Retry: opts}
}

// SuggestProductURLs returns at most MaxURLSuggestions product pages for
// productName, keeping only valid URLs on supported retailers.
func (s *URLSuggester) SuggestProductURLs(ctx context.Context, productName, merchantName string) (*models.URLSuggestions, error) {
	req := models.SuggestURLRequest{ProductName: productName, MerchantName: merchantName}
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, ErrModelNotConfigured
	}

	query := fmt.Sprintf("%s %s product page", productName, merchantName)
	prompt := fmt.Sprintf(suggestURLPrompt, productName, merchantName, query,
		strings.Join(supportedRetailers, ", "), MaxURLSuggestions)

	answer, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return s.model.Complete(ctx, ai.Request{Model: s.modelName, MaxTokens: 2000, Prompt: prompt})
	}, s.Retry)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest product urls: %w", err)
	}

	candidates := parseSuggestions(answer, productName)
	suggestions := FilterSuggestions(candidates)
	log.Printf("🔗 %d of %d suggested urls kept for %q", len(suggestions), len(candidates), productName)

	return &models.URLSuggestions{Suggestions: suggestions, Query: query}, nil
}

// parseSuggestions reads the model's JSON, falling back to bare URLs in the
// answer when it is not valid JSON.
func parseSuggestions(answer, productName string) []models.ProductURLSuggestion {
	var payload struct {
		Suggestions []models.ProductURLSuggestion `json:"suggestions"`
	}
	if err := ai.DecodeJSON(answer, &payload); err == nil {
		return payload.Suggestions
	}

	var suggestions []models.ProductURLSuggestion
	for _, raw := range bareURLPattern.FindAllString(answer, -1) {
		suggestions = append(suggestions, models.ProductURLSuggestion{
			URL:        trailingPunctuation.ReplaceAllString(raw, ""),
			Title:      productName,
			Confidence: "medium",
		})
	}
	return suggestions
}

// FilterSuggestions drops invalid URLs and URLs outside the supported
// retailers, then keeps the first MaxURLSuggestions.
func FilterSuggestions(candidates []models.ProductURLSuggestion) []models.ProductURLSuggestion {
	kept := make([]models.ProductURLSuggestion, 0, MaxURLSuggestions)
	for _, candidate := range candidates {
		u, err := validation.ValidateProductURL(candidate.URL)
		if err != nil || !IsSupportedRetailer(u.Hostname()) {
			continue
		}
		candidate.URL = u.String()
		if candidate.Source == "" {
			candidate.Source = NormalizeHost(u.Hostname())
		}
		kept = append(kept, candidate)
		if len(kept) == MaxURLSuggestions {
			break
		}
	}
	return kept
}
