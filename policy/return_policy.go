// Package policy finds and summarizes merchant return policies.
package policy

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"fairval/ai"
	"fairval/apperrors"
	"fairval/models"
	"fairval/retry"
	"fairval/scraper"
	"fairval/validation"
)

const (
	minContentChars  = 500
	maxContentChars  = 100000
	fallbackChars    = 50000
	defaultReturnDay = 30
)

var (
	commonPolicyPaths = []string{
		"/returns",
		"/return-policy",
		"/returns-exchanges",
		"/customer-service/returns",
		"/help/returns",
	}

	contentSelectors = []string{
		"main",
		"article",
		`div[class*="content"]`,
		`div[class*="policy"]`,
		`div[id*="content"]`,
	}

	sectionSplitter = regexp.MustCompile(`(?i)<(?:section|div|article)`)
	policyKeywords  = regexp.MustCompile(`(?i)return|exchange|refund|policy`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
)

// Scraper locates a merchant's return policy page and summarizes it with the
// reasoning model.
type Scraper struct {
	fetcher   scraper.PageFetcher
	client    *http.Client
	model     ai.Model
	modelName string
	sanitizer *bluemonday.Policy
	Retry     retry.Options

	scheme      string
	validateURL func(string) (*url.URL, error)
	now         func() time.Time
}

// NewScraper creates a new return policy scraper
func NewScraper(fetcher scraper.PageFetcher, model ai.Model, modelName string) *Scraper {
	opts := retry.DefaultOptions()
	opts.ShouldRetry = apperrors.IsRetryable
	return &Scraper{
		fetcher:     fetcher,
		client:      scraper.NewSafeHTTPClient(10 * time.Second),
		model:       model,
		modelName:   modelName,
		sanitizer:   bluemonday.StrictPolicy(),
		Retry:       opts,
		scheme:      "https",
		validateURL: validation.ValidateProductURL,
		now:         time.Now,
	}
}

// FindPolicyURL asks the model for the policy page and falls back to
// probing common paths on merchantDomain.
func (s *Scraper) FindPolicyURL(ctx context.Context, merchantName, merchantDomain string) (string, error) {
	log.Printf("🔎 Finding return policy URL for: %s", merchantName)

	policyURL, err := s.askForPolicyURL(ctx, merchantName, merchantDomain)
	if err == nil {
		log.Printf("✅ Found policy URL: %s", policyURL)
		return policyURL, nil
	}
	log.Printf("⚠️  Model could not find policy URL for %s: %v", merchantName, err)

	if merchantDomain != "" {
		for _, path := range commonPolicyPaths {
			candidate := s.scheme + "://" + merchantDomain + path
			if s.probe(ctx, candidate) {
				log.Printf("✅ Found policy via common path: %s", candidate)
				return candidate, nil
			}
		}
	}

	return "", fmt.Errorf("could not find return policy URL for %s: %w", merchantName, apperrors.ErrNotFound)
}

func (s *Scraper) askForPolicyURL(ctx context.Context, merchantName, merchantDomain string) (string, error) {
	if s.model == nil {
		return "", scraper.ErrModelNotConfigured
	}

	merchant := merchantName
	if merchantDomain != "" {
		merchant = fmt.Sprintf("%s (%s)", merchantName, merchantDomain)
	}
	answer, err := s.model.Complete(ctx, ai.Request{
		Model:     s.modelName,
		MaxTokens: 500,
		Prompt:    fmt.Sprintf(findPolicyPrompt, merchant),
	})
	if err != nil {
		return "", err
	}

	candidate := strings.TrimSpace(answer)
	if !strings.HasPrefix(candidate, "http://") && !strings.HasPrefix(candidate, "https://") {
		return "", fmt.Errorf("invalid URL returned from search: %w", apperrors.ErrExtraction)
	}
	u, err := s.validateURL(candidate)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (s *Scraper) probe(ctx context.Context, candidate string) bool {
	if _, err := s.validateURL(candidate); err != nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299
}

type policyPayload struct {
	PolicyText     string   `json:"policy_text"`
	ReturnDays     int      `json:"return_days"`
	HasPriceMatch  bool     `json:"has_price_match"`
	PriceMatchDays int      `json:"price_match_days"`
	Confidence     *float64 `json:"confidence"`
}

// ExtractPolicy fetches policyURL and summarizes the policy on it. The
// merchant fields and ScrapedAt are left for the caller.
func (s *Scraper) ExtractPolicy(ctx context.Context, policyURL, merchantName string) (*models.ReturnPolicy, error) {
	if _, err := s.validateURL(policyURL); err != nil {
		return nil, err
	}
	if s.model == nil {
		return nil, scraper.ErrModelNotConfigured
	}

	log.Printf("📜 Scraping return policy from: %s", policyURL)
	html, err := s.fetcher.Fetch(ctx, policyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch policy page: %w", err)
	}

	content := s.policyText(PolicyContent(html))
	log.Printf("Extracted relevant content, length: %d", len(content))

	opts := s.Retry
	opts.OnRetry = retry.LogRetries("policy extraction")
	prompt := fmt.Sprintf(extractPolicyPrompt, merchantName, content, policyURL)

	payload, err := retry.Do(ctx, func(ctx context.Context) (*policyPayload, error) {
		answer, err := s.model.Complete(ctx, ai.Request{Model: s.modelName, MaxTokens: 4000, Prompt: prompt})
		if err != nil {
			return nil, err
		}
		var payload policyPayload
		if err := ai.DecodeJSON(answer, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to extract return policy from %s: %w", policyURL, err)
	}

	result := &models.ReturnPolicy{
		PolicyURL:      policyURL,
		PolicyText:     strings.TrimSpace(payload.PolicyText),
		ReturnDays:     payload.ReturnDays,
		HasPriceMatch:  payload.HasPriceMatch,
		PriceMatchDays: payload.PriceMatchDays,
		Confidence:     0.5,
	}
	if result.ReturnDays <= 0 {
		result.ReturnDays = defaultReturnDay
	}
	if !result.HasPriceMatch || result.PriceMatchDays < 0 {
		result.PriceMatchDays = 0
	}
	if payload.Confidence != nil && *payload.Confidence > 0 && *payload.Confidence <= 1 {
		result.Confidence = *payload.Confidence
	}
	return result, nil
}

// ScrapeReturnPolicy finds and extracts merchantName's return policy.
func (s *Scraper) ScrapeReturnPolicy(ctx context.Context, merchantName, merchantDomain string) (*models.ReturnPolicy, error) {
	merchantName = strings.TrimSpace(merchantName)
	if merchantName == "" {
		return nil, fmt.Errorf("%w: merchant_name is required", apperrors.ErrValidation)
	}
	merchantDomain = scraper.NormalizeHost(merchantDomain)

	policyURL, err := s.FindPolicyURL(ctx, merchantName, merchantDomain)
	if err != nil {
		return nil, err
	}
	result, err := s.ExtractPolicy(ctx, policyURL, merchantName)
	if err != nil {
		return nil, err
	}

	result.MerchantName = merchantName
	result.MerchantDomain = merchantDomain
	if result.MerchantDomain == "" {
		if u, err := url.Parse(policyURL); err == nil {
			result.MerchantDomain = u.Hostname()
		}
	}
	result.ScrapedAt = s.now().UTC()
	return result, nil
}

// policyText strips markup so the prompt carries only readable text.
func (s *Scraper) policyText(html string) string {
	text := s.sanitizer.Sanitize(html)
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(text, " "))
}

// PolicyContent returns the part of a policy page worth summarizing: the
// first substantial main-content block, else the sections mentioning
// returns, else the start of the page.
func PolicyContent(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return truncate(html, fallbackChars)
	}
	doc.Find("script, style").Remove()

	for _, selector := range contentSelectors {
		var block string
		doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			inner, err := sel.Html()
			if err == nil && len(inner) > minContentChars {
				block = inner
				return false
			}
			return true
		})
		if block != "" {
			return truncate(block, maxContentChars)
		}
	}

	cleaned, err := doc.Html()
	if err != nil {
		cleaned = html
	}

	var relevant []string
	for _, section := range sectionSplitter.Split(cleaned, -1) {
		if policyKeywords.MatchString(section) {
			relevant = append(relevant, section)
		}
	}
	if len(relevant) > 0 {
		return truncate(strings.Join(relevant, "\n"), maxContentChars)
	}
	return truncate(cleaned, fallbackChars)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}

const findPolicyPrompt = `Find the return policy page URL for %s.

Search the web and return ONLY the direct URL to their return/exchange policy page.

Requirements:
- Must be the actual policy page, not homepage
- Should contain words like "return", "exchange", "refund" in the URL or be linked from their site
- Prefer official policy pages over third-party sites

Return ONLY the URL, nothing else.`

const extractPolicyPrompt = `Extract return/exchange policy information from this page text for %s.

PAGE TEXT:
%s

Extract and return JSON with:
1. policy_text: Clean, readable summary of the return policy (2-3 paragraphs covering key points)
2. return_days: Number of days allowed for returns (e.g., 30, 60, 90)
3. has_price_match: Does the store offer price matching? (true/false)
4. price_match_days: If yes, how many days for price match? (0 if no price match)
5. confidence: Your confidence in this extraction (0.0 to 1.0)

Important:
- policy_text should be clear, concise, and cover: time limits, condition requirements, refund method, exclusions
- Focus on the most important customer-facing policies
- If multiple return windows exist (e.g., holiday extended), note the standard one
- For price_match, look for "price match", "price adjustment", "price protection"

Return ONLY valid JSON:
{
  "policy_url": "%s",
  "policy_text": "Clear summary of return policy...",
  "return_days": 30,
  "has_price_match": true,
  "price_match_days": 14,
  "confidence": 0.95
}`
