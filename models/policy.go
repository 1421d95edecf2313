package models

import "time"

// ReturnPolicy is a merchant's scraped and summarized return policy.
type ReturnPolicy struct {
	MerchantName   string    `json:"merchant_name"`
	MerchantDomain string    `json:"merchant_domain"`
	PolicyURL      string    `json:"policy_url"`
	PolicyText     string    `json:"policy_text"`
	ReturnDays     int       `json:"return_days"`
	HasPriceMatch  bool      `json:"has_price_match"`
	PriceMatchDays int       `json:"price_match_days"`
	Confidence     float64   `json:"confidence"`
	ScrapedAt      time.Time `json:"scraped_at"`
}
