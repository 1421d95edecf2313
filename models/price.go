package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money columns and price history are JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Price sources reported on a PriceCheckResult.
const (
	SourceBrowser        = "browser"
	SourceStructuredData = "structured_data"
	SourceAI             = "ai"
)

// PriceCheckResult is the normalized outcome of one live price check.
type PriceCheckResult struct {
	URL          string          `json:"url"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Currency     string          `json:"currency"`
	Available    bool            `json:"available"`
	Title        string          `json:"title"`
	ImageURL     string          `json:"image_url,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
	Source       string          `json:"source,omitempty"`
}

// HasKnownPrice reports whether the check found a usable price. A zero price
// means the extractor could not determine one.
func (r *PriceCheckResult) HasKnownPrice() bool {
	return r != nil && r.CurrentPrice.IsPositive()
}

// MarshalJSON writes current_price as a JSON number with two decimals.
func (r PriceCheckResult) MarshalJSON() ([]byte, error) {
	type Alias PriceCheckResult
	return json.Marshal(&struct {
		CurrentPrice json.Number `json:"current_price"`
		*Alias
	}{
		CurrentPrice: json.Number(r.CurrentPrice.StringFixed(2)),
		Alias:        (*Alias)(&r),
	})
}
