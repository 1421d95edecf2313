package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackingRecord is an active price watch on a purchased product.
type TrackingRecord struct {
	ID             string              `json:"id"`
	PurchaseID     string              `json:"purchase_id"`
	UserID         string              `json:"user_id,omitempty"`
	ProductURL     string              `json:"product_url"`
	ProductName    string              `json:"product_name"`
	OriginalPrice  decimal.Decimal     `json:"original_price"`
	CurrentPrice   decimal.NullDecimal `json:"current_price"`
	LowestPrice    decimal.NullDecimal `json:"lowest_price"`
	PriceHistory   []PricePoint        `json:"price_history,omitempty"`
	TrackingActive bool                `json:"tracking_active"`
	LastChecked    *time.Time          `json:"last_checked,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
}

// PricePoint is one entry of a record's price history.
type PricePoint struct {
	Date      time.Time       `json:"date"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}

// PriceUpdate is what a successful check writes back to a tracking record.
type PriceUpdate struct {
	CurrentPrice decimal.Decimal
	Point        PricePoint
	CheckedAt    time.Time
	DropDetected bool
	DropAmount   decimal.Decimal
}

// Notification types and priorities.
const (
	NotificationPriceDrop = "price_drop"
	PriorityHigh          = "high"
)

// Notification is a message queued for a user.
type Notification struct {
	UserID     string `json:"user_id"`
	PurchaseID string `json:"purchase_id"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Priority   string `json:"priority"`
}

// BatchItemResult reports the outcome for one record in a batch run.
type BatchItemResult struct {
	ID        string `json:"id"`
	Success   bool   `json:"success"`
	PriceDrop bool   `json:"price_drop,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchSummary reports a whole batch run.
type BatchSummary struct {
	Checked    int               `json:"checked"`
	Succeeded  int               `json:"succeeded"`
	PriceDrops int               `json:"price_drops"`
	Results    []BatchItemResult `json:"results"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   string            `json:"duration"`
}
