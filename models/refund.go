package models

// RefundType is the kind of refund being requested.
type RefundType string

const (
	RefundPriceDrop  RefundType = "price_drop"
	RefundReturn     RefundType = "return"
	RefundPriceMatch RefundType = "price_match"
)

// Valid reports whether t is a known refund type.
func (t RefundType) Valid() bool {
	switch t {
	case RefundPriceDrop, RefundReturn, RefundPriceMatch:
		return true
	}
	return false
}

// PurchaseSummary is the slice of a purchase the AI helpers reason about.
type PurchaseSummary struct {
	Merchant     string        `json:"merchant" validate:"required,max=255"`
	PurchaseDate string        `json:"purchase_date" validate:"required,datetime=2006-01-02"`
	OrderNumber  string        `json:"order_number,omitempty" validate:"max=100"`
	Total        float64       `json:"total" validate:"gt=0,lte=999999.99"`
	Items        []ReceiptItem `json:"items,omitempty" validate:"omitempty,dive"`
}

// Customer identifies who the refund email is written for.
type Customer struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
}

// RefundRequest is the input to refund email generation.
type RefundRequest struct {
	Type         RefundType      `json:"refund_type" validate:"required,oneof=price_drop return price_match"`
	Purchase     PurchaseSummary `json:"purchase"`
	CurrentPrice *float64        `json:"current_price,omitempty" validate:"omitempty,gte=0"`
	Customer     Customer        `json:"customer"`
}

// RefundEmail is a drafted refund request.
type RefundEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Tone    string `json:"tone"`
}

// ReturnAnalysis is the model's assessment of whether a purchase can still be returned.
type ReturnAnalysis struct {
	IsReturnable    bool     `json:"is_returnable"`
	DaysRemaining   int      `json:"days_remaining"`
	ReturnDeadline  string   `json:"return_deadline"`
	Reasoning       string   `json:"reasoning"`
	Confidence      float64  `json:"confidence"`
	Recommendations []string `json:"recommendations"`
}
