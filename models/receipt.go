package models

// ReceiptItem is one purchased line item.
type ReceiptItem struct {
	Name     string  `json:"name" validate:"required,min=1,max=500"`
	Price    float64 `json:"price" validate:"gte=0,lte=999999.99"`
	Quantity int     `json:"quantity" validate:"gte=1,lte=10000"`
}

// ReceiptData is the structured content of a purchase receipt.
type ReceiptData struct {
	Merchant   string        `json:"merchant" validate:"required,min=1,max=255"`
	Date       string        `json:"date" validate:"required,datetime=2006-01-02,receiptdate"`
	Total      float64       `json:"total" validate:"gt=0,lte=999999.99,cents"`
	Currency   string        `json:"currency" validate:"required,oneof=USD EUR GBP CAD AUD JPY"`
	Items      []ReceiptItem `json:"items" validate:"required,min=1,dive"`
	Confidence *float64      `json:"confidence,omitempty" validate:"omitempty,gte=0,lte=1"`
}
