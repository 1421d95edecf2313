package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
	"fairval/models"
)

func validReceipt() *models.ReceiptData {
	confidence := 0.92
	return &models.ReceiptData{
		Merchant: "Target",
		Date:     "2024-11-29",
		Total:    54.37,
		Currency: "USD",
		Items: []models.ReceiptItem{
			{Name: "Throw blanket", Price: 29.99, Quantity: 1},
			{Name: "Candle", Price: 12.19, Quantity: 2},
		},
		Confidence: &confidence,
	}
}

func fixNow(t *testing.T) {
	t.Helper()
	original := now
	now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = original })
}

func TestValidateReceiptAcceptsValid(t *testing.T) {
	fixNow(t)
	require.NoError(t, ValidateReceipt(validReceipt()))

	noConfidence := validReceipt()
	noConfidence.Confidence = nil
	assert.NoError(t, ValidateReceipt(noConfidence))
}

func TestValidateReceiptRejects(t *testing.T) {
	fixNow(t)

	tests := []struct {
		name   string
		mutate func(r *models.ReceiptData)
		want   string
	}{
		{"empty merchant", func(r *models.ReceiptData) { r.Merchant = "" }, "Merchant is required"},
		{"bad date format", func(r *models.ReceiptData) { r.Date = "11/29/2024" }, "Date must be a YYYY-MM-DD date"},
		{"date too old", func(r *models.ReceiptData) { r.Date = "1999-12-31" }, "Date must be a YYYY-MM-DD date"},
		{"future date", func(r *models.ReceiptData) { r.Date = "2025-07-01" }, "Date must be a YYYY-MM-DD date"},
		{"zero total", func(r *models.ReceiptData) { r.Total = 0 }, "Total must be greater than 0"},
		{"huge total", func(r *models.ReceiptData) { r.Total = 1000000 }, "Total must be at most 999999.99"},
		{"three decimals", func(r *models.ReceiptData) { r.Total = 10.555 }, "Total must have at most 2 decimal places"},
		{"currency", func(r *models.ReceiptData) { r.Currency = "BTC" }, "Currency must be one of"},
		{"no items", func(r *models.ReceiptData) { r.Items = nil }, "Items is required"},
		{"item quantity", func(r *models.ReceiptData) { r.Items[0].Quantity = 0 }, "Items[0].Quantity must be at least 1"},
		{"item price", func(r *models.ReceiptData) { r.Items[1].Price = -1 }, "Items[1].Price must be at least 0"},
		{"confidence", func(r *models.ReceiptData) { c := 1.5; r.Confidence = &c }, "Confidence must be at most 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receipt := validReceipt()
			tt.mutate(receipt)

			err := ValidateReceipt(receipt)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReceiptNil(t *testing.T) {
	assert.ErrorIs(t, ValidateReceipt(nil), apperrors.ErrValidation)
}
