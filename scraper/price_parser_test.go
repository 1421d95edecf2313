package scraper

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/apperrors"
)

func TestParsePrice(t *testing.T) {
	parser := NewPriceParser()

	tests := []struct {
		text     string
		want     string
		currency string
	}{
		{"$49.99", "49.99", "USD"},
		{"  $1,234.56 ", "1234.56", "USD"},
		{"Now $129.", "129", "USD"},
		{"129", "129", ""},
		{"€1.234,56", "1234.56", "EUR"},
		{"12,99 €", "12.99", "EUR"},
		{"£5", "5", "GBP"},
		{"CA$ 19.95", "19.95", "CAD"},
		{"Price: 899.00 USD", "899", "USD"},
		{"$1,299", "1299", "USD"},
		{"Was $59.99 now $39.99", "59.99", "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			value, currency, err := parser.ParsePrice(tt.text)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(value), "got %s", value)
			assert.Equal(t, tt.currency, currency)
		})
	}
}

func TestParsePriceNoNumber(t *testing.T) {
	_, _, err := NewPriceParser().ParsePrice("See price in cart")
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}

func TestFindDollarAmounts(t *testing.T) {
	amounts := NewPriceParser().FindDollarAmounts("Save $0 today. Sale $1,049.00, list $ 1,199.99, shipping $5")
	require.Len(t, amounts, 3)
	assert.Equal(t, "1049", amounts[0].String())
	assert.Equal(t, "1199.99", amounts[1].String())
	assert.Equal(t, "5", amounts[2].String())
}
