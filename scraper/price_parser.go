package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"fairval/apperrors"
)

// PriceParser turns price text in US or European notation into amounts.
type PriceParser struct {
	number      *regexp.Regexp
	dollarScan  *regexp.Regexp
	isoCurrency *regexp.Regexp
}

var currencySymbols = []struct {
	symbol string
	code   string
}{
	{"US$", "USD"},
	{"C$", "CAD"},
	{"CA$", "CAD"},
	{"A$", "AUD"},
	{"AU$", "AUD"},
	{"$", "USD"},
	{"£", "GBP"},
	{"€", "EUR"},
	{"¥", "JPY"},
}

// NewPriceParser creates a new price parser
func NewPriceParser() *PriceParser {
	return &PriceParser{
		// Grouped thousands (1,234.56 / 1.234,56) or a plain amount (1234.56 / 12,99).
		number:      regexp.MustCompile(`\d{1,3}(?:[,.'\x{00a0}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?`),
		dollarScan:  regexp.MustCompile(`\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`),
		isoCurrency: regexp.MustCompile(`\b(USD|EUR|GBP|CAD|AUD|JPY)\b`),
	}
}

// ParsePrice returns the first amount in text and the currency it is
// written in ("" when the text names none).
func (pp *PriceParser) ParsePrice(text string) (decimal.Decimal, string, error) {
	text = strings.TrimSpace(text)
	currency := pp.DetectCurrency(text)

	match := pp.number.FindString(text)
	if match == "" {
		return decimal.Zero, currency, fmt.Errorf("no price pattern found in %q: %w", text, apperrors.ErrExtraction)
	}

	value, err := decimal.NewFromString(normalizeNumber(match))
	if err != nil {
		return decimal.Zero, currency, fmt.Errorf("unparseable price %q: %w", match, apperrors.ErrExtraction)
	}
	return value, currency, nil
}

// DetectCurrency returns the ISO code for the first currency symbol or code
// found in text.
func (pp *PriceParser) DetectCurrency(text string) string {
	if code := pp.isoCurrency.FindString(strings.ToUpper(text)); code != "" {
		return code
	}
	for _, cs := range currencySymbols {
		if strings.Contains(text, cs.symbol) {
			return cs.code
		}
	}
	return ""
}

// FindDollarAmounts returns every positive "$" amount in text, in order.
func (pp *PriceParser) FindDollarAmounts(text string) []decimal.Decimal {
	var amounts []decimal.Decimal
	for _, m := range pp.dollarScan.FindAllStringSubmatch(text, -1) {
		value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && value.IsPositive() {
			amounts = append(amounts, value)
		}
	}
	return amounts
}

// normalizeNumber converts a matched amount to plain decimal notation. When
// both separators appear the last one is the decimal point; a lone
// separator is decimal only if one or two digits follow it.
func normalizeNumber(s string) string {
	s = strings.NewReplacer("'", "", "\u00a0", "").Replace(s)

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// European: 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 && len(s)-lastDot-1 <= 2 {
			return s
		}
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}
