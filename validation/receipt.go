package validation

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"fairval/apperrors"
	"fairval/models"
)

var (
	minReceiptDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	// now is swapped in tests.
	now = time.Now
)

// validReceiptDate accepts YYYY-MM-DD dates from 2000-01-01 up to today.
func validReceiptDate(fl validator.FieldLevel) bool {
	date, err := time.Parse("2006-01-02", fl.Field().String())
	if err != nil {
		return false
	}
	return !date.Before(minReceiptDate) && !date.After(now())
}

func atMostTwoDecimals(fl validator.FieldLevel) bool {
	cents := fl.Field().Float() * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// ValidateReceipt checks extracted receipt data against the accepted ranges
// and formats.
func ValidateReceipt(receipt *models.ReceiptData) error {
	if receipt == nil {
		return fmt.Errorf("%w: receipt is empty", apperrors.ErrValidation)
	}
	return Struct(receipt)
}
