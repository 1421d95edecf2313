// Package receipt turns receipt photos into validated purchase data.
package receipt

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"strings"

	"fairval/ai"
	"fairval/apperrors"
	"fairval/models"
	"fairval/retry"
	"fairval/validation"
)

const ocrPrompt = `Please extract all text from this receipt image. Include:
- Store/merchant name
- Date and time
- All item names and prices
- Subtotal, tax, and total
- Payment method (if visible)

Return the text exactly as it appears on the receipt, preserving the layout as much as possible.`

const receiptPrompt = `You are a receipt data extraction expert. Extract structured data from this receipt OCR text.

OCR Text:
%s

Return a JSON object with this exact structure:
{
  "merchant": "store name",
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "currency": "USD",
  "items": [
    {"name": "item name", "price": 0.00, "quantity": 1}
  ],
  "confidence": 0.95
}

Rules:
- merchant: Identify the store name (e.g., "Target", "Walmart", "Amazon")
- date: Extract purchase date in ISO format (YYYY-MM-DD)
- total: Final total amount paid (as a number)
- currency: Default to "USD" unless specified
- items: List all purchased items with prices (be thorough)
- confidence: Your confidence in the extraction (0-1)

Return ONLY the JSON object, no explanation or markdown.`

var supportedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Extractor reads receipts with the vision-capable reasoning model.
type Extractor struct {
	model     ai.Model
	modelName string
	Retry     retry.Options
}

// NewExtractor creates a new receipt extractor
func NewExtractor(model ai.Model, modelName string) *Extractor {
	opts := retry.DefaultOptions()
	opts.ShouldRetry = apperrors.IsRetryable
	return &Extractor{model: model, modelName: modelName, Retry: opts}
}

// ExtractText transcribes a receipt image. image may be plain base64 or a
// data URL.
func (e *Extractor) ExtractText(ctx context.Context, image, mediaType string) (string, error) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if !supportedImageTypes[mediaType] {
		return "", fmt.Errorf("%w: unsupported image type %q", apperrors.ErrValidation, mediaType)
	}

	if i := strings.Index(image, "base64,"); i >= 0 {
		image = image[i+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(image))
	if err != nil {
		return "", fmt.Errorf("%w: image is not valid base64", apperrors.ErrValidation)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image is empty", apperrors.ErrValidation)
	}

	opts := e.Retry
	opts.OnRetry = retry.LogRetries("receipt OCR")
	text, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return e.model.Complete(ctx, ai.Request{
			Model:     e.modelName,
			MaxTokens: 2048,
			Prompt:    ocrPrompt,
			Image:     &ai.Image{MediaType: mediaType, Data: data},
		})
	}, opts)
	if err != nil {
		return "", fmt.Errorf("receipt OCR failed: %w", err)
	}
	return text, nil
}

// ExtractReceipt structures OCR text and validates the result.
func (e *Extractor) ExtractReceipt(ctx context.Context, text string) (*models.ReceiptData, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: receipt text is empty", apperrors.ErrValidation)
	}

	opts := e.Retry
	opts.OnRetry = retry.LogRetries("receipt extraction")
	receipt, err := retry.Do(ctx, func(ctx context.Context) (*models.ReceiptData, error) {
		answer, err := e.model.Complete(ctx, ai.Request{
			Model:     e.modelName,
			MaxTokens: 1024,
			Prompt:    fmt.Sprintf(receiptPrompt, text),
		})
		if err != nil {
			return nil, err
		}
		var data models.ReceiptData
		if err := ai.DecodeJSON(answer, &data); err != nil {
			return nil, err
		}
		return &data, nil
	}, opts)
	if err != nil {
		return nil, fmt.Errorf("receipt extraction failed: %w", err)
	}

	normalize(receipt)
	if err := validation.ValidateReceipt(receipt); err != nil {
		return nil, err
	}
	log.Printf("🧾 Extracted receipt from %s: %d items, total %.2f %s",
		receipt.Merchant, len(receipt.Items), receipt.Total, receipt.Currency)
	return receipt, nil
}

// ExtractFromImage runs OCR and structuring back to back.
func (e *Extractor) ExtractFromImage(ctx context.Context, image, mediaType string) (*models.ReceiptData, error) {
	text, err := e.ExtractText(ctx, image, mediaType)
	if err != nil {
		return nil, err
	}
	return e.ExtractReceipt(ctx, text)
}

func normalize(receipt *models.ReceiptData) {
	receipt.Merchant = strings.TrimSpace(receipt.Merchant)
	receipt.Currency = strings.ToUpper(strings.TrimSpace(receipt.Currency))
	if receipt.Currency == "" {
		receipt.Currency = "USD"
	}
	for i := range receipt.Items {
		receipt.Items[i].Name = strings.TrimSpace(receipt.Items[i].Name)
		if receipt.Items[i].Quantity == 0 {
			receipt.Items[i].Quantity = 1
		}
	}
}
