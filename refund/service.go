// Package refund drafts refund request emails and judges return eligibility.
package refund

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fairval/ai"
	"fairval/apperrors"
	"fairval/models"
	"fairval/retry"
	"fairval/validation"
)

// RefundAmount returns how much the customer should ask for. A return
// refunds the whole total. Price drops and price matches refund the
// difference and need a current price strictly below the total.
func RefundAmount(refundType models.RefundType, total decimal.Decimal, current *decimal.Decimal) (decimal.Decimal, error) {
	if !refundType.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown refund type %q", apperrors.ErrValidation, refundType)
	}

	if refundType == models.RefundReturn {
		return total, nil
	}
	if current == nil {
		return decimal.Zero, fmt.Errorf("%w: current_price is required for %s refunds", apperrors.ErrValidation, refundType)
	}
	if !current.LessThan(total) {
		return decimal.Zero, fmt.Errorf("%w: current price %s is not below the purchase price %s",
			apperrors.ErrValidation, current.StringFixed(2), total.StringFixed(2))
	}
	return total.Sub(*current), nil
}

// Service wraps the reasoning model for refund paperwork.
type Service struct {
	model     ai.Model
	modelName string
	Retry     retry.Options

	now func() time.Time
}

// NewService creates a new refund service
func NewService(model ai.Model, modelName string) *Service {
	opts := retry.DefaultOptions()
	opts.ShouldRetry = apperrors.IsRetryable
	return &Service{model: model, modelName: modelName, Retry: opts, now: time.Now}
}

// GeneratedEmail is a drafted email plus the amount it asks for.
type GeneratedEmail struct {
	models.RefundEmail
	RefundAmount float64 `json:"refund_amount"`
}

// GenerateRefundEmail drafts a polite refund request for req.
func (s *Service) GenerateRefundEmail(ctx context.Context, req models.RefundRequest) (*GeneratedEmail, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	total := decimal.NewFromFloat(req.Purchase.Total)
	var current *decimal.Decimal
	if req.CurrentPrice != nil {
		c := decimal.NewFromFloat(*req.CurrentPrice)
		current = &c
	}
	amount, err := RefundAmount(req.Type, total, current)
	if err != nil {
		return nil, err
	}

	prompt := refundEmailPrompt(req, total, current)
	opts := s.Retry
	opts.OnRetry = retry.LogRetries("refund email")

	email, err := retry.Do(ctx, func(ctx context.Context) (models.RefundEmail, error) {
		var email models.RefundEmail
		answer, err := s.model.Complete(ctx, ai.Request{Model: s.modelName, MaxTokens: 1500, Prompt: prompt})
		if err != nil {
			return email, err
		}
		if err := ai.DecodeJSON(answer, &email); err != nil {
			return email, err
		}
		if strings.TrimSpace(email.Subject) == "" || strings.TrimSpace(email.Body) == "" {
			return email, fmt.Errorf("refund email is missing subject or body: %w", apperrors.ErrExtraction)
		}
		return email, nil
	}, opts)
	if err != nil {
		log.Printf("❌ Failed to generate refund email for %s: %v", req.Purchase.Merchant, err)
		return nil, fmt.Errorf("failed to generate refund email: %w", err)
	}

	if email.Tone == "" {
		email.Tone = "professional"
	}
	return &GeneratedEmail{RefundEmail: email, RefundAmount: amount.Round(2).InexactFloat64()}, nil
}

func refundEmailPrompt(req models.RefundRequest, total decimal.Decimal, current *decimal.Decimal) string {
	action := "return authorization"
	switch req.Type {
	case models.RefundPriceDrop:
		action = "price adjustment"
	case models.RefundPriceMatch:
		action = "price match"
	}

	var b strings.Builder
	b.WriteString("You are a professional email writer specializing in customer service requests. Generate a refund request email.\n\n")
	fmt.Fprintf(&b, "REFUND TYPE: %s\n", req.Type)
	fmt.Fprintf(&b, "MERCHANT: %s\n", req.Purchase.Merchant)
	fmt.Fprintf(&b, "PURCHASE DATE: %s\n", req.Purchase.PurchaseDate)
	if req.Purchase.OrderNumber != "" {
		fmt.Fprintf(&b, "ORDER NUMBER: %s\n", req.Purchase.OrderNumber)
	}
	fmt.Fprintf(&b, "ORIGINAL PRICE: $%s\n", total.StringFixed(2))
	if current != nil {
		fmt.Fprintf(&b, "CURRENT PRICE: $%s\n", current.StringFixed(2))
	}
	fmt.Fprintf(&b, "CUSTOMER NAME: %s\n", req.Customer.Name)
	fmt.Fprintf(&b, "CUSTOMER EMAIL: %s\n\n", req.Customer.Email)
	fmt.Fprintf(&b, "Write a professional, polite email requesting a %s.\n\n", action)
	b.WriteString(`Guidelines:
- Be polite and professional
- Reference specific policy terms if applicable
- Include all relevant details (order number, dates, amounts)
- Request specific action
- Thank them for their time
- Keep it concise (under 200 words)

Return JSON:
{
  "subject": "email subject line",
  "body": "email body with newlines",
  "tone": "professional|friendly|formal"
}

Return ONLY the JSON object.`)
	return b.String()
}

// AnalyzeReturnEligibility asks the model whether purchase can still be
// returned under policy.
func (s *Service) AnalyzeReturnEligibility(ctx context.Context, purchase models.PurchaseSummary, policy string) (*models.ReturnAnalysis, error) {
	if err := validation.Struct(purchase); err != nil {
		return nil, err
	}
	if strings.TrimSpace(policy) == "" {
		return nil, fmt.Errorf("%w: return policy text is required", apperrors.ErrValidation)
	}

	items, err := json.Marshal(purchase.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}
	prompt := fmt.Sprintf(returnAnalysisPrompt,
		purchase.Merchant,
		purchase.PurchaseDate,
		s.now().Format("2006-01-02"),
		decimal.NewFromFloat(purchase.Total).StringFixed(2),
		items,
		policy,
	)

	opts := s.Retry
	opts.OnRetry = retry.LogRetries("return analysis")

	analysis, err := retry.Do(ctx, func(ctx context.Context) (*models.ReturnAnalysis, error) {
		answer, err := s.model.Complete(ctx, ai.Request{Model: s.modelName, MaxTokens: 2048, Prompt: prompt})
		if err != nil {
			return nil, err
		}
		var analysis models.ReturnAnalysis
		if err := ai.DecodeJSON(answer, &analysis); err != nil {
			return nil, err
		}
		return &analysis, nil
	}, opts)
	if err != nil {
		log.Printf("❌ Return analysis failed for %s: %v", purchase.Merchant, err)
		return nil, fmt.Errorf("failed to analyze return eligibility: %w", err)
	}

	if analysis.DaysRemaining < 0 {
		analysis.DaysRemaining = 0
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []string{}
	}
	return analysis, nil
}

const returnAnalysisPrompt = `You are a return policy expert. Analyze if this purchase is still returnable.

PURCHASE DETAILS:
- Merchant: %s
- Purchase Date: %s
- Today's Date: %s
- Total Amount: $%s
- Items: %s

RETURN POLICY:
%s

Analyze the return eligibility and provide:
1. Can this purchase still be returned?
2. How many days remain in the return window?
3. What is the exact return deadline?
4. Detailed reasoning based on the policy
5. Recommendations for the user

Return JSON:
{
  "is_returnable": true/false,
  "days_remaining": number,
  "return_deadline": "YYYY-MM-DD",
  "reasoning": "detailed explanation",
  "confidence": 0.95,
  "recommendations": ["action 1", "action 2"]
}

Return ONLY the JSON object.`
