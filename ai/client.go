// Package ai talks to the hosted language model used for price, receipt and
// policy extraction.
package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"

	"fairval/apperrors"
)

// Image is an optional picture sent alongside the prompt.
type Image struct {
	MediaType string // image/jpeg, image/png, image/gif or image/webp
	Data      []byte
}

// Request is a single-turn prompt.
type Request struct {
	Model     string
	MaxTokens int64
	Prompt    string
	Image     *Image
}

// Model completes prompts and returns the model's text answer.
type Model interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, req Request) (string, error)

func (f ModelFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ClientConfig configures the Anthropic-backed client.
type ClientConfig struct {
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// Client is a rate-limited Anthropic Messages API client.
type Client struct {
	api     anthropic.Client
	limiter *rate.Limiter
}

// NewClient creates a client. Retries are left to callers, which wrap
// calls with retry.Do.
func NewClient(cfg ClientConfig, opts ...option.RequestOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY: %w", apperrors.ErrConfig)
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}, opts...)

	return &Client{
		api:     anthropic.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 5),
	}, nil
}

// Complete sends req and returns the first text block of the answer.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for model rate limiter: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	var blocks []anthropic.ContentBlockParamUnion
	if req.Image != nil {
		blocks = append(blocks, anthropic.NewImageBlockBase64(req.Image.MediaType, base64.StdEncoding.EncodeToString(req.Image.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))

	message, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	})
	if err != nil {
		return "", classify(err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in model response: %w", apperrors.ErrExtraction)
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic request failed: %w", err)
	}

	switch {
	case apiErr.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("anthropic: %w: %w", apperrors.ErrRateLimited, err)
	case apiErr.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("anthropic rejected the request: %w: %w", apperrors.ErrValidation, err)
	default:
		return fmt.Errorf("anthropic status %d: %w: %w", apiErr.StatusCode, apperrors.ErrAIUnavailable, err)
	}
}
