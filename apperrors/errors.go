// Package apperrors defines the error taxonomy shared by the scrapers, the AI
// helpers and the HTTP layer, and maps errors to user-facing categories.
package apperrors

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrConfig        = errors.New("not configured")
	ErrExtraction    = errors.New("extraction failed")
	ErrTimeout       = errors.New("operation timed out")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrAIUnavailable = errors.New("ai service unavailable")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("already exists")
)

// Category is the coarse, user-facing class of an error.
type Category string

const (
	CategoryTimeout        Category = "timeout"
	CategoryNetwork        Category = "network"
	CategoryRateLimit      Category = "rate_limit"
	CategoryAuthentication Category = "authentication"
	CategoryValidation     Category = "validation"
	CategoryAIUnavailable  Category = "ai_unavailable"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryExtraction     Category = "extraction"
	CategoryUnavailable    Category = "unavailable"
	CategoryInternal       Category = "internal"
)

var messages = map[Category]string{
	CategoryTimeout:        "The operation took too long. Please try again.",
	CategoryNetwork:        "Network error. Please check your connection and try again.",
	CategoryRateLimit:      "Too many requests. Please wait a moment and try again.",
	CategoryAuthentication: "Please log in to continue.",
	CategoryValidation:     "Please check your input and try again.",
	CategoryAIUnavailable:  "AI service is temporarily unavailable. Please try again.",
	CategoryNotFound:       "The requested item was not found.",
	CategoryConflict:       "This item already exists.",
	CategoryExtraction:     "We could not read the product information from that page.",
	CategoryUnavailable:    "This feature is not available right now.",
	CategoryInternal:       "Something went wrong. Please try again.",
}

// Categorize classifies err. Typed sentinels win over message heuristics.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrUnauthorized):
		return CategoryAuthentication
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimit
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrConflict):
		return CategoryConflict
	case errors.Is(err, ErrAIUnavailable):
		return CategoryAIUnavailable
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CategoryTimeout
		}
		return CategoryNetwork
	}

	if errors.Is(err, ErrExtraction) {
		return CategoryExtraction
	}
	if errors.Is(err, ErrConfig) {
		return CategoryUnavailable
	}

	return categorizeMessage(strings.ToLower(err.Error()))
}

func categorizeMessage(message string) Category {
	switch {
	case containsAny(message, "timeout", "timed out"):
		return CategoryTimeout
	case containsAny(message, "rate limit", "too many requests"):
		return CategoryRateLimit
	case containsAny(message, "unauthorized", "authentication", "forbidden"):
		return CategoryAuthentication
	case containsAny(message, "network", "connection", "no such host", "fetch"):
		return CategoryNetwork
	case containsAny(message, "not found"):
		return CategoryNotFound
	case containsAny(message, "validation", "invalid"):
		return CategoryValidation
	case containsAny(message, "anthropic", "claude"):
		return CategoryAIUnavailable
	}
	return CategoryInternal
}

// UserMessage returns the generic message shown to API clients for err.
func UserMessage(err error) string {
	if msg, ok := messages[Categorize(err)]; ok {
		return msg
	}
	return messages[CategoryInternal]
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch Categorize(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryAuthentication:
		return http.StatusUnauthorized
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	case CategoryRateLimit:
		return http.StatusTooManyRequests
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryNetwork:
		return http.StatusBadGateway
	case CategoryAIUnavailable, CategoryUnavailable:
		return http.StatusServiceUnavailable
	case CategoryExtraction:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// IsRetryable reports whether repeating the failed operation may succeed.
// Unknown errors are retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch Categorize(err) {
	case CategoryValidation, CategoryAuthentication, CategoryNotFound, CategoryConflict, CategoryUnavailable:
		return false
	}
	return true
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
