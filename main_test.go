package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairval/ai"
	"fairval/apperrors"
	"fairval/config"
	"fairval/handlers"
)

func TestWireAIServicesUsesReasoningModel(t *testing.T) {
	var models []string
	model := ai.ModelFunc(func(_ context.Context, req ai.Request) (string, error) {
		models = append(models, req.Model)
		return "", fmt.Errorf("stop: %w", apperrors.ErrValidation)
	})
	cfg := &config.Config{ExtractionModel: "haiku", ReasoningModel: "sonnet"}

	var deps handlers.Deps
	wireAIServices(&deps, model, cfg)
	require.NotNil(t, deps.Receipts)
	require.NotNil(t, deps.Refunds)
	require.NotNil(t, deps.Suggestions)

	_, err := deps.Receipts.ExtractReceipt(context.Background(), "ACME STORE\nKettle 79.99")
	require.Error(t, err)
	_, err = deps.Suggestions.SuggestProductURLs(context.Background(), "Kettle", "Target")
	require.Error(t, err)
	assert.Equal(t, []string{"sonnet", "sonnet"}, models)
}

func TestWireAIServicesWithoutModel(t *testing.T) {
	var deps handlers.Deps
	wireAIServices(&deps, nil, &config.Config{ReasoningModel: "sonnet"})
	assert.Nil(t, deps.Receipts)
	assert.Nil(t, deps.Refunds)
	assert.Nil(t, deps.Suggestions)
}
