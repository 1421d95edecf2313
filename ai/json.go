package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"fairval/apperrors"
)

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSON pulls the JSON object out of a model answer. Models sometimes
// wrap it in markdown fences or add prose around it.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return "", fmt.Errorf("could not find a JSON object in model response: %w", apperrors.ErrExtraction)
	}
	return match, nil
}

// DecodeJSON extracts the JSON object from text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("invalid JSON in model response: %v: %w", err, apperrors.ErrExtraction)
	}
	return nil
}
