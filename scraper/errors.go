package scraper

import (
	"errors"
	"fmt"
	"strings"

	"fairval/apperrors"
)

var (
	ErrBrowserNotConfigured = fmt.Errorf("remote browser credentials missing: %w", apperrors.ErrConfig)
	ErrPriceNotFound        = fmt.Errorf("no price found on page: %w", apperrors.ErrExtraction)
	ErrBlocked              = fmt.Errorf("page blocked by bot protection: %w", apperrors.ErrExtraction)
	ErrInvalidPrice         = fmt.Errorf("invalid price: %w", apperrors.ErrExtraction)
	ErrEmptyResult          = fmt.Errorf("strategy returned no result: %w", apperrors.ErrExtraction)
	ErrModelNotConfigured   = fmt.Errorf("extraction model not configured: %w", apperrors.ErrAIUnavailable)
)

// Stage names the step of AI extraction that failed.
type Stage string

const (
	StageFetch Stage = "fetch"
	StageModel Stage = "model"
	StageParse Stage = "parse"
)

// StageError is returned by the AI extractor.
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("ai price extraction failed at %s stage for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage of the first StageError in err's chain.
func FailedStage(err error) (Stage, bool) {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, true
	}
	return "", false
}

// StrategyFailure records why one strategy could not produce a price.
type StrategyFailure struct {
	Strategy string
	Err      error
}

// PriceCheckError is returned when every applicable strategy failed.
type PriceCheckError struct {
	URL      string
	Failures []StrategyFailure
}

func (e *PriceCheckError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("price check failed for %s: no strategy supports this url", e.URL)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return fmt.Sprintf("price check failed for %s: %s", e.URL, strings.Join(parts, "; "))
}

func (e *PriceCheckError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	if len(e.Failures) == 0 {
		errs = append(errs, apperrors.ErrExtraction)
	}
	return errs
}
