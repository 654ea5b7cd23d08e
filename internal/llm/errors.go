package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies an upstream completion-service failure
type ErrorKind string

// Upstream failure kinds
const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// UpstreamAIError wraps a completion-service failure with its classification.
// These errors are retried by the Caller and then degrade the affected stage;
// they never abort the surrounding run.
type UpstreamAIError struct {
	Kind ErrorKind
	Err  error
}

func (e *UpstreamAIError) Error() string {
	return fmt.Sprintf("upstream AI error (%s): %v", e.Kind, e.Err)
}

func (e *UpstreamAIError) Unwrap() error {
	return e.Err
}

// ErrBudgetExhausted is returned once a run has spent its hard cap of
// completion-service calls. It is not retried.
var ErrBudgetExhausted = errors.New("completion call budget exhausted")

// Classify wraps an error from the provider SDK as an UpstreamAIError.
// Already-classified errors pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var upstream *UpstreamAIError
	if errors.As(err, &upstream) {
		return err
	}
	kind := KindInvalidResponse
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case strings.Contains(err.Error(), "429"), strings.Contains(strings.ToLower(err.Error()), "quota"):
		kind = KindRateLimited
	}
	return &UpstreamAIError{Kind: kind, Err: err}
}
