// Package extraction defines the contracts for the document-text and speech
// collaborators consumed by the onboarding pipeline. The implementations live
// outside the core; callers hand the extracted plain text to the orchestrator.
package extraction

import (
	"context"
	"fmt"
)

// Failure reasons for text extraction
const (
	ReasonUnsupportedFormat = "unsupported_format"
	ReasonCorrupt           = "corrupt"
)

// ExtractionError indicates a document could not be converted to plain text.
// Non-fatal: the pipeline falls back to a conversation-only run.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("text extraction failed (%s): %v", e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Extractor converts an uploaded document into plain text
type Extractor interface {
	Extract(ctx context.Context, documentBytes []byte, mimeType string) (string, error)
}

// Transcriber converts recorded audio into plain text. Optional capability;
// sessions without one simply never receive voice answers.
type Transcriber interface {
	Transcribe(ctx context.Context, audioBytes []byte) (string, error)
}
