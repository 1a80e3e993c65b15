package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies a generation failure into a closed set of variants.
// The retry and fallback layers dispatch on this classification instead of
// pattern-matching error text.
type FailureKind string

const (
	// FailureRateLimited signals HTTP 429 / quota-exhausted style failures.
	FailureRateLimited FailureKind = "rate_limited"
	// FailureTransient signals network failures or HTTP 503/504.
	FailureTransient FailureKind = "transient"
	// FailureMissingCredential means no backend API key is configured.
	FailureMissingCredential FailureKind = "missing_credential"
	// FailureParse means the response did not contain well-formed structured data.
	FailureParse FailureKind = "parse"
	// FailureNoContent means the backend produced no usable content
	// (e.g. an image call that returned no image data).
	FailureNoContent FailureKind = "no_content"
	// FailureFatal is any other non-retryable failure.
	FailureFatal FailureKind = "fatal"
)

// GenerationError is the structured error produced at the backend adapter
// boundary. It carries the classification used by the retry policy.
type GenerationError struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retryable reports whether the retry policy may re-attempt after this error.
func (e *GenerationError) Retryable() bool {
	return e.Kind == FailureRateLimited || e.Kind == FailureTransient
}

// NewGenerationError builds a classified generation error.
func NewGenerationError(kind FailureKind, format string, args ...interface{}) *GenerationError {
	return &GenerationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapGenerationError builds a classified generation error around a cause.
func WrapGenerationError(kind FailureKind, err error, format string, args ...interface{}) *GenerationError {
	return &GenerationError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// ClassifyError extracts the FailureKind from an error chain.
// Unclassified errors are treated as fatal.
func ClassifyError(err error) FailureKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return FailureFatal
}

// Application-wide standard errors.
var (
	ErrWorkspaceBusy     = errors.New("workspace already has a request in flight")
	ErrWorkspaceNotFound = errors.New("unknown workspace")
	ErrStaleGeneration   = errors.New("write belongs to a superseded generation")
	ErrInvalidInput      = errors.New("invalid input data")
)
