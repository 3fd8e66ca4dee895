package pipeline

import (
	"errors"
	"fmt"
)

// ErrGenerationFailed is the base error for any generation outcome that
// did not produce sections.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError describes why a generation invocation failed: the
// backend's explicit failure reason, the transport failure, or a stream
// that ended without a terminal event.
type GenerationError struct {
	Reason string
	Err    error
}

// Error returns a human-readable description of the failure.
func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

// Unwrap returns the base error for errors.Is compatibility.
func (e *GenerationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrGenerationFailed
}

// Is reports whether target matches this error class.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}
