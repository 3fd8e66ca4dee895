package lesson

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when an operation references a node ID that
// is not present in the tree. This indicates a caller bug and is never
// swallowed.
var ErrNodeNotFound = errors.New("lesson node not found")

// NotFoundError carries the offending node ID.
type NotFoundError struct {
	ID string
}

// Error returns a human-readable description of the missing node.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("lesson node %q not found", e.ID)
}

// Unwrap returns the base error for errors.Is compatibility.
func (e *NotFoundError) Unwrap() error {
	return ErrNodeNotFound
}
