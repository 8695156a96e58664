package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id has no entry in a mapping
	ErrNotFound = errors.New("netcase: id not found in mapping")

	// ErrDuplicateID is returned when an id is registered twice in the same mapping
	ErrDuplicateID = errors.New("netcase: id already registered")

	// ErrEmptyID is returned when an empty or whitespace-containing id is registered
	ErrEmptyID = errors.New("netcase: id is empty or contains whitespace")

	// ErrNotDense is returned by IndexMapping.Validate when indices are not 0..n-1
	ErrNotDense = errors.New("netcase: mapping indices are not dense")

	// ErrMalformedLine is the cause wrapped by every ParseError
	ErrMalformedLine = errors.New("netcase: malformed line")
)

// ParseError identifies the offending line of a mapping or pattern file
type ParseError struct {
	Path   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
	}
	return fmt.Sprintf("%s:%d: %s: %q", e.Path, e.Line, e.Reason, e.Text)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformedLine
}
