package checkout

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownTicket  = errors.New("ticket type not offered for this event")
	ErrEmptySelection = errors.New("no tickets selected")
	ErrInvalidDetails = errors.New("attendee details are incomplete")
)

// FieldError is one problem with one attendee's details.
type FieldError struct {
	Index   int
	Field   string
	Message string
}

// ValidationError lists every problem found by Validate. It matches
// ErrInvalidDetails.
type ValidationError struct {
	Problems []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, fmt.Sprintf("attendee %d: %s %s", p.Index+1, p.Field, p.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidDetails
}
