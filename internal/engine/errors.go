package engine

import "errors"

var (
	// ErrValidation indicates malformed input (empty or oversized code,
	// missing id). Rejected before any state mutation.
	ErrValidation = errors.New("invalid input")

	// ErrNotFound indicates the operation references a day, crisis or
	// challenge id absent from the quest catalog
	ErrNotFound = errors.New("not found in catalog")
)
