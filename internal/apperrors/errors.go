// Package apperrors defines the sentinel errors shared across the evidence pipeline.
// Callers wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
package apperrors

import "errors"

var (
	// ErrInvalidInput is returned for malformed constructor arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when an id or pseudonym has no mapping.
	ErrNotFound = errors.New("not found")

	// ErrConfiguration is returned when a required map or option is missing.
	ErrConfiguration = errors.New("configuration error")

	// ErrInsufficientAnonymitySet is returned when too few distinct subjects
	// are involved for the anonymized output to be safe.
	ErrInsufficientAnonymitySet = errors.New("insufficient anonymity set")

	// ErrMalformedDataset is returned when a dataset has no header, no rows,
	// or rows whose width differs from the header.
	ErrMalformedDataset = errors.New("malformed dataset")

	// ErrStructuralMismatch is returned when two datasets cannot be combined
	// because their headers or analysis intervals differ.
	ErrStructuralMismatch = errors.New("structural mismatch")
)
