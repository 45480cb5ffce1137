package table

import "errors"

// Common errors returned by the table package.
var (
	// ErrColumnNotFound is returned when a slug is not registered.
	ErrColumnNotFound = errors.New("column not found")

	// ErrMissingColumns is returned by strict ingestion when required headers are absent.
	ErrMissingColumns = errors.New("missing required columns")

	// ErrInvalidSpec is returned when a column spec cannot be registered as requested.
	ErrInvalidSpec = errors.New("invalid column spec")

	// ErrEmptyInput is returned when a payload holds nothing to ingest.
	ErrEmptyInput = errors.New("empty input")
)
