package chunker

import "errors"

var (
	// ErrInvalidPolicy is returned for a policy with non-positive sizes or a
	// hard ceiling below the soft boundary.
	ErrInvalidPolicy = errors.New("invalid chunking policy")

	// ErrScorerRequired is returned when a nil continuity scorer is provided.
	ErrScorerRequired = errors.New("continuity scorer required")

	// ErrExtractorRequired is returned when a nil metadata extractor is provided.
	ErrExtractorRequired = errors.New("metadata extractor required")
)
