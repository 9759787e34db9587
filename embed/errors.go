package embed

import "errors"

var (
	// ErrEmbedderRequired is returned when no embedder is provided
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidBatchSize is returned when batch size is <= 0
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidConcurrency is returned when concurrency is <= 0
	ErrInvalidConcurrency = errors.New("concurrency must be greater than 0")

	// ErrDimensionMismatch marks a vector whose width differs from the
	// configured embedding dimensions.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
