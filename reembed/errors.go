package reembed

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when no chunk repository is provided
	ErrChunkRepositoryRequired = errors.New("chunk repository is required")

	// ErrSourceRepositoryRequired is returned when no source repository is provided
	ErrSourceRepositoryRequired = errors.New("source repository is required")

	// ErrEmbedderRequired is returned when no embedder is provided
	ErrEmbedderRequired = errors.New("embedder is required")
)
