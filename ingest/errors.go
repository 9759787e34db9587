package ingest

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when no chunk repository is provided
	ErrChunkRepositoryRequired = errors.New("chunk repository is required")

	// ErrSourceRepositoryRequired is returned when no source repository is provided
	ErrSourceRepositoryRequired = errors.New("source repository is required")

	// ErrCoordinatorRequired is returned when no embedding coordinator is provided
	ErrCoordinatorRequired = errors.New("embedding coordinator is required")
)
