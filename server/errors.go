package server

import "errors"

var (
	// ErrPipelineRequired is returned when no ingestion pipeline is provided
	ErrPipelineRequired = errors.New("ingestion pipeline is required")

	// ErrControllerRequired is returned when no admission controller is provided
	ErrControllerRequired = errors.New("admission controller is required")

	// ErrSearcherRequired is returned when no searcher is provided
	ErrSearcherRequired = errors.New("searcher is required")
)
