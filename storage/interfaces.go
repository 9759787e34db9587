package storage

import (
	"context"

	"github.com/lexgrove/evidentia/core"
)

// Repository provides common storage operations shared across all
// repositories. Implementations must be thread-safe and support concurrent
// access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// ChunkRepository provides operations for persisting and querying chunks.
type ChunkRepository interface {
	Repository

	// AddChunks persists chunks in bounded batches with a per-row fallback:
	// if a batch write fails, each row of that batch is retried individually
	// so one malformed row never drops its batch-mates. Sets InsertedAt if
	// not already set. Returns the chunks that were actually persisted.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves one chunk by its source ID and index.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, sourceID string, index int) (*core.Chunk, error)

	// GetChunksBySource retrieves all chunks of a source ordered by index.
	GetChunksBySource(ctx context.Context, sourceID string) ([]*core.Chunk, error)

	// DeleteChunksBySource removes every chunk belonging to a source.
	// Deleting a source with no chunks is not an error.
	DeleteChunksBySource(ctx context.Context, sourceID string) error

	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results,
	// ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// SourceRepository provides operations for managing ingested documents.
type SourceRepository interface {
	Repository

	// AddSource persists a new source record.
	// Sets InsertedAt/UpdatedAt if not already set.
	AddSource(ctx context.Context, source *core.Source) (*core.Source, error)

	// GetSource retrieves a source by ID.
	// Returns ErrNotFound if the source doesn't exist.
	GetSource(ctx context.Context, id string) (*core.Source, error)

	// ListSources retrieves all sources ordered by insertion time.
	ListSources(ctx context.Context) ([]*core.Source, error)

	// UpdateSource replaces an existing source record.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if the source doesn't exist.
	UpdateSource(ctx context.Context, source *core.Source) (*core.Source, error)

	// DeleteSource removes a source record by ID.
	// Returns ErrNotFound if the source doesn't exist.
	DeleteSource(ctx context.Context, id string) error
}
