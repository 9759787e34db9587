// Copyright 2026 Lexgrove Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/storage"
)

// insertBatchSize bounds one chunk write transaction. A failed batch falls
// back to per-row inserts so one malformed row never drops its batch-mates.
const insertBatchSize = 500

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (storage.ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &ChunkRepository{backend: backend}, nil
}

// Close is a no-op; the shared backend owns the database handle.
func (r *ChunkRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// AddChunks persists chunks in bounded batches with per-row fallback.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	now := time.Now().UTC()
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if chunk.InsertedAt.IsZero() {
			chunk.InsertedAt = now
		}
	}

	persisted := make([]*core.Chunk, 0, len(chunks))
	for start := 0; start < len(chunks); start += insertBatchSize {
		end := min(start+insertBatchSize, len(chunks))
		batch := chunks[start:end]

		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range batch {
				key := makeChunkKey(chunk.SourceID, chunk.Index)
				if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)

		if err == nil {
			persisted = append(persisted, batch...)
			continue
		}

		r.backend.logger.Warn("chunk batch insert failed, retrying rows individually",
			"batchStart", start, "batchSize", len(batch), "err", err)

		for _, chunk := range batch {
			rowErr := r.backend.WithTx(func(tx *badger.Txn) error {
				key := makeChunkKey(chunk.SourceID, chunk.Index)
				if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
					return err
				}
				return tx.Commit()
			}, true)
			if rowErr != nil {
				r.backend.logger.Error("dropping chunk row after fallback insert failed",
					"sourceID", chunk.SourceID, "index", chunk.Index, "err", rowErr)
				continue
			}
			persisted = append(persisted, chunk)
		}
	}

	return persisted, nil
}

// GetChunk retrieves one chunk by source ID and index.
func (r *ChunkRepository) GetChunk(ctx context.Context, sourceID string, index int) (*core.Chunk, error) {
	var chunk *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeChunkKey(sourceID, index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			chunk, err = storage.UnmarshalChunk(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

// GetChunksBySource retrieves all chunks of a source ordered by index.
// Key order is index order, so no post-sort is needed.
func (r *ChunkRepository) GetChunksBySource(ctx context.Context, sourceID string) ([]*core.Chunk, error) {
	var chunks []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkSourcePrefix(sourceID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				chunks = append(chunks, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// DeleteChunksBySource removes every chunk belonging to a source.
func (r *ChunkRepository) DeleteChunksBySource(ctx context.Context, sourceID string) error {
	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkSourcePrefix(sourceID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += insertBatchSize {
		end := min(start+insertBatchSize, len(keys))
		batch := keys[start:end]
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, key := range batch {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}
