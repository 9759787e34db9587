package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/storage"
)

// SourceRepository implements storage.SourceRepository for BadgerDB.
type SourceRepository struct {
	backend *Backend
}

var _ storage.SourceRepository = (*SourceRepository)(nil)

// NewSourceRepository creates a new SourceRepository.
func NewSourceRepository(backend *Backend) (storage.SourceRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &SourceRepository{backend: backend}, nil
}

// Close is a no-op; the shared backend owns the database handle.
func (r *SourceRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SourceRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddSource persists a new source record. A missing ID is assigned.
func (r *SourceRepository) AddSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}
	if source.InsertedAt.IsZero() {
		source.InsertedAt = time.Now().UTC()
	}
	source.UpdatedAt = source.InsertedAt

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSourceKey(source.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := tx.Set(key, storage.MarshalSource(source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// GetSource retrieves a source by ID.
func (r *SourceRepository) GetSource(ctx context.Context, id string) (*core.Source, error) {
	var source *core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeSourceKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			source, err = storage.UnmarshalSource(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// ListSources retrieves all sources ordered by insertion time.
func (r *SourceRepository) ListSources(ctx context.Context) ([]*core.Source, error) {
	var sources []*core.Source
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sourceRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				source, err := storage.UnmarshalSource(val)
				if err != nil {
					return err
				}
				sources = append(sources, source)
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

	slices.SortFunc(sources, func(a, b *core.Source) int {
		return a.InsertedAt.Compare(b.InsertedAt)
	})
	return sources, nil
}

// UpdateSource replaces an existing source record.
func (r *SourceRepository) UpdateSource(ctx context.Context, source *core.Source) (*core.Source, error) {
	if err := core.ValidateSource(source); err != nil {
		return nil, err
	}
	source.UpdatedAt = time.Now().UTC()

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSourceKey(source.ID)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Set(key, storage.MarshalSource(source)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return source, nil
}

// DeleteSource removes a source record by ID.
func (r *SourceRepository) DeleteSource(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeSourceKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
