package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/ai/mock"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/storage"
	"github.com/lexgrove/evidentia/storage/badger"
)

func seedSource(t *testing.T, chunks storage.ChunkRepository, sources storage.SourceRepository, id string, count int) {
	t.Helper()

	insert := make([]*core.Chunk, count)
	for i := range insert {
		insert[i] = &core.Chunk{
			SourceID:    id,
			Index:       i,
			Page:        1,
			StartOffset: i * 10,
			EndOffset:   i*10 + 9,
			Text:        fmt.Sprintf("chunk %d of %s", i, id),
			Vector:      []float32{1, 0, 0},
		}
	}
	persisted, err := chunks.AddChunks(context.Background(), insert...)
	require.NoError(t, err)
	require.Len(t, persisted, count)

	_, err = sources.AddSource(context.Background(), &core.Source{
		ID:         id,
		Title:      id,
		Type:       core.DocumentTypeGeneric,
		ChunkCount: count,
		Status:     core.SourceStatusReady,
	})
	require.NoError(t, err)
}

func TestNewReembedder_Validation(t *testing.T) {
	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewReembedder(nil, sources, mock.NewMockEmbedder(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewReembedder(chunks, nil, mock.NewMockEmbedder(), nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrSourceRepositoryRequired)

	_, err = NewReembedder(chunks, sources, nil, nil, &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReembedder_RewritesAllVectors(t *testing.T) {
	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedSource(t, chunks, sources, "src-a", 5)
	seedSource(t, chunks, sources, "src-b", 3)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{0, 3, 4}
		}
		return vectors, nil
	}

	var out bytes.Buffer
	reembedder, err := NewReembedder(chunks, sources, embedder, &Config{
		BatchSize:      2,
		ReportInterval: 2,
		MaxRetries:     3,
		RetryDelay:     0,
	}, &out)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(context.Background()))

	for _, sourceID := range []string{"src-a", "src-b"} {
		stored, err := chunks.GetChunksBySource(context.Background(), sourceID)
		require.NoError(t, err)
		for _, chunk := range stored {
			assert.InDelta(t, 0.0, chunk.Vector[0], 1e-6)
			assert.InDelta(t, 0.6, chunk.Vector[1], 1e-6)
			assert.InDelta(t, 0.8, chunk.Vector[2], 1e-6)
		}
	}

	assert.Contains(t, out.String(), "Re-embedding complete")
	assert.Contains(t, out.String(), "8 chunks")
}

func TestReembedder_EmptyDatabase(t *testing.T) {
	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	var out bytes.Buffer
	reembedder, err := NewReembedder(chunks, sources, mock.NewMockEmbedder(), nil, &out)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(context.Background()))
	assert.Contains(t, out.String(), "No chunks found")
}

func TestReembedder_RetriesThrottledBatch(t *testing.T) {
	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedSource(t, chunks, sources, "src-a", 2)

	calls := 0
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, &ai.ThrottleError{Cause: errors.New("429")}
		}
		vectors := make([][]float32, len(texts))
		for i := range vectors {
			vectors[i] = []float32{0, 1, 0}
		}
		return vectors, nil
	}

	var out bytes.Buffer
	reembedder, err := NewReembedder(chunks, sources, embedder, &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     0,
	}, &out)
	require.NoError(t, err)

	require.NoError(t, reembedder.Run(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestReembedder_NonThrottleErrorAborts(t *testing.T) {
	chunks, sources, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	seedSource(t, chunks, sources, "src-a", 2)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model not found")
	}

	var out bytes.Buffer
	reembedder, err := NewReembedder(chunks, sources, embedder, &Config{
		BatchSize:      10,
		ReportInterval: 10,
		MaxRetries:     3,
		RetryDelay:     0,
	}, &out)
	require.NoError(t, err)

	err = reembedder.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "src-a")
}
