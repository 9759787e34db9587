package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexgrove/evidentia/ai/mock"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/storage"
	"github.com/lexgrove/evidentia/storage/badger"
)

// axisVector returns a unit vector along the given axis so similarity
// rankings are exact.
func axisVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

// blendVector returns a normalized mix of two axes weighted toward the first.
func blendVector(dim, a, b int, weight float32) []float32 {
	v := make([]float32, dim)
	v[a] = weight
	v[b] = 1 - weight
	return embed.NormalizeVector(v)
}

func seedChunks(t *testing.T, chunks storage.ChunkRepository, dim int) {
	t.Helper()

	insert := []*core.Chunk{
		{
			SourceID:    "src-1",
			Index:       0,
			Page:        1,
			StartOffset: 0,
			EndOffset:   40,
			Text:        "the covenant of quiet enjoyment was breached",
			Vector:      axisVector(dim, 0),
		},
		{
			SourceID:    "src-1",
			Index:       1,
			Page:        2,
			StartOffset: 41,
			EndOffset:   80,
			Text:        "jurisdiction over maritime claims",
			Vector:      blendVector(dim, 0, 1, 0.8),
		},
		{
			SourceID:    "src-1",
			Index:       2,
			Page:        3,
			StartOffset: 81,
			EndOffset:   120,
			Text:        "entirely unrelated procedural history",
			Vector:      axisVector(dim, 5),
		},
	}

	persisted, err := chunks.AddChunks(context.Background(), insert...)
	require.NoError(t, err)
	require.Len(t, persisted, len(insert))
}

func newTestSearcher(t *testing.T, queryVector []float32) (*Searcher, storage.ChunkRepository) {
	t.Helper()

	chunks, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return queryVector, nil
	}

	searcher, err := NewSearcher(chunks, embedder)
	require.NoError(t, err)
	return searcher, chunks
}

func TestNewSearcher_Validation(t *testing.T) {
	chunks, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewSearcher(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewSearcher(chunks, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestFindSimilar_RanksBySimilarity(t *testing.T) {
	dim := 16
	searcher, chunks := newTestSearcher(t, axisVector(dim, 0))
	seedChunks(t, chunks, dim)

	results, err := searcher.FindSimilar(context.Background(), "breach of lease terms", 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "the orthogonal chunk must fall below the similarity floor")

	assert.Equal(t, 0, results[0].Chunk.Index)
	assert.Equal(t, 1, results[1].Chunk.Index)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_VerbatimBoostPromotes(t *testing.T) {
	dim := 16
	// Query vector slightly favors the maritime chunk...
	searcher, chunks := newTestSearcher(t, blendVector(dim, 0, 1, 0.75))
	seedChunks(t, chunks, dim)

	// ...but every significant query word appears in the quiet-enjoyment
	// chunk, so the boost flips the order.
	results, err := searcher.FindSimilar(context.Background(), "covenant quiet enjoyment breached", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, 0, results[0].Chunk.Index)
}

func TestFindSimilar_LimitsHits(t *testing.T) {
	dim := 16
	searcher, chunks := newTestSearcher(t, blendVector(dim, 0, 1, 0.7))
	seedChunks(t, chunks, dim)

	results, err := searcher.FindSimilar(context.Background(), "claims", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestFindSimilar_EmptyQuery(t *testing.T) {
	dim := 16
	searcher, _ := newTestSearcher(t, axisVector(dim, 0))

	_, err := searcher.FindSimilar(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestContainsAllQueryWords(t *testing.T) {
	t.Run("all words present", func(t *testing.T) {
		assert.True(t, containsAllQueryWords(
			"The covenant of quiet enjoyment was breached.",
			"covenant quiet enjoyment"))
	})

	t.Run("missing word", func(t *testing.T) {
		assert.False(t, containsAllQueryWords(
			"The covenant of quiet enjoyment was breached.",
			"covenant rescinded"))
	})

	t.Run("stop words ignored", func(t *testing.T) {
		assert.True(t, containsAllQueryWords(
			"covenant breached",
			"the covenant was breached"))
	})

	t.Run("punctuation trimmed", func(t *testing.T) {
		assert.True(t, containsAllQueryWords(
			"see Section 12(b): \"damages\" apply,",
			"damages apply"))
	})

	t.Run("legal boilerplate ignored", func(t *testing.T) {
		assert.True(t, containsAllQueryWords(
			"payment due within thirty days",
			"payment shall be due herein"))
	})

	t.Run("query of only stop words", func(t *testing.T) {
		assert.False(t, containsAllQueryWords("anything at all", "the of and"))
	})
}
