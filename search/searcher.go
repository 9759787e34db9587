package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/storage"
)

const (
	// minSimilarity is the cosine floor below which a chunk is not considered
	// a semantic match.
	minSimilarity = 0.60

	// verbatimBoost is added when the chunk contains every significant query
	// word.
	verbatimBoost = 0.3
)

// Searcher ranks ingested chunks against a natural-language query.
type Searcher struct {
	chunks   storage.ChunkRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(chunks storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		chunks:   chunks,
		embedder: embedder,
		logger:   slog.Default().With("component", "search"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar returns up to maxHits chunks relevant to the query, ranked by
// cosine similarity with a verbatim-match boost.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits < 1 {
		maxHits = 1
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, ai.Classify(err)
	}
	vector = embed.NormalizeVector(vector)

	// Over-fetch so the verbatim boost can promote matches past the cutoff.
	matches, err := s.chunks.FindSimilar(ctx, vector, minSimilarity, maxHits*2)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}

	for _, match := range matches {
		if containsAllQueryWords(match.Chunk.Text, query) {
			match.Score += verbatimBoost
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxHits {
		matches = matches[:maxHits]
	}

	return matches, nil
}
