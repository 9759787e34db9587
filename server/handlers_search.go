package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ory/herodot"

	"github.com/lexgrove/evidentia/search"
)

// defaultSearchHits bounds result sets when the client sends no limit.
const defaultSearchHits = 10

type searchHit struct {
	SourceID string  `json:"source_id"`
	Index    int     `json:"index"`
	Page     int     `json:"page"`
	Text     string  `json:"text"`
	Score    float32 `json:"score"`
}

// handleSearch runs a semantic query over ingested chunks.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	maxHits := defaultSearchHits
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("limit must be a positive integer"))
			return
		}
		maxHits = n
	}

	results, err := s.searcher.FindSimilar(r.Context(), query, maxHits)
	if err != nil {
		if errors.Is(err, search.ErrEmptyQuery) {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("query parameter q is required"))
			return
		}
		s.logger.Error("search failed", "err", err)
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("search failed"))
		return
	}

	hits := make([]searchHit, len(results))
	for i, result := range results {
		hits[i] = searchHit{
			SourceID: result.Chunk.SourceID,
			Index:    result.Chunk.Index,
			Page:     result.Chunk.Page,
			Text:     result.Chunk.Text,
			Score:    result.Score,
		}
	}

	s.writer.Write(w, r, map[string]any{"hits": hits})
}
