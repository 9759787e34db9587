package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ory/herodot"

	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/ingest"
)

// formOverheadBytes is extra body allowance for multipart framing.
const formOverheadBytes = 1 << 20

type fileResultResponse struct {
	Name           string             `json:"name"`
	OK             bool               `json:"ok"`
	SourceID       string             `json:"source_id,omitempty"`
	ChunksTotal    int                `json:"chunks_total,omitempty"`
	ChunksEmbedded int                `json:"chunks_embedded,omitempty"`
	ChunksDropped  int                `json:"chunks_dropped,omitempty"`
	Error          *fileErrorResponse `json:"error,omitempty"`
}

type fileErrorResponse struct {
	Code       string `json:"code"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
}

type sourceResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	Pages      int       `json:"pages"`
	ChunkCount int       `json:"chunk_count"`
	Status     string    `json:"status"`
	InsertedAt time.Time `json:"inserted_at"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, ingest.MaxFileBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReasonf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	docType := core.DocumentType(r.FormValue("type"))
	if docType == "" {
		docType = core.DocumentTypeGeneric
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("at least one file is required"))
		return
	}

	inputs := make([]ingest.FileInput, 0, len(headers))
	for _, header := range headers {
		name := sanitizeFilename(header.Filename)

		f, err := header.Open()
		if err != nil {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReasonf("opening %s: %v", name, err))
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, ingest.MaxFileBytes+1))
		f.Close()
		if err != nil {
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReasonf("reading %s: %v", name, err))
			return
		}

		inputs = append(inputs, ingest.FileInput{
			Name:  name,
			Title: r.FormValue("title"),
			Type:  docType,
			Data:  data,
		})
	}

	results := s.pipeline.IngestFiles(r.Context(), inputs)

	responses := make([]fileResultResponse, len(results))
	failed := 0
	for i, result := range results {
		responses[i] = fileResultResponse{
			Name:           result.Name,
			OK:             result.OK,
			SourceID:       result.SourceID,
			ChunksTotal:    result.ChunksTotal,
			ChunksEmbedded: result.ChunksEmbedded,
			ChunksDropped:  result.ChunksDropped,
		}
		if result.Err != nil {
			failed++
			responses[i].Error = &fileErrorResponse{
				Code:       result.Err.Code,
				Reason:     result.Err.Reason,
				Suggestion: result.Err.Suggestion,
			}
		}
	}

	s.writer.Write(w, r, map[string]any{
		"files":  responses,
		"failed": failed,
	})
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.sources.ListSources(r.Context())
	if err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("listing sources failed"))
		return
	}

	responses := make([]sourceResponse, len(sources))
	for i, source := range sources {
		responses[i] = sourceResponse{
			ID:         source.ID,
			Title:      source.Title,
			Type:       string(source.Type),
			Pages:      source.Pages,
			ChunkCount: source.ChunkCount,
			Status:     source.Status.String(),
			InsertedAt: source.InsertedAt,
		}
	}

	s.writer.Write(w, r, map[string]any{"sources": responses})
}

// handleDeleteSource removes a source and all its chunks. Chunks die with
// their parent record.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")

	if _, err := s.sources.GetSource(r.Context(), sourceID); err != nil {
		s.writer.WriteError(w, r, herodot.ErrNotFound.WithReasonf("source %s not found", sourceID))
		return
	}

	if err := s.chunks.DeleteChunksBySource(r.Context(), sourceID); err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("deleting chunks failed"))
		return
	}
	if err := s.sources.DeleteSource(r.Context(), sourceID); err != nil {
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("deleting source failed"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = fmt.Sprintf("unnamed-%d", time.Now().UnixNano())
	}
	return name
}
