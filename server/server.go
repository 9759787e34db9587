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


package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ory/herodot"

	"github.com/lexgrove/evidentia/admission"
	"github.com/lexgrove/evidentia/ingest"
	"github.com/lexgrove/evidentia/search"
	"github.com/lexgrove/evidentia/storage"
)

// Server is the HTTP API server.
type Server struct {
	router     chi.Router
	pipeline   *ingest.Pipeline
	controller *admission.Controller
	searcher   *search.Searcher
	chunks     storage.ChunkRepository
	sources    storage.SourceRepository
	writer     *herodot.JSONWriter
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
	}
}

// NewServer creates and configures the HTTP server.
func NewServer(
	pipeline *ingest.Pipeline,
	controller *admission.Controller,
	searcher *search.Searcher,
	chunks storage.ChunkRepository,
	sources storage.SourceRepository,
	opts ...Option,
) (*Server, error) {
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}
	if controller == nil {
		return nil, ErrControllerRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if chunks == nil {
		return nil, ingest.ErrChunkRepositoryRequired
	}
	if sources == nil {
		return nil, ingest.ErrSourceRepositoryRequired
	}

	s := &Server{
		pipeline:   pipeline,
		controller: controller,
		searcher:   searcher,
		chunks:     chunks,
		sources:    sources,
		writer:     herodot.NewJSONWriter(nil),
		logger:     slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.logger))

	r.Get("/health", s.handleHealth)

	r.Post("/api/ingest", s.handleIngest)
	r.Get("/api/sources", s.handleListSources)
	r.Delete("/api/sources/{sourceID}", s.handleDeleteSource)

	r.Get("/api/search", s.handleSearch)

	r.Post("/api/generate", s.handleGenerate)
	r.Get("/api/generate/{ticket}", s.handlePoll)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writer.Write(w, r, map[string]string{"status": "ok"})
}

// requestLogger logs each request with its status and latency.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
