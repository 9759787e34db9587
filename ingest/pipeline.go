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


package ingest

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lexgrove/evidentia/chunker"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/layout"
	"github.com/lexgrove/evidentia/storage"
)

// FileInput is one upload: raw PDF bytes plus a title and document type tag.
type FileInput struct {
	Name  string
	Title string
	Type  core.DocumentType
	Data  []byte
}

// FileResult reports the per-file outcome of an ingestion batch.
type FileResult struct {
	Name           string
	SourceID       string
	OK             bool
	ChunksTotal    int
	ChunksEmbedded int
	ChunksDropped  int
	Err            *FileError
}

// Pipeline runs uploads through extraction, chunking, embedding, and
// persistence. Files in one batch are processed concurrently on a worker
// pool; each file succeeds or fails on its own.
type Pipeline struct {
	chunks      storage.ChunkRepository
	sources     storage.SourceRepository
	coordinator *embed.Coordinator
	extractor   PageExtractor
	normalizer  *layout.Normalizer
	pool        *ants.Pool
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithExtractor replaces the PDF extractor. Tests use this to feed synthetic
// pages.
func WithExtractor(extractor PageExtractor) Option {
	return func(p *Pipeline) error {
		if extractor == nil {
			extractor = &PDFExtractor{}
		}
		p.extractor = extractor
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent file processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	chunks storage.ChunkRepository,
	sources storage.SourceRepository,
	coordinator *embed.Coordinator,
	opts ...Option,
) (*Pipeline, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if coordinator == nil {
		return nil, ErrCoordinatorRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunks:      chunks,
		sources:     sources,
		coordinator: coordinator,
		extractor:   &PDFExtractor{},
		normalizer:  layout.NewNormalizer(),
		pool:        pool,
		logger:      slog.Default().With("component", "ingest"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// IngestFiles processes an upload batch. Results are returned in input order;
// one file's failure never affects its siblings.
func (p *Pipeline) IngestFiles(ctx context.Context, files []FileInput) []FileResult {
	results := make([]FileResult, len(files))

	var wg sync.WaitGroup
	for i := range files {
		i := i
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			results[i] = p.ingestFile(ctx, files[i])
		})
		if err != nil {
			results[i] = FileResult{Name: files[i].Name, Err: &FileError{
				Code:       CodeStorageError,
				Reason:     "ingestion worker pool rejected the file",
				Suggestion: "The server is shutting down. Retry the upload.",
				Cause:      err,
			}}
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

// ingestFile runs one file end to end. A failure after the source record was
// created rolls the record (and any persisted chunks) back.
func (p *Pipeline) ingestFile(ctx context.Context, file FileInput) FileResult {
	result := FileResult{Name: file.Name}
	logger := p.logger.With("file", file.Name)

	if ferr := ValidateFile(file.Name, file.Data, file.Type); ferr != nil {
		logger.Warn("rejecting upload", "code", ferr.Code, "reason", ferr.Reason)
		result.Err = ferr
		return result
	}

	pages, err := p.extractor.Extract(file.Data)
	if err != nil {
		ferr := parseFailure(err)
		logger.Warn("extraction failed", "code", ferr.Code, "err", err)
		result.Err = ferr
		return result
	}

	title := file.Title
	if title == "" {
		title = file.Name
	}
	source, err := p.sources.AddSource(ctx, &core.Source{
		Title:  title,
		Type:   file.Type,
		Pages:  len(pages),
		Status: core.SourceStatusPending,
	})
	if err != nil {
		logger.Error("creating source record failed", "err", err)
		result.Err = &FileError{
			Code:       CodeDatabaseError,
			Reason:     "could not create the source record",
			Suggestion: "Retry the upload. If the problem persists, check database health.",
			Cause:      err,
		}
		return result
	}
	result.SourceID = source.ID
	logger = logger.With("sourceID", source.ID)

	chunks, ferr := p.buildChunks(ctx, source, pages, logger)
	if ferr != nil {
		p.rollback(ctx, source, logger)
		result.SourceID = ""
		result.Err = ferr
		return result
	}

	result.ChunksTotal = chunks.total
	result.ChunksEmbedded = chunks.embedded
	result.ChunksDropped = chunks.total - chunks.embedded

	source.ChunkCount = chunks.persisted
	source.Status = core.SourceStatusReady
	if _, err := p.sources.UpdateSource(ctx, source); err != nil {
		logger.Error("marking source ready failed", "err", err)
		p.rollback(ctx, source, logger)
		result.SourceID = ""
		result.Err = &FileError{
			Code:       CodeDatabaseError,
			Reason:     "could not finalize the source record",
			Suggestion: "Retry the upload. If the problem persists, check database health.",
			Cause:      err,
		}
		return result
	}

	result.OK = true
	logger.Info("file ingested",
		"pages", len(pages),
		"chunks", chunks.persisted,
		"dropped", result.ChunksDropped)
	return result
}

type chunkStats struct {
	total     int
	embedded  int
	persisted int
}

// buildChunks normalizes, chunks, embeds, and persists one source's pages.
// Chunks whose embedding failed are dropped with a loss log; they are never
// persisted without a vector.
func (p *Pipeline) buildChunks(ctx context.Context, source *core.Source, pages []layout.Page, logger *slog.Logger) (chunkStats, *FileError) {
	var stats chunkStats

	paragraphs := p.normalizer.NormalizeDocument(pages)
	if len(paragraphs) == 0 {
		return stats, &FileError{
			Code:       CodePDFParseError,
			Reason:     "no text content found in the document",
			Suggestion: "The PDF may contain only scanned images. Run OCR on it first.",
		}
	}

	ck, err := chunker.NewChunker(source.Type, chunker.WithLogger(logger))
	if err != nil {
		return stats, &FileError{
			Code:       CodeInvalidFileType,
			Reason:     "unsupported document type",
			Suggestion: "Pick one of the supported document types.",
			Cause:      err,
		}
	}

	chunks := ck.Chunk(paragraphs)
	stats.total = len(chunks)
	if stats.total == 0 {
		return stats, &FileError{
			Code:       CodePDFParseError,
			Reason:     "document produced no chunks",
			Suggestion: "The document appears empty after text extraction.",
		}
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		chunks[i].SourceID = source.ID
		texts[i] = chunks[i].Text
	}

	vectors, err := p.coordinator.Embed(ctx, texts)
	if err != nil {
		return stats, &FileError{
			Code:       CodeStorageError,
			Reason:     "embedding was interrupted",
			Suggestion: "Retry the upload.",
			Cause:      err,
		}
	}

	persistable := make([]*core.Chunk, 0, len(chunks))
	for i := range chunks {
		vector, ok := vectors[i]
		if !ok {
			logger.Warn("dropping chunk without embedding", "index", chunks[i].Index)
			continue
		}
		chunks[i].Vector = vector
		persistable = append(persistable, &chunks[i])
	}
	stats.embedded = len(persistable)

	if stats.embedded == 0 {
		return stats, &FileError{
			Code:       CodeStorageError,
			Reason:     "no chunk could be embedded",
			Suggestion: "The embedding service appears unavailable. Retry once it is healthy.",
		}
	}
	if dropped := stats.total - stats.embedded; dropped > 0 {
		logger.Warn("partial ingestion loss", "total", stats.total, "dropped", dropped)
	}

	persisted, err := p.chunks.AddChunks(ctx, persistable...)
	if err != nil {
		return stats, &FileError{
			Code:       CodeDatabaseError,
			Reason:     "persisting chunks failed",
			Suggestion: "Retry the upload. If the problem persists, check database health.",
			Cause:      err,
		}
	}
	stats.persisted = len(persisted)

	return stats, nil
}

// rollback deletes a failed file's partially created state so no orphaned
// source survives.
func (p *Pipeline) rollback(ctx context.Context, source *core.Source, logger *slog.Logger) {
	if err := p.chunks.DeleteChunksBySource(ctx, source.ID); err != nil {
		logger.Error("rollback: deleting chunks failed", "err", err)
	}
	if err := p.sources.DeleteSource(ctx, source.ID); err != nil {
		logger.Error("rollback: deleting source failed", "err", err)
	}
}
