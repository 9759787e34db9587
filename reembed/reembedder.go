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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/retry"
	"github.com/lexgrove/evidentia/storage"
)

// Config holds configuration for the re-embedding operation.
type Config struct {
	// BatchSize is the number of chunks sent per embedding call
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a throttled batch
	MaxRetries int

	// RetryDelay is the base delay for linear backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder regenerates the vectors of every chunk in the database.
type Reembedder struct {
	chunks   storage.ChunkRepository
	sources  storage.SourceRepository
	embedder ai.Embedder
	config   *Config
	progress io.Writer
}

// NewReembedder creates a re-embedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(
	chunks storage.ChunkRepository,
	sources storage.SourceRepository,
	embedder ai.Embedder,
	config *Config,
	progress io.Writer,
) (*Reembedder, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if sources == nil {
		return nil, ErrSourceRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}

	return &Reembedder{
		chunks:   chunks,
		sources:  sources,
		embedder: embedder,
		config:   config,
		progress: progress,
	}, nil
}

// Run re-embeds all chunks, source by source. Progress is reported to the
// configured writer. A failed batch aborts the run; already rewritten chunks
// keep their new vectors, so the run can be safely repeated.
func (r *Reembedder) Run(ctx context.Context) error {
	sources, err := r.sources.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	total := 0
	for _, source := range sources {
		total += source.ChunkCount
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return nil
	}

	fmt.Fprintf(r.progress, "Starting re-embedding of %d chunks across %d sources (batch size: %d)\n",
		total, len(sources), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	for _, source := range sources {
		chunks, err := r.chunks.GetChunksBySource(ctx, source.ID)
		if err != nil {
			return fmt.Errorf("failed to load chunks for source %s: %w", source.ID, err)
		}

		for start := 0; start < len(chunks); start += r.config.BatchSize {
			end := start + r.config.BatchSize
			if end > len(chunks) {
				end = len(chunks)
			}

			if err := r.processBatch(ctx, chunks[start:end]); err != nil {
				return fmt.Errorf("failed to re-embed source %s: %w", source.ID, err)
			}

			processed += end - start
			tracker.Update(processed)
		}
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Re-embedding complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return nil
}

// processBatch embeds one batch with throttle-aware retry and writes the
// chunks back with their new vectors.
func (r *Reembedder) processBatch(ctx context.Context, batch []*core.Chunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := retry.Linear(ctx, func() error {
		var embedErr error
		vectors, embedErr = r.embedder.EmbedTexts(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
		}
		return nil
	}, ai.IsThrottle, r.config.MaxRetries, r.config.RetryDelay, 5*r.config.RetryDelay)
	if err != nil {
		return err
	}

	for i, chunk := range batch {
		chunk.Vector = embed.NormalizeVector(vectors[i])
	}

	persisted, err := r.chunks.AddChunks(ctx, batch...)
	if err != nil {
		return err
	}
	if len(persisted) != len(batch) {
		return fmt.Errorf("only %d of %d chunks were rewritten", len(persisted), len(batch))
	}

	return nil
}
