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


package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/retry"
)

// Coordinator drives bounded-concurrency embedding of ordered text lists.
// Batches run on a worker pool; every outbound call is gated by a shared
// rate limiter so the fan-out never exceeds the provider's budget.
type Coordinator struct {
	embedder    ai.Embedder
	pool        *ants.Pool
	limiter     *rate.Limiter
	batchSize   int
	concurrency int
	dimensions  int
	maxRetries  int
	retryStep   time.Duration
	retryCap    time.Duration
	logger      *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithBatchSize sets how many texts go into one multi-item embedding call.
// Default is 10.
func WithBatchSize(size int) Option {
	return func(c *Coordinator) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}
		c.batchSize = size
		return nil
	}
}

// WithConcurrency sets the maximum number of simultaneous batch calls.
// Default is 5.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) error {
		if n <= 0 {
			return ErrInvalidConcurrency
		}
		c.concurrency = n
		return nil
	}
}

// WithDimensions sets the expected vector width. Vectors of any other width
// are treated as item failures. Default is 768.
func WithDimensions(dim int) Option {
	return func(c *Coordinator) error {
		if dim <= 0 {
			return fmt.Errorf("dimensions must be greater than 0, got %d", dim)
		}
		c.dimensions = dim
		return nil
	}
}

// WithRateLimit caps outbound embedding calls at callsPerSecond with the given
// burst. Default is no rate limit.
func WithRateLimit(callsPerSecond float64, burst int) Option {
	return func(c *Coordinator) error {
		if callsPerSecond <= 0 {
			return fmt.Errorf("rate limit must be greater than 0, got %f", callsPerSecond)
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(callsPerSecond), burst)
		return nil
	}
}

// WithRetryPolicy sets the per-call retry parameters. Backoff grows linearly
// with the attempt number and is clamped to max.
func WithRetryPolicy(maxAttempts int, step, max time.Duration) Option {
	return func(c *Coordinator) error {
		if maxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		c.maxRetries = maxAttempts
		c.retryStep = step
		c.retryCap = max
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCoordinator creates a coordinator backed by the given embedder.
func NewCoordinator(embedder ai.Embedder, opts ...Option) (*Coordinator, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	c := &Coordinator{
		embedder:    embedder,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		batchSize:   10,
		concurrency: 5,
		dimensions:  768,
		maxRetries:  3,
		retryStep:   retry.DefaultStep,
		retryCap:    retry.DefaultCap,
		logger:      slog.Default().With("component", "embed-coordinator"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	// The pool size is the fan-out bound: Submit blocks once this many
	// batches are in flight.
	pool, err := ants.NewPool(c.concurrency)
	if err != nil {
		return nil, err
	}
	c.pool = pool

	return c, nil
}

// Release frees the worker pool. The coordinator must not be used afterwards.
func (c *Coordinator) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

// Embed vectorizes texts and returns a map from input position to normalized
// vector. The key set is always a subset of the input positions: items whose
// embedding permanently fails are omitted and counted as losses, never
// surfaced as an error. The returned error is non-nil only when the context
// is canceled or the pool rejects work.
func (c *Coordinator) Embed(ctx context.Context, texts []string) (map[int][]float32, error) {
	results := make(map[int][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		lost int
	)

	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batchStart, batchTexts := start, texts[start:end]

		wg.Add(1)
		err := c.pool.Submit(func() {
			defer wg.Done()
			failed := c.processBatch(ctx, batchStart, batchTexts, &mu, results)
			if failed > 0 {
				mu.Lock()
				lost += failed
				mu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return results, fmt.Errorf("submitting embedding batch: %w", err)
		}
	}

	wg.Wait()

	if lost > 0 {
		c.logger.Warn("partial embedding loss", "total", len(texts), "lost", lost)
	}

	return results, ctx.Err()
}

// processBatch attempts one multi-item call, falling back to per-item calls
// when the batch is abandoned. Returns the number of items lost.
func (c *Coordinator) processBatch(ctx context.Context, start int, texts []string, mu *sync.Mutex, results map[int][]float32) int {
	var vectors [][]float32
	err := retry.Linear(ctx, func() error {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		out, embedErr := c.embedder.EmbedTexts(ctx, texts)
		if embedErr != nil {
			return embedErr
		}
		if len(out) != len(texts) {
			return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(out))
		}
		vectors = out
		return nil
	}, ai.IsThrottle, c.maxRetries, c.retryStep, c.retryCap)

	if err == nil {
		return c.collect(start, vectors, mu, results)
	}

	c.logger.Warn("batch embedding abandoned, retrying items individually",
		"start", start, "size", len(texts), "err", err)

	failed := 0
	for i, text := range texts {
		if !c.embedOne(ctx, start+i, text, mu, results) {
			failed++
		}
	}
	return failed
}

// collect validates and stores the vectors of a successful batch call.
// Returns the number of items rejected for a malformed vector.
func (c *Coordinator) collect(start int, vectors [][]float32, mu *sync.Mutex, results map[int][]float32) int {
	failed := 0
	for i, vector := range vectors {
		if len(vector) != c.dimensions {
			c.logger.Warn("dropping malformed embedding",
				"index", start+i, "got", len(vector), "want", c.dimensions, "err", ErrDimensionMismatch)
			failed++
			continue
		}
		mu.Lock()
		results[start+i] = NormalizeVector(vector)
		mu.Unlock()
	}
	return failed
}

// embedOne retries a single item with its own policy. Reports success.
func (c *Coordinator) embedOne(ctx context.Context, index int, text string, mu *sync.Mutex, results map[int][]float32) bool {
	var vector []float32
	err := retry.Linear(ctx, func() error {
		if waitErr := c.limiter.Wait(ctx); waitErr != nil {
			return waitErr
		}
		out, embedErr := c.embedder.EmbedText(ctx, text)
		if embedErr != nil {
			return embedErr
		}
		vector = out
		return nil
	}, ai.IsThrottle, c.maxRetries, c.retryStep, c.retryCap)

	if err != nil {
		c.logger.Warn("embedding item failed", "index", index, "err", err)
		return false
	}
	if len(vector) != c.dimensions {
		c.logger.Warn("dropping malformed embedding",
			"index", index, "got", len(vector), "want", c.dimensions, "err", ErrDimensionMismatch)
		return false
	}

	mu.Lock()
	results[index] = NormalizeVector(vector)
	mu.Unlock()
	return true
}
