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


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lexgrove/evidentia/admission"
	"github.com/lexgrove/evidentia/ai"
	"github.com/lexgrove/evidentia/ai/openai"
	"github.com/lexgrove/evidentia/config"
	"github.com/lexgrove/evidentia/core"
	"github.com/lexgrove/evidentia/embed"
	"github.com/lexgrove/evidentia/ingest"
	"github.com/lexgrove/evidentia/reembed"
	"github.com/lexgrove/evidentia/retry"
	"github.com/lexgrove/evidentia/search"
	"github.com/lexgrove/evidentia/server"
	"github.com/lexgrove/evidentia/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "evidentia",
		Usage: "Legal document ingestion and retrieval-augmented generation",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML config file",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Ingest PDF documents from disk",
				ArgsUsage: "<files...>",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "type",
						Usage: "Document type (case_law, statute, treaty, regulation, constitution, journal_article, generic)",
						Value: string(core.DocumentTypeGeneric),
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search ingested chunks semantically",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of hits",
						Value: 10,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all chunks with new embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for throttled batches",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for linear backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Run a one-shot generation request through admission control",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "owner",
						Usage: "Requesting user identifier",
						Value: "cli",
					},
					&cli.StringFlag{
						Name:  "generation-host",
						Usage: "Generation service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "generation-model",
						Usage: "Generation model name",
						Value: "qwen2.5:3b",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	backend, err := badger.OpenBackend(cfg.Database.Path, cfg.Database.InMemory)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer backend.Close()

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("creating chunk repository: %w", err)
	}
	sources, err := badger.NewSourceRepository(backend)
	if err != nil {
		return fmt.Errorf("creating source repository: %w", err)
	}

	provider, err := openai.NewProvider(cfg.ModelConfig())
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}
	defer provider.Close()

	coordinatorOpts := []embed.Option{
		embed.WithBatchSize(cfg.Embedding.BatchSize),
		embed.WithConcurrency(cfg.Embedding.Concurrency),
		embed.WithDimensions(cfg.AI.EmbeddingDimensions),
		embed.WithRetryPolicy(cfg.Embedding.MaxRetries, retry.DefaultStep, retry.DefaultCap),
	}
	if cfg.Embedding.CallsPerSecond > 0 {
		coordinatorOpts = append(coordinatorOpts,
			embed.WithRateLimit(cfg.Embedding.CallsPerSecond, cfg.Embedding.Burst))
	}
	coordinator, err := embed.NewCoordinator(provider.Embedder(), coordinatorOpts...)
	if err != nil {
		return fmt.Errorf("creating embedding coordinator: %w", err)
	}

	pipeline, err := ingest.NewPipeline(chunks, sources, coordinator)
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	client, err := admission.NewRetryingModelClient(provider.Generator(), nil,
		admission.WithMaxAttempts(cfg.Admission.MaxAttempts),
		admission.WithSignalThreshold(cfg.Admission.SignalThreshold))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	controller, err := admission.NewController(client,
		admission.WithStaleAfter(cfg.StaleAfter()),
		admission.WithCooldown(cfg.Cooldown()),
		admission.WithMaxQueueWait(cfg.MaxQueueWait()),
		admission.WithResultTTL(cfg.ResultTTL()))
	if err != nil {
		return fmt.Errorf("creating admission controller: %w", err)
	}
	client.SetNotifier(controller)

	searcher, err := search.NewSearcher(chunks, provider.Embedder())
	if err != nil {
		return fmt.Errorf("creating searcher: %w", err)
	}

	srv, err := server.NewServer(pipeline, controller, searcher, chunks, sources)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr())
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file is required")
	}

	docType := core.DocumentType(c.String("type"))
	if err := core.ValidateDocumentType(docType); err != nil {
		return err
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer backend.Close()

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("creating chunk repository: %w", err)
	}
	sources, err := badger.NewSourceRepository(backend)
	if err != nil {
		return fmt.Errorf("creating source repository: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}
	defer provider.Close()

	coordinator, err := embed.NewCoordinator(provider.Embedder(),
		embed.WithDimensions(aiConfig.EmbeddingDimensions))
	if err != nil {
		return fmt.Errorf("creating embedding coordinator: %w", err)
	}

	pipeline, err := ingest.NewPipeline(chunks, sources, coordinator)
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	inputs := make([]ingest.FileInput, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		inputs = append(inputs, ingest.FileInput{
			Name: filepath.Base(path),
			Type: docType,
			Data: data,
		})
	}

	results := pipeline.IngestFiles(context.Background(), inputs)

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "FAIL %s: %s\n", result.Name, result.Err.Reason)
			if result.Err.Suggestion != "" {
				fmt.Fprintf(os.Stderr, "     %s\n", result.Err.Suggestion)
			}
			continue
		}
		fmt.Fprintf(os.Stderr, "OK   %s: source %s, %d chunks (%d dropped)\n",
			result.Name, result.SourceID, result.ChunksEmbedded, result.ChunksDropped)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(results))
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a query is required")
	}
	query := strings.Join(c.Args().Slice(), " ")

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer backend.Close()

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("creating chunk repository: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}
	defer provider.Close()

	searcher, err := search.NewSearcher(chunks, provider.Embedder())
	if err != nil {
		return fmt.Errorf("creating searcher: %w", err)
	}

	results, err := searcher.FindSimilar(context.Background(), query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "No matching chunks found")
		return nil
	}

	for i, result := range results {
		fmt.Printf("%2d. [%.3f] source %s, chunk %d, page %d\n",
			i+1, result.Score, result.Chunk.SourceID, result.Chunk.Index, result.Chunk.Page)
		fmt.Printf("    %s\n\n", truncate(result.Chunk.Text, 200))
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer backend.Close()

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("creating chunk repository: %w", err)
	}
	sources, err := badger.NewSourceRepository(backend)
	if err != nil {
		return fmt.Errorf("creating source repository: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}
	defer provider.Close()

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder, err := reembed.NewReembedder(chunks, sources, provider.Embedder(), reembedConfig, os.Stderr)
	if err != nil {
		return fmt.Errorf("creating reembedder: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(context.Background()); err != nil {
		return fmt.Errorf("re-embedding failed: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func askCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a question is required")
	}
	question := strings.Join(c.Args().Slice(), " ")

	aiConfig := ai.NewConfig(
		ai.WithGenerationHost(c.String("generation-host")),
		ai.WithGenerationModel(c.String("generation-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}
	defer provider.Close()

	client, err := admission.NewRetryingModelClient(provider.Generator(), nil)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}

	controller, err := admission.NewController(client)
	if err != nil {
		return fmt.Errorf("creating admission controller: %w", err)
	}
	client.SetNotifier(controller)

	decision, err := controller.Submit(context.Background(), &admission.Request{
		Owner: c.String("owner"),
		Query: question,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	if decision.Status != admission.StatusCompleted {
		return fmt.Errorf("request was not admitted directly (status %d)", decision.Status)
	}

	fmt.Println(decision.Answer)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
