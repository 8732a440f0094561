// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package app wires configured backends into the pipeline components shared
// by the command line tool and the cloud function.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"docredact/internal/ai"
	"docredact/internal/ai/vertex"
	"docredact/internal/config"
	"docredact/internal/core"
	"docredact/internal/entities"
	"docredact/internal/ingest"
	"docredact/internal/observability"
	"docredact/internal/redactors"
	"docredact/internal/resilience"
	"docredact/internal/storage"
	"docredact/internal/storage/firestore"
	"docredact/internal/storage/gcs"
	"docredact/internal/storage/localfs"
	"docredact/internal/storage/memory"
	"docredact/internal/storage/retrying"
	"docredact/internal/storage/sqlite"
	"docredact/internal/web"
)

// App holds the wired pipeline
type App struct {
	Config       *config.Config
	Observer     *observability.StandardObserver
	Runtime      *config.Runtime
	Blobs        storage.BlobStore
	Table        storage.TabularStore
	Completion   ai.Completion
	Registry     *redactors.Registry
	Ingest       *ingest.Pipeline
	Orchestrator *core.Orchestrator
	Exporter     *core.Exporter

	closers []io.Closer
}

// Build opens the configured backends. Close releases them.
func Build(ctx context.Context, cfg *config.Config, observer *observability.StandardObserver) (*App, error) {
	a := &App{
		Config:   cfg,
		Observer: observer,
		Runtime:  config.NewRuntime(cfg.Settings()),
	}

	if err := a.openBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openTable(ctx); err != nil {
		a.Close()
		return nil, err
	}
	parser, err := a.openAI(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry, err = core.BuildHandlerRegistry(nil, parser, observer)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []entities.Option{
		entities.WithTimeout(cfg.AI.Timeout),
		entities.WithObserver(observer),
	}
	if cfg.AI.PromptFile != "" {
		instructions, err := os.ReadFile(cfg.AI.PromptFile)
		if err != nil {
			a.Close()
			return nil, &config.ConfigurationError{Field: "ai.prompt_file", Message: err.Error()}
		}
		opts = append(opts, entities.WithInstructions(string(instructions)))
	}
	identifier := entities.NewIdentifier(a.Completion, opts...)

	a.Ingest = ingest.NewPipeline(a.Registry, a.Blobs, a.Table, observer, ingest.Options{
		FetchTimeout:   cfg.Storage.Timeout,
		ExtractTimeout: cfg.AI.ParseTimeout,
		TableTimeout:   cfg.Table.Timeout,
		Concurrency:    cfg.Redaction.Concurrency,
	})
	a.Orchestrator = core.NewOrchestrator(core.OrchestratorConfig{
		Registry:     a.Registry,
		Blobs:        a.Blobs,
		Table:        a.Table,
		Identifier:   identifier,
		Observer:     observer,
		Concurrency:  cfg.Redaction.Concurrency,
		TableTimeout: cfg.Table.Timeout,
		BlobTimeout:  cfg.Storage.Timeout,
	})
	a.Exporter = core.NewExporter(core.ExporterConfig{
		Registry:     core.BuildExporterRegistry(),
		Blobs:        a.Blobs,
		Table:        a.Table,
		Observer:     observer,
		Title:        cfg.Export.Title,
		DefaultLimit: cfg.Export.DefaultLimit,
		TableTimeout: cfg.Table.Timeout,
		BlobTimeout:  cfg.Storage.Timeout,
	})
	return a, nil
}

func (a *App) openBlobs(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		blobs, err := localfs.NewBlobStore(cfg.Storage.LocalRoot)
		if err != nil {
			return fmt.Errorf("failed to open local storage: %w", err)
		}
		a.Blobs = blobs
	case config.BackendGCS:
		blobs, err := gcs.Open(ctx, cfg.Storage.Bucket)
		if err != nil {
			return fmt.Errorf("failed to open bucket %s: %w", cfg.Storage.Bucket, err)
		}
		a.closers = append(a.closers, blobs)
		a.Blobs = retrying.NewBlobStore(blobs, resilience.StorageRetryConfig(), a.Observer.Logger())
	case config.BackendMemory:
		a.Blobs = memory.NewBlobStore()
	default:
		return &config.ConfigurationError{Field: "storage.backend", Message: "unknown backend " + cfg.Storage.Backend}
	}
	return nil
}

func (a *App) openTable(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Table.Backend {
	case config.BackendSQLite:
		table, err := sqlite.Open(ctx, cfg.Table.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", cfg.Table.SQLitePath, err)
		}
		a.closers = append(a.closers, table)
		a.Table = table
	case config.BackendFirestore:
		table, err := firestore.Open(ctx, cfg.Table.ProjectID)
		if err != nil {
			return fmt.Errorf("failed to open firestore in %s: %w", cfg.Table.ProjectID, err)
		}
		a.closers = append(a.closers, table)
		a.Table = retrying.NewTabularStore(table, resilience.StorageRetryConfig(), a.Observer.Logger())
	case config.BackendMemory:
		a.Table = memory.NewTabularStore()
	default:
		return &config.ConfigurationError{Field: "table.backend", Message: "unknown backend " + cfg.Table.Backend}
	}
	return nil
}

// openAI sets the completion client and returns the PDF parser. Without a
// model backend PDFs are read from their text layer.
func (a *App) openAI(ctx context.Context) (ai.DocumentParser, error) {
	cfg := a.Config
	switch cfg.AI.Backend {
	case config.BackendVertex:
		client, err := vertex.NewClient(ctx, vertex.Config{
			ProjectID: cfg.AI.ProjectID,
			Location:  cfg.AI.Location,
			Model:     cfg.AI.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		a.closers = append(a.closers, client)

		breakerCfg := resilience.DefaultCircuitBreakerConfig("vertex")
		if cfg.AI.FailureThreshold > 0 {
			breakerCfg.FailureThreshold = cfg.AI.FailureThreshold
		}
		if cfg.AI.Cooldown > 0 {
			breakerCfg.Timeout = cfg.AI.Cooldown
		}
		logger := a.Observer.Logger()
		breakerCfg.OnStateChange = func(name string, from, to resilience.CircuitBreakerState) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}
		a.Completion = ai.NewGuarded(client, resilience.NewCircuitBreaker(breakerCfg))
		return client, nil
	case config.BackendNone:
		a.Completion = ai.Unconfigured{}
		return nil, nil
	default:
		return nil, &config.ConfigurationError{Field: "ai.backend", Message: "unknown backend " + cfg.AI.Backend}
	}
}

// WebDependencies returns the collaborators of the HTTP API
func (a *App) WebDependencies() web.Dependencies {
	return web.Dependencies{
		Runtime:        a.Runtime,
		Blobs:          a.Blobs,
		Table:          a.Table,
		Ingest:         a.Ingest,
		Orchestrator:   a.Orchestrator,
		Exporter:       a.Exporter,
		Formats:        web.FormatsFor(a.Registry.Formats()),
		Completion:     a.Completion,
		Observer:       a.Observer,
		RequestTimeout: a.Config.Server.RequestTimeout,
		MaxUploadBytes: a.Config.Server.MaxUploadMB << 20,
	}
}

// Close releases every opened backend
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
