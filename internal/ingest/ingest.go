// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ingest extracts the text of stored documents and writes it to the
// text table the redaction pipeline reads from.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"docredact/internal/config"
	"docredact/internal/observability"
	"docredact/internal/redactors"
	"docredact/internal/storage"
)

// File statuses reported by Ingest
const (
	StatusExtracted          = "extracted"
	StatusExtractionFailed   = "extraction_failed"
	StatusNotFound           = "not_found"
	StatusFormatNotSupported = "format_not_supported"
)

// ErrNoFiles is returned when there is nothing to ingest
var ErrNoFiles = errors.New("no files to ingest")

// Options bound the blocking calls made per file
type Options struct {
	FetchTimeout   time.Duration
	ExtractTimeout time.Duration
	TableTimeout   time.Duration
	Concurrency    int
}

// DefaultOptions returns the timeouts used when none are configured
func DefaultOptions() Options {
	return Options{
		FetchTimeout:   60 * time.Second,
		ExtractTimeout: 5 * time.Minute,
		TableTimeout:   30 * time.Second,
		Concurrency:    1,
	}
}

// FileResult reports what happened to one input path
type FileResult struct {
	Path       string `json:"path"`
	Key        string `json:"table_key,omitempty"`
	Characters int    `json:"characters"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Result summarises one ingest run
type Result struct {
	Table string       `json:"destination_table"`
	Rows  int          `json:"processed_files"`
	Files []FileResult `json:"files"`
}

// Pipeline fetches documents, extracts their text through the handler
// registry and replaces the active table with the result
type Pipeline struct {
	registry *redactors.Registry
	blobs    storage.BlobStore
	table    storage.TabularStore
	observer *observability.StandardObserver
	opts     Options
}

// NewPipeline creates a Pipeline. Zero option values fall back to DefaultOptions.
func NewPipeline(registry *redactors.Registry, blobs storage.BlobStore, table storage.TabularStore, observer *observability.StandardObserver, opts Options) *Pipeline {
	def := DefaultOptions()
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = def.ExtractTimeout
	}
	if opts.TableTimeout <= 0 {
		opts.TableTimeout = def.TableTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}
	return &Pipeline{
		registry: registry,
		blobs:    blobs,
		table:    table,
		observer: observer,
		opts:     opts,
	}
}

// GetComponentName returns the component name for observability
func (p *Pipeline) GetComponentName() string {
	return "ingest"
}

// Ingest extracts every path and replaces the table named by settings with
// one row per document that could be fetched. Documents whose bytes do not
// parse are stored with empty text so later stages skip them.
func (p *Pipeline) Ingest(ctx context.Context, settings config.Settings, paths []string) (*Result, error) {
	if err := settings.RequireTable(); err != nil {
		return nil, err
	}
	paths = storage.DedupePaths(paths)
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}

	finishTiming := p.observer.StartTiming(p.GetComponentName(), "ingest", "")

	files := make([]FileResult, len(paths))
	rows := make([]*storage.Row, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files[i], rows[i] = p.extract(gctx, path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	out := make([]storage.Row, 0, len(rows))
	for _, r := range rows {
		if r != nil {
			out = append(out, *r)
		}
	}

	tableCtx, cancel := context.WithTimeout(ctx, p.opts.TableTimeout)
	defer cancel()
	if err := p.table.UpsertAll(tableCtx, settings.TablePath, out); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error(), "table": settings.TablePath})
		return nil, fmt.Errorf("failed to write table %s: %w", settings.TablePath, err)
	}

	finishTiming(true, map[string]interface{}{
		"table": settings.TablePath,
		"files": len(paths),
		"rows":  len(out),
	})
	return &Result{Table: settings.TablePath, Rows: len(out), Files: files}, nil
}

func (p *Pipeline) extract(ctx context.Context, path string) (FileResult, *storage.Row) {
	res := FileResult{Path: path}

	h, _, err := p.registry.ForPath(path)
	if err != nil {
		res.Status = StatusFormatNotSupported
		res.Error = err.Error()
		p.logEvent("format_not_supported", path, false, err)
		return res, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, p.opts.FetchTimeout)
	data, err := p.blobs.Get(fetchCtx, path)
	cancel()
	if err != nil {
		res.Status = StatusNotFound
		if !errors.Is(err, storage.ErrNotFound) {
			res.Status = StatusExtractionFailed
		}
		res.Error = err.Error()
		p.logEvent("fetch", path, false, err)
		if res.Status == StatusNotFound {
			return res, nil
		}
		res.Key = storage.TableKey(path)
		return res, &storage.Row{Path: res.Key}
	}

	res.Key = storage.TableKey(path)
	extractCtx, cancel := context.WithTimeout(ctx, p.opts.ExtractTimeout)
	text, err := h.Extract(extractCtx, data)
	cancel()
	if err != nil {
		res.Status = StatusExtractionFailed
		res.Error = err.Error()
		p.logEvent("extract", path, false, err)
		return res, &storage.Row{Path: res.Key}
	}

	res.Status = StatusExtracted
	res.Characters = len([]rune(text))
	p.logEvent("extract", path, true, nil)
	return res, &storage.Row{Path: res.Key, Content: text}
}

// logEvent logs an event if observer is available
func (p *Pipeline) logEvent(operation, path string, success bool, err error) {
	if p.observer == nil {
		return
	}
	metadata := map[string]interface{}{}
	if err != nil {
		metadata["error"] = err.Error()
	}
	p.observer.StartTiming(p.GetComponentName(), operation, path)(success, metadata)
}
