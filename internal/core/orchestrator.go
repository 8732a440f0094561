// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docredact/internal/config"
	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
	"docredact/internal/storage"
)

// Outcome statuses
const (
	StatusRedacted               = "redacted"
	StatusNoEntitiesFound        = "no_entities_found"
	StatusFormatNotSupported     = "format_not_supported"
	StatusSkippedNonMatchingType = "skipped_non_matching_type"
	StatusSkippedNoContent       = "skipped_no_content"
	StatusFailed                 = "failed"
)

// Outcome is the result of redacting one requested path
type Outcome struct {
	OriginalFile  string              `json:"original_file"`
	RedactedFile  string              `json:"redacted_file"`
	EntitiesCount int                 `json:"entities_count"`
	Entities      redactors.EntityMap `json:"entities,omitempty"`
	Status        string              `json:"status"`
	Error         string              `json:"error,omitempty"`
}

// EntityIdentifier finds the sensitive spans of a document's text. It
// returns an empty map alongside any error.
type EntityIdentifier interface {
	Identify(ctx context.Context, text string) (redactors.EntityMap, error)
}

// RedactOptions narrow a single Redact call
type RedactOptions struct {
	// OnlyFormats, when non-empty, skips every path of another format
	OnlyFormats []format.Tag

	// Concurrency overrides the orchestrator's default when positive
	Concurrency int
}

// OrchestratorConfig holds the collaborators of an Orchestrator
type OrchestratorConfig struct {
	Registry     *redactors.Registry
	Blobs        storage.BlobStore
	Table        storage.TabularStore
	Identifier   EntityIdentifier
	Observer     *observability.StandardObserver
	Concurrency  int
	TableTimeout time.Duration
	BlobTimeout  time.Duration
}

// Orchestrator drives each requested path through format resolution, text
// lookup, entity identification and redaction
type Orchestrator struct {
	registry     *redactors.Registry
	blobs        storage.BlobStore
	table        storage.TabularStore
	identifier   EntityIdentifier
	observer     *observability.StandardObserver
	concurrency  int
	tableTimeout time.Duration
	blobTimeout  time.Duration
}

// NewOrchestrator creates an Orchestrator from cfg
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{
		registry:     cfg.Registry,
		blobs:        cfg.Blobs,
		table:        cfg.Table,
		identifier:   cfg.Identifier,
		observer:     cfg.Observer,
		concurrency:  cfg.Concurrency,
		tableTimeout: cfg.TableTimeout,
		blobTimeout:  cfg.BlobTimeout,
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
	if o.tableTimeout <= 0 {
		o.tableTimeout = 30 * time.Second
	}
	if o.blobTimeout <= 0 {
		o.blobTimeout = 2 * time.Minute
	}
	return o
}

// GetComponentName returns the component name for observability
func (o *Orchestrator) GetComponentName() string {
	return "orchestrator"
}

// Redact produces one outcome per distinct path, in request order. A failure
// on one file never stops the others; only missing configuration or a
// cancelled context abort the call.
func (o *Orchestrator) Redact(ctx context.Context, settings config.Settings, paths []string, opts RedactOptions) ([]Outcome, error) {
	if err := settings.RequireTable(); err != nil {
		return nil, err
	}
	// a path listed twice is redacted once and reported at every position
	unique := storage.DedupePaths(paths)

	finishTiming := o.observer.StartTiming(o.GetComponentName(), "redact_batch", "")

	limit := o.concurrency
	if opts.Concurrency > 0 {
		limit = opts.Concurrency
	}

	results := make([]Outcome, len(unique))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range unique {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.redactOne(gctx, settings, p, opts.OnlyFormats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	byPath := make(map[string]Outcome, len(results))
	for _, out := range results {
		byPath[out.OriginalFile] = out
	}
	outcomes := make([]Outcome, 0, len(paths))
	for _, p := range paths {
		if out, ok := byPath[p]; ok {
			outcomes = append(outcomes, out)
		}
	}

	counts := make(map[string]interface{})
	for _, out := range results {
		n, _ := counts[out.Status].(int)
		counts[out.Status] = n + 1
	}
	counts["files"] = len(unique)
	finishTiming(true, counts)
	return outcomes, nil
}

func (o *Orchestrator) redactOne(ctx context.Context, settings config.Settings, p string, only []format.Tag) Outcome {
	// until a redacted copy exists the original is the file to use
	out := Outcome{OriginalFile: p, RedactedFile: p}
	debug := o.debugObserver()

	done := debug.StartStep(o.GetComponentName(), "format_resolved", p)
	h, tag, err := o.registry.ForPath(p)
	if err != nil {
		done(false, string(tag))
		out.Status = StatusFormatNotSupported
		out.Error = err.Error()
		return out
	}
	if len(only) > 0 && !containsTag(only, tag) {
		done(false, "filtered: "+string(tag))
		out.Status = StatusSkippedNonMatchingType
		return out
	}
	done(true, string(tag))

	done = debug.StartStep(o.GetComponentName(), "content_fetched", p)
	text, err := o.lookupText(ctx, settings.TablePath, p)
	if err != nil {
		done(false, err.Error())
		o.logEvent("content_fetched", p, false, err)
		out.Status = StatusFailed
		out.Error = err.Error()
		return out
	}
	if strings.TrimSpace(text) == "" {
		done(false, "no extracted text")
		out.Status = StatusSkippedNoContent
		return out
	}
	done(true, "")

	done = debug.StartStep(o.GetComponentName(), "entities_identified", p)
	entities, err := o.identifier.Identify(ctx, text)
	if err != nil {
		// timeouts and unusable answers count as nothing to redact
		o.logEvent("entities_identified", p, false, err)
	}
	if entities.Empty() {
		done(err == nil, "no entities")
		out.Status = StatusNoEntitiesFound
		return out
	}
	done(true, "")

	done = debug.StartStep(o.GetComponentName(), "redacted", p)
	blobCtx, cancel := context.WithTimeout(ctx, o.blobTimeout)
	defer cancel()
	newPath, err := redactors.RedactStored(blobCtx, o.blobs, h, p, entities)
	if err != nil {
		done(false, err.Error())
		o.logEvent("redact", p, false, err)
		out.Status = StatusFailed
		out.Error = describe(err)
		return out
	}
	done(true, newPath)
	o.logEvent("redact", p, true, nil)

	out.Status = StatusRedacted
	out.RedactedFile = newPath
	out.Entities = entities
	out.EntitiesCount = len(entities.Spans())
	return out
}

// lookupText reads the extracted text row of p from table
func (o *Orchestrator) lookupText(ctx context.Context, table, p string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.tableTimeout)
	defer cancel()
	rows, err := o.table.QueryByPaths(ctx, table, []string{storage.TableKey(p)}, 1)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].Content, nil
}

// describe turns the well known failures into short messages
func describe(err error) string {
	switch {
	case errors.Is(err, redactors.ErrEncryptedDocument):
		return "document is password protected: " + err.Error()
	case errors.Is(err, storage.ErrNotFound):
		return "document not found: " + err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out: " + err.Error()
	default:
		return err.Error()
	}
}

func containsTag(tags []format.Tag, tag format.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (o *Orchestrator) debugObserver() *observability.DebugObserver {
	if o.observer == nil {
		return nil
	}
	return o.observer.DebugObserver
}

// logEvent logs an event if observer is available
func (o *Orchestrator) logEvent(operation, path string, success bool, err error) {
	if o.observer == nil {
		return
	}
	metadata := map[string]interface{}{}
	if err != nil {
		metadata["error"] = err.Error()
	}
	o.observer.StartTiming(o.GetComponentName(), operation, path)(success, metadata)
}
