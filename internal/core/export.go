// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docredact/internal/config"
	"docredact/internal/exporters"
	"docredact/internal/observability"
	"docredact/internal/paths"
	"docredact/internal/storage"
)

// ErrNoContent is returned when none of the requested documents has text
var ErrNoContent = errors.New("no extracted text found for the requested files")

// ExportResult describes a stored export
type ExportResult struct {
	FilePath    string `json:"file_path"`
	FileName    string `json:"file_name"`
	Format      string `json:"format"`
	MimeType    string `json:"mime_type"`
	Size        int    `json:"size"`
	SourceFiles int    `json:"source_files"`
}

// ExporterConfig holds the collaborators of an Exporter
type ExporterConfig struct {
	Registry     *exporters.Registry
	Blobs        storage.BlobStore
	Table        storage.TabularStore
	Observer     *observability.StandardObserver
	Title        string
	DefaultLimit int
	TableTimeout time.Duration
	BlobTimeout  time.Duration
}

// Exporter consolidates the extracted text of several documents into one
// new file under the export path
type Exporter struct {
	registry     *exporters.Registry
	blobs        storage.BlobStore
	table        storage.TabularStore
	observer     *observability.StandardObserver
	title        string
	defaultLimit int
	tableTimeout time.Duration
	blobTimeout  time.Duration

	now   func() time.Time
	newID func() string
}

// NewExporter creates an Exporter from cfg
func NewExporter(cfg ExporterConfig) *Exporter {
	e := &Exporter{
		registry:     cfg.Registry,
		blobs:        cfg.Blobs,
		table:        cfg.Table,
		observer:     cfg.Observer,
		title:        cfg.Title,
		defaultLimit: cfg.DefaultLimit,
		tableTimeout: cfg.TableTimeout,
		blobTimeout:  cfg.BlobTimeout,
		now:          time.Now,
		newID:        func() string { return uuid.NewString()[:8] },
	}
	if e.registry == nil {
		e.registry = BuildExporterRegistry()
	}
	if e.defaultLimit <= 0 {
		e.defaultLimit = 10
	}
	if e.tableTimeout <= 0 {
		e.tableTimeout = 30 * time.Second
	}
	if e.blobTimeout <= 0 {
		e.blobTimeout = 2 * time.Minute
	}
	return e
}

// Formats returns the export formats on offer
func (e *Exporter) Formats() []exporters.FormatInfo {
	return e.registry.GetSupportedFormats()
}

// GetComponentName returns the component name for observability
func (e *Exporter) GetComponentName() string {
	return "export_service"
}

// Export reads at most limit text rows for paths, renders them with the
// named exporter and stores the result as a new file. An empty paths list
// exports the first rows of the table.
func (e *Exporter) Export(ctx context.Context, settings config.Settings, sources []string, limit int, formatName string) (ExportResult, error) {
	if err := settings.RequireTable(); err != nil {
		return ExportResult{}, err
	}
	if err := settings.RequireExport(); err != nil {
		return ExportResult{}, err
	}
	exp, err := e.registry.Get(formatName)
	if err != nil {
		return ExportResult{}, err
	}
	if limit <= 0 {
		limit = e.defaultLimit
	}

	finishTiming := e.observer.StartTiming(e.GetComponentName(), "export", "")

	rows, err := e.query(ctx, settings.TablePath, storage.DedupePaths(sources), limit)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return ExportResult{}, fmt.Errorf("failed to query %s: %w", settings.TablePath, err)
	}

	var parts []string
	var used []string
	for _, r := range rows {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		parts = append(parts, r.Content)
		used = append(used, storage.BlobPath(r.Path))
	}
	if len(parts) == 0 {
		finishTiming(false, map[string]interface{}{"error": ErrNoContent.Error()})
		return ExportResult{}, ErrNoContent
	}

	at := e.now()
	meta := exporters.Metadata{Title: e.title, SourcePaths: used, GeneratedAt: at}
	data, err := exp.Export(ctx, strings.Join(parts, "\n\n"), meta)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return ExportResult{}, fmt.Errorf("failed to render %s export: %w", exp.Name(), err)
	}

	name := exporters.FileName(at, e.newID(), exp.FileExtension())
	dest := paths.JoinBlobPath(settings.ExportPath, name)

	putCtx, cancel := context.WithTimeout(ctx, e.blobTimeout)
	defer cancel()
	if err := e.blobs.Put(putCtx, dest, data, false); err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return ExportResult{}, fmt.Errorf("failed to store export %s: %w", dest, err)
	}

	finishTiming(true, map[string]interface{}{
		"format":       exp.Name(),
		"source_files": len(used),
		"size":         len(data),
	})
	return ExportResult{
		FilePath:    dest,
		FileName:    name,
		Format:      exp.Name(),
		MimeType:    exp.MimeType(),
		Size:        len(data),
		SourceFiles: len(used),
	}, nil
}

func (e *Exporter) query(ctx context.Context, table string, sources []string, limit int) ([]storage.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, e.tableTimeout)
	defer cancel()
	return e.table.QueryByPaths(ctx, table, storage.TableKeys(sources), limit)
}
