// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/config"
	"docredact/internal/redactors/powerpoint"
	"docredact/internal/storage"
	"docredact/internal/storage/memory"
)

func newTestExporter(t *testing.T, rows []storage.Row) (*Exporter, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	table := memory.NewTabularStore()
	require.NoError(t, table.UpsertAll(context.Background(), testSettings.TablePath, rows))

	e := NewExporter(ExporterConfig{Blobs: blobs, Table: table})
	e.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	e.newID = func() string { return "abcd1234" }
	return e, blobs
}

func TestExportMarkdown(t *testing.T) {
	e, blobs := newTestExporter(t, []storage.Row{
		{Path: storage.TableKey(uploads + "a.md"), Content: "alpha"},
		{Path: storage.TableKey(uploads + "b.md"), Content: "   "},
		{Path: storage.TableKey(uploads + "c.md"), Content: "gamma"},
	})

	res, err := e.Export(context.Background(), testSettings, nil, 0, "markdown")
	require.NoError(t, err)
	assert.Equal(t, "/Volumes/docs/exports/export_20250102_030405_abcd1234.md", res.FilePath)
	assert.Equal(t, "export_20250102_030405_abcd1234.md", res.FileName)
	assert.Equal(t, "markdown", res.Format)
	assert.Equal(t, 2, res.SourceFiles)

	data, err := blobs.Get(context.Background(), res.FilePath)
	require.NoError(t, err)
	assert.Equal(t, len(data), res.Size)
	text := string(data)
	assert.Contains(t, text, "- "+uploads+"a.md")
	assert.NotContains(t, text, "dbfs:")
	assert.Contains(t, text, "alpha\n\ngamma")
}

func TestExportFiltersByPathAndLimit(t *testing.T) {
	e, blobs := newTestExporter(t, []storage.Row{
		{Path: storage.TableKey(uploads + "a.md"), Content: "alpha"},
		{Path: storage.TableKey(uploads + "b.md"), Content: "beta"},
		{Path: storage.TableKey(uploads + "c.md"), Content: "gamma"},
	})

	res, err := e.Export(context.Background(), testSettings, []string{uploads + "c.md", uploads + "b.md"}, 1, "md")
	require.NoError(t, err)
	assert.Equal(t, 1, res.SourceFiles)

	data, err := blobs.Get(context.Background(), res.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "beta")
	assert.NotContains(t, string(data), "alpha")
	assert.NotContains(t, string(data), "gamma")
}

func TestExportPowerPoint(t *testing.T) {
	e, blobs := newTestExporter(t, []storage.Row{
		{Path: storage.TableKey(uploads + "a.md"), Content: "## Section A\nfirst point\nsecond point"},
	})

	res, err := e.Export(context.Background(), testSettings, []string{uploads + "a.md"}, 5, "pptx")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.FilePath, ".pptx"))
	assert.Equal(t, "powerpoint", res.Format)

	data, err := blobs.Get(context.Background(), res.FilePath)
	require.NoError(t, err)
	text, err := powerpoint.NewPowerPointRedactor(nil).Extract(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "## Slide 2\nSection A\nfirst point\nsecond point")
	assert.Contains(t, text, "1 source file")
}

func TestExportErrors(t *testing.T) {
	e, _ := newTestExporter(t, []storage.Row{{Path: "a.md", Content: ""}})

	_, err := e.Export(context.Background(), testSettings, nil, 0, "docx")
	assert.ErrorContains(t, err, "Available formats: excel, markdown, powerpoint")

	_, err = e.Export(context.Background(), testSettings, nil, 0, "markdown")
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = e.Export(context.Background(), config.Settings{TablePath: "t"}, nil, 0, "markdown")
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestExportNeverOverwrites(t *testing.T) {
	e, _ := newTestExporter(t, []storage.Row{{Path: "a.md", Content: "alpha"}})

	_, err := e.Export(context.Background(), testSettings, nil, 0, "excel")
	require.NoError(t, err)
	_, err = e.Export(context.Background(), testSettings, nil, 0, "excel")
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}
