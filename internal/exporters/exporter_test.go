// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExporter struct{ name, ext string }

func (s stubExporter) Export(context.Context, string, Metadata) ([]byte, error) { return nil, nil }
func (s stubExporter) Name() string                                             { return s.name }
func (s stubExporter) Description() string                                      { return s.name + " files" }
func (s stubExporter) FileExtension() string                                    { return s.ext }
func (s stubExporter) MimeType() string                                         { return "application/octet-stream" }

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry(stubExporter{"markdown", ".md"}, stubExporter{"excel", ".xlsx"})

	e, err := r.Get("markdown")
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name())

	e, err = r.Get("XLSX")
	require.NoError(t, err)
	assert.Equal(t, "excel", e.Name())

	_, err = r.Get("pdf")
	assert.ErrorContains(t, err, "excel, markdown")

	assert.Equal(t, []string{"excel", "markdown"}, r.List())
	formats := r.GetSupportedFormats()
	require.Len(t, formats, 2)
	assert.Equal(t, ".xlsx", formats[0].Extension)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "export_20260102_030405_ab12cd34.pptx", FileName(at, "ab12cd34", ".pptx"))
	assert.Equal(t, "export_20260102_030405.md", FileName(at, "", ".md"))
}

func TestMetadataDefaults(t *testing.T) {
	var m Metadata
	assert.Equal(t, DefaultTitle, m.TitleOrDefault())
	assert.False(t, m.Timestamp().IsZero())
}
