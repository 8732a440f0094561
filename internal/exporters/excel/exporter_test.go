// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package excel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docredact/internal/exporters"
)

func TestExportWorkbook(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	out, err := NewExporter().Export(context.Background(), "first line\n\nthird line", exporters.Metadata{
		Title:       "Quarterly",
		SourcePaths: []string{"docs/a.pdf", "docs/b.xlsx"},
		GeneratedAt: at,
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, ContentSheet}, f.GetSheetList())

	get := func(sheet, ref string) string {
		v, err := f.GetCellValue(sheet, ref)
		require.NoError(t, err)
		return v
	}
	assert.Equal(t, "Quarterly", get(SummarySheet, "A1"))
	assert.Equal(t, "2026-05-01T12:00:00Z", get(SummarySheet, "B3"))
	assert.Equal(t, "2", get(SummarySheet, "B4"))
	assert.Equal(t, "docs/a.pdf", get(SummarySheet, "A7"))
	assert.Equal(t, "docs/b.xlsx", get(SummarySheet, "A8"))

	assert.Equal(t, "first line", get(ContentSheet, "A1"))
	assert.Equal(t, "", get(ContentSheet, "A2"))
	assert.Equal(t, "third line", get(ContentSheet, "A3"))
}

func TestClip(t *testing.T) {
	long := strings.Repeat("x", excelize.TotalCellChars+10)
	assert.Len(t, clip(long), excelize.TotalCellChars)
	assert.Equal(t, "short", clip("short"))
}
