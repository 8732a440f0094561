// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package excel

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"docredact/internal/exporters"
)

const (
	SummarySheet = "Summary"
	ContentSheet = "Content"
)

// Exporter writes a workbook with a Summary sheet and a Content sheet holding
// one line of text per row in column A.
type Exporter struct{}

// NewExporter creates a new Excel exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Name() string {
	return "excel"
}

func (e *Exporter) Description() string {
	return "Excel workbook with a summary sheet and the content one line per row"
}

func (e *Exporter) FileExtension() string {
	return ".xlsx"
}

func (e *Exporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *Exporter) Export(ctx context.Context, text string, meta exporters.Metadata) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// NewFile starts with Sheet1
	if err := f.SetSheetName(f.GetSheetName(0), SummarySheet); err != nil {
		return nil, fmt.Errorf("failed to name summary sheet: %w", err)
	}
	if err := writeSummary(f, meta); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(ContentSheet); err != nil {
		return nil, fmt.Errorf("failed to create content sheet: %w", err)
	}
	if err := f.SetColWidth(ContentSheet, "A", "A", 120); err != nil {
		return nil, err
	}
	for i, line := range strings.Split(text, "\n") {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if line == "" {
			continue
		}
		if err := f.SetCellStr(ContentSheet, cell("A", i+1), clip(line)); err != nil {
			return nil, fmt.Errorf("failed to write content row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSummary(f *excelize.File, meta exporters.Metadata) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return err
	}

	cells := []struct {
		ref   string
		value string
	}{
		{"A1", meta.TitleOrDefault()},
		{"A3", "Generated"},
		{"B3", meta.Timestamp().Format(time.RFC3339)},
		{"A4", "Source files"},
		{"B4", fmt.Sprintf("%d", len(meta.SourcePaths))},
		{"A6", "Source path"},
	}
	for _, c := range cells {
		if err := f.SetCellStr(SummarySheet, c.ref, c.value); err != nil {
			return fmt.Errorf("failed to write summary cell %s: %w", c.ref, err)
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "A1", bold); err != nil {
		return err
	}
	for i, p := range meta.SourcePaths {
		if err := f.SetCellStr(SummarySheet, cell("A", 7+i), clip(p)); err != nil {
			return fmt.Errorf("failed to write source path: %w", err)
		}
	}
	return f.SetColWidth(SummarySheet, "A", "B", 40)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// clip keeps a value within the per-cell character limit
func clip(s string) string {
	if utf8.RuneCountInString(s) <= excelize.TotalCellChars {
		return s
	}
	return string([]rune(s)[:excelize.TotalCellChars])
}
