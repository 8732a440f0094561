// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package excel

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"docredact/internal/format"
	"docredact/internal/observability"
	"docredact/internal/redactors"
)

// ColumnSeparator joins the cells of one row in extracted text
const ColumnSeparator = " | "

// SheetHeading prefixes the name of each sheet in extracted text
const SheetHeading = "## Sheet: "

// ExcelRedactor extracts and redacts spreadsheet workbooks
type ExcelRedactor struct {
	// observer handles observability and metrics
	observer *observability.StandardObserver
}

// NewExcelRedactor creates a new ExcelRedactor
func NewExcelRedactor(observer *observability.StandardObserver) *ExcelRedactor {
	return &ExcelRedactor{observer: observer}
}

// Format returns the format tag this handler serves
func (er *ExcelRedactor) Format() format.Tag {
	return format.Excel
}

// GetComponentName returns the component name for observability
func (er *ExcelRedactor) GetComponentName() string {
	return "excel_redactor"
}

func (er *ExcelRedactor) open(data []byte) (*excelize.File, error) {
	if err := redactors.CheckOpenXML(er.GetComponentName(), data); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, redactors.ExtractionError(er.GetComponentName(), err)
	}
	return f, nil
}

// Extract renders every sheet in workbook order. Each sheet starts with a
// heading line, rows follow in order with cells joined by ColumnSeparator,
// and rows without any content are skipped.
func (er *ExcelRedactor) Extract(_ context.Context, data []byte) (string, error) {
	f, err := er.open(data)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var b strings.Builder
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", redactors.ExtractionError(er.GetComponentName(), fmt.Errorf("sheet %q: %w", sheet, err))
		}
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(SheetHeading + sheet + "\n")
		for _, row := range rows {
			if blankRow(row) {
				continue
			}
			b.WriteString(strings.Join(row, ColumnSeparator))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Redact substitutes entity spans inside every textual cell of every sheet.
// Numeric, boolean, date and formula cells are left untouched.
func (er *ExcelRedactor) Redact(_ context.Context, data []byte, entities redactors.EntityMap) ([]byte, error) {
	finishTiming := er.observer.StartTiming(er.GetComponentName(), "redact", "")

	f, err := er.open(data)
	if err != nil {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return nil, err
	}
	defer f.Close()

	cellsChanged, replacements := 0, 0
	fail := func(msg string, err error) error {
		finishTiming(false, map[string]interface{}{"error": err.Error()})
		return redactors.NewRedactionError(redactors.ErrorDocumentProcessing, msg, "", er.GetComponentName(), err)
	}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			finishTiming(false, map[string]interface{}{"error": err.Error()})
			return nil, redactors.ExtractionError(er.GetComponentName(), fmt.Errorf("sheet %q: %w", sheet, err))
		}
		for r, row := range rows {
			for c, value := range row {
				if value == "" {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				if err != nil {
					return nil, fail("invalid cell coordinates", err)
				}
				textual, err := er.isTextCell(f, sheet, cell)
				if err != nil {
					return nil, fail("failed to read cell type", err)
				}
				if !textual {
					continue
				}
				redacted, n := redactors.ReplaceText(value, entities)
				if n == 0 {
					continue
				}
				if err := f.SetCellStr(sheet, cell, redacted); err != nil {
					return nil, fail("failed to write cell", err)
				}
				cellsChanged++
				replacements += n
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fail("failed to serialize workbook", err)
	}

	finishTiming(true, map[string]interface{}{
		"cells_changed": cellsChanged,
		"replacements":  replacements,
	})
	return buf.Bytes(), nil
}

func (er *ExcelRedactor) isTextCell(f *excelize.File, sheet, cell string) (bool, error) {
	cellType, err := f.GetCellType(sheet, cell)
	if err != nil {
		return false, err
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString:
		return true, nil
	default:
		return false, nil
	}
}

// Validate checks that data opens as a workbook
func (er *ExcelRedactor) Validate(data []byte) error {
	if err := redactors.CheckOpenXML(er.GetComponentName(), data); err != nil {
		return err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return f.Close()
}

// OutputPath returns the _redacted sibling of path
func (er *ExcelRedactor) OutputPath(path string) string {
	return redactors.SuffixedPath(path)
}
