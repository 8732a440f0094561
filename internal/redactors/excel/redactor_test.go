// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package excel

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docredact/internal/observability"
	"docredact/internal/redactors"
)

// legacyWorkbook starts like a binary .xls file
var legacyWorkbook = append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 504)...)

func buildWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellStr("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellStr("Sheet1", "B1", "Amount"))
	require.NoError(t, f.SetCellStr("Sheet1", "A2", "Contact John Doe"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 1500))
	require.NoError(t, f.SetCellStr("Sheet1", "A4", "Acme Corp"))

	_, err := f.NewSheet("People")
	require.NoError(t, err)
	require.NoError(t, f.SetCellStr("People", "A1", "jane roe"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExtractWorkbook(t *testing.T) {
	er := NewExcelRedactor(nil)
	text, err := er.Extract(context.Background(), buildWorkbook(t))
	require.NoError(t, err)

	want := "## Sheet: Sheet1\n" +
		"Name | Amount\n" +
		"Contact John Doe | 1500\n" +
		"Acme Corp\n" +
		"\n## Sheet: People\n" +
		"jane roe\n"
	assert.Equal(t, want, text)
}

func TestExtractRejectsGarbage(t *testing.T) {
	_, err := NewExcelRedactor(nil).Extract(context.Background(), []byte("not a workbook"))
	assert.ErrorIs(t, err, redactors.ErrExtraction)
}

func TestRedactWorkbook(t *testing.T) {
	er := NewExcelRedactor(nil)
	out, err := er.Redact(context.Background(), buildWorkbook(t), redactors.EntityMap{
		"john doe": "[PERSON]",
		"Jane Roe": "[PERSON]",
		"1500":     "[AMOUNT]",
	})
	require.NoError(t, err)
	require.NoError(t, er.Validate(out))

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()

	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Contact [PERSON]", v)

	v, err = f.GetCellValue("People", "A1")
	require.NoError(t, err)
	assert.Equal(t, "[PERSON]", v)

	// numeric cells are never rewritten
	v, err = f.GetCellValue("Sheet1", "B2")
	require.NoError(t, err)
	assert.Equal(t, "1500", v)

	v, err = f.GetCellValue("Sheet1", "A4")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", v)
}

func TestLegacyWorkbookIsNamed(t *testing.T) {
	er := NewExcelRedactor(nil)

	_, err := er.Extract(context.Background(), legacyWorkbook)
	assert.ErrorIs(t, err, redactors.ErrExtraction)
	assert.ErrorIs(t, err, redactors.ErrCompoundFile)

	assert.ErrorIs(t, er.Validate(legacyWorkbook), redactors.ErrCompoundFile)
}

func TestRedactReportsFailedTiming(t *testing.T) {
	var buf bytes.Buffer
	er := NewExcelRedactor(observability.NewStandardObserver(observability.ObservabilityMetrics, &buf))

	_, err := er.Redact(context.Background(), legacyWorkbook, redactors.EntityMap{"x": "[X]"})
	assert.ErrorIs(t, err, redactors.ErrCompoundFile)
	assert.Contains(t, buf.String(), `"operation":"redact"`)
	assert.Contains(t, buf.String(), `"success":false`)

	// successful runs are only reported at debug level
	buf.Reset()
	_, err = er.Redact(context.Background(), buildWorkbook(t), redactors.EntityMap{"john doe": "[PERSON]"})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/vol/budget_redacted.xlsx", NewExcelRedactor(nil).OutputPath("/vol/budget.xlsx"))
}
