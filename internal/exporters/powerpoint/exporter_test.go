// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package powerpoint

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/exporters"
	pptredactor "docredact/internal/redactors/powerpoint"
)

func TestBuildSlides(t *testing.T) {
	slides := BuildSlides("intro line\n\n## Section A\nline one\n  \nline two\n## Section B", exporters.Metadata{
		Title:       "Deck",
		SourcePaths: []string{"a.md"},
	})
	require.Len(t, slides, 3)
	assert.Equal(t, Slide{Title: "Deck", Body: []string{"1 source file", "intro line"}}, slides[0])
	assert.Equal(t, Slide{Title: "Section A", Body: []string{"line one", "line two"}}, slides[1])
	assert.Equal(t, Slide{Title: "Section B"}, slides[2])
}

func TestExportSingleSection(t *testing.T) {
	out, err := NewExporter().Export(context.Background(), "## Section A\nfirst point\nsecond point", exporters.Metadata{
		SourcePaths: []string{"a.pdf", "b.pdf"},
		GeneratedAt: time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	})
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)

	var slideParts []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "ppt/slides/slide") {
			slideParts = append(slideParts, f.Name)
		}
		// every part must be well-formed XML
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		d := xml.NewDecoder(bytes.NewReader(data))
		for {
			_, err := d.Token()
			if err == io.EOF {
				break
			}
			require.NoError(t, err, f.Name)
		}
	}
	assert.Equal(t, []string{"ppt/slides/slide1.xml", "ppt/slides/slide2.xml"}, slideParts)

	text, err := pptredactor.NewPowerPointRedactor(nil).Extract(context.Background(), out)
	require.NoError(t, err)
	want := "## Slide 1\n" +
		"Consolidated Document Export\n" +
		"2 source files\n" +
		"\n## Slide 2\n" +
		"Section A\n" +
		"first point\nsecond point\n"
	assert.Equal(t, want, text)
}

func TestExportEscapesMarkup(t *testing.T) {
	out, err := NewExporter().Export(context.Background(), "## R&D <draft>\nA & B", exporters.Metadata{})
	require.NoError(t, err)

	text, err := pptredactor.NewPowerPointRedactor(nil).Extract(context.Background(), out)
	require.NoError(t, err)
	assert.Contains(t, text, "R&D <draft>\nA & B\n")
	assert.Contains(t, text, "0 source files")
}
