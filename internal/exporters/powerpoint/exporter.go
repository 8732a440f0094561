// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package powerpoint

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"docredact/internal/exporters"
)

// HeadingPrefix starts a new content slide
const HeadingPrefix = "##"

// Exporter builds a presentation with a title slide followed by one content
// slide per heading line.
type Exporter struct{}

// NewExporter creates a new PowerPoint exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Name() string {
	return "powerpoint"
}

func (e *Exporter) Description() string {
	return "PowerPoint deck with a title slide and one slide per ## heading"
}

func (e *Exporter) FileExtension() string {
	return ".pptx"
}

func (e *Exporter) MimeType() string {
	return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
}

// Slide is one generated slide
type Slide struct {
	Title string
	Body  []string
}

type box struct {
	ID           int
	Name         string
	X, Y, CX, CY int
	Size         int
	Bold         bool
	Lines        []string
}

type slidePart struct {
	Boxes []box
}

// BuildSlides splits text into a title slide and content slides. Non-empty
// lines before the first heading are kept on the title slide.
func BuildSlides(text string, meta exporters.Metadata) []Slide {
	title := Slide{
		Title: meta.TitleOrDefault(),
		Body:  []string{sourceCount(len(meta.SourcePaths))},
	}
	slides := []Slide{title}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, HeadingPrefix) {
			slides = append(slides, Slide{Title: strings.TrimSpace(strings.TrimLeft(trimmed, "#"))})
			continue
		}
		if trimmed == "" {
			continue
		}
		last := &slides[len(slides)-1]
		last.Body = append(last.Body, trimmed)
	}
	return slides
}

func sourceCount(n int) string {
	if n == 1 {
		return "1 source file"
	}
	return fmt.Sprintf("%d source files", n)
}

func (e *Exporter) Export(ctx context.Context, text string, meta exporters.Metadata) ([]byte, error) {
	slides := BuildSlides(text, meta)

	deck := struct {
		Title   string
		Created string
		Width   int
		Height  int
		Slides  []Slide
	}{
		Title:   meta.TitleOrDefault(),
		Created: meta.Timestamp().UTC().Format(time.RFC3339),
		Width:   slideWidth,
		Height:  slideHeight,
		Slides:  slides,
	}

	type entry struct {
		name     string
		template string
		data     interface{}
	}
	entries := []entry{
		{"[Content_Types].xml", "content_types", deck},
		{"_rels/.rels", "root_rels", nil},
		{"docProps/core.xml", "core", deck},
		{"docProps/app.xml", "app", deck},
		{"ppt/presentation.xml", "presentation", deck},
		{"ppt/_rels/presentation.xml.rels", "presentation_rels", deck},
		{"ppt/slideMasters/slideMaster1.xml", "master", nil},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", "master_rels", nil},
		{"ppt/slideLayouts/slideLayout1.xml", "layout", nil},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", "layout_rels", nil},
		{"ppt/theme/theme1.xml", "theme", nil},
	}
	for i, s := range slides {
		entries = append(entries,
			entry{fmt.Sprintf("ppt/slides/slide%d.xml", i+1), "slide", layoutSlide(s, i == 0)},
			entry{fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1), "slide_rels", nil},
		)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, en := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := render(en.template, en.data)
		if err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", en.name, err)
		}
		w, err := zw.Create(en.name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", en.name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", en.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish presentation: %w", err)
	}
	return buf.Bytes(), nil
}

// layoutSlide places the title and body text boxes. The title slide centres
// a larger title.
func layoutSlide(s Slide, cover bool) slidePart {
	const margin = 457200
	width := slideWidth - 2*margin

	if cover {
		return slidePart{Boxes: []box{
			{ID: 2, Name: "Title", X: margin, Y: 2130425, CX: width, CY: 1470025, Size: 4000, Bold: true, Lines: []string{s.Title}},
			{ID: 3, Name: "Subtitle", X: margin, Y: 3886200, CX: width, CY: 1752600, Size: 2000, Lines: s.Body},
		}}
	}
	return slidePart{Boxes: []box{
		{ID: 2, Name: "Title", X: margin, Y: 274638, CX: width, CY: 1143000, Size: 3200, Bold: true, Lines: []string{s.Title}},
		{ID: 3, Name: "Content", X: margin, Y: 1600200, CX: width, CY: slideHeight - 1600200 - margin, Size: 1600, Lines: s.Body},
	}}
}
