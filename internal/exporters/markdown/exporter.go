// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package markdown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docredact/internal/exporters"
)

// Exporter writes a Markdown file with a header block followed by the text verbatim
type Exporter struct{}

// NewExporter creates a new Markdown exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Name() string {
	return "markdown"
}

func (e *Exporter) Description() string {
	return "Markdown document with title, source list and generation time"
}

func (e *Exporter) FileExtension() string {
	return ".md"
}

func (e *Exporter) MimeType() string {
	return "text/markdown; charset=utf-8"
}

func (e *Exporter) Export(_ context.Context, text string, meta exporters.Metadata) ([]byte, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", meta.TitleOrDefault())

	b.WriteString("**Source files:**\n\n")
	if len(meta.SourcePaths) == 0 {
		b.WriteString("- (none)\n")
	}
	for _, p := range meta.SourcePaths {
		fmt.Fprintf(&b, "- %s\n", p)
	}

	fmt.Fprintf(&b, "\n_Generated: %s_\n\n---\n\n", meta.Timestamp().Format(time.RFC3339))
	b.WriteString(text)
	if !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}
