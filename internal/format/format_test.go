// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want Tag
	}{
		{"notes.md", Markdown},
		{"README.MARKDOWN", Markdown},
		{"/Volumes/main/default/budget.xlsx", Excel},
		{"legacy.XLS", Excel},
		{"deck.pptx", PowerPoint},
		{"old.ppt", PowerPoint},
		{"report.PDF", PDF},
		{`C:\uploads\scan.pdf`, PDF},
		{"data.csv", Unknown},
		{"no_extension", Unknown},
		{"archive.tar.gz", Unknown},
		{"dir.pdf/file", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.path))
		})
	}
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Equal(t, []string{".markdown", ".md", ".pdf", ".ppt", ".pptx", ".xls", ".xlsx"}, exts)
	assert.Equal(t, []string{".xls", ".xlsx"}, ExtensionsFor(Excel))
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeType(PDF, "a.pdf"))
	assert.Equal(t, "application/vnd.ms-excel", MimeType(Excel, "a.xls"))
	assert.Equal(t, "application/octet-stream", MimeType(Unknown, "a.bin"))
}
