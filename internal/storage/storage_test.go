// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableKey(t *testing.T) {
	assert.Equal(t, "dbfs:/Volumes/docs/uploads/report.pdf", TableKey("/Volumes/docs/uploads/report.pdf"))
	assert.Equal(t, "/Volumes/a.md", BlobPath(TableKey("/Volumes/a.md")))
	assert.Equal(t, "dbfs:/tmp/a.md", BlobPath("dbfs:/tmp/a.md"))
	assert.Equal(t, "uploads/report.pdf", TableKey("uploads/report.pdf"))
	assert.Equal(t, "gs://bucket/Volumes/x.md", TableKey("gs://bucket/Volumes/x.md"))
	assert.Equal(t, []string{"dbfs:/Volumes/a.md", "b.md"}, TableKeys([]string{"/Volumes/a.md", "b.md"}))
}

func TestDedupePaths(t *testing.T) {
	got := DedupePaths([]string{"b", "", "a", "b", "c", "a"})
	assert.Equal(t, []string{"b", "a", "c"}, got)
	assert.Empty(t, DedupePaths(nil))
}
