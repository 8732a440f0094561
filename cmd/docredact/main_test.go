// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/core"
)

func parse(t *testing.T, args ...string) *cliFlags {
	t.Helper()
	f, err := parseFlags(flag.NewFlagSet("docredact", flag.ContinueOnError), args)
	require.NoError(t, err)
	return f
}

func TestMode(t *testing.T) {
	mode, err := parse(t, "--redact", "/a.md").mode()
	require.NoError(t, err)
	assert.Equal(t, "redact", mode)

	mode, err = parse(t).mode()
	require.NoError(t, err)
	assert.Empty(t, mode)

	_, err = parse(t, "--serve", "--export", "markdown").mode()
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"/a.md", "/b.pdf"}, splitList(" /a.md, ,/b.pdf,"))
	assert.Nil(t, splitList(""))
}

func TestPrintOutcomes(t *testing.T) {
	var buf bytes.Buffer
	printOutcomes(&buf, []core.Outcome{
		{OriginalFile: "/a.md", RedactedFile: "/a_redacted.md", EntitiesCount: 2, Status: core.StatusRedacted},
		{OriginalFile: "/b.csv", Status: core.StatusFormatNotSupported, Error: "unsupported file type: .csv"},
	})
	out := buf.String()
	assert.Contains(t, out, "/a.md -> /a_redacted.md (2 entities)")
	assert.Contains(t, out, "unsupported file type: .csv")
	assert.Contains(t, out, "2 file(s): 1 redacted, 0 without entities, 0 failed")
}

func TestRunVersionAndUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run(parse(t, "--version", "--no-color"), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "docredact")

	stdout.Reset()
	assert.Equal(t, 2, run(parse(t, "--no-color"), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "USAGE:")

	stdout.Reset()
	assert.Equal(t, 0, run(parse(t, "--formats", "--no-color"), &stdout, &stderr))
	assert.Contains(t, stdout.String(), "powerpoint")
}

func TestRunPipeline(t *testing.T) {
	for _, name := range []string{"DOCREDACT_STORAGE_BACKEND", "DOCREDACT_TABLE_BACKEND", "DOCREDACT_AI_BACKEND",
		"DOCREDACT_VOLUME_PATH", "DOCREDACT_EXPORT_PATH", "DOCREDACT_TABLE_PATH", "DOCREDACT_LOCAL_ROOT",
		"DOCREDACT_SQLITE_PATH", "GOOGLE_CLOUD_PROJECT", "DOCREDACT_AI_PROJECT", "DOCREDACT_CONCURRENCY"} {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	root := filepath.Join(dir, "blobs")
	cfgFile := filepath.Join(dir, "docredact.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(`
storage:
  backend: local
  local_root: `+root+`
  volume_path: /Volumes/docs/uploads/
  export_path: /Volumes/docs/exports/
table:
  backend: sqlite
  path: docs.files_parsed
  sqlite_path: `+filepath.Join(dir, "docredact.db")+`
ai:
  backend: none
`), 0600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Volumes", "docs", "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Volumes", "docs", "uploads", "notes.md"), []byte("# Notes\nhello"), 0600))

	common := []string{"--config", cfgFile, "--env-file", filepath.Join(dir, "missing.env"), "--no-color", "--quiet", "--json"}
	doc := "/Volumes/docs/uploads/notes.md"

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(parse(t, append(common, "--ingest", doc)...), &stdout, &stderr), stderr.String())
	var ingested struct {
		Table string `json:"destination_table"`
		Rows  int    `json:"processed_files"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &ingested))
	assert.Equal(t, "docs.files_parsed", ingested.Table)
	assert.Equal(t, 1, ingested.Rows)

	stdout.Reset()
	require.Equal(t, 0, run(parse(t, append(common, "--redact", doc, "--only", "markdown")...), &stdout, &stderr), stderr.String())
	var redacted struct {
		Files []core.Outcome `json:"redacted_files"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &redacted))
	require.Len(t, redacted.Files, 1)
	assert.Equal(t, core.StatusNoEntitiesFound, redacted.Files[0].Status)

	stdout.Reset()
	require.Equal(t, 0, run(parse(t, append(common, "--export", "markdown")...), &stdout, &stderr), stderr.String())
	var exported core.ExportResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &exported))
	assert.Equal(t, 1, exported.SourceFiles)

	assert.Equal(t, 1, run(parse(t, append(common, "--export", "docx")...), &stdout, &stderr))
	assert.Equal(t, 1, run(parse(t, "--config", filepath.Join(dir, "nope.yaml"), "--ingest", doc), &stdout, &stderr))
}
