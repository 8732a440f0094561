// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/ai"
	"docredact/internal/config"
	"docredact/internal/entities"
	"docredact/internal/format"
	"docredact/internal/redactors/pdf"
	"docredact/internal/storage"
	"docredact/internal/storage/memory"
	"docredact/internal/testutil"
)

const uploads = "/Volumes/docs/uploads/"

var testSettings = config.Settings{
	VolumePath: uploads,
	TablePath:  "docs.files_parsed",
	ExportPath: "/Volumes/docs/exports/",
}

// nerStub answers with a person entity whenever the document mentions John Doe
func nerStub(calls *int32) ai.Completion {
	return ai.CompletionFunc(func(_ context.Context, prompt string) (string, error) {
		atomic.AddInt32(calls, 1)
		_, doc, _ := strings.Cut(prompt, "## DOCUMENT TO ANALYZE")
		if strings.Contains(doc, "John Doe") {
			return "Here you go:\n```json\n{\"John Doe\": \"[PERSON]\"}\n```", nil
		}
		return "{}", nil
	})
}

type fixture struct {
	blobs *memory.BlobStore
	table *memory.TabularStore
	orch  *Orchestrator
	calls int32
}

func newFixture(t *testing.T, docs map[string][]byte, texts map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{blobs: memory.NewBlobStore(), table: memory.NewTabularStore()}

	for p, data := range docs {
		require.NoError(t, f.blobs.Put(ctx, p, data, false))
	}
	var rows []storage.Row
	for p, text := range texts {
		rows = append(rows, storage.Row{Path: storage.TableKey(p), Content: text})
	}
	require.NoError(t, f.table.UpsertAll(ctx, testSettings.TablePath, rows))

	registry, err := BuildHandlerRegistry(nil, nil, nil)
	require.NoError(t, err)
	f.orch = NewOrchestrator(OrchestratorConfig{
		Registry:   registry,
		Blobs:      f.blobs,
		Table:      f.table,
		Identifier: entities.NewIdentifier(nerStub(&f.calls)),
	})
	return f
}

func TestRedactPDFReport(t *testing.T) {
	report := uploads + "report.pdf"
	f := newFixture(t,
		map[string][]byte{report: testutil.BuildTextPDF(testutil.TextStream("Contact John Doe today"))},
		map[string]string{report: "Contact John Doe today"},
	)

	outcomes, err := f.orch.Redact(context.Background(), testSettings, []string{report}, RedactOptions{})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	out := outcomes[0]
	assert.Equal(t, StatusRedacted, out.Status)
	assert.Equal(t, report, out.OriginalFile)
	assert.Equal(t, uploads+"redacted_report.pdf", out.RedactedFile)
	assert.Equal(t, 1, out.EntitiesCount)
	assert.Equal(t, "[PERSON]", out.Entities["John Doe"])

	data, err := f.blobs.Get(context.Background(), out.RedactedFile)
	require.NoError(t, err)
	pages, err := pdf.NewLocalParser().Parse(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.NotContains(t, pages[0], "John Doe")
	assert.Contains(t, pages[0], "[PERSON]")
}

func TestRedactMixedBatch(t *testing.T) {
	notes := uploads + "notes.md"
	clean := uploads + "clean.md"
	csv := uploads + "data.csv"
	empty := uploads + "empty.md"
	gone := uploads + "gone.md"

	f := newFixture(t,
		map[string][]byte{
			notes: []byte("Meeting with John Doe"),
			clean: []byte("Nothing sensitive"),
			csv:   []byte("a,b"),
			empty: []byte(""),
		},
		map[string]string{
			notes: "Meeting with John Doe",
			clean: "Nothing sensitive",
			empty: "   ",
			gone:  "John Doe was here",
		},
	)

	paths := []string{notes, clean, csv, empty, uploads + "unknown.md", gone, notes}
	outcomes, err := f.orch.Redact(context.Background(), testSettings, paths, RedactOptions{})
	require.NoError(t, err)
	require.Len(t, outcomes, len(paths))

	assert.Equal(t, StatusRedacted, outcomes[0].Status)
	assert.Equal(t, uploads+"notes_redacted.md", outcomes[0].RedactedFile)
	redacted, err := f.blobs.Get(context.Background(), outcomes[0].RedactedFile)
	require.NoError(t, err)
	assert.Equal(t, "Meeting with [PERSON]", string(redacted))

	assert.Equal(t, StatusNoEntitiesFound, outcomes[1].Status)
	assert.Equal(t, clean, outcomes[1].RedactedFile)
	assert.Equal(t, 0, outcomes[1].EntitiesCount)

	// files left unredacted point at the original
	assert.Equal(t, StatusFormatNotSupported, outcomes[2].Status)
	assert.Equal(t, csv, outcomes[2].RedactedFile)

	assert.Equal(t, StatusSkippedNoContent, outcomes[3].Status)
	assert.Equal(t, empty, outcomes[3].RedactedFile)
	assert.Equal(t, StatusSkippedNoContent, outcomes[4].Status)
	assert.Equal(t, uploads+"unknown.md", outcomes[4].RedactedFile)

	assert.Equal(t, StatusFailed, outcomes[5].Status)
	assert.Contains(t, outcomes[5].Error, "not found")
	assert.Equal(t, gone, outcomes[5].RedactedFile)

	// the repeated path is reported again without a second redaction
	assert.Equal(t, outcomes[0], outcomes[6])

	// one completion per file with text
	assert.Equal(t, int32(3), atomic.LoadInt32(&f.calls))
	_, err = f.blobs.Get(context.Background(), uploads+"clean_redacted.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRedactOnlyFormats(t *testing.T) {
	notes := uploads + "notes.md"
	f := newFixture(t,
		map[string][]byte{notes: []byte("John Doe")},
		map[string]string{notes: "John Doe"},
	)

	outcomes, err := f.orch.Redact(context.Background(), testSettings, []string{notes}, RedactOptions{OnlyFormats: []format.Tag{format.PDF}})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, StatusSkippedNonMatchingType, outcomes[0].Status)
	assert.Equal(t, notes, outcomes[0].RedactedFile)
	assert.Equal(t, int32(0), f.calls)
}

func TestRedactIdentificationFailure(t *testing.T) {
	notes := uploads + "notes.md"
	f := newFixture(t,
		map[string][]byte{notes: []byte("John Doe")},
		map[string]string{notes: "John Doe"},
	)
	f.orch.identifier = entities.NewIdentifier(ai.CompletionFunc(func(context.Context, string) (string, error) {
		return "", errors.New("backend unavailable")
	}))

	outcomes, err := f.orch.Redact(context.Background(), testSettings, []string{notes}, RedactOptions{})
	require.NoError(t, err)
	assert.Equal(t, StatusNoEntitiesFound, outcomes[0].Status)
	assert.Equal(t, notes, outcomes[0].RedactedFile)
}

func TestRedactConcurrentKeepsOrder(t *testing.T) {
	docs := map[string][]byte{}
	texts := map[string]string{}
	var paths []string
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		p := uploads + name + ".md"
		docs[p] = []byte("John Doe " + name)
		texts[p] = "John Doe " + name
		paths = append(paths, p)
	}
	f := newFixture(t, docs, texts)

	outcomes, err := f.orch.Redact(context.Background(), testSettings, paths, RedactOptions{Concurrency: 4})
	require.NoError(t, err)
	require.Len(t, outcomes, len(paths))
	for i, out := range outcomes {
		assert.Equal(t, paths[i], out.OriginalFile)
		assert.Equal(t, StatusRedacted, out.Status)
	}
}

func TestRedactConfigurationError(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.orch.Redact(context.Background(), config.Settings{}, []string{"a.md"}, RedactOptions{})
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRedactCancelled(t *testing.T) {
	notes := uploads + "notes.md"
	f := newFixture(t, map[string][]byte{notes: []byte("x")}, map[string]string{notes: "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.orch.Redact(ctx, testSettings, []string{notes}, RedactOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseFormats(t *testing.T) {
	all := ParseFormats(nil)
	assert.Len(t, all, 4)
	assert.Equal(t, all, ParseFormats([]string{"all"}))

	got := ParseFormats([]string{" PDF ", "xlsx", ".md", "csv"})
	assert.True(t, got[format.PDF])
	assert.True(t, got[format.Excel])
	assert.True(t, got[format.Markdown])
	assert.False(t, got[format.PowerPoint])
	assert.Len(t, got, 3)
}

func TestBuildHandlerRegistryFiltered(t *testing.T) {
	registry, err := BuildHandlerRegistry(map[format.Tag]bool{format.Markdown: true}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []format.Tag{format.Markdown}, registry.Formats())
}
