// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/ai"
	"docredact/internal/config"
	"docredact/internal/core"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalRoot = filepath.Join(dir, "blobs")
	cfg.Table.Backend = config.BackendSQLite
	cfg.Table.SQLitePath = filepath.Join(dir, "docredact.db")
	cfg.AI.Backend = config.BackendNone
	return cfg
}

func TestBuildLocal(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, localConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Len(t, a.Registry.Formats(), 4)
	_, err = a.Completion.Complete(ctx, "hi")
	assert.True(t, errors.Is(err, ai.ErrNotConfigured))

	settings := a.Runtime.Snapshot()
	doc := settings.VolumePath + "notes.md"
	require.NoError(t, a.Blobs.Put(ctx, doc, []byte("John Doe"), false))

	res, err := a.Ingest.Ingest(ctx, settings, []string{doc})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	// without a model nothing is identified
	outcomes, err := a.Orchestrator.Redact(ctx, settings, []string{doc}, core.RedactOptions{})
	require.NoError(t, err)
	assert.Equal(t, core.StatusNoEntitiesFound, outcomes[0].Status)

	exported, err := a.Exporter.Export(ctx, settings, nil, 0, "markdown")
	require.NoError(t, err)
	data, err := a.Blobs.Get(ctx, exported.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "John Doe")

	deps := a.WebDependencies()
	assert.Len(t, deps.Formats, 4)
	assert.Equal(t, int64(100<<20), deps.MaxUploadBytes)
}

func TestBuildMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	cfg.Table.Backend = config.BackendMemory
	cfg.AI.Backend = config.BackendNone

	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestBuildPromptFile(t *testing.T) {
	cfg := localConfig(t)
	cfg.AI.PromptFile = filepath.Join(t.TempDir(), "missing.md")
	_, err := Build(context.Background(), cfg, nil)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ai.prompt_file", cfgErr.Field)

	require.NoError(t, os.WriteFile(cfg.AI.PromptFile, []byte("Find names."), 0600))
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestBuildUnknownBackend(t *testing.T) {
	cfg := localConfig(t)
	cfg.Table.Backend = "delta"
	_, err := Build(context.Background(), cfg, nil)
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
