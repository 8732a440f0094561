// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv keeps the host environment out of the tests
func clearEnv(t *testing.T) {
	t.Helper()
	for _, o := range envOverrides {
		t.Setenv(o.name, "")
	}
}

func TestLoadConfigOrDefault_NoFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("DOCREDACT_CONFIG_DIR", t.TempDir())

	cfg, err := LoadConfigOrDefault("")
	require.NoError(t, err)
	if cfg.Table.Path == "" {
		t.Error("expected default table path to be set")
	}
	if cfg.AI.Backend != BackendNone {
		t.Errorf("expected no AI backend without a project, got %q", cfg.AI.Backend)
	}
}

func TestLoadConfigOrDefault_NonexistentFile(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadConfigOrDefault("/nonexistent/path/config.yaml")
	if cfg == nil {
		t.Fatal("expected non-nil config (fallback to defaults)")
	}
	assert.Error(t, err)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
}

func TestLoadConfig_ValidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "docredact.yaml")

	content := `
storage:
  backend: gcs
  bucket: team-docs
  volume_path: /Volumes/finance/uploads/
table:
  backend: firestore
  path: finance.files_parsed
ai:
  project_id: acme-prod
  timeout: 20s
redaction:
  concurrency: 4
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, BackendGCS, cfg.Storage.Backend)
	assert.Equal(t, "team-docs", cfg.Storage.Bucket)
	assert.Equal(t, "/Volumes/finance/uploads/", cfg.Storage.VolumePath)
	assert.Equal(t, "finance.files_parsed", cfg.Table.Path)
	assert.Equal(t, "acme-prod", cfg.Table.ProjectID, "firestore inherits the AI project")
	assert.Equal(t, BackendVertex, cfg.AI.Backend)
	assert.Equal(t, 20*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 4, cfg.Redaction.Concurrency)
	// untouched defaults survive
	assert.Equal(t, "/Volumes/documents/exports/", cfg.Storage.ExportPath)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(":::invalid yaml:::"), 0600))

	_, err := LoadConfig(configPath)
	assert.Error(t, err)

	// Should fall back to defaults, not panic
	cfg, err := LoadConfigOrDefault(configPath)
	assert.Error(t, err)
	require.NotNil(t, cfg)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCREDACT_TABLE_PATH", "env.table")
	t.Setenv("PORT", "9090")
	t.Setenv("DOCREDACT_AI_TIMEOUT", "5s")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-env")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "env.table", cfg.Table.Path)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "from-env", cfg.AI.ProjectID)
	assert.Equal(t, BackendVertex, cfg.AI.Backend)

	t.Setenv("DOCREDACT_CONCURRENCY", "many")
	_, err = LoadConfig("")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DOCREDACT_CONCURRENCY", cfgErr.Field)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOCREDACT_BUCKET=dotenv-bucket\n"), 0600))
	t.Setenv("DOCREDACT_BUCKET", "")
	os.Unsetenv("DOCREDACT_BUCKET")

	LoadDotEnv(envFile, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "dotenv-bucket", os.Getenv("DOCREDACT_BUCKET"))
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"gcs without bucket", func(c *Config) { c.Storage.Backend = BackendGCS }, "storage.bucket"},
		{"unknown table backend", func(c *Config) { c.Table.Backend = "delta" }, "table.backend"},
		{"vertex without project", func(c *Config) { c.AI.Backend = BackendVertex }, "ai.project_id"},
		{"zero concurrency", func(c *Config) { c.Redaction.Concurrency = 0 }, "redaction.concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			c.resolveBackends()
			tt.mutate(c)
			err := ValidateConfig(c)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	c := Default()
	c.resolveBackends()
	assert.NoError(t, ValidateConfig(c))
	assert.Error(t, ValidateConfig(nil))
}

func TestRuntimeUpdate(t *testing.T) {
	defaults := Settings{VolumePath: "/Volumes/a/", TablePath: "t", ExportPath: "/Volumes/a/exports/"}
	r := NewRuntime(defaults)

	table := "other.table"
	got, err := r.Update(SettingsUpdate{TablePath: &table})
	require.NoError(t, err)
	assert.Equal(t, "other.table", got.TablePath)
	assert.Equal(t, "/Volumes/a/", got.VolumePath)
	assert.Equal(t, got, r.Snapshot())

	blank := "  "
	_, err = r.Update(SettingsUpdate{VolumePath: &blank, TablePath: &table})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "volume_path", cfgErr.Field)
	assert.Equal(t, "/Volumes/a/", r.Snapshot().VolumePath)

	assert.Equal(t, defaults, r.Reset())
	assert.Equal(t, defaults, r.Defaults())
}

func TestRuntimeConcurrentAccess(t *testing.T) {
	r := NewRuntime(Settings{TablePath: "t0"})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			v := "t1"
			_, _ = r.Update(SettingsUpdate{TablePath: &v})
		}()
		go func() {
			defer wg.Done()
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, "t1", r.Snapshot().TablePath)
}

func TestSettingsRequire(t *testing.T) {
	var s Settings
	assert.Error(t, s.RequireTable())
	assert.Error(t, s.RequireVolume())
	assert.Error(t, s.RequireExport())
	s = Settings{VolumePath: "v", TablePath: "t", ExportPath: "e"}
	assert.NoError(t, s.RequireTable())
	assert.NoError(t, s.RequireVolume())
	assert.NoError(t, s.RequireExport())
}
