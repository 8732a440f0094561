// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docredact/internal/paths"
)

// Storage backends
const (
	BackendLocal     = "local"
	BackendGCS       = "gcs"
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
	BackendVertex    = "vertex"
	BackendNone      = "none"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Addr           string        `yaml:"addr"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxUploadMB    int64         `yaml:"max_upload_mb"`
	} `yaml:"server"`

	// Blob storage for source documents, redacted copies and exports
	Storage struct {
		Backend    string        `yaml:"backend"`
		LocalRoot  string        `yaml:"local_root"`
		Bucket     string        `yaml:"bucket"`
		VolumePath string        `yaml:"volume_path"`
		ExportPath string        `yaml:"export_path"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"storage"`

	// Tabular store holding the extracted text of each document
	Table struct {
		Backend    string        `yaml:"backend"`
		Path       string        `yaml:"path"`
		SQLitePath string        `yaml:"sqlite_path"`
		ProjectID  string        `yaml:"project_id"`
		Timeout    time.Duration `yaml:"timeout"`
	} `yaml:"table"`

	// Model endpoint used for entity identification and PDF parsing. An empty
	// backend selects vertex when a project is known.
	AI struct {
		Backend          string        `yaml:"backend"`
		ProjectID        string        `yaml:"project_id"`
		Location         string        `yaml:"location"`
		Model            string        `yaml:"model"`
		Timeout          time.Duration `yaml:"timeout"`
		ParseTimeout     time.Duration `yaml:"parse_timeout"`
		PromptFile       string        `yaml:"prompt_file"`
		FailureThreshold int           `yaml:"failure_threshold"`
		Cooldown         time.Duration `yaml:"cooldown"`
	} `yaml:"ai"`

	Redaction struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"redaction"`

	Export struct {
		Title        string `yaml:"title"`
		DefaultLimit int    `yaml:"default_limit"`
	} `yaml:"export"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the built-in configuration
func Default() *Config {
	config := &Config{}

	config.Server.Addr = ":8000"
	config.Server.RequestTimeout = 5 * time.Minute
	config.Server.MaxUploadMB = 100

	config.Storage.Backend = BackendLocal
	config.Storage.LocalRoot = paths.GetDataDir()
	config.Storage.VolumePath = "/Volumes/documents/uploads/"
	config.Storage.ExportPath = "/Volumes/documents/exports/"
	config.Storage.Timeout = 60 * time.Second

	config.Table.Backend = BackendSQLite
	config.Table.Path = "documents.files_parsed"
	config.Table.SQLitePath = filepath.Join(paths.GetDataDir(), "docredact.db")
	config.Table.Timeout = 30 * time.Second

	config.AI.Location = "us-central1"
	config.AI.Model = "gemini-1.5-pro"
	config.AI.Timeout = 50 * time.Second
	config.AI.ParseTimeout = 5 * time.Minute
	config.AI.FailureThreshold = 5
	config.AI.Cooldown = 30 * time.Second

	config.Redaction.Concurrency = 1

	config.Export.Title = "Consolidated Document Export"
	config.Export.DefaultLimit = 10

	config.Logging.Level = "metrics"
	return config
}

// LoadConfig loads configuration from the specified file path, then applies
// environment overrides and validates the result
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(filepath.Clean(configPath))
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	config.resolveBackends()

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

// LoadDotEnv loads variables from .env files into the environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if fileExists(f) {
			_ = godotenv.Load(f)
		}
	}
}

// FindConfigFile looks for a configuration file in the working directory,
// then in the user configuration directory
func FindConfigFile() string {
	for _, name := range []string{"docredact.yaml", "docredact.yml", ".docredact.yaml", "config.yaml"} {
		if fileExists(name) {
			return name
		}
	}
	if standard := paths.GetConfigFile(); fileExists(standard) {
		return standard
	}
	return ""
}

// LoadConfigOrDefault loads configuration from configFile (or searches standard locations
// when configFile is empty). If loading fails, it returns a default configuration
// and the error so callers can report it.
func LoadConfigOrDefault(configFile string) (*Config, error) {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fallback := Default()
		fallback.resolveBackends()
		return fallback, err
	}
	return cfg, nil
}

// envOverrides maps environment variables onto config fields
var envOverrides = []struct {
	name  string
	apply func(c *Config, v string) error
}{
	{"DOCREDACT_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"PORT", func(c *Config, v string) error { c.Server.Addr = ":" + v; return nil }},
	{"DOCREDACT_REQUEST_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Server.RequestTimeout, v) }},
	{"DOCREDACT_STORAGE_BACKEND", func(c *Config, v string) error { c.Storage.Backend = v; return nil }},
	{"DOCREDACT_LOCAL_ROOT", func(c *Config, v string) error { c.Storage.LocalRoot = v; return nil }},
	{"DOCREDACT_BUCKET", func(c *Config, v string) error { c.Storage.Bucket = v; return nil }},
	{"DOCREDACT_VOLUME_PATH", func(c *Config, v string) error { c.Storage.VolumePath = v; return nil }},
	{"DOCREDACT_EXPORT_PATH", func(c *Config, v string) error { c.Storage.ExportPath = v; return nil }},
	{"DOCREDACT_TABLE_BACKEND", func(c *Config, v string) error { c.Table.Backend = v; return nil }},
	{"DOCREDACT_TABLE_PATH", func(c *Config, v string) error { c.Table.Path = v; return nil }},
	{"DOCREDACT_SQLITE_PATH", func(c *Config, v string) error { c.Table.SQLitePath = v; return nil }},
	{"DOCREDACT_FIRESTORE_PROJECT", func(c *Config, v string) error { c.Table.ProjectID = v; return nil }},
	{"DOCREDACT_AI_BACKEND", func(c *Config, v string) error { c.AI.Backend = v; return nil }},
	{"GOOGLE_CLOUD_PROJECT", func(c *Config, v string) error {
		if c.AI.ProjectID == "" {
			c.AI.ProjectID = v
		}
		return nil
	}},
	{"DOCREDACT_AI_PROJECT", func(c *Config, v string) error { c.AI.ProjectID = v; return nil }},
	{"DOCREDACT_AI_LOCATION", func(c *Config, v string) error { c.AI.Location = v; return nil }},
	{"DOCREDACT_AI_MODEL", func(c *Config, v string) error { c.AI.Model = v; return nil }},
	{"DOCREDACT_AI_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.AI.Timeout, v) }},
	{"DOCREDACT_CONCURRENCY", func(c *Config, v string) error { return setInt(&c.Redaction.Concurrency, v) }},
	{"DOCREDACT_LOG_LEVEL", func(c *Config, v string) error { c.Logging.Level = v; return nil }},
}

// ApplyEnv overrides config fields from DOCREDACT_* environment variables
func ApplyEnv(c *Config) error {
	for _, o := range envOverrides {
		v := strings.TrimSpace(os.Getenv(o.name))
		if v == "" {
			continue
		}
		if err := o.apply(c, v); err != nil {
			return &ConfigurationError{Field: o.name, Message: err.Error()}
		}
	}
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	*dst = d
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid integer %q", v)
	}
	*dst = n
	return nil
}

func (c *Config) resolveBackends() {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Table.Backend = strings.ToLower(strings.TrimSpace(c.Table.Backend))
	c.AI.Backend = strings.ToLower(strings.TrimSpace(c.AI.Backend))
	if c.AI.Backend == "" {
		if c.AI.ProjectID != "" {
			c.AI.Backend = BackendVertex
		} else {
			c.AI.Backend = BackendNone
		}
	}
	if c.Table.Backend == BackendFirestore && c.Table.ProjectID == "" {
		c.Table.ProjectID = c.AI.ProjectID
	}
}

// ValidateConfig reports the first inconsistent setting as a *ConfigurationError
func ValidateConfig(config *Config) error {
	if config == nil {
		return &ConfigurationError{Message: "configuration cannot be nil"}
	}

	switch config.Storage.Backend {
	case BackendLocal:
		if config.Storage.LocalRoot == "" {
			return &ConfigurationError{Field: "storage.local_root", Message: "required for the local backend"}
		}
	case BackendGCS:
		if config.Storage.Bucket == "" {
			return &ConfigurationError{Field: "storage.bucket", Message: "required for the gcs backend"}
		}
	case BackendMemory:
	default:
		return &ConfigurationError{Field: "storage.backend", Message: fmt.Sprintf("unknown backend %q", config.Storage.Backend)}
	}

	switch config.Table.Backend {
	case BackendSQLite:
		if config.Table.SQLitePath == "" {
			return &ConfigurationError{Field: "table.sqlite_path", Message: "required for the sqlite backend"}
		}
	case BackendFirestore:
		if config.Table.ProjectID == "" {
			return &ConfigurationError{Field: "table.project_id", Message: "required for the firestore backend"}
		}
	case BackendMemory:
	default:
		return &ConfigurationError{Field: "table.backend", Message: fmt.Sprintf("unknown backend %q", config.Table.Backend)}
	}

	switch config.AI.Backend {
	case BackendVertex:
		if config.AI.ProjectID == "" || config.AI.Location == "" {
			return &ConfigurationError{Field: "ai.project_id", Message: "project and location are required for the vertex backend"}
		}
	case BackendNone:
	default:
		return &ConfigurationError{Field: "ai.backend", Message: fmt.Sprintf("unknown backend %q", config.AI.Backend)}
	}

	if config.AI.Timeout <= 0 {
		return &ConfigurationError{Field: "ai.timeout", Message: "must be positive"}
	}
	if config.Redaction.Concurrency < 1 {
		return &ConfigurationError{Field: "redaction.concurrency", Message: "must be at least 1"}
	}
	return nil
}

// Settings returns the request-scoped settings this configuration starts with
func (c *Config) Settings() Settings {
	return Settings{
		VolumePath: c.Storage.VolumePath,
		TablePath:  c.Table.Path,
		ExportPath: c.Storage.ExportPath,
	}
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
