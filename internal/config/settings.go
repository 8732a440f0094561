// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
	"sync"
)

// ConfigurationError reports a missing or invalid setting. It aborts the
// whole request rather than a single file.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Message
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Settings are the storage locations a request works against. They are
// copied out of Runtime at the start of each request.
type Settings struct {
	VolumePath string `json:"volume_path"`
	TablePath  string `json:"table_path"`
	ExportPath string `json:"export_path"`
}

// RequireTable checks that a text table is configured
func (s Settings) RequireTable() error {
	if strings.TrimSpace(s.TablePath) == "" {
		return &ConfigurationError{Field: "table_path", Message: "no text table is configured"}
	}
	return nil
}

// RequireVolume checks that an upload location is configured
func (s Settings) RequireVolume() error {
	if strings.TrimSpace(s.VolumePath) == "" {
		return &ConfigurationError{Field: "volume_path", Message: "no volume path is configured"}
	}
	return nil
}

// RequireExport checks that an export location is configured
func (s Settings) RequireExport() error {
	if strings.TrimSpace(s.ExportPath) == "" {
		return &ConfigurationError{Field: "export_path", Message: "no export path is configured"}
	}
	return nil
}

// SettingsUpdate carries the fields a caller wants to change; nil fields are
// left alone
type SettingsUpdate struct {
	VolumePath *string `json:"volume_path,omitempty"`
	TablePath  *string `json:"table_path,omitempty"`
	ExportPath *string `json:"export_path,omitempty"`
}

// Runtime holds the settings shared by API requests
type Runtime struct {
	mu       sync.RWMutex
	current  Settings
	defaults Settings
}

// NewRuntime starts with defaults as the current settings
func NewRuntime(defaults Settings) *Runtime {
	return &Runtime{current: defaults, defaults: defaults}
}

// Snapshot returns a copy of the current settings
func (r *Runtime) Snapshot() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Defaults returns the settings the runtime started with
func (r *Runtime) Defaults() Settings {
	return r.defaults
}

// Update applies u and returns the new settings. Blank values are rejected
// and leave the settings unchanged.
func (r *Runtime) Update(u SettingsUpdate) (Settings, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"volume_path", u.VolumePath},
		{"table_path", u.TablePath},
		{"export_path", u.ExportPath},
	}
	for _, f := range fields {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			return r.Snapshot(), &ConfigurationError{Field: f.name, Message: "cannot be blank"}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if u.VolumePath != nil {
		r.current.VolumePath = strings.TrimSpace(*u.VolumePath)
	}
	if u.TablePath != nil {
		r.current.TablePath = strings.TrimSpace(*u.TablePath)
	}
	if u.ExportPath != nil {
		r.current.ExportPath = strings.TrimSpace(*u.ExportPath)
	}
	return r.current, nil
}

// Reset restores the default settings
func (r *Runtime) Reset() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = r.defaults
	return r.current
}
