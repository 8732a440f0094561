// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// GetConfigDir returns the docredact configuration directory
func GetConfigDir() string {
	// Check for explicit override first
	if dir := os.Getenv("DOCREDACT_CONFIG_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "docredact")
	}
	return ".docredact"
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// GetDataDir returns the default root for local blob storage and the local
// text database
func GetDataDir() string {
	if dir := os.Getenv("DOCREDACT_DATA_DIR"); dir != "" {
		return dir
	}
	return "data"
}

// JoinBlobPath joins a directory-like blob prefix and a name with exactly one
// slash between them. Blob paths always use forward slashes.
func JoinBlobPath(dir, name string) string {
	dir = strings.TrimRight(dir, "/")
	name = strings.TrimLeft(name, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// BaseName returns the last element of a blob path, accepting either slash
func BaseName(p string) string {
	return path.Base(strings.ReplaceAll(p, "\\", "/"))
}
