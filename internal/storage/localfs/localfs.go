// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package localfs stores blobs as files below a root directory.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docredact/internal/storage"
)

// ErrOutsideRoot is returned for paths that would escape the root directory
var ErrOutsideRoot = errors.New("path escapes storage root")

// BlobStore maps slash-separated blob paths onto files below Root
type BlobStore struct {
	Root string
}

// NewBlobStore creates a blob store rooted at dir, creating it when missing
func NewBlobStore(dir string) (*BlobStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &BlobStore{Root: abs}, nil
}

// resolve returns the file for a blob path. Leading slashes are ignored so
// "/Volumes/a/b.pdf" and "Volumes/a/b.pdf" name the same file.
func (s *BlobStore) resolve(p string) (string, error) {
	rel := strings.TrimLeft(filepath.FromSlash(strings.ReplaceAll(p, "\\", "/")), string(filepath.Separator))
	if rel == "" {
		return "", fmt.Errorf("empty blob path")
	}
	full := filepath.Join(s.Root, rel)
	if full != s.Root && !strings.HasPrefix(full, s.Root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return full, nil
}

// Get implements storage.BlobStore
func (s *BlobStore) Get(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", p, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Put implements storage.BlobStore. Overwrites go through a temporary file
// and a rename so readers never see a partial document.
func (s *BlobStore) Put(ctx context.Context, p string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	if !overwrite {
		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", p, storage.ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(full)
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
		return f.Close()
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".docredact-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", p, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("failed to store %s: %w", p, err)
	}
	return nil
}
