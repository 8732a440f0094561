// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package memory provides in-process BlobStore and TabularStore
// implementations for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docredact/internal/storage"
)

// BlobStore keeps blobs in a map guarded by a mutex
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty blob store
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Get implements storage.BlobStore
func (s *BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Put implements storage.BlobStore
func (s *BlobStore) Put(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[path]; exists && !overwrite {
		return fmt.Errorf("%s: %w", path, storage.ErrAlreadyExists)
	}
	s.blobs[path] = append([]byte(nil), data...)
	return nil
}

// Paths lists stored paths in lexical order
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.blobs))
	for p := range s.blobs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// TabularStore keeps rows per table in insertion order
type TabularStore struct {
	mu     sync.RWMutex
	tables map[string][]storage.Row
}

// NewTabularStore creates an empty tabular store
func NewTabularStore() *TabularStore {
	return &TabularStore{tables: make(map[string][]storage.Row)}
}

// UpsertAll implements storage.TabularStore
func (s *TabularStore) UpsertAll(ctx context.Context, table string, rows []storage.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append([]storage.Row(nil), rows...)
	return nil
}

// QueryByPaths implements storage.TabularStore
func (s *TabularStore) QueryByPaths(ctx context.Context, table string, paths []string, limit int) ([]storage.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.Row
	for _, row := range s.tables[table] {
		if limit > 0 && len(out) >= limit {
			break
		}
		if len(want) > 0 {
			if _, ok := want[row.Path]; !ok {
				continue
			}
		}
		out = append(out, row)
	}
	return out, nil
}
