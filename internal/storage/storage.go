// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package storage defines the collaborators the redaction pipeline reads
// documents from and writes results to: a blob store for document bytes and a
// tabular store holding the extracted text of each document.
package storage

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a blob or row does not exist
	ErrNotFound = errors.New("storage: not found")

	// ErrAlreadyExists is returned by Put when overwrite is false and the
	// target already exists
	ErrAlreadyExists = errors.New("storage: already exists")
)

// BlobStore reads and writes whole documents by path
type BlobStore interface {
	// Get returns the full contents of the blob at path, or ErrNotFound
	Get(ctx context.Context, path string) ([]byte, error)

	// Put stores data at path. With overwrite false an existing blob is left
	// untouched and ErrAlreadyExists is returned.
	Put(ctx context.Context, path string, data []byte, overwrite bool) error
}

// Row is the extracted text of one stored document
type Row struct {
	Path    string `json:"path" firestore:"path"`
	Content string `json:"content" firestore:"content"`
}

// TabularStore keeps one Row per document path inside a named table
type TabularStore interface {
	// UpsertAll replaces the full contents of table with rows
	UpsertAll(ctx context.Context, table string, rows []Row) error

	// QueryByPaths returns the rows whose path exactly matches one of paths,
	// at most limit rows. An empty paths slice queries the whole table.
	QueryByPaths(ctx context.Context, table string, paths []string, limit int) ([]Row, error)
}

// DedupePaths drops empty and repeated paths while keeping first-seen order
func DedupePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// volumePrefix marks paths on a mounted volume. The text table stores them
// with the filesystem scheme in front.
const volumePrefix = "/Volumes/"

// TableKey returns the path under which the extracted text of the document at
// p is stored in the text table
func TableKey(p string) string {
	if strings.HasPrefix(p, volumePrefix) {
		return "dbfs:" + p
	}
	return p
}

// TableKeys applies TableKey to every path
func TableKeys(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = TableKey(p)
	}
	return out
}

// BlobPath reverses TableKey
func BlobPath(key string) string {
	if rest, ok := strings.CutPrefix(key, "dbfs:"); ok && strings.HasPrefix(rest, volumePrefix) {
		return rest
	}
	return key
}
