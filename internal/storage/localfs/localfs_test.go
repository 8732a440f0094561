// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docredact/internal/storage"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "/Volumes/main/docs/a.md", []byte("hello"), false))
	got, err := s.Get(ctx, "Volumes/main/docs/a.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	onDisk, err := os.ReadFile(filepath.Join(s.Root, "Volumes", "main", "docs", "a.md"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(onDisk))
}

func TestBlobStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, "out/x.txt", []byte("one"), false))
	err = s.Put(ctx, "out/x.txt", []byte("two"), false)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	got, err := s.Get(ctx, "out/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "one", string(got))

	require.NoError(t, s.Put(ctx, "out/x.txt", []byte("three"), true))
	got, err = s.Get(ctx, "out/x.txt")
	require.NoError(t, err)
	assert.Equal(t, "three", string(got))

	entries, err := os.ReadDir(filepath.Join(s.Root, "out"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestBlobStoreMissingAndEscaping(t *testing.T) {
	ctx := context.Background()
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(ctx, "nope.pdf")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideRoot)

	err = s.Put(ctx, "a/../../escape.txt", []byte("x"), true)
	assert.ErrorIs(t, err, ErrOutsideRoot)

	_, err = s.Get(ctx, "")
	assert.Error(t, err)
}
