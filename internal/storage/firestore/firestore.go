// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package firestore keeps extracted document text in Firestore collections,
// one collection per table and one document per path.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"docredact/internal/storage"
)

// maxInValues is the largest disjunction Firestore accepts in one "in" filter
const maxInValues = 30

// document is the stored form of a storage.Row. Seq keeps the order rows
// were written in.
type document struct {
	Path    string `firestore:"path"`
	Content string `firestore:"content"`
	Seq     int    `firestore:"seq"`
}

// TabularStore implements storage.TabularStore on a Firestore client
type TabularStore struct {
	client *firestore.Client
}

// NewTabularStore wraps an existing client
func NewTabularStore(client *firestore.Client) *TabularStore {
	return &TabularStore{client: client}
}

// Open creates a client for projectID
func Open(ctx context.Context, projectID string) (*TabularStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return NewTabularStore(client), nil
}

// Close releases the underlying client
func (s *TabularStore) Close() error {
	return s.client.Close()
}

// CollectionName maps a table name onto a valid collection ID
func CollectionName(table string) string {
	name := strings.NewReplacer("/", "_", "`", "").Replace(strings.TrimSpace(table))
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, "__") {
		return "docredact_" + strings.Trim(name, "_.")
	}
	return name
}

// DocumentID derives a stable document ID from a blob path, which may
// contain characters Firestore does not allow in IDs.
func DocumentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:16])
}

// UpsertAll replaces the whole collection: stale documents are deleted and
// every row is written.
func (s *TabularStore) UpsertAll(ctx context.Context, table string, rows []storage.Row) error {
	coll := s.client.Collection(CollectionName(table))

	keep := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		keep[DocumentID(r.Path)] = struct{}{}
	}

	var stale []*firestore.DocumentRef
	it := coll.DocumentRefs(ctx)
	for {
		ref, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", table, err)
		}
		if _, ok := keep[ref.ID]; !ok {
			stale = append(stale, ref)
		}
	}

	if err := s.bulk(ctx, func(bw *firestore.BulkWriter) ([]*firestore.BulkWriterJob, error) {
		jobs := make([]*firestore.BulkWriterJob, 0, len(stale))
		for _, ref := range stale {
			job, err := bw.Delete(ref)
			if err != nil {
				return jobs, err
			}
			jobs = append(jobs, job)
		}
		return jobs, nil
	}); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	// later duplicates of a path win, matching a replace
	latest := make(map[string]int, len(rows))
	for i, r := range rows {
		latest[r.Path] = i
	}

	if err := s.bulk(ctx, func(bw *firestore.BulkWriter) ([]*firestore.BulkWriterJob, error) {
		jobs := make([]*firestore.BulkWriterJob, 0, len(rows))
		for i, r := range rows {
			if latest[r.Path] != i {
				continue
			}
			job, err := bw.Set(coll.Doc(DocumentID(r.Path)), document{Path: r.Path, Content: r.Content, Seq: i})
			if err != nil {
				return jobs, err
			}
			jobs = append(jobs, job)
		}
		return jobs, nil
	}); err != nil {
		return fmt.Errorf("failed to write %s: %w", table, err)
	}
	return nil
}

func (s *TabularStore) bulk(ctx context.Context, enqueue func(*firestore.BulkWriter) ([]*firestore.BulkWriterJob, error)) error {
	bw := s.client.BulkWriter(ctx)
	jobs, err := enqueue(bw)
	bw.End()
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return err
		}
	}
	return nil
}

// QueryByPaths implements storage.TabularStore. Rows come back in write order.
func (s *TabularStore) QueryByPaths(ctx context.Context, table string, paths []string, limit int) ([]storage.Row, error) {
	coll := s.client.Collection(CollectionName(table))
	paths = storage.DedupePaths(paths)

	var docs []document
	if len(paths) == 0 {
		q := coll.OrderBy("seq", firestore.Asc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		found, err := collect(q.Documents(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		docs = found
	}

	for start := 0; start < len(paths); start += maxInValues {
		end := min(start+maxInValues, len(paths))
		found, err := collect(coll.Where("path", "in", paths[start:end]).Documents(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", table, err)
		}
		docs = append(docs, found...)
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Seq < docs[j].Seq })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}

	rows := make([]storage.Row, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, storage.Row{Path: d.Path, Content: d.Content})
	}
	return rows, nil
}

func collect(it *firestore.DocumentIterator) ([]document, error) {
	defer it.Stop()
	var docs []document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return docs, nil
		}
		if err != nil {
			return nil, err
		}
		var d document
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", snap.Ref.ID, err)
		}
		docs = append(docs, d)
	}
}
