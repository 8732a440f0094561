// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package sqlite keeps extracted document text in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"docredact/internal/storage"
)

// maxParams bounds the number of bind variables per statement
const maxParams = 500

const schema = `
	CREATE TABLE IF NOT EXISTS extracted_text (
		table_name TEXT NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		seq INTEGER NOT NULL,
		PRIMARY KEY (table_name, path)
	);
	CREATE INDEX IF NOT EXISTS idx_extracted_text_seq ON extracted_text(table_name, seq);
`

// TabularStore implements storage.TabularStore. Every logical table lives in
// one physical table keyed by (table_name, path).
type TabularStore struct {
	db *sql.DB
}

// Open opens or creates the database at dsn (":memory:" for a private
// in-memory database) and initialises the schema.
func Open(ctx context.Context, dsn string) (*TabularStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection keeps :memory: databases shared and serialises writers
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema when missing
func New(ctx context.Context, db *sql.DB) (*TabularStore, error) {
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("init extracted_text schema: %w", err)
	}
	return &TabularStore{db: db}, nil
}

// Close closes the database
func (s *TabularStore) Close() error {
	return s.db.Close()
}

// UpsertAll truncates table and inserts rows in one transaction
func (s *TabularStore) UpsertAll(ctx context.Context, table string, rows []storage.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM extracted_text WHERE table_name = ?`, table); err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO extracted_text (table_name, path, content, seq) VALUES (?, ?, ?, ?)
		ON CONFLICT (table_name, path) DO UPDATE SET content = excluded.content, seq = excluded.seq`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rows {
		if _, err := stmt.ExecContext(ctx, table, r.Path, r.Content, i); err != nil {
			return fmt.Errorf("insert %s: %w", r.Path, err)
		}
	}
	return tx.Commit()
}

// QueryByPaths implements storage.TabularStore. Rows come back in write order.
func (s *TabularStore) QueryByPaths(ctx context.Context, table string, paths []string, limit int) ([]storage.Row, error) {
	paths = storage.DedupePaths(paths)
	if len(paths) == 0 {
		return s.query(ctx, `SELECT path, content, seq FROM extracted_text WHERE table_name = ? ORDER BY seq`, limit, table)
	}

	var out []storage.Row
	var seqs []int
	for start := 0; start < len(paths); start += maxParams {
		chunk := paths[start:min(start+maxParams, len(paths))]
		args := make([]any, 0, len(chunk)+1)
		args = append(args, table)
		for _, p := range chunk {
			args = append(args, p)
		}
		q := `SELECT path, content, seq FROM extracted_text WHERE table_name = ? AND path IN (?` +
			strings.Repeat(", ?", len(chunk)-1) + `) ORDER BY seq`
		rows, chunkSeqs, err := s.scan(ctx, q, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		seqs = append(seqs, chunkSeqs...)
	}

	if len(paths) > maxParams {
		sortBySeq(out, seqs)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *TabularStore) query(ctx context.Context, q string, limit int, args ...any) ([]storage.Row, error) {
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, _, err := s.scan(ctx, q, args...)
	return rows, err
}

func (s *TabularStore) scan(ctx context.Context, q string, args ...any) ([]storage.Row, []int, error) {
	rs, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("query extracted_text: %w", err)
	}
	defer rs.Close()

	var out []storage.Row
	var seqs []int
	for rs.Next() {
		var r storage.Row
		var seq int
		if err := rs.Scan(&r.Path, &r.Content, &seq); err != nil {
			return nil, nil, err
		}
		out = append(out, r)
		seqs = append(seqs, seq)
	}
	return out, seqs, rs.Err()
}

// sortBySeq merges rows from several chunked queries back into write order
func sortBySeq(rows []storage.Row, seqs []int) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && seqs[j] < seqs[j-1]; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
			seqs[j], seqs[j-1] = seqs[j-1], seqs[j]
		}
	}
}
