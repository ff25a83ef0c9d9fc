package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever media_entries changes shape. A database
// at a different version is treated as incompatible and recreated empty.
const schemaVersion = 1

// initSchema validates an existing database or creates a fresh schema in a
// brand new one. It reports errCorrupt when the database fails its
// self-consistency check or carries an incompatible schema version; Open
// treats that as license to discard and recreate the file.
func (s *Store) initSchema(ctx context.Context) error {
	var integrity string
	if err := s.db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		return fmt.Errorf("%w: integrity check: %v", errCorrupt, err)
	}
	if !strings.EqualFold(integrity, "ok") {
		return fmt.Errorf("%w: integrity check reported %q", errCorrupt, integrity)
	}

	var tableExists int
	if err := s.db.QueryRowContext(
		ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %v", errCorrupt, err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, want %d", errCorrupt, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
