package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Get fetches a single entry by id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM media_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// GetByPath fetches a single entry by its current path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM media_entries WHERE path = ?", path)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by path: %w", err)
	}
	return entry, nil
}

// List returns entries matching filter, ordered by updated_at. An empty
// filter returns every entry.
func (s *Store) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	ctx = ensureContext(ctx)

	query := "SELECT " + entryColumns + " FROM media_entries"
	var args []any
	if len(filter.States) > 0 {
		placeholders := make([]byte, 0, len(filter.States)*2)
		args = make([]any, len(filter.States))
		for i, state := range filter.States {
			if i > 0 {
				placeholders = append(placeholders, ',')
			}
			placeholders = append(placeholders, '?')
			args[i] = string(state)
		}
		query += " WHERE state IN (" + string(placeholders) + ")"
	}
	query += " ORDER BY updated_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// FindByContentHash returns every live (non-GONE) entry sharing hash,
// ordered by path. The Scanner uses this to detect duplicates.
func (s *Store) FindByContentHash(ctx context.Context, hash string) ([]*Entry, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM media_entries WHERE content_hash = ? AND state != ? ORDER BY path",
		hash, string(StateGone),
	)
	if err != nil {
		return nil, fmt.Errorf("find by content hash: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
