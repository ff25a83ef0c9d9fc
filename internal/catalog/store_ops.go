package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UpsertByPath refreshes the probed fields of the entry at path, or inserts
// a new NEW entry if none exists. If an existing non-GONE entry carries the
// same content hash under a different path, that entry's path is updated in
// place instead of creating a duplicate (invariant 2).
func (s *Store) UpsertByPath(ctx context.Context, path string, probe Probe) (id string, inserted bool, err error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM media_entries WHERE path = ?", path).Scan(&existingID)
	switch {
	case err == nil:
		if _, execErr := tx.ExecContext(ctx, `
            UPDATE media_entries
            SET content_hash = ?, size_bytes = ?, mod_time = ?, codec = ?, width = ?, height = ?,
                bitrate_bps = ?, duration_s = ?, category = ?, updated_at = ?
            WHERE id = ?`,
			probe.ContentHash, probe.SizeBytes, probe.ModTime, probe.Codec, probe.Width, probe.Height,
			probe.BitrateBPS, probe.DurationS, string(probe.Category), nowStamp(), existingID,
		); execErr != nil {
			return "", false, fmt.Errorf("refresh entry: %w", execErr)
		}
		if err := tx.Commit(); err != nil {
			return "", false, fmt.Errorf("commit upsert: %w", err)
		}
		s.notify()
		return existingID, false, nil

	case errors.Is(err, sql.ErrNoRows):
		// fall through to content-hash lookup

	default:
		return "", false, fmt.Errorf("lookup by path: %w", err)
	}

	if probe.ContentHash != "" {
		var movedID string
		err = tx.QueryRowContext(ctx,
			"SELECT id FROM media_entries WHERE content_hash = ? AND state != ? LIMIT 1",
			probe.ContentHash, string(StateGone),
		).Scan(&movedID)
		switch {
		case err == nil:
			if _, execErr := tx.ExecContext(ctx, `
                UPDATE media_entries
                SET path = ?, size_bytes = ?, mod_time = ?, codec = ?, width = ?, height = ?,
                    bitrate_bps = ?, duration_s = ?, category = ?, updated_at = ?
                WHERE id = ?`,
				path, probe.SizeBytes, probe.ModTime, probe.Codec, probe.Width, probe.Height,
				probe.BitrateBPS, probe.DurationS, string(probe.Category), nowStamp(), movedID,
			); execErr != nil {
				return "", false, fmt.Errorf("update moved entry path: %w", execErr)
			}
			if err := tx.Commit(); err != nil {
				return "", false, fmt.Errorf("commit upsert: %w", err)
			}
			s.notify()
			return movedID, false, nil

		case errors.Is(err, sql.ErrNoRows):
			// fall through to insert

		default:
			return "", false, fmt.Errorf("lookup by content hash: %w", err)
		}
	}

	newID := uuid.NewString()
	if _, execErr := tx.ExecContext(ctx, `
        INSERT INTO media_entries (
            id, path, content_hash, size_bytes, mod_time, codec, width, height,
            bitrate_bps, duration_s, category, state, attempts, last_error,
            workdir_path, pre_hash, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', '', '', ?)`,
		newID, path, probe.ContentHash, probe.SizeBytes, probe.ModTime, probe.Codec, probe.Width, probe.Height,
		probe.BitrateBPS, probe.DurationS, string(probe.Category), string(StateNew), nowStamp(),
	); execErr != nil {
		return "", false, fmt.Errorf("insert entry: %w", execErr)
	}
	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("commit upsert: %w", err)
	}
	s.notify()
	return newID, true, nil
}

// Classify promotes a NEW entry to SKIP or PENDING. Entries not in NEW are
// returned unchanged; Classify is only meaningful right after an insert.
func (s *Store) Classify(ctx context.Context, id string, policy ClassifyPolicy) (State, error) {
	ctx = ensureContext(ctx)

	entry, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if entry.State != StateNew {
		return entry.State, nil
	}

	next := StatePending
	if strings.EqualFold(entry.Codec, policy.TargetCodec) || entry.BitrateBPS < policy.floorFor(entry.Category) {
		next = StateSkip
	}

	if _, err := s.execWithRetry(ctx,
		"UPDATE media_entries SET state = ?, updated_at = ? WHERE id = ? AND state = ?",
		string(next), nowStamp(), id, string(StateNew),
	); err != nil {
		return "", fmt.Errorf("classify entry: %w", err)
	}
	if next == StatePending {
		s.notify()
	}
	return next, nil
}

// ClaimNext atomically selects the best PENDING entry (largest size,
// oldest update) and transitions it to QUEUED, pinning pre_hash. It returns
// (nil, nil) when nothing is ready, including when an entry is already
// IN_PROGRESS (invariant 5: only one claim may be outstanding at a time).
func (s *Store) ClaimNext(ctx context.Context) (*Entry, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inProgress int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM media_entries WHERE state = ?", string(StateInProgress),
	).Scan(&inProgress); err != nil {
		return nil, fmt.Errorf("check in-progress: %w", err)
	}
	if inProgress > 0 {
		return nil, nil
	}

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM media_entries WHERE state = ?
         ORDER BY size_bytes DESC, updated_at ASC LIMIT 1`,
		string(StatePending),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select claim candidate: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE media_entries SET state = ?, pre_hash = content_hash, updated_at = ?
         WHERE id = ? AND state = ?`,
		string(StateQueued), nowStamp(), id, string(StatePending),
	)
	if err != nil {
		return nil, fmt.Errorf("claim entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		// Raced by another writer between select and update; nothing claimed.
		return nil, nil
	}

	row := tx.QueryRowContext(ctx, "SELECT "+entryColumns+" FROM media_entries WHERE id = ?", id)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("reload claimed entry: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return entry, nil
}

// Begin transitions a QUEUED entry to IN_PROGRESS, recording workdirPath
// and incrementing attempts. It returns ErrConflict if the entry isn't
// QUEUED or if another entry already holds IN_PROGRESS.
func (s *Store) Begin(ctx context.Context, id string, workdirPath string) error {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var inProgress int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM media_entries WHERE state = ? AND id != ?", string(StateInProgress), id,
	).Scan(&inProgress); err != nil {
		return fmt.Errorf("check in-progress: %w", err)
	}
	if inProgress > 0 {
		return ErrConflict
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE media_entries
         SET state = ?, workdir_path = ?, attempts = attempts + 1, updated_at = ?
         WHERE id = ? AND state = ?`,
		string(StateInProgress), workdirPath, nowStamp(), id, string(StateQueued),
	)
	if err != nil {
		return fmt.Errorf("begin entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	return tx.Commit()
}

// Finish transitions an IN_PROGRESS entry to its terminal or retry state.
// It returns ErrConflict if the entry isn't IN_PROGRESS.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	ctx = ensureContext(ctx)

	var query string
	var args []any

	switch outcome.Kind {
	case FinishDone:
		probe := outcome.Probe
		if probe == nil {
			probe = &Probe{}
		}
		query = `UPDATE media_entries
            SET state = ?, workdir_path = '', pre_hash = '', last_error = '',
                content_hash = ?, size_bytes = ?, mod_time = ?, codec = ?, width = ?, height = ?,
                bitrate_bps = ?, duration_s = ?, updated_at = ?
            WHERE id = ? AND state = ?`
		args = []any{
			string(StateDone), probe.ContentHash, probe.SizeBytes, probe.ModTime, probe.Codec, probe.Width,
			probe.Height, probe.BitrateBPS, probe.DurationS, nowStamp(), id, string(StateInProgress),
		}
	case FinishFailed:
		query = `UPDATE media_entries
            SET state = ?, workdir_path = '', pre_hash = '', last_error = ?, updated_at = ?
            WHERE id = ? AND state = ?`
		args = []any{string(StateFailed), outcome.LastError, nowStamp(), id, string(StateInProgress)}
	case FinishPending:
		query = `UPDATE media_entries
            SET state = ?, workdir_path = '', pre_hash = '', updated_at = ?
            WHERE id = ? AND state = ?`
		args = []any{string(StatePending), nowStamp(), id, string(StateInProgress)}
	default:
		return fmt.Errorf("catalog: unknown finish kind %q", outcome.Kind)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("finish entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	if outcome.Kind == FinishPending {
		s.notify()
	}
	return nil
}

// ReconcileToPending resets a QUEUED or IN_PROGRESS entry back to PENDING,
// clearing workdir_path and pre_hash. Recovery uses this at startup for
// entries whose source mutated mid-flight or that never reached a workdir;
// unlike Finish it accepts either non-terminal state, since a QUEUED entry
// was claimed but never began.
func (s *Store) ReconcileToPending(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE media_entries
         SET state = ?, workdir_path = '', pre_hash = '', updated_at = ?
         WHERE id = ? AND state IN (?, ?)`,
		string(StatePending), nowStamp(), id, string(StateQueued), string(StateInProgress),
	)
	if err != nil {
		return fmt.Errorf("reconcile to pending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reconcile rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	s.notify()
	return nil
}

// MarkGone transitions any entry to GONE, clearing its workdir bookkeeping.
// It is valid from every state: the Worker treats GONE mid-flight as a
// failure, and Recovery/Scanner call it once the underlying file vanishes.
func (s *Store) MarkGone(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx,
		`UPDATE media_entries
         SET state = ?, workdir_path = '', pre_hash = '', updated_at = ?
         WHERE id = ?`,
		string(StateGone), nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark gone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark gone rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// EnqueueBest selects the best SKIP or FAILED candidate, using claim_next's
// tie-break (largest size_bytes, then oldest updated_at), and promotes it to
// PENDING. It returns ("", nil) when nothing is eligible.
func (s *Store) EnqueueBest(ctx context.Context) (string, error) {
	ctx = ensureContext(ctx)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin enqueue-best tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM media_entries WHERE state IN (?, ?)
         ORDER BY size_bytes DESC, updated_at ASC LIMIT 1`,
		string(StateSkip), string(StateFailed),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select enqueue-best candidate: %w", err)
	}

	if _, execErr := tx.ExecContext(ctx,
		`UPDATE media_entries SET state = ?, last_error = '', updated_at = ? WHERE id = ?`,
		string(StatePending), nowStamp(), id,
	); execErr != nil {
		return "", fmt.Errorf("promote enqueue-best candidate: %w", execErr)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit enqueue-best: %w", err)
	}
	s.notify()
	return id, nil
}

// Enqueue requests re-processing of an entry currently in SKIP, FAILED, or
// DONE, moving it back to PENDING. Entries already pending or in flight are
// left untouched (idempotent). GONE entries cannot be requeued.
func (s *Store) Enqueue(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	entry, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	switch entry.State {
	case StateGone:
		return ErrGone
	case StatePending, StateQueued, StateInProgress:
		return nil
	case StateNew:
		return ErrConflict
	}

	res, err := s.execWithRetry(ctx,
		`UPDATE media_entries
         SET state = ?, last_error = '', updated_at = ?
         WHERE id = ? AND state = ?`,
		string(StatePending), nowStamp(), id, string(entry.State),
	)
	if err != nil {
		return fmt.Errorf("enqueue entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("enqueue rows affected: %w", err)
	}
	if affected == 0 {
		return ErrConflict
	}
	s.notify()
	return nil
}
