package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// errCorrupt marks a database that failed its self-consistency check or
// carries an incompatible schema version. Open discards and recreates the
// file when it sees this.
var errCorrupt = errors.New("catalog: database corrupt or incompatible")

// Store is the single-writer catalog, backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	wake chan struct{}
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open connects to the catalog database at dbPath, creating it and its
// parent directory if necessary. A database that fails its integrity check
// or carries an incompatible schema version is discarded and recreated
// empty rather than failing startup.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog directory: %w", err)
	}

	store := &Store{path: dbPath, wake: make(chan struct{}, 1)}

	db, err := openPragmaDB(dbPath)
	if err == nil {
		store.db = db
		err = store.initSchema(context.Background())
	}
	if err == nil {
		return store, nil
	}

	// A pragma failure (bad file header) or a failed self-consistency check
	// both mean the file isn't a usable catalog; either way, discard and
	// recreate rather than fail startup. A schema mismatch reported via
	// errCorrupt takes this path too.
	if store.db != nil {
		_ = store.db.Close()
	}
	if err := removeDBFiles(dbPath); err != nil {
		return nil, fmt.Errorf("remove unusable catalog: %w", err)
	}
	db, err = openPragmaDB(dbPath)
	if err != nil {
		return nil, err
	}
	store.db = db
	if err := store.createSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("recreate catalog schema: %w", err)
	}
	return store, nil
}

func openPragmaDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection makes the one-writer invariant a property of the
	// driver, not just application discipline.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

func removeDBFiles(dbPath string) error {
	for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
		if err := os.Remove(dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Wait blocks until a mutation notifies it, floor elapses, or ctx is done.
// The Worker calls this when claim_next finds nothing ready.
func (s *Store) Wait(ctx context.Context, floor time.Duration) {
	timer := time.NewTimer(floor)
	defer timer.Stop()
	select {
	case <-s.wake:
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (s *Store) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
