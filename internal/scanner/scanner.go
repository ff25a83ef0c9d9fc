package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"spacesaver/internal/catalog"
	"spacesaver/internal/metrics"
	"spacesaver/internal/probe"
)

// defaultExtensions is the configured media set when Config.Extensions is
// empty.
var defaultExtensions = []string{".mkv", ".mp4", ".avi", ".mov", ".m4v", ".ts", ".m2ts", ".wmv"}

// Config carries the tuning a Scanner needs. Roots must already be
// validated disjoint by internal/config.
type Config struct {
	Roots          []string
	Extensions     []string
	RescanInterval time.Duration
	Policy         catalog.ClassifyPolicy
}

// Summary counts what a single scan pass did, for logging.
type Summary struct {
	Inserted     int
	Refreshed    int
	Classified   int
	Deduplicated int
	Gone         int
	Errors       int
}

type root struct {
	path     string
	category catalog.Category
}

// Scanner walks the configured media roots on a periodic schedule and,
// when its fsnotify watcher is available, on file-change events between
// sweeps.
type Scanner struct {
	roots      []root
	extensions map[string]bool
	interval   time.Duration
	policy     catalog.ClassifyPolicy

	catalog *catalog.Store
	prober  *probe.Prober
	logger  *slog.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a Scanner. A failure to start the fsnotify watcher is logged
// and tolerated: the periodic sweep alone satisfies the scan contract.
func New(cfg Config, store *catalog.Store, prober *probe.Prober, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RescanInterval <= 0 {
		cfg.RescanInterval = 10 * time.Minute
	}

	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}

	roots := make([]root, 0, len(cfg.Roots))
	for _, r := range cfg.Roots {
		roots = append(roots, root{path: r, category: categoryForRoot(r)})
	}

	s := &Scanner{
		roots:      roots,
		extensions: extSet,
		interval:   cfg.RescanInterval,
		policy:     cfg.Policy,
		catalog:    store,
		prober:     prober,
		logger:     logger,
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("scanner: fsnotify unavailable, falling back to periodic sweep only", "error", err)
		return s
	}
	for _, r := range roots {
		if err := addRecursive(watcher, r.path); err != nil {
			s.logger.Warn("scanner: fsnotify watch failed for root, falling back to periodic sweep only", "root", r.path, "error", err)
			_ = watcher.Close()
			return s
		}
	}
	s.watcher = watcher
	return s
}

// categoryForRoot derives category from the root's path, per spec.md's
// "configurable mapping": a root whose path contains "tv" is CategoryTV,
// everything else is CategoryMovie.
func categoryForRoot(path string) catalog.Category {
	if strings.Contains(strings.ToLower(path), "tv") {
		return catalog.CategoryTV
	}
	return catalog.CategoryMovie
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Start runs an immediate scan pass and then sweeps on the configured
// interval, plus an early debounced sweep on fsnotify activity, until Stop
// is called or ctx is done.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scanner already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	go s.loop(runCtx)
	return nil
}

// Stop cancels the running loop, if any, waits for it to exit, and closes
// the fsnotify watcher. Safe to call whether or not Start was ever called.
func (s *Scanner) Stop() {
	s.mu.Lock()
	running := s.running
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if running {
		if cancel != nil {
			cancel()
		}
		s.wg.Wait()
	}
	if s.watcher != nil {
		_ = s.watcher.Close()
	}
}

func (s *Scanner) loop(ctx context.Context) {
	defer s.wg.Done()
	s.runPass(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	const debounce = 2 * time.Second
	var debounceTimer *time.Timer
	var debounceC <-chan time.Time

	var events <-chan fsnotify.Event
	if s.watcher != nil {
		events = s.watcher.Events
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runPass(ctx)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if debounceTimer == nil {
				debounceTimer = time.NewTimer(debounce)
				debounceC = debounceTimer.C
			}
		case <-debounceC:
			debounceTimer = nil
			debounceC = nil
			s.runPass(ctx)
		}
	}
}

func (s *Scanner) runPass(ctx context.Context) {
	summary, err := s.Scan(ctx)
	if err != nil {
		s.logger.Error("scanner: pass failed", "error", err)
		metrics.RecordScanPass(false, 0, 0, 0, 0, 0, 1)
		return
	}
	metrics.RecordScanPass(true, summary.Inserted, summary.Refreshed, summary.Classified, summary.Deduplicated, summary.Gone, summary.Errors)
	s.logger.Info("scanner: pass complete",
		"inserted", summary.Inserted, "refreshed", summary.Refreshed,
		"classified", summary.Classified, "deduplicated", summary.Deduplicated,
		"gone", summary.Gone, "errors", summary.Errors,
	)
}

// Scan runs a single synchronous scan pass over every configured root:
// enumerate, probe, upsert, classify, de-duplicate, mark vanished. It is
// exported so the daemon can run one pass at startup before Start, and so
// tests can exercise it directly.
func (s *Scanner) Scan(ctx context.Context) (Summary, error) {
	var summary Summary
	for _, r := range s.roots {
		if err := s.scanRoot(ctx, r, &summary); err != nil {
			return summary, fmt.Errorf("scan root %s: %w", r.path, err)
		}
	}
	if err := s.markVanished(ctx, &summary); err != nil {
		return summary, fmt.Errorf("mark vanished: %w", err)
	}
	if err := s.deduplicate(ctx, &summary); err != nil {
		return summary, fmt.Errorf("deduplicate: %w", err)
	}
	return summary, nil
}

func (s *Scanner) scanRoot(ctx context.Context, r root, summary *Summary) error {
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("media root does not exist: %s", r.path)
	}

	return filepath.WalkDir(r.path, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("scanner: walk error, skipping", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !s.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := s.scanFile(ctx, path, r.category, summary); err != nil {
			s.logger.Warn("scanner: probe error, skipping file", "path", path, "error", err)
			summary.Errors++
		}
		return nil
	})
}

func (s *Scanner) scanFile(ctx context.Context, path string, category catalog.Category, summary *Summary) error {
	existing, err := s.catalog.GetByPath(ctx, path)
	switch {
	case err == nil:
		size, modTime, cheapErr := probe.CheapSignature(path)
		if cheapErr == nil && size == existing.SizeBytes && modTime == existing.ModTime {
			return nil
		}
	case errors.Is(err, catalog.ErrNotFound):
		// new file, fall through to full probe
	default:
		return err
	}

	mp, err := s.prober.Full(ctx, path)
	if err != nil {
		return err
	}

	id, inserted, err := s.catalog.UpsertByPath(ctx, path, catalog.Probe{
		ContentHash: mp.ContentHash,
		SizeBytes:   mp.SizeBytes,
		ModTime:     mp.ModTime,
		Codec:       mp.Codec,
		Width:       mp.Width,
		Height:      mp.Height,
		BitrateBPS:  mp.BitRate,
		DurationS:   mp.DurationS,
		Category:    category,
	})
	if err != nil {
		return err
	}
	if inserted {
		summary.Inserted++
	} else {
		summary.Refreshed++
	}

	entry, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	if entry.State == catalog.StateNew {
		if _, err := s.catalog.Classify(ctx, id, s.policy); err != nil {
			return err
		}
		summary.Classified++
	}
	return nil
}

// nonTerminalStates lists every state a vanished source file can be found
// in. DONE and GONE are excluded: DONE means the path was already
// replaced in place, and GONE is itself the vanished marker.
var nonTerminalStates = []catalog.State{
	catalog.StateNew, catalog.StateSkip, catalog.StatePending,
	catalog.StateQueued, catalog.StateInProgress, catalog.StateFailed,
}

func (s *Scanner) markVanished(ctx context.Context, summary *Summary) error {
	entries, err := s.catalog.List(ctx, catalog.Filter{States: nonTerminalStates})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := os.Stat(entry.Path); errors.Is(err, os.ErrNotExist) {
			if err := s.catalog.MarkGone(ctx, entry.ID); err != nil {
				return err
			}
			summary.Gone++
		}
	}
	return nil
}

// deduplicate removes the lexicographically later of any two live entries
// sharing a content hash, keeping the earlier path and tombstoning the
// later one. An entry that is IN_PROGRESS is left untouched until it
// settles.
func (s *Scanner) deduplicate(ctx context.Context, summary *Summary) error {
	seen := map[string]bool{}
	entries, err := s.catalog.List(ctx, catalog.Filter{})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.State == catalog.StateGone || entry.ContentHash == "" || seen[entry.ContentHash] {
			continue
		}
		seen[entry.ContentHash] = true

		dupes, err := s.catalog.FindByContentHash(ctx, entry.ContentHash)
		if err != nil {
			return err
		}
		if len(dupes) < 2 {
			continue
		}
		for _, dupe := range dupes[1:] {
			if dupes[0].State == catalog.StateInProgress || dupe.State == catalog.StateInProgress {
				continue
			}
			if err := os.Remove(dupe.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("remove duplicate %s: %w", dupe.Path, err)
			}
			if err := s.catalog.MarkGone(ctx, dupe.ID); err != nil {
				return err
			}
			summary.Deduplicated++
		}
	}
	return nil
}
