// Package daemon wires the catalog, scanner, worker, and HTTP API into a
// single-instance process with an ordered startup and shutdown sequence.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"spacesaver/internal/api"
	"spacesaver/internal/catalog"
	"spacesaver/internal/config"
	"spacesaver/internal/deps"
	"spacesaver/internal/encoder"
	"spacesaver/internal/logging"
	"spacesaver/internal/metrics"
	"spacesaver/internal/probe"
	"spacesaver/internal/recovery"
	"spacesaver/internal/scanner"
	"spacesaver/internal/worker"
)

// targetCodec is the single encode target this service re-encodes into.
const targetCodec = "hevc"

// Status is a snapshot of daemon runtime state, for the CLI and HTTP API.
type Status struct {
	Running      bool
	PID          int
	CatalogPath  string
	LockFilePath string
	Worker       worker.Status
	Dependencies []deps.Status
}

// Daemon owns a catalog, scanner, worker, and HTTP API, starting and
// stopping them in a fixed order.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	store   *catalog.Store
	prober  *probe.Prober
	scan    *scanner.Scanner
	work    *worker.Worker
	apiSrv  *api.Server

	httpListener net.Listener
	httpServer   *http.Server

	lockPath string
	lock     *flock.Flock

	depsMu       sync.RWMutex
	dependencies []deps.Status

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New opens the catalog and constructs the scanner, worker, and API server.
// It does not start anything; call Start to run them.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := catalog.Open(filepath.Join(cfg.Paths.WorkDir, "catalog.db"))
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	prober := probe.New(cfg.Tools.FFProbeBinary)

	policy := catalog.ClassifyPolicy{
		TargetCodec: targetCodec,
		BitrateFloor: map[catalog.Category]int64{
			catalog.CategoryTV:    int64(cfg.Encoding.BitrateFloorTV),
			catalog.CategoryMovie: int64(cfg.Encoding.BitrateFloorMovie),
		},
	}

	scan := scanner.New(scanner.Config{
		Roots:          cfg.Paths.MediaDirs,
		RescanInterval: time.Duration(cfg.Scanner.RescanIntervalSeconds) * time.Second,
		Policy:         policy,
	}, store, prober, logger)

	shutdownGrace := time.Duration(cfg.Daemon.ShutdownGracePeriodSeconds) * time.Second
	encoderClient := encoder.NewCLI(cfg.Tools.EncoderBinary, shutdownGrace)

	work := worker.New(worker.Config{
		WorkDir:                  cfg.Paths.WorkDir,
		TargetCodec:              targetCodec,
		TVCRF:                    cfg.Encoding.TVCRF,
		MovieCRF:                 cfg.Encoding.MovieCRF,
		TVResCap:                 cfg.Encoding.TVResCap,
		MovieResCap:              cfg.Encoding.MovieResCap,
		SalvageDurationTolerance: cfg.Recovery.SalvageDurationToleranceSeconds,
	}, store, prober, encoderClient, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		prober:   prober,
		scan:     scan,
		work:     work,
		lockPath: filepath.Join(cfg.Paths.LogDir, "spacesaver.lock"),
		lock:     flock.New(filepath.Join(cfg.Paths.LogDir, "spacesaver.lock")),
	}
	d.apiSrv = api.New(store, d, logger)
	return d, nil
}

// Start acquires the single-instance lock, runs the startup recovery pass,
// and starts the scanner, worker, and HTTP API in that order. A failure at
// any step unwinds everything started before it.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another spacesaver daemon instance is already running")
	}

	d.runDependencyChecks()

	reconciler := recovery.New(d.store, d.prober, recovery.Config{
		TargetCodec:              targetCodec,
		SalvageDurationTolerance: d.cfg.Recovery.SalvageDurationToleranceSeconds,
	}, d.logger)
	summary, err := reconciler.Run(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("startup recovery: %w", err)
	}
	metrics.RecordRecovery(summary.Gone, summary.Reset, summary.Salvaged)
	d.logger.Info("daemon: startup recovery complete",
		logging.Int("inspected", summary.Inspected),
		logging.Int("gone", summary.Gone),
		logging.Int("reset", summary.Reset),
		logging.Int("salvaged", summary.Salvaged),
	)

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.scan.Start(d.ctx); err != nil {
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start scanner: %w", err)
	}
	if err := d.work.Start(d.ctx); err != nil {
		d.scan.Stop()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start worker: %w", err)
	}
	if err := d.startAPI(); err != nil {
		d.work.Stop()
		d.scan.Stop()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}

	d.running.Store(true)
	d.logger.Info("daemon: started", logging.String("lock", d.lockPath))
	return nil
}

func (d *Daemon) startAPI() error {
	bind := d.cfg.API.Bind
	if bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	d.httpListener = listener
	d.httpServer = &http.Server{
		Handler:           d.apiSrv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := d.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.logger.Error("daemon: api server error", logging.Error(err))
		}
	}()
	d.logger.Info("daemon: api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop stops the worker, scanner, and HTTP API (in reverse start order),
// giving the worker up to the configured shutdown grace period to let an
// in-flight encode terminate cleanly, then releases the lock.
func (d *Daemon) Stop(ctx context.Context) {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	if d.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = d.httpServer.Shutdown(shutdownCtx)
		cancel()
	}
	if d.httpListener != nil {
		_ = d.httpListener.Close()
		d.httpListener = nil
	}

	grace := time.Duration(d.cfg.Daemon.ShutdownGracePeriodSeconds) * time.Second
	stopped := make(chan struct{})
	go func() {
		d.work.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grace):
		d.logger.Warn("daemon: worker did not stop within grace period")
	}

	d.scan.Stop()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("daemon: failed to release lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("daemon: stopped")
}

// Close stops the daemon if running and closes the catalog.
func (d *Daemon) Close() error {
	d.Stop(context.Background())
	return d.store.Close()
}

func (d *Daemon) runDependencyChecks() {
	results := deps.CheckBinaries(deps.RequiredBinaries(d.cfg))
	d.depsMu.Lock()
	d.dependencies = results
	d.depsMu.Unlock()
	for _, r := range results {
		if !r.Available && !r.Optional {
			d.logger.Warn("daemon: required dependency unavailable", logging.String("name", r.Name), logging.String("detail", r.Detail))
		}
	}
}

// Running reports whether the daemon's background components are active.
// It satisfies api.StatusSource.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// WorkerStatus reports the worker's current activity snapshot. It
// satisfies api.StatusSource.
func (d *Daemon) WorkerStatus() worker.Status {
	return d.work.Status()
}

// DependencyStatuses reports the most recent dependency check results. It
// satisfies api.StatusSource.
func (d *Daemon) DependencyStatuses() []deps.Status {
	d.depsMu.RLock()
	defer d.depsMu.RUnlock()
	out := make([]deps.Status, len(d.dependencies))
	copy(out, d.dependencies)
	return out
}

// APIAddr returns the address the HTTP API is bound to, or "" if it isn't
// running. Useful for tests that bind to an ephemeral port.
func (d *Daemon) APIAddr() string {
	if d.httpListener == nil {
		return ""
	}
	return d.httpListener.Addr().String()
}

// Status returns a full daemon status snapshot.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		CatalogPath:  filepath.Join(d.cfg.Paths.WorkDir, "catalog.db"),
		LockFilePath: d.lockPath,
		Worker:       d.work.Status(),
		Dependencies: d.DependencyStatuses(),
	}
}
