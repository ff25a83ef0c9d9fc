package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"spacesaver/internal/catalog"
	"spacesaver/internal/encoder"
	"spacesaver/internal/fileutil"
	"spacesaver/internal/metrics"
	"spacesaver/internal/probe"
	"spacesaver/internal/verify"
)

// Config carries the tuning a Worker needs.
type Config struct {
	WorkDir                  string
	TargetCodec              string
	TVCRF                    int
	MovieCRF                 int
	TVResCap                 int
	MovieResCap              int
	SalvageDurationTolerance float64
	PollFloor                time.Duration
	ErrorRetryInterval       time.Duration
}

func (c Config) paramsFor(category catalog.Category) (crf int, resCap int) {
	if category == catalog.CategoryTV {
		return c.TVCRF, c.TVResCap
	}
	return c.MovieCRF, c.MovieResCap
}

// Status is a snapshot of the Worker's current activity, exposed for the
// HTTP status endpoint. It is best-effort: a crash loses whatever was last
// reported and Recovery reconciles from the catalog instead.
type Status struct {
	Running bool
	EntryID string
	Stage   string
	Percent float64
	Message string
}

// Worker runs the claim loop.
type Worker struct {
	cfg     Config
	catalog *catalog.Store
	prober  *probe.Prober
	encoder encoder.Client
	logger  *slog.Logger

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	statusMu sync.Mutex
	status   Status
}

// New builds a Worker ready to Start.
func New(cfg Config, store *catalog.Store, prober *probe.Prober, client encoder.Client, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollFloor <= 0 {
		cfg.PollFloor = time.Minute
	}
	if cfg.ErrorRetryInterval <= 0 {
		cfg.ErrorRetryInterval = 30 * time.Second
	}
	return &Worker{cfg: cfg, catalog: store, prober: prober, encoder: client, logger: logger}
}

// Start runs the claim loop in the background until Stop is called or ctx
// is done.
func (w *Worker) Start(ctx context.Context) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()
	if w.running {
		return errors.New("worker already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	go w.loop(runCtx)
	return nil
}

// Stop signals the loop to exit and waits for any in-flight job's Encode
// call to observe cancellation. The claimed entry is left IN_PROGRESS with
// its workdir_path intact; Recovery reconciles it on next startup.
func (w *Worker) Stop() {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.runMu.Unlock()

	cancel()
	w.wg.Wait()
}

// Status returns the worker's current activity snapshot.
func (w *Worker) Status() Status {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	return w.status
}

func (w *Worker) setStatus(entryID string, p encoder.Progress) {
	w.statusMu.Lock()
	w.status = Status{Running: true, EntryID: entryID, Stage: p.Stage, Percent: p.Percent, Message: p.Message}
	w.statusMu.Unlock()
}

func (w *Worker) clearStatus() {
	w.statusMu.Lock()
	w.status = Status{}
	w.statusMu.Unlock()
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		entry, err := w.catalog.ClaimNext(ctx)
		if err != nil {
			w.logger.Error("worker: claim failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorRetryInterval):
			}
			continue
		}
		if entry == nil {
			w.catalog.Wait(ctx, w.cfg.PollFloor)
			continue
		}

		if err := w.process(ctx, entry); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("worker: process failed", "entry_id", entry.ID, "error", err)
		}
	}
}

// process runs one entry through begin, encode, verify, and either replace
// or finish-as-failed. A graceful shutdown mid-encode returns nil without
// touching the catalog entry, leaving it IN_PROGRESS for Recovery.
func (w *Worker) process(ctx context.Context, entry *catalog.Entry) error {
	workdirPath := filepath.Join(w.cfg.WorkDir, entry.ID+".mkv")
	if err := w.catalog.Begin(ctx, entry.ID, workdirPath); err != nil {
		return fmt.Errorf("begin entry %s: %w", entry.ID, err)
	}

	started := time.Now()
	metrics.WorkerActive.Set(1)
	defer metrics.WorkerActive.Set(0)

	crf, resCap := w.cfg.paramsFor(entry.Category)
	w.setStatus(entry.ID, encoder.Progress{Stage: "encoding"})
	defer w.clearStatus()

	encErr := w.encoder.Encode(ctx, encoder.Options{
		InputPath:  entry.Path,
		OutputPath: workdirPath,
		CRF:        crf,
		ResCap:     resCap,
	}, func(p encoder.Progress) {
		w.setStatus(entry.ID, p)
	})

	if encErr != nil {
		if ctx.Err() != nil {
			w.logger.Info("worker: shutdown during encode, leaving entry in progress", "entry_id", entry.ID)
			return nil
		}
		w.logger.Warn("worker: encode failed", "entry_id", entry.ID, "error", encErr)
		_ = os.Remove(workdirPath)
		return w.finishFailed(ctx, entry.ID, encErr.Error())
	}

	currentHash, err := probe.ContentHash(entry.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			w.logger.Info("worker: source vanished during encode", "entry_id", entry.ID)
			_ = os.Remove(workdirPath)
			return w.catalog.MarkGone(ctx, entry.ID)
		}
		_ = os.Remove(workdirPath)
		return w.finishFailed(ctx, entry.ID, fmt.Sprintf("rehash source: %v", err))
	}
	if currentHash != entry.PreHash {
		w.logger.Info("worker: source mutated mid-flight, resetting to pending", "entry_id", entry.ID)
		_ = os.Remove(workdirPath)
		return w.catalog.Finish(ctx, entry.ID, catalog.Outcome{Kind: catalog.FinishPending})
	}

	outProbe, accepted, reason := verify.Output(ctx, w.prober, workdirPath, verify.Criteria{
		TargetCodec:       w.cfg.TargetCodec,
		OriginalSizeBytes: entry.SizeBytes,
		OriginalDurationS: entry.DurationS,
		DurationTolerance: w.cfg.SalvageDurationTolerance,
	})
	if !accepted {
		w.logger.Warn("worker: output rejected", "entry_id", entry.ID, "reason", reason)
		_ = os.Remove(workdirPath)
		return w.finishFailed(ctx, entry.ID, reason)
	}

	if err := fileutil.ReplaceFile(workdirPath, entry.Path); err != nil {
		w.logger.Warn("worker: replace failed", "entry_id", entry.ID, "error", err)
		_ = os.Remove(workdirPath)
		return w.finishFailed(ctx, entry.ID, fmt.Sprintf("replace original: %v", err))
	}
	metrics.EncodeAttemptsTotal.WithLabelValues("done").Inc()
	metrics.EncodeDurationSeconds.Observe(time.Since(started).Seconds())
	if saved := entry.SizeBytes - outProbe.SizeBytes; saved > 0 {
		metrics.BytesSavedTotal.Add(float64(saved))
	}
	return w.catalog.Finish(ctx, entry.ID, catalog.Outcome{
		Kind: catalog.FinishDone,
		Probe: &catalog.Probe{
			ContentHash: outProbe.ContentHash,
			SizeBytes:   outProbe.SizeBytes,
			ModTime:     outProbe.ModTime,
			Codec:       outProbe.Codec,
			Width:       outProbe.Width,
			Height:      outProbe.Height,
			BitrateBPS:  outProbe.BitRate,
			DurationS:   outProbe.DurationS,
			Category:    entry.Category,
		},
	})
}

func (w *Worker) finishFailed(ctx context.Context, id, reason string) error {
	metrics.EncodeAttemptsTotal.WithLabelValues("failed").Inc()
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "encode failed without detail"
	}
	return w.catalog.Finish(ctx, id, catalog.Outcome{Kind: catalog.FinishFailed, LastError: reason})
}
