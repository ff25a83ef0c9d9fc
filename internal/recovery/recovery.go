package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"spacesaver/internal/catalog"
	"spacesaver/internal/fileutil"
	"spacesaver/internal/probe"
	"spacesaver/internal/verify"
)

// Config carries the acceptance criteria for a workdir output, shared with
// the Worker's own verify-and-replace step.
type Config struct {
	TargetCodec              string
	SalvageDurationTolerance float64
}

// Summary counts what a reconciliation pass did, for startup logging.
type Summary struct {
	Gone      int
	Reset     int
	Salvaged  int
	Inspected int
}

// Reconciler performs the startup recovery pass.
type Reconciler struct {
	Catalog *catalog.Store
	Prober  *probe.Prober
	Config  Config
	Logger  *slog.Logger
}

// New returns a Reconciler ready to run.
func New(store *catalog.Store, prober *probe.Prober, cfg Config, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Catalog: store, Prober: prober, Config: cfg, Logger: logger}
}

// Run reconciles every QUEUED or IN_PROGRESS entry per spec.md's recovery
// protocol. It must complete before the Scanner or Worker start.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	entries, err := r.Catalog.List(ctx, catalog.Filter{
		States: []catalog.State{catalog.StateQueued, catalog.StateInProgress},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("list non-terminal entries: %w", err)
	}

	var summary Summary
	for _, entry := range entries {
		summary.Inspected++
		if err := r.reconcileOne(ctx, entry, &summary); err != nil {
			return summary, fmt.Errorf("reconcile entry %s: %w", entry.ID, err)
		}
	}
	return summary, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, entry *catalog.Entry, summary *Summary) error {
	log := r.Logger.With("entry_id", entry.ID, "state", entry.State, "path", entry.Path)

	if _, err := os.Stat(entry.Path); errors.Is(err, os.ErrNotExist) {
		log.Info("recovery: source vanished, marking gone")
		summary.Gone++
		return r.Catalog.MarkGone(ctx, entry.ID)
	} else if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	currentHash, err := probe.ContentHash(entry.Path)
	if err != nil {
		return fmt.Errorf("hash source: %w", err)
	}
	if currentHash != entry.PreHash {
		log.Info("recovery: source mutated mid-flight, resetting to pending")
		if entry.WorkdirPath != "" {
			_ = os.Remove(entry.WorkdirPath)
		}
		summary.Reset++
		return r.Catalog.ReconcileToPending(ctx, entry.ID)
	}

	if entry.WorkdirPath == "" {
		log.Info("recovery: no workdir output, resetting to pending")
		summary.Reset++
		return r.Catalog.ReconcileToPending(ctx, entry.ID)
	}

	if _, err := os.Stat(entry.WorkdirPath); errors.Is(err, os.ErrNotExist) {
		log.Info("recovery: workdir output missing, resetting to pending")
		summary.Reset++
		return r.Catalog.ReconcileToPending(ctx, entry.ID)
	} else if err != nil {
		return fmt.Errorf("stat workdir: %w", err)
	}

	salvageProbe, accepted, reason := verify.Output(ctx, r.Prober, entry.WorkdirPath, verify.Criteria{
		TargetCodec:       r.Config.TargetCodec,
		OriginalSizeBytes: entry.SizeBytes,
		OriginalDurationS: entry.DurationS,
		DurationTolerance: r.Config.SalvageDurationTolerance,
	})
	if !accepted {
		log.Info("recovery: salvage rejected, discarding workdir output", "reason", reason)
		_ = os.Remove(entry.WorkdirPath)
		summary.Reset++
		return r.Catalog.ReconcileToPending(ctx, entry.ID)
	}

	log.Info("recovery: salvage accepted, replacing original")
	if err := fileutil.ReplaceFile(entry.WorkdirPath, entry.Path); err != nil {
		return fmt.Errorf("replace with salvaged output: %w", err)
	}
	summary.Salvaged++
	return r.Catalog.Finish(ctx, entry.ID, catalog.Outcome{
		Kind: catalog.FinishDone,
		Probe: &catalog.Probe{
			ContentHash: salvageProbe.ContentHash,
			SizeBytes:   salvageProbe.SizeBytes,
			ModTime:     salvageProbe.ModTime,
			Codec:       salvageProbe.Codec,
			Width:       salvageProbe.Width,
			Height:      salvageProbe.Height,
			BitrateBPS:  salvageProbe.BitRate,
			DurationS:   salvageProbe.DurationS,
			Category:    entry.Category,
		},
	})
}
