package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourorg/scan-gateway/internal/logging"
	"github.com/yourorg/scan-gateway/internal/model"
)

// Reconciler refreshes locally stored scans from the engine.
type Reconciler interface {
	ListActive(ctx context.Context, limit int) ([]model.Scan, error)
	Reconcile(ctx context.Context, sc *model.Scan) bool
}

// Runner sweeps active scans so their status advances even when nobody
// reads them.
type Runner struct {
	rec         Reconciler
	concurrency int
}

func NewRunner(rec Reconciler, concurrency int) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{rec: rec, concurrency: concurrency}
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Checked int
	Changed int
}

// Sweep reconciles up to limit active scans (limit <= 0 means all).
func (r *Runner) Sweep(ctx context.Context, limit int) (SweepResult, error) {
	scans, err := r.rec.ListActive(ctx, limit)
	if err != nil {
		return SweepResult{}, err
	}

	var (
		wg      sync.WaitGroup
		changed atomic.Int64
		checked atomic.Int64
	)
	sem := make(chan struct{}, r.concurrency)
	for i := range scans {
		select {
		case <-ctx.Done():
			wg.Wait()
			return SweepResult{Checked: int(checked.Load()), Changed: int(changed.Load())}, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(sc *model.Scan) {
			defer func() { <-sem; wg.Done() }()
			checked.Add(1)
			if r.rec.Reconcile(ctx, sc) {
				changed.Add(1)
			}
		}(&scans[i])
	}
	wg.Wait()
	return SweepResult{Checked: int(checked.Load()), Changed: int(changed.Load())}, nil
}

// RunForever sweeps every interval until ctx is cancelled.
func (r *Runner) RunForever(ctx context.Context, interval time.Duration) error {
	log := logging.FromContext(ctx)
	log.Info().Dur("interval", interval).Int("concurrency", r.concurrency).Msg("Reconciler starting")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := r.Sweep(ctx, 0)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Error().Err(err).Msg("Reconcile sweep failed")
		case res.Checked > 0:
			log.Debug().Int("checked", res.Checked).Int("changed", res.Changed).Msg("Reconcile sweep finished")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Reconciler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
