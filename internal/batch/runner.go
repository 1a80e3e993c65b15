// Package batch runs the dependent sub-requests of one primary result,
// strictly one at a time, spacing successful backend calls out with a fixed
// cooldown so the rate-limited backend is never hammered.
package batch

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var itemsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "medsim_batch_items_total",
		Help: "Batch sub-request outcomes.",
	},
	[]string{"workspace", "outcome"},
)

// ItemResult is the outcome one executed item reports back to the runner.
type ItemResult int

const (
	// ItemSucceeded: the sub-request produced content; cool down before the next.
	ItemSucceeded ItemResult = iota
	// ItemFailed: the sub-request failed; it was recorded and the batch
	// continues immediately (the backend had nothing to rate-limit).
	ItemFailed
	// ItemStale: the workspace moved on to a newer generation; the rest of
	// the batch is pointless.
	ItemStale
)

// SleepFunc waits for d or until ctx is done. Injected for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Runner executes an ordered batch of sub-requests sequentially.
type Runner struct {
	logger   *zap.Logger
	cooldown time.Duration
	sleep    SleepFunc
}

// NewRunner builds a Runner with the given post-success cooldown.
func NewRunner(logger *zap.Logger, cooldown time.Duration, sleep SleepFunc) *Runner {
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return &Runner{logger: logger.Named("batch"), cooldown: cooldown, sleep: sleep}
}

// Run executes n items in index order, one in flight at a time. exec must
// publish each outcome to shared state before returning so consumers see
// results the moment they resolve. A failed item never aborts the rest of
// the batch.
func (r *Runner) Run(ctx context.Context, workspace string, n int, exec func(ctx context.Context, index int) ItemResult) {
	log := r.logger.With(zap.String("workspace", workspace), zap.Int("items", n))
	log.Info("Starting batch")

	for i := 0; i < n; i++ {
		result := exec(ctx, i)
		switch result {
		case ItemSucceeded:
			itemsTotal.WithLabelValues(workspace, "completed").Inc()
			if i < n-1 && r.cooldown > 0 {
				if err := r.sleep(ctx, r.cooldown); err != nil {
					log.Warn("Batch interrupted during cooldown", zap.Int("index", i), zap.Error(err))
					return
				}
			}
		case ItemFailed:
			itemsTotal.WithLabelValues(workspace, "failed").Inc()
			log.Warn("Batch item failed, continuing", zap.Int("index", i))
		case ItemStale:
			itemsTotal.WithLabelValues(workspace, "stale").Inc()
			log.Info("Batch superseded by a newer request, stopping", zap.Int("index", i))
			return
		}
	}
	log.Info("Batch finished")
}
