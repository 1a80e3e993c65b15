package batch_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medsim-server/internal/batch"
)

const testCooldown = 6 * time.Second

func newTestRunner(waits *[]time.Duration) *batch.Runner {
	sleep := func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return batch.NewRunner(zap.NewNop(), testCooldown, sleep)
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("Items run strictly in order", func(t *testing.T) {
		var waits []time.Duration
		var order []int
		newTestRunner(&waits).Run(ctx, "gallery", 3, func(_ context.Context, i int) batch.ItemResult {
			order = append(order, i)
			return batch.ItemSucceeded
		})
		assert.Equal(t, []int{0, 1, 2}, order)
	})

	t.Run("Cooldown follows each success except the last", func(t *testing.T) {
		var waits []time.Duration
		newTestRunner(&waits).Run(ctx, "gallery", 3, func(_ context.Context, i int) batch.ItemResult {
			return batch.ItemSucceeded
		})
		require.Len(t, waits, 2)
		assert.Equal(t, testCooldown, waits[0])
		assert.Equal(t, testCooldown, waits[1])
	})

	t.Run("Failure skips the cooldown and continues", func(t *testing.T) {
		var waits []time.Duration
		var order []int
		newTestRunner(&waits).Run(ctx, "gallery", 3, func(_ context.Context, i int) batch.ItemResult {
			order = append(order, i)
			if i == 1 {
				return batch.ItemFailed
			}
			return batch.ItemSucceeded
		})

		// The failed middle item never isolates its successors.
		assert.Equal(t, []int{0, 1, 2}, order)
		// Cooldown after item 0 only: item 1 failed, item 2 is last.
		require.Len(t, waits, 1)
		assert.Equal(t, testCooldown, waits[0])
	})

	t.Run("Stale item stops the batch", func(t *testing.T) {
		var waits []time.Duration
		var order []int
		newTestRunner(&waits).Run(ctx, "gallery", 3, func(_ context.Context, i int) batch.ItemResult {
			order = append(order, i)
			if i == 1 {
				return batch.ItemStale
			}
			return batch.ItemSucceeded
		})
		assert.Equal(t, []int{0, 1}, order)
	})

	t.Run("Cancelled context stops between items", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(ctx)
		var order []int
		runner := batch.NewRunner(zap.NewNop(), testCooldown, func(ctx context.Context, _ time.Duration) error {
			return ctx.Err()
		})
		runner.Run(cancelCtx, "gallery", 3, func(_ context.Context, i int) batch.ItemResult {
			order = append(order, i)
			cancel()
			return batch.ItemSucceeded
		})
		assert.Equal(t, []int{0}, order)
	})
}
