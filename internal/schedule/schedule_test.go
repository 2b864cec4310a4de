package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvery_RunsImmediatelyAndRepeats(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx)

	var calls atomic.Int64
	r.Every("count", time.Hour, func(context.Context) { calls.Add(1) })
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	r.Every("fast", 2*time.Millisecond, func(context.Context) {})
	assert.Eventually(t, func() bool { return r.Stats("fast").Runs >= 5 }, time.Second, time.Millisecond)

	cancel()
	r.Wait()
	assert.Equal(t, int64(1), calls.Load())
}

func TestEvery_SurvivesPanics(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := NewRunner(ctx)

	var calls atomic.Int64
	r.Every("flaky", 2*time.Millisecond, func(context.Context) {
		if calls.Add(1)%2 == 1 {
			panic("tick failed")
		}
	})

	assert.Eventually(t, func() bool { return calls.Load() >= 6 }, time.Second, time.Millisecond)
	stats := r.Stats("flaky")
	assert.GreaterOrEqual(t, stats.Panics, uint64(3))

	cancel()
	r.Wait()
}

func TestEvery_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRunner(ctx)
	cancel()

	var calls atomic.Int64
	r.Every("never", time.Millisecond, func(context.Context) { calls.Add(1) })
	r.Wait()
	assert.Zero(t, calls.Load())
	assert.Equal(t, TaskStats{}, r.Stats("unknown"))
}
