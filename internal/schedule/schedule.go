// Package schedule runs periodic tasks that survive their own panics.
package schedule

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/logging"
)

var logger = logging.New("schedule")

type TaskStats struct {
	Runs   uint64
	Panics uint64
}

type task struct {
	runs   atomic.Uint64
	panics atomic.Uint64
}

// Runner owns a set of periodic tasks bound to one context.
type Runner struct {
	ctx context.Context
	wg  sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*task
}

func NewRunner(ctx context.Context) *Runner {
	return &Runner{
		ctx:   ctx,
		tasks: make(map[string]*task),
	}
}

// Every runs fn right away and then once per interval until the runner's context is done.
// A panic inside fn is logged and the schedule carries on with the next tick.
func (r *Runner) Every(name string, interval time.Duration, fn func(ctx context.Context)) {
	t := &task{}
	r.mu.Lock()
	r.tasks[name] = t
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		logger.With(zap.String("task", name), zap.Duration("interval", interval)).Debug("Periodic task started")

		for {
			if r.ctx.Err() != nil {
				return
			}
			r.run(name, t, fn)

			select {
			case <-ticker.C:
			case <-r.ctx.Done():
				logger.With(zap.String("task", name)).Debug("Periodic task stopped")
				return
			}
		}
	}()
}

// Wait blocks until every task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) Stats(name string) TaskStats {
	r.mu.Lock()
	t, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return TaskStats{}
	}
	return TaskStats{Runs: t.runs.Load(), Panics: t.panics.Load()}
}

func (r *Runner) run(name string, t *task, fn func(ctx context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			t.panics.Add(1)
			logger.With(zap.String("task", name),
				zap.String("panic", fmt.Sprint(p)),
				zap.ByteString("stack", debug.Stack())).
				Error("Periodic task panicked, continuing on next tick")
		}
	}()
	t.runs.Add(1)
	fn(r.ctx)
}
