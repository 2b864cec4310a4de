// Package dispatch decouples light I/O from the timers that produce colour commands.
//
// A Dispatcher holds a single pending command. Offer never blocks: a command that has not
// been picked up yet is overwritten by the newer one and counted as dropped, so a slow
// light bridge can delay commands but never queues stale ones.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("dispatch")

type Command struct {
	Color    lights.Color
	Duration time.Duration
}

type Stats struct {
	Offered   uint64
	Delivered uint64
	Dropped   uint64
	Panics    uint64
}

type Dispatcher struct {
	sink lights.LightService

	mu      sync.Mutex
	cond    *sync.Cond
	pending *Command
	closed  bool
	stop    chan struct{}

	offered   atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64

	startOnce sync.Once
	wg        sync.WaitGroup
}

func New(sink lights.LightService) *Dispatcher {
	d := &Dispatcher{sink: sink, stop: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Start runs the delivery goroutine until ctx is done or Close is called. Only the first call has an effect.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.wg.Add(2)
		go func() {
			defer d.wg.Done()
			select {
			case <-ctx.Done():
				d.close()
			case <-d.stop:
			}
		}()
		go func() {
			defer d.wg.Done()
			d.loop(ctx)
		}()
	})
}

// Offer hands cmd to the delivery goroutine. It reports false once the dispatcher is closed.
func (d *Dispatcher) Offer(cmd Command) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}
	if d.pending != nil {
		d.dropped.Add(1)
	}
	d.pending = &cmd
	d.offered.Add(1)
	d.cond.Signal()
	return true
}

// Close stops accepting commands and waits for an in-flight delivery to return.
// A pending command that was never picked up is abandoned.
func (d *Dispatcher) Close() {
	d.close()
	d.wg.Wait()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Offered:   d.offered.Load(),
		Delivered: d.delivered.Load(),
		Dropped:   d.dropped.Load(),
		Panics:    d.panics.Load(),
	}
}

func (d *Dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.pending = nil
	close(d.stop)
	d.cond.Broadcast()
}

func (d *Dispatcher) next() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for d.pending == nil && !d.closed {
		d.cond.Wait()
	}
	if d.closed {
		return Command{}, false
	}
	cmd := *d.pending
	d.pending = nil
	return cmd, true
}

func (d *Dispatcher) loop(ctx context.Context) {
	for {
		cmd, ok := d.next()
		if !ok {
			return
		}
		d.deliver(ctx, cmd)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			logger.With(zap.Any("color", cmd.Color),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack())).
				Error("Light service panicked while setting color")
		}
	}()

	start := time.Now()
	d.sink.SetColorWithDuration(ctx, cmd.Color, cmd.Duration)
	d.delivered.Add(1)

	logger.With(zap.Stringer("color", cmd.Color),
		zap.Duration("transition", cmd.Duration),
		zap.Duration("took", time.Since(start))).
		Debug("Color dispatched")
}
