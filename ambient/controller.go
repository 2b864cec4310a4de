package ambient

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/dispatch"
	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/limiter"
	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/internal/schedule"
	"github.com/scheerer/ambient-video-lights/internal/smoothing"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("ambient")

const (
	recordTask = "record"
	changeTask = "change"
	statsTask  = "stats"
)

type Stats struct {
	Frames         uint64
	NoSignalFrames uint64
	Records        uint64
	Changes        uint64
	Dispatches     uint64
	Delivered      uint64
	Dropped        uint64
}

// Snapshot is the colour pipeline state at one instant.
type Snapshot struct {
	Recent     smoothing.RGB
	HasRecent  bool
	Target     smoothing.RGB
	Current    smoothing.RGB
	Dispatched smoothing.RGB
}

// Controller turns extracted frame colours into paced light commands.
//
// Frames feed UpdateColor on the capture cadence. The record task samples the most recent
// colour into the smoother, and the change task moves the actuated colour one limited step
// toward the smoothed target and offers it to the lights when it changed enough.
type Controller struct {
	config   Config
	analysis Analysis
	policy   NoSignalPolicy

	extractor  *extract.Extractor
	smoother   *smoothing.Smoother
	dispatcher *dispatch.Dispatcher
	sink       lights.LightService

	// changeMu guards limiter, which only the change tick mutates.
	changeMu sync.Mutex
	limiter  *limiter.Limiter

	recent atomic.Pointer[smoothing.RGB]

	runner     atomic.Pointer[schedule.Runner]
	cancel     context.CancelFunc
	startOnce  sync.Once
	stopOnce   sync.Once
	recordOnce sync.Once
	changeOnce sync.Once

	frames         atomic.Uint64
	noSignalFrames atomic.Uint64
	records        atomic.Uint64
	changes        atomic.Uint64
	dispatches     atomic.Uint64
}

func New(config Config, sink lights.LightService) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	analysis, err := config.Analysis()
	if err != nil {
		return nil, err
	}
	policy, err := config.noSignalPolicy()
	if err != nil {
		return nil, err
	}
	extractor, err := extract.New(analysis.Options)
	if err != nil {
		return nil, err
	}
	smoother, err := smoothing.New(config.SmoothingOptions())
	if err != nil {
		return nil, err
	}
	lim, err := limiter.New(config.LimiterOptions())
	if err != nil {
		return nil, err
	}

	return &Controller{
		config:     config,
		analysis:   analysis,
		policy:     policy,
		extractor:  extractor,
		smoother:   smoother,
		limiter:    lim,
		dispatcher: dispatch.New(sink),
		sink:       sink,
	}, nil
}

// Start enables the periodic tasks and the light dispatcher. The record task itself starts
// with the first colour update and the change task with the first record.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		ctx, c.cancel = context.WithCancel(ctx)
		runner := schedule.NewRunner(ctx)
		c.dispatcher.Start(ctx)
		runner.Every(statsTask, c.config.StatsInterval, func(ctx context.Context) {
			c.logStats()
		})
		c.runner.Store(runner)

		if c.recent.Load() != nil {
			c.startRecording()
		}
	})
}

// Stop cancels the periodic tasks, waits for them and closes the dispatcher.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if runner := c.runner.Load(); runner != nil {
			runner.Wait()
		}
		c.dispatcher.Close()
		c.logStats()
	})
}

// ProcessFrame extracts the frame colour and makes it the most recent colour.
// A frame without usable pixels is handled according to the no-signal policy.
func (c *Controller) ProcessFrame(grid extract.PixelGrid) (extract.Result, error) {
	result, err := c.extractor.Extract(grid, c.analysis.Mode, c.analysis.Bias, c.analysis.Region)
	if err != nil {
		return result, err
	}
	c.frames.Add(1)

	if result.NoSignal() {
		c.noSignalFrames.Add(1)
		if c.policy == HoldOnNoSignal {
			return result, nil
		}
	}

	c.UpdateColor(fromRGBA(result.Color))
	return result, nil
}

// UpdateColor replaces the most recent colour. It never blocks on the smoother.
func (c *Controller) UpdateColor(rgb smoothing.RGB) {
	c.recent.Store(&rgb)
	if c.runner.Load() != nil {
		c.startRecording()
	}
}

func (c *Controller) startRecording() {
	c.recordOnce.Do(func() {
		logger.With(zap.Duration("interval", c.config.RecordInterval)).Info("Starting record task")
		c.runner.Load().Every(recordTask, c.config.RecordInterval, func(ctx context.Context) {
			c.RecordTick()
		})
	})
}

func (c *Controller) startChanging() {
	c.changeOnce.Do(func() {
		logger.With(zap.Duration("interval", c.config.ChangeInterval)).Info("Starting change task")
		c.runner.Load().Every(changeTask, c.config.ChangeInterval, func(ctx context.Context) {
			c.ChangeTick()
		})
	})
}

// RecordTick samples the most recent colour into the smoother.
func (c *Controller) RecordTick() {
	recent := c.recent.Load()
	if recent == nil {
		return
	}
	c.smoother.Record(*recent)
	c.records.Add(1)

	if c.runner.Load() != nil {
		c.startChanging()
	}
}

// ChangeTick recomputes the target, steps toward it and offers the stepped colour to the
// lights when it moved far enough from the last one offered.
func (c *Controller) ChangeTick() {
	target, ok := c.smoother.Target()
	if !ok {
		return
	}

	c.changeMu.Lock()
	current := c.limiter.Step(target)
	send := c.limiter.Gate(current)
	c.changeMu.Unlock()
	c.changes.Add(1)

	if !send {
		return
	}

	cmd := dispatch.Command{Color: toLightColor(current), Duration: c.config.ChangeInterval}
	if c.dispatcher.Offer(cmd) {
		c.dispatches.Add(1)
		logger.With(zap.Stringer("target", target), zap.Stringer("color", cmd.Color)).Debug("Color change offered")
	}
}

func (c *Controller) Stats() Stats {
	d := c.dispatcher.Stats()
	return Stats{
		Frames:         c.frames.Load(),
		NoSignalFrames: c.noSignalFrames.Load(),
		Records:        c.records.Load(),
		Changes:        c.changes.Load(),
		Dispatches:     c.dispatches.Load(),
		Delivered:      d.Delivered,
		Dropped:        d.Dropped,
	}
}

func (c *Controller) Snapshot() Snapshot {
	var s Snapshot
	if recent := c.recent.Load(); recent != nil {
		s.Recent, s.HasRecent = *recent, true
	}
	s.Target = c.smoother.CurrentTarget()

	c.changeMu.Lock()
	s.Current = c.limiter.Current()
	s.Dispatched, _ = c.limiter.LastDispatched()
	c.changeMu.Unlock()
	return s
}

func (c *Controller) logStats() {
	stats := c.Stats()
	snap := c.Snapshot()
	logger.With(
		zap.Uint64("frames", stats.Frames),
		zap.Uint64("noSignalFrames", stats.NoSignalFrames),
		zap.Uint64("records", stats.Records),
		zap.Uint64("changes", stats.Changes),
		zap.Uint64("dispatches", stats.Dispatches),
		zap.Uint64("delivered", stats.Delivered),
		zap.Uint64("dropped", stats.Dropped),
		zap.Stringer("target", snap.Target),
		zap.Stringer("current", snap.Current)).
		Info("Ambient stats")
}

func (c *Controller) checkRegion(grid extract.PixelGrid) error {
	if c.analysis.Region == nil {
		return nil
	}
	if err := c.analysis.Region.Fits(grid.Width, grid.Height); err != nil {
		return fmt.Errorf("REGION %s does not fit a %dx%d frame: %w", c.analysis.Region, grid.Width, grid.Height, err)
	}
	return nil
}

func fromRGBA(c color.RGBA) smoothing.RGB {
	return smoothing.RGB{R: int(c.R), G: int(c.G), B: int(c.B)}
}

func toLightColor(c smoothing.RGB) lights.Color {
	return lights.Color{Red: clamp8(c.R), Green: clamp8(c.G), Blue: clamp8(c.B)}
}

func clamp8(v int) uint8 {
	return uint8(max(0, min(255, v)))
}
