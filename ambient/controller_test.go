package ambient

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/frames"
	"github.com/scheerer/ambient-video-lights/internal/smoothing"
	"github.com/scheerer/ambient-video-lights/lights"
)

type call struct {
	color    lights.Color
	duration time.Duration
}

type fakeSink struct {
	mu     sync.Mutex
	calls  []call
	lights atomic.Int32
}

func newFakeSink(count int) *fakeSink {
	s := &fakeSink{}
	s.lights.Store(int32(count))
	return s
}

func (s *fakeSink) Start(context.Context) {}
func (s *fakeSink) Stop()                 {}
func (s *fakeSink) LightCount() int       { return int(s.lights.Load()) }

func (s *fakeSink) SetColorWithDuration(_ context.Context, c lights.Color, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{color: c, duration: d})
}

func (s *fakeSink) last() (call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return call{}, false
	}
	return s.calls[len(s.calls)-1], true
}

func testConfig(t *testing.T) Config {
	t.Helper()
	config, err := LoadConfig("")
	require.NoError(t, err)
	config.StatsInterval = time.Hour
	return config
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func solidGrid(w, h int, c color.RGBA) extract.PixelGrid {
	return extract.FromRGBA(solidImage(w, h, c))
}

var (
	red  = color.RGBA{R: 200, A: 255}
	gray = color.RGBA{R: 128, G: 128, B: 128, A: 255}
)

func TestController_RedFrameRampsToTarget(t *testing.T) {
	c, err := New(testConfig(t), newFakeSink(1))
	require.NoError(t, err)

	result, err := c.ProcessFrame(solidGrid(9, 9, red))
	require.NoError(t, err)
	assert.Equal(t, red.R, result.Color.R)
	assert.False(t, result.NoSignal())

	for i := 0; i < 10; i++ {
		c.RecordTick()
	}

	for i := 0; i < 66; i++ {
		c.ChangeTick()
	}
	snap := c.Snapshot()
	assert.Equal(t, smoothing.RGB{R: 200}, snap.Target)
	assert.Equal(t, smoothing.RGB{R: 198}, snap.Current, "three per tick, not there yet")

	c.ChangeTick()
	snap = c.Snapshot()
	assert.Equal(t, smoothing.RGB{R: 200}, snap.Current)
	assert.Equal(t, smoothing.RGB{R: 200}, snap.Dispatched)

	// Offered at R = 3, 36, 69, 102, 135, 168 and 200.
	assert.Equal(t, uint64(7), c.Stats().Dispatches)

	for i := 0; i < 20; i++ {
		c.ChangeTick()
	}
	stats := c.Stats()
	assert.Equal(t, uint64(7), stats.Dispatches, "steady state sends nothing")
	assert.Equal(t, uint64(87), stats.Changes)
	assert.Equal(t, uint64(10), stats.Records)
	assert.Equal(t, uint64(1), stats.Frames)
}

func TestController_ChangeBeforeRecordIsNoop(t *testing.T) {
	c, err := New(testConfig(t), newFakeSink(1))
	require.NoError(t, err)

	c.ChangeTick()
	c.RecordTick()

	assert.Equal(t, Stats{}, c.Stats())
	assert.Equal(t, Snapshot{}, c.Snapshot())
}

func TestController_NoSignalHoldKeepsRecentColor(t *testing.T) {
	c, err := New(testConfig(t), newFakeSink(1))
	require.NoError(t, err)

	_, err = c.ProcessFrame(solidGrid(6, 6, red))
	require.NoError(t, err)

	result, err := c.ProcessFrame(solidGrid(6, 6, gray))
	require.NoError(t, err)
	assert.True(t, result.NoSignal())

	snap := c.Snapshot()
	assert.True(t, snap.HasRecent)
	assert.Equal(t, smoothing.RGB{R: 200}, snap.Recent)
	assert.Equal(t, uint64(1), c.Stats().NoSignalFrames)
	assert.Equal(t, uint64(2), c.Stats().Frames)
}

func TestController_NoSignalBlackRecordsBlack(t *testing.T) {
	config := testConfig(t)
	config.NoSignalPolicy = "BLACK"
	c, err := New(config, newFakeSink(1))
	require.NoError(t, err)

	_, err = c.ProcessFrame(solidGrid(6, 6, red))
	require.NoError(t, err)
	_, err = c.ProcessFrame(solidGrid(6, 6, gray))
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.True(t, snap.HasRecent)
	assert.Equal(t, smoothing.RGB{}, snap.Recent)
}

func TestController_RegionOutOfBounds(t *testing.T) {
	config := testConfig(t)
	config.Region = "0,0,20,20"
	c, err := New(config, newFakeSink(1))
	require.NoError(t, err)

	_, err = c.ProcessFrame(solidGrid(10, 10, red))
	assert.ErrorIs(t, err, extract.ErrRegionOutOfBounds)
	assert.Zero(t, c.Stats().Frames)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	config := testConfig(t)
	config.ShortWindowSize = 0
	_, err := New(config, newFakeSink(1))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func fastConfig(t *testing.T) Config {
	config := testConfig(t)
	config.CaptureInterval = 5 * time.Millisecond
	config.RecordInterval = 5 * time.Millisecond
	config.ChangeInterval = 10 * time.Millisecond
	config.StepLimit = 255
	return config
}

func TestController_TasksStartLazily(t *testing.T) {
	sink := newFakeSink(1)
	c, err := New(fastConfig(t), sink)
	require.NoError(t, err)

	c.Start(context.Background())
	t.Cleanup(c.Stop)

	time.Sleep(30 * time.Millisecond)
	runner := c.runner.Load()
	require.NotNil(t, runner)
	assert.Zero(t, runner.Stats(recordTask).Runs)
	assert.Zero(t, runner.Stats(changeTask).Runs)

	c.UpdateColor(smoothing.RGB{R: 200, G: 100})

	assert.Eventually(t, func() bool {
		return runner.Stats(recordTask).Runs > 0 && runner.Stats(changeTask).Runs > 0
	}, time.Second, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		last, ok := sink.last()
		return ok && last.color == lights.Color{Red: 200, Green: 100}
	}, time.Second, 5*time.Millisecond)

	last, _ := sink.last()
	assert.Equal(t, 10*time.Millisecond, last.duration, "transition matches the change cadence")
}

func TestController_StopIsIdempotent(t *testing.T) {
	c, err := New(fastConfig(t), newFakeSink(1))
	require.NoError(t, err)

	c.Start(context.Background())
	c.UpdateColor(smoothing.RGB{B: 90})
	c.Stop()
	c.Stop()

	records := c.Stats().Records
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, records, c.Stats().Records)
}

type countingSource struct {
	frames.Source
	calls atomic.Int32
}

func (s *countingSource) Next(ctx context.Context) (*image.RGBA, error) {
	s.calls.Add(1)
	return s.Source.Next(ctx)
}

func TestRun_DrivesLightsFromFrames(t *testing.T) {
	sink := newFakeSink(1)
	c, err := New(fastConfig(t), sink)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, frames.NewStatic(solidImage(12, 12, red)))
	}()

	assert.Eventually(t, func() bool {
		last, ok := sink.last()
		return ok && last.color == lights.Color{Red: 200}
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.NotZero(t, c.Stats().Frames)
}

func TestRun_WaitsForLights(t *testing.T) {
	sink := newFakeSink(0)
	c, err := New(fastConfig(t), sink)
	require.NoError(t, err)

	source := &countingSource{Source: frames.NewStatic(solidImage(4, 4, red))}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, source) }()

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, source.calls.Load(), "no capture without lights")

	sink.lights.Store(1)
	assert.Eventually(t, func() bool { return source.calls.Load() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_RegionMustFitFirstFrame(t *testing.T) {
	config := fastConfig(t)
	config.Region = "0,0,99,99"
	c, err := New(config, newFakeSink(1))
	require.NoError(t, err)

	err = c.Run(context.Background(), frames.NewStatic(solidImage(10, 10, red)))
	assert.ErrorIs(t, err, extract.ErrRegionOutOfBounds)
}
