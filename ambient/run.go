package ambient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/extract"
	"github.com/scheerer/ambient-video-lights/internal/frames"
)

const overrunWarningInterval = 10 * time.Second

// Run captures frames from source every CAPTURE_INTERVAL and feeds them to the controller
// until ctx is done. Capture is paused while the light service knows no lights.
// It returns an error only when the configured region does not fit the captured frames.
func (c *Controller) Run(ctx context.Context, source frames.Source) error {
	c.Start(ctx)
	defer c.Stop()

	interval := c.config.CaptureInterval
	var lastWarning time.Time
	checked := false

	for {
		if ctx.Err() != nil {
			return nil
		}

		if c.sink.LightCount() == 0 {
			if !sleep(ctx, interval) {
				return nil
			}
			continue
		}

		startTime := time.Now()
		img, err := source.Next(ctx)
		captureDuration := time.Since(startTime)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.With(zap.Error(err)).Error("Failed to capture frame")
			if !sleep(ctx, interval-captureDuration) {
				return nil
			}
			continue
		}

		grid := extract.FromRGBA(img)
		if !checked {
			if err := c.checkRegion(grid); err != nil {
				return err
			}
			checked = true
		}

		analysisStart := time.Now()
		result, err := c.ProcessFrame(grid)
		analysisDuration := time.Since(analysisStart)
		if err != nil {
			logger.With(zap.Error(err)).Error("Failed to extract frame color")
		} else if result.NoSignal() {
			logger.Debug("Frame has no usable pixels")
		}

		totalDuration := time.Since(startTime)
		if totalDuration > interval {
			if time.Since(lastWarning) > overrunWarningInterval {
				logger.With(
					zap.Stringer("captureDuration", captureDuration),
					zap.Stringer("analysisDuration", analysisDuration),
					zap.Stringer("totalDuration", totalDuration)).
					Warn("Cannot keep up with CAPTURE_INTERVAL. Consider a smaller REGION or increasing CAPTURE_INTERVAL.")
				lastWarning = time.Now()
			}
		} else if !sleep(ctx, interval-totalDuration) {
			return nil
		}
	}
}

// sleep waits for d or until ctx is done, reporting whether the loop should go on.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
