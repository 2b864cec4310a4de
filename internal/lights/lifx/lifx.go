package lifx

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/pdf/golifx"
	"github.com/pdf/golifx/common"
	"github.com/pdf/golifx/protocol"
	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("lifx")

const (
	kelvin            = 3500
	discoveryInterval = 15 * time.Second
	discoveryTimeout  = 5 * time.Second
)

var blackThreshold = 0.015

type LifxLights struct {
	config Config
	client *golifx.Client

	lightsMu sync.RWMutex
	group    common.Group
}

var _ lights.LightService = (*LifxLights)(nil)

type Config struct {
	GroupName     string
	MaxBrightness float64
	MinBrightness float64
}

func NewLifx(ctx context.Context, config Config) (*LifxLights, error) {
	client, err := golifx.NewClient(&protocol.V2{})
	if err != nil {
		return nil, err
	}

	l := &LifxLights{
		config: config,
		client: client,
	}
	go l.Start(ctx)
	return l, nil
}

func (l *LifxLights) Start(ctx context.Context) {
	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()

	l.client.SetDiscoveryInterval(discoveryInterval)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, discoveryTimeout)
	l.discover(ctxWithTimeout)
	cancel()

	for {
		select {
		case <-ticker.C:
			ctxWithTimeout, cancel := context.WithTimeout(ctx, discoveryTimeout)
			l.discover(ctxWithTimeout)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

func (l *LifxLights) Stop() {
	if err := l.client.Close(); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to close LIFX client")
	}
}

func (l *LifxLights) discover(ctx context.Context) {
	logger.With(zap.String("group", l.config.GroupName)).Debug("LIFX discovery starting...")

	type lookup struct {
		group common.Group
		err   error
	}
	// buffered so the lookup goroutine never leaks when discovery times out
	completed := make(chan lookup, 1)

	go func() {
		g, err := l.client.GetGroupByLabel(l.config.GroupName)
		completed <- lookup{group: g, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.With(zap.Error(ctx.Err())).Warn("LIFX discovery timed out.")
	case res := <-completed:
		if res.err != nil {
			logger.With(zap.String("group", l.config.GroupName), zap.Error(res.err)).Warn("Failed to get LIFX group by label")
			break
		}
		if res.group == nil {
			logger.With(zap.String("group", l.config.GroupName)).Warn("Couldn't discover group.")
			break
		}
		l.lightsMu.Lock()
		changed := l.group == nil
		l.group = res.group
		l.lightsMu.Unlock()
		if changed {
			logger.With(zap.String("group", res.group.GetLabel())).Info("LIFX group found")
		}
	}

	logger.Debug("LIFX discovery complete")
}

func (l *LifxLights) currentGroup() common.Group {
	l.lightsMu.RLock()
	defer l.lightsMu.RUnlock()
	return l.group
}

func (l *LifxLights) LightCount() int {
	g := l.currentGroup()
	if g == nil {
		return 0
	}
	count := 0
	for range g.Lights() {
		count++
	}
	return count
}

func (l *LifxLights) SetColorWithDuration(ctx context.Context, color lights.Color, duration time.Duration) {
	g := l.currentGroup()
	if g == nil {
		logger.With(zap.Stringer("color", color)).Debug("No LIFX group yet, skipping color")
		return
	}
	if ctx.Err() != nil {
		return
	}

	lifxColor := adjustColor(newLifxColor(color), l.config)

	logger.With(zap.Stringer("color", color),
		zap.Any("lifxColor", lifxColor)).
		Debug("Setting LIFX group color")

	if err := g.SetColor(lifxColor, duration); err != nil {
		logger.With(zap.Error(err)).Warn("Failed to set color for LIFX group")
	}
}

func newLifxColor(color lights.Color) common.Color {
	hue, saturation, brightness := color.HSB()

	return common.Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     kelvin,
	}
}

// adjustColor turns near-black off and clamps brightness into the configured range.
func adjustColor(color common.Color, config Config) common.Color {
	threshold := uint16(blackThreshold * 0xFFFF)
	if color.Brightness <= threshold && color.Saturation <= threshold {
		return common.Color{Kelvin: kelvin}
	}

	color.Brightness = uint16(math.Min(config.MaxBrightness*0xFFFF, math.Max(config.MinBrightness*0xFFFF, float64(color.Brightness))))

	return color
}
