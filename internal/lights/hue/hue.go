package hue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/amimof/huego"
	"go.uber.org/zap"

	"github.com/scheerer/ambient-video-lights/internal/logging"
	"github.com/scheerer/ambient-video-lights/lights"
)

var logger = logging.New("hue")

const refreshInterval = 15 * time.Second

var ErrNoUsername = errors.New("hue bridge username is required, register the app on the bridge first")

type Config struct {
	// BridgeHost is discovered through the Hue portal when empty.
	BridgeHost string
	Username   string
	// LightFilter keeps lights whose name contains it. Empty keeps every light.
	LightFilter string
}

type HueLights struct {
	config Config
	bridge *huego.Bridge

	lightsMu sync.RWMutex
	lights   []huego.Light
}

var _ lights.LightService = (*HueLights)(nil)

func NewHue(ctx context.Context, config Config) (*HueLights, error) {
	if config.Username == "" {
		return nil, ErrNoUsername
	}

	host := config.BridgeHost
	if host == "" {
		found, err := huego.Discover()
		if err != nil {
			return nil, fmt.Errorf("discover hue bridge: %w", err)
		}
		host = found.Host
		logger.With(zap.String("host", host)).Info("Hue bridge discovered")
	}

	h := &HueLights{
		config: config,
		bridge: huego.New(host, config.Username),
	}
	go h.Start(ctx)
	return h, nil
}

func (h *HueLights) Start(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	h.refresh()
	for {
		select {
		case <-ticker.C:
			h.refresh()
		case <-ctx.Done():
			return
		}
	}
}

// Stop turns the filtered lights off.
func (h *HueLights) Stop() {
	for _, light := range h.filtered() {
		if _, err := h.bridge.SetLightState(light.ID, huego.State{On: false}); err != nil {
			logger.With(zap.String("light", light.Name), zap.Error(err)).Warn("Failed to turn off Hue light")
		}
	}
}

func (h *HueLights) refresh() {
	all, err := h.bridge.GetLights()
	if err != nil {
		logger.With(zap.Error(err)).Warn("Failed to list Hue lights")
		return
	}

	matched := filterLights(all, h.config.LightFilter)

	h.lightsMu.Lock()
	changed := len(matched) != len(h.lights)
	h.lights = matched
	h.lightsMu.Unlock()

	if changed {
		names := make([]string, 0, len(matched))
		for _, l := range matched {
			names = append(names, l.Name)
		}
		logger.With(zap.String("filter", h.config.LightFilter), zap.Strings("lights", names)).Info("Hue lights updated")
	}
}

func (h *HueLights) filtered() []huego.Light {
	h.lightsMu.RLock()
	defer h.lightsMu.RUnlock()
	return append([]huego.Light(nil), h.lights...)
}

func (h *HueLights) LightCount() int {
	h.lightsMu.RLock()
	defer h.lightsMu.RUnlock()
	return len(h.lights)
}

func (h *HueLights) SetColorWithDuration(ctx context.Context, color lights.Color, duration time.Duration) {
	state := newState(color, duration)

	var wg sync.WaitGroup
	for _, light := range h.filtered() {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(light huego.Light) {
			defer wg.Done()
			logger.With(zap.String("light", light.Name), zap.Stringer("color", color)).Debug("Setting Hue light color")
			if _, err := h.bridge.SetLightState(light.ID, state); err != nil {
				logger.With(zap.String("light", light.Name), zap.Error(err)).Warn("Failed to set color for Hue light")
			}
		}(light)
	}
	wg.Wait()
}

func filterLights(all []huego.Light, contains string) []huego.Light {
	matched := make([]huego.Light, 0, len(all))
	for _, l := range all {
		if strings.Contains(l.Name, contains) {
			matched = append(matched, l)
		}
	}
	return matched
}

// newState maps a colour onto CIE xy with brightness from the largest channel.
// Transition time is expressed in the bridge's 100ms units.
func newState(color lights.Color, duration time.Duration) huego.State {
	transition := uint16(duration / (100 * time.Millisecond))

	_, _, brightness := color.HSB()
	if brightness == 0 {
		return huego.State{On: false, TransitionTime: transition}
	}

	x, y, _ := color.XY()
	bri := uint8(math.Max(1, math.Round(float64(brightness)/0xFFFF*254)))

	return huego.State{
		On:             true,
		Bri:            bri,
		Xy:             []float32{float32(x), float32(y)},
		TransitionTime: transition,
	}
}
