package lights

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(c.Red) / 255.0,
		G: float64(c.Green) / 255.0,
		B: float64(c.Blue) / 255.0,
	}
}

// HSB converts to hue, saturation and brightness each scaled to 0-65535, the range LIFX uses.
// Brightness is the largest channel.
func (c Color) HSB() (hue, saturation, brightness uint16) {
	h, s, v := c.colorful().Hsv()
	return scale16(h / 360.0), scale16(s), scale16(v)
}

// XY converts to CIE 1931 chromaticity plus relative luminance Y in [0,1], as Hue bridges expect.
func (c Color) XY() (x, y, luminance float64) {
	return c.colorful().Xyy()
}

// IsBlackish reports whether the colour is dark and unsaturated enough to be treated as "off".
func (c Color) IsBlackish(threshold float64) bool {
	_, s, v := c.colorful().Hsv()
	return v <= threshold && s <= threshold
}

func scale16(f float64) uint16 {
	return uint16(math.Round(math.Min(1, math.Max(0, f)) * 0xFFFF))
}
