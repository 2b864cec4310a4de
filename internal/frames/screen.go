package frames

import (
	"context"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// ScreenSource captures one display per call.
type ScreenSource struct {
	display int
	bounds  image.Rectangle
}

func NewScreenSource(display int) (*ScreenSource, error) {
	n := screenshot.NumActiveDisplays()
	if display < 0 || display >= n {
		return nil, fmt.Errorf("screen %d not found, %d active displays", display, n)
	}
	bounds := screenshot.GetDisplayBounds(display)
	logger.With(zap.Int("screen", display), zap.Stringer("bounds", bounds)).Info("Capturing screen")
	return &ScreenSource{display: display, bounds: bounds}, nil
}

func (s *ScreenSource) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureDisplay(s.display)
	if err != nil {
		return nil, fmt.Errorf("capture screen %d: %w", s.display, err)
	}
	return toRGBA(img), nil
}

func (s *ScreenSource) Close() error { return nil }
