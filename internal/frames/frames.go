// Package frames supplies RGBA frames to the controller: live screen capture, still images
// or a directory of images played back in name order.
package frames

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"

	"github.com/scheerer/ambient-video-lights/internal/logging"
)

var logger = logging.New("frames")

var ErrNoFrames = errors.New("no frames available")

type Source interface {
	// Next returns the next frame. The image is owned by the caller until the following call.
	Next(ctx context.Context) (*image.RGBA, error)
	Close() error
}

// Config selects and parameterises a Source.
type Config struct {
	Kind         string
	ScreenNumber int
	Path         string
}

func New(cfg Config) (Source, error) {
	switch strings.ToUpper(cfg.Kind) {
	case "SCREEN":
		return NewScreenSource(cfg.ScreenNumber)
	case "FILES":
		return NewFileSource(cfg.Path)
	}
	return nil, fmt.Errorf("unknown frame source: %q", cfg.Kind)
}

// Static returns the same frame on every call.
type Static struct {
	img *image.RGBA
}

func NewStatic(img *image.RGBA) *Static {
	return &Static{img: img}
}

func (s *Static) Next(ctx context.Context) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.img, nil
}

func (s *Static) Close() error { return nil }

// toRGBA converts any decoded image to a zero-origin *image.RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
