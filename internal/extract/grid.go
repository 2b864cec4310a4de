package extract

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
)

var (
	ErrInvalidGrid        = errors.New("invalid pixel grid")
	ErrInvalidRegion      = errors.New("invalid region")
	ErrRegionOutOfBounds  = errors.New("region outside pixel grid")
	ErrUnknownMode        = errors.New("unknown analysis mode")
	ErrUnknownBias        = errors.New("unknown bias mode")
	errRegionFieldMissing = errors.New(`expected "top,left,bottom,right"`)
)

// PixelGrid is a width x height view over 4-byte RGBA pixels in row-major order.
// Stride is the distance in bytes between the starts of two consecutive rows.
type PixelGrid struct {
	Width  int
	Height int
	Stride int
	Pix    []uint8
}

// NewPixelGrid wraps tightly packed RGBA bytes.
func NewPixelGrid(width, height int, pix []uint8) (PixelGrid, error) {
	g := PixelGrid{Width: width, Height: height, Stride: width * 4, Pix: pix}
	if err := g.Validate(); err != nil {
		return PixelGrid{}, err
	}
	return g, nil
}

// FromRGBA views img without copying. Sub-images are honoured through the stride.
func FromRGBA(img *image.RGBA) PixelGrid {
	b := img.Bounds()
	if b.Empty() {
		return PixelGrid{}
	}
	return PixelGrid{
		Width:  b.Dx(),
		Height: b.Dy(),
		Stride: img.Stride,
		Pix:    img.Pix[img.PixOffset(b.Min.X, b.Min.Y):],
	}
}

func (g PixelGrid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidGrid, g.Width, g.Height)
	}
	if g.Stride < g.Width*4 {
		return fmt.Errorf("%w: stride %d shorter than row of %d pixels", ErrInvalidGrid, g.Stride, g.Width)
	}
	if need := (g.Height-1)*g.Stride + g.Width*4; len(g.Pix) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrInvalidGrid, len(g.Pix), need)
	}
	return nil
}

// At returns the channels of the pixel at (x, y).
func (g PixelGrid) At(x, y int) (r, gr, b, a uint8) {
	i := y*g.Stride + x*4
	p := g.Pix[i : i+4 : i+4]
	return p[0], p[1], p[2], p[3]
}

// Region is a rectangle of pixel coordinates with inclusive bounds.
type Region struct {
	Top    int `json:"top" yaml:"top"`
	Left   int `json:"left" yaml:"left"`
	Bottom int `json:"bottom" yaml:"bottom"`
	Right  int `json:"right" yaml:"right"`
}

// FullRegion covers every pixel of a width x height grid.
func FullRegion(width, height int) Region {
	return Region{Top: 0, Left: 0, Bottom: height - 1, Right: width - 1}
}

// ParseRegion reads "top,left,bottom,right". An empty string yields nil, meaning the full frame.
func ParseRegion(s string) (*Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidRegion, s, errRegionFieldMissing)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidRegion, s, err)
		}
		v[i] = n
	}
	r := &Region{Top: v[0], Left: v[1], Bottom: v[2], Right: v[3]}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the rectangle is non-negative and not inverted. Grid bounds are checked by Fits.
func (r Region) Validate() error {
	if r.Top < 0 || r.Left < 0 {
		return fmt.Errorf("%w: negative origin (%d,%d)", ErrInvalidRegion, r.Left, r.Top)
	}
	if r.Bottom < r.Top || r.Right < r.Left {
		return fmt.Errorf("%w: inverted rectangle %s", ErrInvalidRegion, r)
	}
	return nil
}

// Fits reports whether the region lies inside a width x height grid.
func (r Region) Fits(width, height int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Right >= width || r.Bottom >= height {
		return fmt.Errorf("%w: %s in %dx%d", ErrRegionOutOfBounds, r, width, height)
	}
	return nil
}

func (r Region) Contains(x, y int) bool {
	return x >= r.Left && x <= r.Right && y >= r.Top && y <= r.Bottom
}

func (r Region) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", r.Top, r.Left, r.Bottom, r.Right)
}
