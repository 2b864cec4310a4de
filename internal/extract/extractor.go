package extract

import (
	"errors"
	"fmt"
	"image/color"
)

// Options tunes the preprocessing shared by every analysis mode.
type Options struct {
	// GrayTolerance discards a pixel when |R-G| or |R-B| is at most this value.
	GrayTolerance int
	// BiasWeight multiplies pixels that fall inside a bias band.
	BiasWeight int
	// GoldenLow/GoldenDenominator and GoldenHigh/GoldenDenominator bound the golden-ratio band.
	GoldenLow         int
	GoldenHigh        int
	GoldenDenominator int
}

func DefaultOptions() Options {
	return Options{
		GrayTolerance:     10,
		BiasWeight:        20,
		GoldenLow:         61,
		GoldenHigh:        100,
		GoldenDenominator: 161,
	}
}

func (o Options) Validate() error {
	var errs []error
	if o.GrayTolerance < 0 || o.GrayTolerance > 255 {
		errs = append(errs, fmt.Errorf("gray tolerance %d outside [0,255]", o.GrayTolerance))
	}
	if o.BiasWeight < 1 {
		errs = append(errs, fmt.Errorf("bias weight %d must be at least 1", o.BiasWeight))
	}
	if o.GoldenDenominator <= 0 {
		errs = append(errs, fmt.Errorf("golden band denominator %d must be positive", o.GoldenDenominator))
	} else if o.GoldenLow < 0 || o.GoldenLow > o.GoldenHigh || o.GoldenHigh > o.GoldenDenominator {
		errs = append(errs, fmt.Errorf("golden band %d/%d..%d/%d must satisfy 0 <= low <= high <= denominator",
			o.GoldenLow, o.GoldenDenominator, o.GoldenHigh, o.GoldenDenominator))
	}
	return errors.Join(errs...)
}

// Result is the outcome of one analysis pass.
type Result struct {
	Color color.RGBA
	// Weight is the summed bias weight of the pixels that survived preprocessing.
	Weight int64
}

// NoSignal reports that every pixel was discarded. Color is black in that case.
func (r Result) NoSignal() bool {
	return r.Weight == 0
}

// Extractor is immutable after construction and safe for concurrent use.
type Extractor struct {
	opts Options
}

func New(opts Options) (*Extractor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Extractor{opts: opts}, nil
}

func (e *Extractor) Options() Options {
	return e.opts
}

// Extract analyses grid and returns its representative colour. A nil region means the whole grid.
func (e *Extractor) Extract(grid PixelGrid, mode AnalysisMode, bias BiasMode, region *Region) (Result, error) {
	if err := grid.Validate(); err != nil {
		return Result{}, err
	}
	full := FullRegion(grid.Width, grid.Height)
	if region != nil {
		if err := region.Fits(grid.Width, grid.Height); err != nil {
			return Result{}, err
		}
		full = *region
	}
	w, err := e.biasFor(bias, grid.Width, grid.Height)
	if err != nil {
		return Result{}, err
	}

	switch mode {
	case PureAverage:
		return e.pureAverage(grid, full, w), nil
	case MostFrequentColor:
		return e.mostFrequentColor(grid, full, w), nil
	case MostFrequentWholeColor:
		return e.mostFrequentWholeColor(grid, full, w), nil
	}
	return Result{}, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
}

// weigher holds the bias bands for one grid size. Bands use inclusive bounds.
type weigher struct {
	weight   int64
	enabled  bool
	xLo, xHi int
	yLo, yHi int
}

func (e *Extractor) biasFor(bias BiasMode, width, height int) (weigher, error) {
	w := weigher{weight: int64(e.opts.BiasWeight)}
	switch bias {
	case NoBias:
	case RuleOfThirds:
		w.enabled = true
		w.xLo, w.xHi = width/3, width/3*2
		w.yLo, w.yHi = height/3, height/3*2
	case GoldenRatio:
		w.enabled = true
		lo, hi, den := e.opts.GoldenLow, e.opts.GoldenHigh, e.opts.GoldenDenominator
		w.xLo, w.xHi = width*lo/den, width*hi/den
		w.yLo, w.yHi = height*lo/den, height*hi/den
	default:
		return weigher{}, fmt.Errorf("%w: %v", ErrUnknownBias, bias)
	}
	return w, nil
}

func (w weigher) at(x, y int) int64 {
	if !w.enabled {
		return 1
	}
	if (x >= w.xLo && x <= w.xHi) || (y >= w.yLo && y <= w.yHi) {
		return w.weight
	}
	return 1
}

func (e *Extractor) isGray(r, g, b uint8) bool {
	tol := e.opts.GrayTolerance
	return abs(int(r)-int(g)) <= tol || abs(int(r)-int(b)) <= tol
}

func (e *Extractor) pureAverage(grid PixelGrid, region Region, bias weigher) Result {
	var sumR, sumG, sumB, sumA, total int64

	for y := region.Top; y <= region.Bottom; y++ {
		for x := region.Left; x <= region.Right; x++ {
			r, g, b, a := grid.At(x, y)
			if r == 0 && g == 0 && b == 0 {
				continue
			}
			if e.isGray(r, g, b) {
				continue
			}
			w := bias.at(x, y)
			sumR += int64(r) * w
			sumG += int64(g) * w
			sumB += int64(b) * w
			sumA += int64(a) * w
			total += w
		}
	}

	if total == 0 {
		return Result{}
	}
	return Result{
		Color: color.RGBA{
			R: uint8(sumR / total),
			G: uint8(sumG / total),
			B: uint8(sumB / total),
			A: uint8(sumA / total),
		},
		Weight: total,
	}
}

func (e *Extractor) mostFrequentColor(grid PixelGrid, region Region, bias weigher) Result {
	var reds, greens, blues, alphas [256]int64
	var total int64

	for y := region.Top; y <= region.Bottom; y++ {
		for x := region.Left; x <= region.Right; x++ {
			r, g, b, a := grid.At(x, y)
			if r == 0 && g == 0 && b == 0 {
				continue
			}
			if e.isGray(r, g, b) {
				continue
			}
			w := bias.at(x, y)
			reds[r] += w
			greens[g] += w
			blues[b] += w
			alphas[a] += w
			total += w
		}
	}

	if total == 0 {
		return Result{}
	}
	return Result{
		Color: color.RGBA{
			R: mostFrequentValue(&reds),
			G: mostFrequentValue(&greens),
			B: mostFrequentValue(&blues),
			A: mostFrequentValue(&alphas),
		},
		Weight: total,
	}
}

// mostFrequentValue scans upwards and only moves on a strictly greater weight,
// so ties go to the lowest channel value.
func mostFrequentValue(counts *[256]int64) uint8 {
	best := 0
	for v := 1; v < len(counts); v++ {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return uint8(best)
}

func (e *Extractor) mostFrequentWholeColor(grid PixelGrid, region Region, bias weigher) Result {
	counts := make(map[uint32]int64)
	// first-seen order of keys, so the tie-break does not depend on map iteration
	var order []uint32
	var total int64

	for y := region.Top; y <= region.Bottom; y++ {
		for x := region.Left; x <= region.Right; x++ {
			r, g, b, a := grid.At(x, y)
			key := PackColor(r, g, b, a)
			if key == 0 {
				continue
			}
			if e.isGray(r, g, b) {
				continue
			}
			w := bias.at(x, y)
			if _, seen := counts[key]; !seen {
				order = append(order, key)
			}
			counts[key] += w
			total += w
		}
	}

	var best uint32
	var bestWeight int64
	for _, key := range order {
		if counts[key] > bestWeight {
			bestWeight = counts[key]
			best = key
		}
	}

	if bestWeight == 0 {
		return Result{}
	}
	r, g, b, a := UnpackColor(best)
	return Result{Color: color.RGBA{R: r, G: g, B: b, A: a}, Weight: total}
}

// PackColor lays the channels out as A<<24 | B<<16 | G<<8 | R.
func PackColor(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(g)<<8 | uint32(r)
}

// UnpackColor reverses PackColor.
func UnpackColor(key uint32) (r, g, b, a uint8) {
	return uint8(key), uint8(key >> 8), uint8(key >> 16), uint8(key >> 24)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
