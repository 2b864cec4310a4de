package smoothing

import (
	"errors"
	"fmt"
	"sync"
)

// RGB holds three 0-255 channel values.
type RGB struct {
	R, G, B int
}

func (c RGB) channels() [3]int {
	return [3]int{c.R, c.G, c.B}
}

func fromChannels(ch [3]int) RGB {
	return RGB{R: ch[0], G: ch[1], B: ch[2]}
}

func (c RGB) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Options tunes the two timescales.
type Options struct {
	// ShortSize is the capacity of each short-term window.
	ShortSize int
	// LongMultiplier sizes each long-term window as ShortSize * LongMultiplier.
	LongMultiplier int
	ShortWeight    float64
	LongWeight     float64
}

func DefaultOptions() Options {
	return Options{
		ShortSize:      30,
		LongMultiplier: 10,
		ShortWeight:    1,
		LongWeight:     1,
	}
}

func (o Options) Validate() error {
	var errs []error
	if o.ShortSize < 1 {
		errs = append(errs, fmt.Errorf("short window size %d must be at least 1", o.ShortSize))
	}
	if o.LongMultiplier < 1 {
		errs = append(errs, fmt.Errorf("long window multiplier %d must be at least 1", o.LongMultiplier))
	}
	if o.ShortWeight < 0 || o.LongWeight < 0 || o.ShortWeight+o.LongWeight <= 0 {
		errs = append(errs, fmt.Errorf("blend weights %v/%v must be non-negative with a positive sum", o.ShortWeight, o.LongWeight))
	}
	return errors.Join(errs...)
}

// Smoother owns the six windows and the target colour. All of it is one consistency unit
// guarded by mu, so Target never sees a half-shifted set of windows.
type Smoother struct {
	opts Options

	mu     sync.Mutex
	short  [3]*Window
	long   [3]*Window
	target RGB
}

func New(opts Options) (*Smoother, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	s := &Smoother{opts: opts}
	for ch := 0; ch < 3; ch++ {
		s.short[ch] = NewWindow(opts.ShortSize)
		s.long[ch] = NewWindow(opts.ShortSize * opts.LongMultiplier)
	}
	return s, nil
}

// Record appends c to the short windows. A full short window first hands its oldest sample
// to the long window, which drops its own oldest sample when it is full too.
func (s *Smoother) Record(c RGB) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch, v := range c.channels() {
		short, long := s.short[ch], s.long[ch]
		if short.Full() {
			if long.Full() {
				long.Pop()
			}
			oldest, _ := short.Pop()
			long.Push(oldest)
		}
		short.Push(v)
	}
}

// Target recomputes the target colour from the windows, stores it and returns it.
// Before the first Record there is nothing to blend and the previous target is kept.
func (s *Smoother) Target() (RGB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.short[0].Len() == 0 {
		return s.target, false
	}

	var next [3]int
	for ch := range next {
		next[ch] = s.blend(s.short[ch], s.long[ch])
	}
	s.target = fromChannels(next)
	return s.target, true
}

// CurrentTarget returns the last computed target without recomputing it.
func (s *Smoother) CurrentTarget() RGB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

func (s *Smoother) blend(short, long *Window) int {
	if long.Len() == 0 {
		return int(short.Mean())
	}
	ws, wl := s.opts.ShortWeight, s.opts.LongWeight
	return int((short.Mean()*ws + long.Mean()*wl) / (ws + wl))
}

// Snapshot is a copy of the smoother state, oldest samples first.
type Snapshot struct {
	Short  [3][]int
	Long   [3][]int
	Target RGB
}

func (s *Smoother) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{Target: s.target}
	for ch := 0; ch < 3; ch++ {
		snap.Short[ch] = s.short[ch].Values()
		snap.Long[ch] = s.long[ch].Values()
	}
	return snap
}
