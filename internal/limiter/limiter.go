// Package limiter ramps the actuated colour toward the smoothed target and decides which
// steps are worth sending to the lights.
//
// A Limiter is owned by a single goroutine (the change task) and is not safe for concurrent use.
package limiter

import (
	"errors"
	"fmt"

	"github.com/scheerer/ambient-video-lights/internal/smoothing"
)

type Options struct {
	// StepLimit is the largest per-channel move in one Step.
	StepLimit int
	// Threshold is the summed absolute channel delta that must be exceeded before a new dispatch.
	Threshold int
}

func DefaultOptions() Options {
	return Options{StepLimit: 3, Threshold: 30}
}

func (o Options) Validate() error {
	var errs []error
	if o.StepLimit < 1 {
		errs = append(errs, fmt.Errorf("step limit %d must be at least 1", o.StepLimit))
	}
	if o.Threshold < 0 {
		errs = append(errs, fmt.Errorf("change threshold %d must not be negative", o.Threshold))
	}
	return errors.Join(errs...)
}

type Limiter struct {
	opts Options

	current    smoothing.RGB
	last       smoothing.RGB
	dispatched bool
}

func New(opts Options) (*Limiter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Limiter{opts: opts}, nil
}

// Step moves every channel of the current colour toward target by at most StepLimit.
func (l *Limiter) Step(target smoothing.RGB) smoothing.RGB {
	l.current = smoothing.RGB{
		R: approach(l.current.R, target.R, l.opts.StepLimit),
		G: approach(l.current.G, target.G, l.opts.StepLimit),
		B: approach(l.current.B, target.B, l.opts.StepLimit),
	}
	return l.current
}

func (l *Limiter) Current() smoothing.RGB {
	return l.current
}

// Gate reports whether candidate differs enough from the last dispatched colour to be sent,
// and records it as dispatched when it does. The first call always passes.
func (l *Limiter) Gate(candidate smoothing.RGB) bool {
	if l.dispatched && Delta(candidate, l.last) <= l.opts.Threshold {
		return false
	}
	l.last = candidate
	l.dispatched = true
	return true
}

// LastDispatched returns the last colour that passed Gate.
func (l *Limiter) LastDispatched() (smoothing.RGB, bool) {
	return l.last, l.dispatched
}

// Delta is the summed absolute per-channel difference.
func Delta(a, b smoothing.RGB) int {
	return abs(a.R-b.R) + abs(a.G-b.G) + abs(a.B-b.B)
}

func approach(current, target, limit int) int {
	switch {
	case current > target:
		return current - min(current-target, limit)
	case current < target:
		return current + min(target-current, limit)
	}
	return current
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
