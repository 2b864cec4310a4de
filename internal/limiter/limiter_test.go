package limiter

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scheerer/ambient-video-lights/internal/smoothing"
)

func newLimiter(t *testing.T, opts Options) *Limiter {
	t.Helper()
	l, err := New(opts)
	require.NoError(t, err)
	return l
}

func TestStep_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 1000; i++ {
		limit := 1 + rng.Intn(10)
		l := newLimiter(t, Options{StepLimit: limit, Threshold: 30})
		l.current = smoothing.RGB{R: rng.Intn(256), G: rng.Intn(256), B: rng.Intn(256)}
		target := smoothing.RGB{R: rng.Intn(256), G: rng.Intn(256), B: rng.Intn(256)}

		before := l.Current()
		after := l.Step(target)

		for _, ch := range [][3]int{
			{before.R, after.R, target.R},
			{before.G, after.G, target.G},
			{before.B, after.B, target.B},
		} {
			moved := ch[1] - ch[0]
			assert.LessOrEqual(t, abs(moved), limit)
			assert.Equal(t, sign(ch[2]-ch[0]), sign(moved))
			// never overshoots
			assert.LessOrEqual(t, abs(ch[2]-ch[1]), abs(ch[2]-ch[0]))
		}
	}
}

func TestStep_ReachesTarget(t *testing.T) {
	l := newLimiter(t, DefaultOptions())
	target := smoothing.RGB{R: 200, G: 1, B: 0}

	steps := 0
	for l.Current() != target {
		l.Step(target)
		steps++
		require.LessOrEqual(t, steps, 1000)
	}
	// ceil(200 / 3)
	assert.Equal(t, 67, steps)

	l.Step(smoothing.RGB{R: 195, G: 1, B: 0})
	assert.Equal(t, smoothing.RGB{R: 197, G: 1, B: 0}, l.Current())
}

func TestGate(t *testing.T) {
	l := newLimiter(t, DefaultOptions())

	_, ok := l.LastDispatched()
	assert.False(t, ok)

	// first dispatch always passes
	assert.True(t, l.Gate(smoothing.RGB{}))

	assert.False(t, l.Gate(smoothing.RGB{R: 10, G: 10, B: 10}))
	assert.False(t, l.Gate(smoothing.RGB{R: 30}))
	assert.True(t, l.Gate(smoothing.RGB{R: 31}))

	last, ok := l.LastDispatched()
	assert.True(t, ok)
	assert.Equal(t, smoothing.RGB{R: 31}, last)

	// compared with the last dispatched colour, not the last candidate
	assert.False(t, l.Gate(smoothing.RGB{R: 51, G: 10}))
	assert.True(t, l.Gate(smoothing.RGB{R: 52, G: 10}))
}

func TestDelta(t *testing.T) {
	assert.Equal(t, 0, Delta(smoothing.RGB{R: 5}, smoothing.RGB{R: 5}))
	assert.Equal(t, 60, Delta(smoothing.RGB{R: 10, G: 20, B: 30}, smoothing.RGB{R: 20, G: 0, B: 60}))
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	_, err := New(Options{StepLimit: 0, Threshold: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step limit")
	assert.Contains(t, err.Error(), "threshold")
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
