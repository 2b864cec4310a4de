package smoothing

// Window is a fixed-capacity FIFO of channel samples. Push appends at the tail; callers
// make room first, Push never evicts on its own.
type Window struct {
	buf  []int
	head int
	size int
	sum  int64
}

func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{buf: make([]int, capacity)}
}

func (w *Window) Len() int   { return w.size }
func (w *Window) Cap() int   { return len(w.buf) }
func (w *Window) Full() bool { return w.size == len(w.buf) }

// Push appends v. It reports false without storing anything when the window is full.
func (w *Window) Push(v int) bool {
	if w.Full() {
		return false
	}
	w.buf[(w.head+w.size)%len(w.buf)] = v
	w.size++
	w.sum += int64(v)
	return true
}

// Pop removes and returns the oldest sample.
func (w *Window) Pop() (int, bool) {
	if w.size == 0 {
		return 0, false
	}
	v := w.buf[w.head]
	w.head = (w.head + 1) % len(w.buf)
	w.size--
	w.sum -= int64(v)
	return v, true
}

// Mean is the arithmetic mean of the held samples, 0 when empty.
func (w *Window) Mean() float64 {
	if w.size == 0 {
		return 0
	}
	return float64(w.sum) / float64(w.size)
}

// Values copies the samples oldest first.
func (w *Window) Values() []int {
	out := make([]int, w.size)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
