package signals

import "math"

// #region window
// window is a capacity-bounded FIFO of float samples.
type window struct {
	capacity int
	values   []float64
}

func newWindow(capacity int) window {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}
	return window{capacity: capacity, values: make([]float64, 0, capacity)}
}

func (w *window) push(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.capacity-1]
	}
	w.values = append(w.values, v)
}

func (w *window) len() int { return len(w.values) }

func (w *window) reset() { w.values = w.values[:0] }

func (w *window) snapshot() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}

// variance is the population variance of the window.
func (w *window) variance() float64 {
	n := len(w.values)
	if n == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	mean := sum / float64(n)
	var sq float64
	for _, v := range w.values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(n)
}

func (w *window) stddev() float64 {
	return math.Sqrt(w.variance())
}

// #endregion window
