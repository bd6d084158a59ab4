package drift

import "math"

// #region adaptive-window
// AdaptiveWindow keeps a bounded window of recent error bits and fires when
// the means of two sub-windows diverge beyond the delta-derived threshold.
// On firing it discards everything up to the cut point.
type AdaptiveWindow struct {
	config Config

	bits  []uint8
	total int
	fired bool
}

// NewAdaptiveWindow creates an empty window with the given configuration.
func NewAdaptiveWindow(config Config) *AdaptiveWindow {
	if config.MaxWidth <= 0 {
		config.MaxWidth = DefaultConfig().MaxWidth
	}
	if config.MinWidth <= 0 {
		config.MinWidth = DefaultConfig().MinWidth
	}
	if config.Delta <= 0 {
		config.Delta = DefaultConfig().Delta
	}
	return &AdaptiveWindow{
		config: config,
		bits:   make([]uint8, 0, config.MaxWidth),
	}
}

// Update appends one outcome (miss=true for a wrong prediction) and runs the
// sub-window test. Windows narrower than MinWidth are not tested. A firing
// drains: bits up to the cut are discarded and the remainder re-tested until
// no cut survives, so one genuine shift fires exactly once even while the
// error run continues.
func (w *AdaptiveWindow) Update(miss bool) {
	w.fired = false

	bit := uint8(0)
	if miss {
		bit = 1
	}
	w.bits = append(w.bits, bit)
	w.total += int(bit)

	// Bounded window: drop the oldest bit beyond capacity.
	if len(w.bits) > w.config.MaxWidth {
		w.total -= int(w.bits[0])
		w.bits = w.bits[1:]
	}

	for {
		cut := w.findCut()
		if cut < 0 {
			return
		}
		w.discard(cut + 1)
		w.fired = true
	}
}

// findCut scans the split points and returns the index of the last bit in
// the first left sub-window whose mean diverges beyond the threshold, or -1
// when no split qualifies. Each sub-window keeps at least MinWidth/2 bits.
func (w *AdaptiveWindow) findCut() int {
	width := len(w.bits)
	if width < w.config.MinWidth {
		return -1
	}

	minSub := w.config.MinWidth / 2
	leftSum := 0
	for i := 0; i < width-minSub; i++ {
		leftSum += int(w.bits[i])
		nLeft := i + 1
		if nLeft < minSub {
			continue
		}
		nRight := width - nLeft

		meanLeft := float64(leftSum) / float64(nLeft)
		meanRight := float64(w.total-leftSum) / float64(nRight)
		gap := math.Abs(meanLeft - meanRight)

		// Harmonic-mean cut threshold for the configured false-positive rate.
		m := 1.0 / (1.0/float64(nLeft) + 1.0/float64(nRight))
		eps := math.Sqrt(1.0 / (2.0 * m) * math.Log(4.0*float64(width)/w.config.Delta))

		if gap > eps {
			return i
		}
	}
	return -1
}

// Drift reports whether the last Update fired.
func (w *AdaptiveWindow) Drift() bool { return w.fired }

// Reset empties the window and clears the drift flag.
func (w *AdaptiveWindow) Reset() {
	w.bits = w.bits[:0]
	w.total = 0
	w.fired = false
}

// Width returns the current window width.
func (w *AdaptiveWindow) Width() int { return len(w.bits) }

// discard drops the oldest n bits, keeping totals consistent.
func (w *AdaptiveWindow) discard(n int) {
	for i := 0; i < n; i++ {
		w.total -= int(w.bits[i])
	}
	w.bits = append(w.bits[:0], w.bits[n:]...)
}

// #endregion adaptive-window
