package drift

import "math"

// #region run-chart
// Chart is a run-length process-control alternative to the adaptive window.
// It tracks the running error rate p and its deviation s, remembers the best
// (lowest) p+s seen, and fires when p+s crosses the drift line
// pMin + DriftScale*sMin. Same Update/Drift/Reset contract as AdaptiveWindow.
type Chart struct {
	config ChartConfig

	n     int
	miss  int
	pMin  float64
	sMin  float64
	fired bool
}

// NewChart creates an empty chart detector.
func NewChart(config ChartConfig) *Chart {
	if config.MinSamples <= 0 {
		config.MinSamples = DefaultChartConfig().MinSamples
	}
	if config.DriftScale <= 0 {
		config.DriftScale = DefaultChartConfig().DriftScale
	}
	c := &Chart{config: config}
	c.clear()
	return c
}

// Update folds one outcome into the running rate and tests the drift line.
func (c *Chart) Update(miss bool) {
	c.fired = false

	c.n++
	if miss {
		c.miss++
	}
	if c.n < c.config.MinSamples {
		return
	}

	p := float64(c.miss) / float64(c.n)
	s := math.Sqrt(p * (1.0 - p) / float64(c.n))

	if p+s < c.pMin+c.sMin {
		c.pMin = p
		c.sMin = s
	}

	if p+s > c.pMin+c.config.DriftScale*c.sMin {
		c.clear()
		c.fired = true
	}
}

// Drift reports whether the last Update fired.
func (c *Chart) Drift() bool { return c.fired }

// Reset restores the empty state.
func (c *Chart) Reset() {
	c.clear()
	c.fired = false
}

// Width returns the number of outcomes folded in since the last reset.
func (c *Chart) Width() int { return c.n }

func (c *Chart) clear() {
	c.n = 0
	c.miss = 0
	c.pMin = math.Inf(1)
	c.sMin = math.Inf(1)
}

// #endregion run-chart
