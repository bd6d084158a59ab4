package spc

import "fmt"

// #region detector
// Detector flags observations whose channel combination deviates from the
// incrementally learned mean/covariance structure. Moments update on every
// observation; the control limit is fixed once at burn-in and only an
// explicit Reset clears the model.
type Detector struct {
	config Config

	n    int64
	mean []float64
	cov  [][]float64 // unnormalized accumulator; scaled by 1/(n-1) when factored

	factor [][]float64 // cached Cholesky factor of the scaled covariance

	ucl      float64
	limitSet bool
}

// New creates an empty detector for the configured dimensionality.
func New(config Config) *Detector {
	def := DefaultConfig()
	if config.Dim <= 0 {
		config.Dim = def.Dim
	}
	if config.BurnIn <= 0 {
		config.BurnIn = def.BurnIn
	}
	if config.Alpha <= 0 || config.Alpha >= 1 {
		config.Alpha = def.Alpha
	}
	if config.FactorInterval <= 0 {
		config.FactorInterval = def.FactorInterval
	}
	d := &Detector{config: config}
	d.alloc()
	return d
}

// Dim returns the configured observation dimensionality.
func (d *Detector) Dim() int { return d.config.Dim }

// Ingest folds one observation into the moments and tests it against the
// control limit. No alarm is possible before burn-in or while no covariance
// factor can be built.
func (d *Detector) Ingest(obs []float64) (bool, error) {
	if len(obs) != d.config.Dim {
		return false, fmt.Errorf("ingest: %w: got %d, want %d",
			ErrObservationLength, len(obs), d.config.Dim)
	}

	d.n++

	// Pre-update deviations drive both the covariance accumulator and the
	// mean update; the upper triangle is computed and mirrored.
	delta := make([]float64, d.config.Dim)
	for i, x := range obs {
		delta[i] = x - d.mean[i]
	}
	ratio := float64(d.n-1) / float64(d.n)
	for r := 0; r < d.config.Dim; r++ {
		for c := r; c < d.config.Dim; c++ {
			d.cov[r][c] += delta[r] * delta[c] * ratio
			if c != r {
				d.cov[c][r] = d.cov[r][c]
			}
		}
	}
	for i := range d.mean {
		d.mean[i] += delta[i] / float64(d.n)
	}

	if d.n >= 2 && d.n%int64(d.config.FactorInterval) == 0 {
		d.refreshFactor()
	}

	if !d.limitSet && d.n >= int64(d.config.BurnIn) {
		d.computeLimit()
	}

	t2, ok := d.statistic(obs)
	if !ok {
		return false, nil
	}

	alarmed := d.limitSet && d.n > int64(d.config.Dim) && t2 > d.ucl
	return alarmed, nil
}

// Statistic computes the deviation statistic of an observation against the
// current moments without updating them. ok=false while no factor exists
// (fewer than two samples, or a degenerate covariance with no prior factor).
func (d *Detector) Statistic(obs []float64) (float64, bool) {
	if len(obs) != d.config.Dim {
		return 0, false
	}
	return d.statistic(obs)
}

// Snapshot returns a read-only copy of the display surface.
func (d *Detector) Snapshot() Snapshot {
	mean := make([]float64, len(d.mean))
	copy(mean, d.mean)
	return Snapshot{N: d.n, Mean: mean, UCL: d.ucl}
}

// Reset discards all moments, the cached factor, and the control limit.
func (d *Detector) Reset() {
	d.n = 0
	d.alloc()
	d.factor = nil
	d.ucl = 0
	d.limitSet = false
}

// #endregion detector

// #region serialization
// Export copies the full detector state for persistence.
func (d *Detector) Export() State {
	mean := make([]float64, len(d.mean))
	copy(mean, d.mean)
	cov := make([][]float64, len(d.cov))
	for r := range d.cov {
		cov[r] = make([]float64, len(d.cov[r]))
		copy(cov[r], d.cov[r])
	}
	return State{N: d.n, Mean: mean, Cov: cov, UCL: d.ucl, LimitSet: d.limitSet}
}

// Load restores a previously exported state. The Cholesky factor is not part
// of the state; it is rebuilt on demand.
func (d *Detector) Load(s State) error {
	if s.N < 0 {
		return fmt.Errorf("load: %w: negative sample count", ErrBadState)
	}
	if len(s.Mean) != d.config.Dim || len(s.Cov) != d.config.Dim {
		return fmt.Errorf("load: %w: got dim %d, want %d",
			ErrBadState, len(s.Mean), d.config.Dim)
	}
	for r := range s.Cov {
		if len(s.Cov[r]) != d.config.Dim {
			return fmt.Errorf("load: %w: ragged covariance row %d", ErrBadState, r)
		}
	}

	d.n = s.N
	copy(d.mean, s.Mean)
	for r := range s.Cov {
		copy(d.cov[r], s.Cov[r])
	}
	d.factor = nil
	d.ucl = s.UCL
	d.limitSet = s.LimitSet
	return nil
}

// #endregion serialization

// #region internals
func (d *Detector) alloc() {
	d.mean = make([]float64, d.config.Dim)
	d.cov = make([][]float64, d.config.Dim)
	for i := range d.cov {
		d.cov[i] = make([]float64, d.config.Dim)
	}
}

func (d *Detector) statistic(obs []float64) (float64, bool) {
	if d.factor == nil {
		if d.n < 2 {
			return 0, false
		}
		d.refreshFactor()
		if d.factor == nil {
			return 0, false
		}
	}

	diff := make([]float64, d.config.Dim)
	for i, x := range obs {
		diff[i] = x - d.mean[i]
	}
	y := forwardSolve(d.factor, diff)

	t2 := 0.0
	for _, v := range y {
		t2 += v * v
	}
	return t2, true
}

// refreshFactor rebuilds the cached factor from the scaled covariance. A
// failed decomposition (constant or collinear channels) keeps the previous
// factor.
func (d *Detector) refreshFactor() {
	denom := float64(d.n - 1)
	scaled := make([][]float64, d.config.Dim)
	for r := range scaled {
		scaled[r] = make([]float64, d.config.Dim)
		for c := range scaled[r] {
			scaled[r][c] = d.cov[r][c] / denom
		}
	}
	if l, ok := cholesky(scaled); ok {
		d.factor = l
	}
}

// computeLimit fixes the control limit with the Phase-II scaling of the
// F quantile at the configured false-alarm rate.
func (d *Detector) computeLimit() {
	n := float64(d.n)
	p := float64(d.config.Dim)
	fq := fQuantile(1.0-d.config.Alpha, p, n-p)
	d.ucl = p * (n - 1.0) / (n - p) * fq
	d.limitSet = true
}

// #endregion internals
