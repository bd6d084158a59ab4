package spc

import "errors"

// ErrObservationLength is returned when an observation does not match the
// detector's configured dimensionality.
var ErrObservationLength = errors.New("observation length mismatch")

// ErrBadState is returned when a serialized detector state fails validation.
var ErrBadState = errors.New("malformed detector state")

// #region config
// Config controls the multivariate control-chart detector.
type Config struct {
	// Dim is the observation dimensionality P, fixed at construction.
	Dim int
	// BurnIn is the observation count at which the control limit is fixed.
	BurnIn int
	// Alpha is the false-alarm rate used for the control limit.
	Alpha float64
	// FactorInterval is the refresh cadence of the cached Cholesky factor.
	FactorInterval int
}

// DefaultConfig returns the canonical six-channel settings.
func DefaultConfig() Config {
	return Config{
		Dim:            6,
		BurnIn:         1000,
		Alpha:          0.001,
		FactorInterval: 50,
	}
}

// #endregion config

// #region snapshot
// Snapshot is the read-only view exposed for display.
type Snapshot struct {
	N    int64     `json:"n"`
	Mean []float64 `json:"mean"`
	UCL  float64   `json:"ucl"`
}

// State is the full serialized detector state. The Cholesky factor is a
// cache and is rebuilt on demand after a load.
type State struct {
	N        int64       `json:"n"`
	Mean     []float64   `json:"mean"`
	Cov      [][]float64 `json:"cov"`
	UCL      float64     `json:"ucl"`
	LimitSet bool        `json:"limit_set"`
}

// #endregion snapshot
