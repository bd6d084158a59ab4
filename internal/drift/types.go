package drift

import "fmt"

// #region contract
// Detector observes a stream of prediction outcomes and signals when the
// error distribution has shifted. Drift reports true only for the update
// that fired; the flag clears on the next update.
type Detector interface {
	Update(miss bool)
	Drift() bool
	Reset()
	Width() int
}

// Strategy selects the detector implementation.
const (
	StrategyAdwin = "adwin"
	StrategyChart = "chart"
)

// #endregion contract

// #region config
// Config controls the adaptive-window detector.
type Config struct {
	// Delta is the false-positive rate of the window test.
	Delta float64
	// MaxWidth bounds the window; the oldest bit is dropped beyond it.
	MaxWidth int
	// MinWidth is the width below which no test runs.
	MinWidth int
}

// DefaultConfig returns the standard adaptive-window settings.
func DefaultConfig() Config {
	return Config{
		Delta:    0.002,
		MaxWidth: 1024,
		MinWidth: 10,
	}
}

// ChartConfig controls the run-length chart detector.
type ChartConfig struct {
	// MinSamples is the observation count below which no test runs.
	MinSamples int
	// DriftScale is the multiplier on the minimum deviation at the drift line.
	DriftScale float64
}

// DefaultChartConfig returns the standard chart settings.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		MinSamples: 30,
		DriftScale: 3.0,
	}
}

// #endregion config

// #region factory
// New builds a detector for the named strategy. The chart strategy uses
// DefaultChartConfig; delta applies to the adaptive window only.
func New(strategy string, cfg Config) (Detector, error) {
	switch strategy {
	case "", StrategyAdwin:
		return NewAdaptiveWindow(cfg), nil
	case StrategyChart:
		return NewChart(DefaultChartConfig()), nil
	default:
		return nil, fmt.Errorf("unknown drift strategy %q", strategy)
	}
}

// #endregion factory
