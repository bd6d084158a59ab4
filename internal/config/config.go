package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/drift"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/spc"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// #region config
// Config is the daemon configuration, read from a YAML file with defaults
// for everything omitted.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Engine  EngineConfig  `yaml:"engine"`
	Gate    GateConfig    `yaml:"gate"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	Addr      string  `yaml:"addr"`
	RateLimit float64 `yaml:"rate_limit"` // samples per second per subject
	RateBurst int     `yaml:"rate_burst"`
}

// StorageConfig holds the sqlite store settings.
type StorageConfig struct {
	Path               string `yaml:"path"`
	CheckpointInterval int    `yaml:"checkpoint_interval"` // samples between checkpoints
}

// EngineConfig holds the per-subject model knobs.
type EngineConfig struct {
	FeatureCount        int     `yaml:"feature_count"`
	ObservationCount    int     `yaml:"observation_count"`
	ClassCount          int     `yaml:"class_count"`
	GracePeriod         int     `yaml:"grace_period"`
	HoeffdingDelta      float64 `yaml:"hoeffding_delta"`
	DriftDelta          float64 `yaml:"drift_delta"`
	DriftStrategy       string  `yaml:"drift_strategy"` // "adwin" | "chart"
	FeedbackWeightFloor float64 `yaml:"feedback_weight_floor"`
	FeedbackWeightCeil  float64 `yaml:"feedback_weight_ceil"`
	FeedbackBufferCap   int     `yaml:"feedback_buffer_cap"`
	SPCBurnIn           int     `yaml:"spc_burn_in"`
	SPCAlpha            float64 `yaml:"spc_alpha"`
	FactorInterval      int     `yaml:"factor_interval"`
	ReweightInterval    int     `yaml:"reweight_interval"`
	HistoryCap          int     `yaml:"history_cap"`
}

// GateConfig holds the feedback gate thresholds.
type GateConfig struct {
	MinConfidence float64 `yaml:"min_confidence"`
	MaxAgeSeconds int     `yaml:"max_age_seconds"`
}

// #endregion config

// #region defaults
// Default returns the canonical configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:      ":8642",
			RateLimit: 4,
			RateBurst: 8,
		},
		Storage: StorageConfig{
			Path:               "usage-sentry.db",
			CheckpointInterval: 500,
		},
		Engine: EngineConfig{
			FeatureCount:        16,
			ObservationCount:    6,
			ClassCount:          3,
			GracePeriod:         200,
			HoeffdingDelta:      0.05,
			DriftDelta:          0.002,
			DriftStrategy:       drift.StrategyAdwin,
			FeedbackWeightFloor: 2.0,
			FeedbackWeightCeil:  3.5,
			FeedbackBufferCap:   100,
			SPCBurnIn:           1000,
			SPCAlpha:            0.001,
			FactorInterval:      50,
			ReweightInterval:    10,
			HistoryCap:          50,
		},
		Gate: GateConfig{
			MinConfidence: 0.05,
			MaxAgeSeconds: 900,
		},
	}
}

// #endregion defaults

// #region load
// Load reads the YAML file at path over the defaults. A missing file is not
// an error; the defaults apply. The merged configuration is validated.
func Load(path string) (Config, error) {
	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return config, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// Validate checks the merged configuration.
func (c Config) Validate() error {
	if c.Server.RateLimit <= 0 {
		return fmt.Errorf("server.rate_limit must be > 0")
	}
	if c.Server.RateBurst < 1 {
		return fmt.Errorf("server.rate_burst must be >= 1")
	}
	if c.Storage.CheckpointInterval < 1 {
		return fmt.Errorf("storage.checkpoint_interval must be >= 1")
	}
	e := c.Engine
	if e.FeatureCount < 1 {
		return fmt.Errorf("engine.feature_count must be >= 1")
	}
	if e.ObservationCount < 1 || e.ObservationCount > e.FeatureCount {
		return fmt.Errorf("engine.observation_count must be in [1, feature_count]")
	}
	if e.ClassCount < 2 {
		return fmt.Errorf("engine.class_count must be >= 2")
	}
	if e.GracePeriod < 1 {
		return fmt.Errorf("engine.grace_period must be >= 1")
	}
	if e.HoeffdingDelta <= 0 || e.HoeffdingDelta >= 1 {
		return fmt.Errorf("engine.hoeffding_delta must be in (0,1)")
	}
	if e.DriftDelta <= 0 || e.DriftDelta >= 1 {
		return fmt.Errorf("engine.drift_delta must be in (0,1)")
	}
	if e.DriftStrategy != drift.StrategyAdwin && e.DriftStrategy != drift.StrategyChart {
		return fmt.Errorf("engine.drift_strategy must be %q or %q", drift.StrategyAdwin, drift.StrategyChart)
	}
	if e.FeedbackWeightFloor < 0 || e.FeedbackWeightCeil < e.FeedbackWeightFloor {
		return fmt.Errorf("engine feedback weight band must satisfy 0 <= floor <= ceil")
	}
	if e.SPCBurnIn <= e.ObservationCount {
		return fmt.Errorf("engine.spc_burn_in must exceed observation_count")
	}
	if e.SPCAlpha <= 0 || e.SPCAlpha >= 1 {
		return fmt.Errorf("engine.spc_alpha must be in (0,1)")
	}
	if e.FactorInterval < 1 {
		return fmt.Errorf("engine.factor_interval must be >= 1")
	}
	if e.ReweightInterval < 1 {
		return fmt.Errorf("engine.reweight_interval must be >= 1")
	}
	if e.HistoryCap < 1 {
		return fmt.Errorf("engine.history_cap must be >= 1")
	}
	if c.Gate.MinConfidence < 0 || c.Gate.MinConfidence > 1 {
		return fmt.Errorf("gate.min_confidence must be in [0,1]")
	}
	if c.Gate.MaxAgeSeconds < 1 {
		return fmt.Errorf("gate.max_age_seconds must be >= 1")
	}
	return nil
}

// #endregion load

// #region converters
// TreeConfig maps the engine section onto the streaming tree. The tree's
// single multiplier is the band ceiling; the gate scales inside the band
// per feedback event.
func (e EngineConfig) TreeConfig() tree.Config {
	return tree.Config{
		FeatureCount:   e.FeatureCount,
		ClassCount:     e.ClassCount,
		GracePeriod:    e.GracePeriod,
		HoeffdingDelta: e.HoeffdingDelta,
		FeedbackWeight: e.FeedbackWeightCeil,
		FeedbackCap:    e.FeedbackBufferCap,
	}
}

// DriftConfig maps the engine section onto the drift detector.
func (e EngineConfig) DriftConfig() drift.Config {
	config := drift.DefaultConfig()
	config.Delta = e.DriftDelta
	return config
}

// SPCConfig maps the engine section onto the SPC detector.
func (e EngineConfig) SPCConfig() spc.Config {
	return spc.Config{
		Dim:            e.ObservationCount,
		BurnIn:         e.SPCBurnIn,
		Alpha:          e.SPCAlpha,
		FactorInterval: e.FactorInterval,
	}
}

// VoterConfig maps the engine section onto the ensemble voter.
func (e EngineConfig) VoterConfig() ensemble.Config {
	config := ensemble.DefaultConfig()
	config.ReweightInterval = e.ReweightInterval
	config.HistoryCap = e.HistoryCap
	return config
}

// GateConfig maps the gate section plus the engine weight band onto the
// feedback gate.
func (c Config) GateConfig() gate.Config {
	return gate.Config{
		ClassCount:    c.Engine.ClassCount,
		MinConfidence: c.Gate.MinConfidence,
		MaxAge:        time.Duration(c.Gate.MaxAgeSeconds) * time.Second,
		WeightFloor:   c.Engine.FeedbackWeightFloor,
		WeightCeil:    c.Engine.FeedbackWeightCeil,
	}
}

// #endregion converters
