package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/config"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string               `json:"description"`
	Subject     string               `json:"subject"`
	Config      FixtureConfig        `json:"config"`
	Events      []FixtureEvent       `json:"events"`
	Expected    []FixtureExpectation `json:"expected_results,omitempty"`
}

// FixtureChannels mirrors the telemetry channels with JSON tags.
type FixtureChannels struct {
	ClickRate            float64 `json:"click_rate"`
	KeyRate              float64 `json:"key_rate"`
	ScrollRate           float64 `json:"scroll_rate"`
	NavigationRate       float64 `json:"navigation_rate"`
	InteractionFrequency float64 `json:"interaction_frequency"`
	Visibility           float64 `json:"visibility"`
	SessionSeconds       float64 `json:"session_seconds"`
	TabSwitches          float64 `json:"tab_switches"`
	ScrollDepth          float64 `json:"scroll_depth"`
	MediaSeconds         float64 `json:"media_seconds"`
	RequestCount         float64 `json:"request_count"`
	BurstScore           float64 `json:"burst_score"`
	IdleSeconds          float64 `json:"idle_seconds"`
	ActivityScore        float64 `json:"activity_score"`
	DomainDiversity      float64 `json:"domain_diversity"`
	FocusRatio           float64 `json:"focus_ratio"`
}

// FixtureEvent mirrors replay.Event with JSON tags. Confidence and source
// apply to feedback events only.
type FixtureEvent struct {
	Kind       string          `json:"kind"` // "sample" | "feedback"
	TurnID     string          `json:"turn_id,omitempty"`
	Label      int             `json:"label"`
	Confidence float64         `json:"confidence,omitempty"`
	Source     string          `json:"source,omitempty"`
	Channels   FixtureChannels `json:"channels"`
}

// FixtureExpectation captures the expected fused vote for a sample turn.
type FixtureExpectation struct {
	TurnID string `json:"turn_id"`
	Vote   int    `json:"vote"`
}

// FixtureConfig carries the model knobs for a replay run. A zero value
// selects the canonical defaults; anything else must be complete.
type FixtureConfig struct {
	Engine FixtureEngineConfig `json:"engine,omitempty"`
	Gate   FixtureGateConfig   `json:"gate,omitempty"`
}

// FixtureEngineConfig mirrors config.EngineConfig with JSON tags.
type FixtureEngineConfig struct {
	FeatureCount        int     `json:"feature_count"`
	ObservationCount    int     `json:"observation_count"`
	ClassCount          int     `json:"class_count"`
	GracePeriod         int     `json:"grace_period"`
	HoeffdingDelta      float64 `json:"hoeffding_delta"`
	DriftDelta          float64 `json:"drift_delta"`
	DriftStrategy       string  `json:"drift_strategy"`
	FeedbackWeightFloor float64 `json:"feedback_weight_floor"`
	FeedbackWeightCeil  float64 `json:"feedback_weight_ceil"`
	FeedbackBufferCap   int     `json:"feedback_buffer_cap"`
	SPCBurnIn           int     `json:"spc_burn_in"`
	SPCAlpha            float64 `json:"spc_alpha"`
	FactorInterval      int     `json:"factor_interval"`
	ReweightInterval    int     `json:"reweight_interval"`
	HistoryCap          int     `json:"history_cap"`
}

// FixtureGateConfig mirrors config.GateConfig with JSON tags.
type FixtureGateConfig struct {
	MinConfidence float64 `json:"min_confidence"`
	MaxAgeSeconds int     `json:"max_age_seconds"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes the fixture as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// ToSample converts the channel block to a domain telemetry sample.
func (fc *FixtureChannels) ToSample(turnID string) sample.TelemetrySample {
	return sample.TelemetrySample{
		TurnID:               turnID,
		ClickRate:            fc.ClickRate,
		KeyRate:              fc.KeyRate,
		ScrollRate:           fc.ScrollRate,
		NavigationRate:       fc.NavigationRate,
		InteractionFrequency: fc.InteractionFrequency,
		Visibility:           fc.Visibility,
		SessionSeconds:       fc.SessionSeconds,
		TabSwitches:          fc.TabSwitches,
		ScrollDepth:          fc.ScrollDepth,
		MediaSeconds:         fc.MediaSeconds,
		RequestCount:         fc.RequestCount,
		BurstScore:           fc.BurstScore,
		IdleSeconds:          fc.IdleSeconds,
		ActivityScore:        fc.ActivityScore,
		DomainDiversity:      fc.DomainDiversity,
		FocusRatio:           fc.FocusRatio,
	}
}

// ToEvent converts a FixtureEvent to a domain Event.
func (fe *FixtureEvent) ToEvent() Event {
	return Event{
		Kind:       fe.Kind,
		Sample:     fe.Channels.ToSample(fe.TurnID),
		Label:      fe.Label,
		Confidence: fe.Confidence,
		Source:     fe.Source,
	}
}

// ToEngineConfig maps the fixture config onto the live engine config. Zero
// sections fall back to the canonical defaults; a partial section is an
// error surfaced by validation.
func (fc *FixtureConfig) ToEngineConfig() (engine.Config, error) {
	app := config.Default()
	if fc.Engine != (FixtureEngineConfig{}) {
		app.Engine = config.EngineConfig{
			FeatureCount:        fc.Engine.FeatureCount,
			ObservationCount:    fc.Engine.ObservationCount,
			ClassCount:          fc.Engine.ClassCount,
			GracePeriod:         fc.Engine.GracePeriod,
			HoeffdingDelta:      fc.Engine.HoeffdingDelta,
			DriftDelta:          fc.Engine.DriftDelta,
			DriftStrategy:       fc.Engine.DriftStrategy,
			FeedbackWeightFloor: fc.Engine.FeedbackWeightFloor,
			FeedbackWeightCeil:  fc.Engine.FeedbackWeightCeil,
			FeedbackBufferCap:   fc.Engine.FeedbackBufferCap,
			SPCBurnIn:           fc.Engine.SPCBurnIn,
			SPCAlpha:            fc.Engine.SPCAlpha,
			FactorInterval:      fc.Engine.FactorInterval,
			ReweightInterval:    fc.Engine.ReweightInterval,
			HistoryCap:          fc.Engine.HistoryCap,
		}
	}
	if fc.Gate != (FixtureGateConfig{}) {
		app.Gate = config.GateConfig{
			MinConfidence: fc.Gate.MinConfidence,
			MaxAgeSeconds: fc.Gate.MaxAgeSeconds,
		}
	}
	if err := app.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("fixture config: %w", err)
	}
	return engine.ConfigFrom(app), nil
}

// EventFromRecord rebuilds a fixture event from a recorded vote. The vector
// layout is the canonical channel order; feedback records carry the
// corrected label and its confidence.
func EventFromRecord(trigger string, rec logging.VoteRecord) (FixtureEvent, error) {
	var kind string
	switch trigger {
	case logging.TriggerSample:
		kind = EventSample
	case logging.TriggerFeedback:
		kind = EventFeedback
	default:
		return FixtureEvent{}, fmt.Errorf("trigger %q does not describe an event", trigger)
	}
	if len(rec.Vector) != sample.FeatureCount {
		return FixtureEvent{}, fmt.Errorf("vector length %d, want %d", len(rec.Vector), sample.FeatureCount)
	}
	v := rec.Vector
	return FixtureEvent{
		Kind:       kind,
		TurnID:     rec.TurnID,
		Label:      rec.Label,
		Confidence: rec.FeedbackConfidence,
		Channels: FixtureChannels{
			ClickRate:            v[0],
			KeyRate:              v[1],
			ScrollRate:           v[2],
			NavigationRate:       v[3],
			InteractionFrequency: v[4],
			Visibility:           v[5],
			SessionSeconds:       v[6],
			TabSwitches:          v[7],
			ScrollDepth:          v[8],
			MediaSeconds:         v[9],
			RequestCount:         v[10],
			BurstScore:           v[11],
			IdleSeconds:          v[12],
			ActivityScore:        v[13],
			DomainDiversity:      v[14],
			FocusRatio:           v[15],
		},
	}, nil
}

// #endregion fixture-loader
