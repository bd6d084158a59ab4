package sample

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Canonical vector layout. The collector computes the channel values; this
// package only orders and validates them.
const (
	FeatureCount     = 16
	ObservationCount = 6

	// observationOffset is the vector index of the first raw channel
	// watched by the SPC detector.
	observationOffset = 6
)

// ErrBadSample is returned when a telemetry sample fails boundary validation.
var ErrBadSample = errors.New("malformed telemetry sample")

// channelNames maps vector indices to their wire names for error messages.
var channelNames = [FeatureCount]string{
	"click_rate", "key_rate", "scroll_rate", "navigation_rate",
	"interaction_frequency", "visibility",
	"session_seconds", "tab_switches", "scroll_depth",
	"media_seconds", "request_count", "burst_score",
	"idle_seconds", "activity_score", "domain_diversity", "focus_ratio",
}

// #region sample
// TelemetrySample is the JSON shape the collector posts once per turn.
type TelemetrySample struct {
	TurnID     string    `json:"turn_id,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`

	// Interaction rates, events per minute.
	ClickRate      float64 `json:"click_rate"`
	KeyRate        float64 `json:"key_rate"`
	ScrollRate     float64 `json:"scroll_rate"`
	NavigationRate float64 `json:"navigation_rate"`

	InteractionFrequency float64 `json:"interaction_frequency"`
	Visibility           float64 `json:"visibility"` // 0 or 1

	// Raw channels watched by the SPC detector.
	SessionSeconds float64 `json:"session_seconds"`
	TabSwitches    float64 `json:"tab_switches"`
	ScrollDepth    float64 `json:"scroll_depth"`
	MediaSeconds   float64 `json:"media_seconds"`
	RequestCount   float64 `json:"request_count"`
	BurstScore     float64 `json:"burst_score"`

	IdleSeconds     float64 `json:"idle_seconds"`
	ActivityScore   float64 `json:"activity_score"`
	DomainDiversity float64 `json:"domain_diversity"`
	FocusRatio      float64 `json:"focus_ratio"`
}

// #endregion sample

// #region assembly

// Vector returns the ordered feature vector.
func (s *TelemetrySample) Vector() []float64 {
	return []float64{
		s.ClickRate, s.KeyRate, s.ScrollRate, s.NavigationRate,
		s.InteractionFrequency, s.Visibility,
		s.SessionSeconds, s.TabSwitches, s.ScrollDepth,
		s.MediaSeconds, s.RequestCount, s.BurstScore,
		s.IdleSeconds, s.ActivityScore, s.DomainDiversity, s.FocusRatio,
	}
}

// Observation returns the SPC observation: the raw channel block of the
// vector.
func (s *TelemetrySample) Observation() []float64 {
	return []float64{
		s.SessionSeconds, s.TabSwitches, s.ScrollDepth,
		s.MediaSeconds, s.RequestCount, s.BurstScore,
	}
}

// Assemble validates the sample at the boundary and produces the feature
// vector and the SPC observation. Non-finite channels, negative rates, and
// a visibility flag outside {0, 1} are rejected.
func Assemble(s *TelemetrySample) (vector, observation []float64, err error) {
	vector = s.Vector()
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, fmt.Errorf("%w: %s not finite", ErrBadSample, channelNames[i])
		}
	}
	for i := 0; i <= 4; i++ {
		if vector[i] < 0 {
			return nil, nil, fmt.Errorf("%w: negative %s", ErrBadSample, channelNames[i])
		}
	}
	if v := vector[5]; v != 0 && v != 1 {
		return nil, nil, fmt.Errorf("%w: visibility must be 0 or 1, got %v", ErrBadSample, v)
	}
	return vector, s.Observation(), nil
}

// #endregion assembly
