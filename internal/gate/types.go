package gate

import "time"

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoLabelRange VetoType = "label_range"
	VetoConfidence VetoType = "confidence_range"
	VetoStale      VetoType = "stale_feedback"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// Gate actions recorded in provenance.
const (
	ActionCommit = "commit"
	ActionReject = "reject"
)

// #region gate-config
// Config holds thresholds for gate decisions.
type Config struct {
	ClassCount    int           // valid labels are [0, ClassCount)
	MinConfidence float64       // hard floor; confidence below this is rejected
	MaxAge        time.Duration // feedback observed longer ago than this is rejected
	WeightFloor   float64       // effective training multiplier band
	WeightCeil    float64
	SourceWeights map[string]float64 // per-source trust in [0,1]; unknown sources get 1
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ClassCount:    3,
		MinConfidence: 0.05,
		MaxAge:        15 * time.Minute,
		WeightFloor:   2.0,
		WeightCeil:    3.5,
	}
}

// #endregion gate-config

// #region feedback
// Feedback is one correction presented to the gate.
type Feedback struct {
	Label      int
	Confidence float64
	Source     string    // collector-declared origin, e.g. "user"
	ObservedAt time.Time // when the corrected behavior happened; zero skips the age check
}

// #endregion feedback

// #region gate-decision
// Decision is the output of the gate evaluation.
type Decision struct {
	Action          string // "commit" | "reject"
	Reason          string
	Vetoed          bool
	VetoSignals     []VetoSignal // non-empty if vetoed
	TrustScore      float64      // 0-1 composite of soft signals
	EffectiveWeight float64      // training multiplier within the configured band
}

// #endregion gate-decision
