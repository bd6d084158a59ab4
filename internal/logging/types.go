package logging

import "time"

// Trigger types recorded in provenance.
const (
	TriggerSample     = "sample"
	TriggerFeedback   = "feedback"
	TriggerDrift      = "drift"
	TriggerCheckpoint = "checkpoint"
	TriggerImport     = "import"
	TriggerShutdown   = "shutdown"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	ID          int64
	SubjectID   string
	VersionID   string // active model version at decision time, if any
	TurnID      string
	TriggerType string
	VoteJSON    string
	Decision    string // "commit" | "reject"
	Reason      string
	CreatedAt   time.Time
}

// #endregion provenance-entry

// #region vote-record
// VoteRecord captures the complete engine inputs and outputs of a single
// turn. Serialized as JSON into provenance_log.vote_json so a replay can
// reconstruct the turn without the original collector.
type VoteRecord struct {
	TurnID      string    `json:"turn_id"`
	Vector      []float64 `json:"vector"`
	Observation []float64 `json:"observation"`
	Label       int       `json:"label"` // provisional label on samples, corrected label on feedback

	// Tree side as evaluated at runtime.
	TreeLabel        int       `json:"tree_label"`
	TreeConfidence   float64   `json:"tree_confidence"`
	TreeDistribution []float64 `json:"tree_distribution,omitempty"`

	// SPC side.
	SPCAlarmed bool    `json:"spc_alarmed"`
	SPCT2      float64 `json:"spc_t2,omitempty"`
	SPCN       int64   `json:"spc_n"`
	SPCUCL     float64 `json:"spc_ucl,omitempty"`

	// Fused decision and the weights active when it was made.
	Vote       int     `json:"vote"`
	Confidence float64 `json:"confidence"`
	WeightTree float64 `json:"weight_tree"`
	WeightSPC  float64 `json:"weight_spc"`

	Drift      bool `json:"drift,omitempty"`
	SplitCount int  `json:"split_count"`

	// Feedback-only fields.
	FeedbackConfidence float64 `json:"feedback_confidence,omitempty"`
	EffectiveWeight    float64 `json:"effective_weight,omitempty"`
}

// #endregion vote-record
