package engine

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/config"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/drift"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/eval"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/spc"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

var (
	// ErrNoStore is returned when a persistence operation is requested on an
	// engine built without a model store.
	ErrNoStore = errors.New("no model store attached")
	// ErrBadState is returned when an imported engine state fails validation.
	ErrBadState = errors.New("malformed engine state")
)

// #region config
// Config assembles the component settings of one engine instance.
type Config struct {
	Tree          tree.Config
	Drift         drift.Config
	DriftStrategy string
	SPC           spc.Config
	Voter         ensemble.Config
	Gate          gate.Config
	Eval          eval.Config
	// CheckpointInterval is the sample count between periodic checkpoints.
	CheckpointInterval int
}

// ConfigFrom maps the daemon configuration onto one engine composition.
func ConfigFrom(app config.Config) Config {
	return Config{
		Tree:               app.Engine.TreeConfig(),
		Drift:              app.Engine.DriftConfig(),
		DriftStrategy:      app.Engine.DriftStrategy,
		SPC:                app.Engine.SPCConfig(),
		Voter:              app.Engine.VoterConfig(),
		Gate:               app.GateConfig(),
		Eval:               eval.Config{ClassCount: app.Engine.ClassCount},
		CheckpointInterval: app.Storage.CheckpointInterval,
	}
}

// DefaultConfig returns the canonical engine composition.
func DefaultConfig() Config {
	return ConfigFrom(config.Default())
}

// #endregion config

// #region notification
// Notification is the one-way overuse signal pushed to the sink. Delivery
// policy is the receiver's concern; the engine only emits.
type Notification struct {
	SubjectID  string    `json:"subject_id"`
	TurnID     string    `json:"turn_id,omitempty"`
	Vote       int       `json:"vote"`
	Confidence float64   `json:"confidence"`
	SPCAlarmed bool      `json:"spc_alarmed"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationSink receives overuse notifications synchronously and must not
// block.
type NotificationSink func(Notification)

// #endregion notification

// #region results
// SampleResult is the outcome of one processed telemetry sample.
type SampleResult struct {
	TurnID       string              `json:"turn_id"`
	Vote         ensemble.VoteResult `json:"vote"`
	Train        tree.TrainResult    `json:"train"`
	SPC          spc.Snapshot        `json:"spc"`
	SamplesSeen  int64               `json:"samples_seen"`
	Checkpointed bool                `json:"checkpointed,omitempty"`
	VersionID    string              `json:"version_id,omitempty"`
}

// Feedback is one ground-truth correction presented to the engine. The
// embedded sample carries the turn id that pairs the correction with an
// earlier vote.
type Feedback struct {
	Sample     sample.TelemetrySample
	Label      int
	Confidence float64
	Source     string
	ObservedAt time.Time
}

// FeedbackOutcome reports the gate decision and, when committed, the model
// bookkeeping it caused.
type FeedbackOutcome struct {
	TurnID       string
	Decision     gate.Decision
	Result       ensemble.FeedbackResult
	Paired       bool // an earlier vote was waiting for this turn id
	Checkpointed bool
	VersionID    string
}

// Status is the engine inspection surface.
type Status struct {
	SubjectID     string       `json:"subject_id"`
	SamplesSeen   int64        `json:"samples_seen"`
	FeedbackSeen  int64        `json:"feedback_seen"`
	WeightTree    float64      `json:"weight_tree"`
	WeightSPC     float64      `json:"weight_spc"`
	NodeCount     int          `json:"node_count"`
	Depth         int          `json:"depth"`
	SplitCount    int          `json:"split_count"`
	DriftCount    int          `json:"drift_count"`
	InstancesSeen int64        `json:"instances_seen"`
	SPC           spc.Snapshot `json:"spc"`
	Eval          eval.Report  `json:"eval"`
	ActiveVersion string       `json:"active_version,omitempty"`
}

// #endregion results

// #region state
// State is the full exported engine state: tree model, SPC moments and limit,
// and voter bookkeeping. The drift window is transient and reloads empty.
type State struct {
	Tree        tree.Model     `json:"tree"`
	SPC         spc.State      `json:"spc"`
	Voter       ensemble.State `json:"voter"`
	SamplesSeen int64          `json:"samples_seen"`
}

// #endregion state
