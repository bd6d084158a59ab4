package ensemble

import (
	"errors"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// Class labels of the usage domain. The fused vote only discriminates
// overuse vs not-overuse: ClassProductive collapses into ClassNeutral when
// voting.
const (
	ClassProductive = 0
	ClassNeutral    = 1
	ClassOveruse    = 2
)

// ErrBadState is returned when a serialized voter state fails validation.
var ErrBadState = errors.New("malformed voter state")

// #region config
// Config controls vote fusion and feedback-driven reweighting.
type Config struct {
	// WeightTree and WeightSPC are the initial vote weights; their sum is
	// the preserved total mass.
	WeightTree float64
	WeightSPC  float64
	// ReweightInterval is the number of feedback events between weight
	// recomputations.
	ReweightInterval int
	// HistoryCap bounds each model's rolling correctness history.
	HistoryCap int
}

// DefaultConfig returns equal initial trust and a short reweight cadence.
func DefaultConfig() Config {
	return Config{
		WeightTree:       1.0,
		WeightSPC:        1.0,
		ReweightInterval: 10,
		HistoryCap:       50,
	}
}

// #endregion config

// #region results
// VoteResult is one fused decision plus the component votes that formed it.
type VoteResult struct {
	Vote           int     `json:"vote"` // ClassNeutral or ClassOveruse
	Confidence     float64 `json:"confidence"`
	SPCVote        int     `json:"spc_vote"`
	TreeVote       int     `json:"tree_vote"` // raw tree label before remap
	TreeConfidence float64 `json:"tree_confidence"`
	SPCAlarmed     bool    `json:"spc_alarmed"`
	SPCT2          float64 `json:"spc_t2,omitempty"`
}

// FeedbackResult reports the bookkeeping of one feedback event.
type FeedbackResult struct {
	TreeCorrect bool             `json:"tree_correct"`
	SPCCorrect  bool             `json:"spc_correct"`
	Reweighted  bool             `json:"reweighted"`
	WeightTree  float64          `json:"weight_tree"`
	WeightSPC   float64          `json:"weight_spc"`
	Train       tree.TrainResult `json:"train"`
}

// State is the serialized voter bookkeeping.
type State struct {
	WeightTree   float64 `json:"weight_tree"`
	WeightSPC    float64 `json:"weight_spc"`
	TreeHistory  []bool  `json:"tree_history"`
	SPCHistory   []bool  `json:"spc_history"`
	FeedbackSeen int64   `json:"feedback_seen"`
}

// #endregion results
