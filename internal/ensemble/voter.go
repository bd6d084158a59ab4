package ensemble

import (
	"fmt"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/spc"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// #region voter
// Voter fuses the tree's class vote with the SPC alarm under adaptive
// weights. Each feedback event records which model was right; every
// ReweightInterval events the weights are renormalized from the two rolling
// accuracies while their total mass stays fixed.
type Voter struct {
	config Config

	tree *tree.Tree
	spc  *spc.Detector

	weightTree float64
	weightSPC  float64

	treeHistory  []bool
	spcHistory   []bool
	feedbackSeen int64

	notify func(VoteResult)
}

// New builds a voter over an existing tree and SPC detector. notify, when
// non-nil, is invoked synchronously for every overuse vote and must not
// block.
func New(config Config, t *tree.Tree, d *spc.Detector, notify func(VoteResult)) *Voter {
	if config.WeightTree <= 0 {
		config.WeightTree = DefaultConfig().WeightTree
	}
	if config.WeightSPC <= 0 {
		config.WeightSPC = DefaultConfig().WeightSPC
	}
	if config.ReweightInterval <= 0 {
		config.ReweightInterval = DefaultConfig().ReweightInterval
	}
	if config.HistoryCap <= 0 {
		config.HistoryCap = DefaultConfig().HistoryCap
	}
	return &Voter{
		config:     config,
		tree:       t,
		spc:        d,
		weightTree: config.WeightTree,
		weightSPC:  config.WeightSPC,
		notify:     notify,
	}
}

// #endregion voter

// #region vote
// Vote ingests the observation into the SPC detector, takes the tree's
// side-effect-free prediction, and fuses the two by weighted score.
func (v *Voter) Vote(observation, vector []float64) (VoteResult, error) {
	alarmed, err := v.spc.Ingest(observation)
	if err != nil {
		return VoteResult{}, fmt.Errorf("spc ingest: %w", err)
	}
	pred, err := v.tree.Predict(vector)
	if err != nil {
		return VoteResult{}, fmt.Errorf("tree predict: %w", err)
	}

	result := v.fuse(alarmed, pred)
	if t2, ok := v.spc.Statistic(observation); ok {
		result.SPCT2 = t2
	}
	if result.Vote == ClassOveruse && v.notify != nil {
		v.notify(result)
	}
	return result, nil
}

// fuse scores the two remapped component votes. The SPC side always casts
// its full weight; the tree side is scaled by its own confidence. Ties go
// to not-overuse.
func (v *Voter) fuse(alarmed bool, pred tree.Prediction) VoteResult {
	spcVote := ClassNeutral
	if alarmed {
		spcVote = ClassOveruse
	}
	treeVote := pred.Label
	if treeVote == ClassProductive {
		treeVote = ClassNeutral
	}

	var scoreNeutral, scoreOveruse float64
	if spcVote == ClassOveruse {
		scoreOveruse += v.weightSPC
	} else {
		scoreNeutral += v.weightSPC
	}
	if treeVote == ClassOveruse {
		scoreOveruse += v.weightTree * pred.Confidence
	} else {
		scoreNeutral += v.weightTree * pred.Confidence
	}

	vote := ClassNeutral
	winning := scoreNeutral
	if scoreOveruse > scoreNeutral {
		vote = ClassOveruse
		winning = scoreOveruse
	}

	return VoteResult{
		Vote:           vote,
		Confidence:     winning / (v.weightTree + v.weightSPC),
		SPCVote:        spcVote,
		TreeVote:       pred.Label,
		TreeConfidence: pred.Confidence,
		SPCAlarmed:     alarmed,
	}
}

// #endregion vote

// #region feedback
// HandleFeedback scores both models against the corrected label, trains the
// tree on it with the given feedback weight, and reweights once enough
// events have accrued. The observation counts toward the SPC baseline like
// any other.
func (v *Voter) HandleFeedback(observation, vector []float64, label int, confidence, weight float64) (FeedbackResult, error) {
	pred, err := v.tree.Predict(vector)
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("tree predict: %w", err)
	}
	alarmed, err := v.spc.Ingest(observation)
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("spc ingest: %w", err)
	}

	truth := label
	if truth == ClassProductive {
		truth = ClassNeutral
	}
	treeVote := pred.Label
	if treeVote == ClassProductive {
		treeVote = ClassNeutral
	}
	spcVote := ClassNeutral
	if alarmed {
		spcVote = ClassOveruse
	}

	trainResult, err := v.tree.Train(vector, label, &tree.Feedback{
		Label:      label,
		Confidence: confidence,
		Weight:     weight,
	})
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("tree train: %w", err)
	}

	result := FeedbackResult{
		TreeCorrect: treeVote == truth,
		SPCCorrect:  spcVote == truth,
		Train:       trainResult,
	}
	v.treeHistory = pushHistory(v.treeHistory, result.TreeCorrect, v.config.HistoryCap)
	v.spcHistory = pushHistory(v.spcHistory, result.SPCCorrect, v.config.HistoryCap)

	v.feedbackSeen++
	if v.feedbackSeen%int64(v.config.ReweightInterval) == 0 {
		result.Reweighted = v.reweight()
	}
	result.WeightTree = v.weightTree
	result.WeightSPC = v.weightSPC
	return result, nil
}

// reweight splits the fixed total mass in proportion to the two rolling
// accuracies. When both accuracies are zero there is nothing to apportion
// and the weights stay as they are.
func (v *Voter) reweight() bool {
	accTree := accuracy(v.treeHistory)
	accSPC := accuracy(v.spcHistory)
	if accTree+accSPC == 0 {
		return false
	}
	total := v.weightTree + v.weightSPC
	v.weightTree = total * accTree / (accTree + accSPC)
	v.weightSPC = total - v.weightTree
	return true
}

func pushHistory(history []bool, correct bool, limit int) []bool {
	history = append(history, correct)
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

func accuracy(history []bool) float64 {
	if len(history) == 0 {
		return 0
	}
	hits := 0
	for _, ok := range history {
		if ok {
			hits++
		}
	}
	return float64(hits) / float64(len(history))
}

// #endregion feedback

// #region state
// Weights returns the current vote weights.
func (v *Voter) Weights() (weightTree, weightSPC float64) {
	return v.weightTree, v.weightSPC
}

// FeedbackSeen returns the number of feedback events handled.
func (v *Voter) FeedbackSeen() int64 {
	return v.feedbackSeen
}

// Export captures the voter bookkeeping. The wrapped tree and detector
// export their own state separately.
func (v *Voter) Export() State {
	return State{
		WeightTree:   v.weightTree,
		WeightSPC:    v.weightSPC,
		TreeHistory:  append([]bool(nil), v.treeHistory...),
		SPCHistory:   append([]bool(nil), v.spcHistory...),
		FeedbackSeen: v.feedbackSeen,
	}
}

// Load replaces the voter bookkeeping with a previously exported state.
func (v *Voter) Load(state State) error {
	if state.WeightTree < 0 || state.WeightSPC < 0 {
		return fmt.Errorf("%w: negative weight", ErrBadState)
	}
	if state.WeightTree+state.WeightSPC == 0 {
		return fmt.Errorf("%w: zero total weight", ErrBadState)
	}
	if state.FeedbackSeen < 0 {
		return fmt.Errorf("%w: negative feedback count", ErrBadState)
	}
	v.weightTree = state.WeightTree
	v.weightSPC = state.WeightSPC
	v.treeHistory = clampHistory(state.TreeHistory, v.config.HistoryCap)
	v.spcHistory = clampHistory(state.SPCHistory, v.config.HistoryCap)
	v.feedbackSeen = state.FeedbackSeen
	return nil
}

func clampHistory(history []bool, limit int) []bool {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]bool(nil), history...)
}

// #endregion state
