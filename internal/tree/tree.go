package tree

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/drift"
)

// #region tree
// Tree is the streaming classifier: it grows by statistical-bound split
// tests, tracks its own prediction accuracy, and discards itself when the
// drift detector fires. One instance per subject; the owner serializes calls.
type Tree struct {
	config   Config
	detector drift.Detector

	nodes []Node
	root  int32

	instancesSeen int64
	driftCount    int
	splitCount    int

	predSeen    int64
	predCorrect int64

	feedback []feedbackRecord
}

// New creates a single-leaf tree. A nil detector gets the default adaptive
// window.
func New(config Config, detector drift.Detector) *Tree {
	def := DefaultConfig()
	if config.FeatureCount <= 0 {
		config.FeatureCount = def.FeatureCount
	}
	if config.ClassCount < 2 {
		config.ClassCount = def.ClassCount
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = def.GracePeriod
	}
	if config.HoeffdingDelta <= 0 || config.HoeffdingDelta >= 1 {
		config.HoeffdingDelta = def.HoeffdingDelta
	}
	if config.FeedbackWeight <= 0 {
		config.FeedbackWeight = def.FeedbackWeight
	}
	if config.FeedbackCap <= 0 {
		config.FeedbackCap = def.FeedbackCap
	}
	if detector == nil {
		detector = drift.NewAdaptiveWindow(drift.DefaultConfig())
	}
	t := &Tree{config: config, detector: detector}
	t.resetModel()
	return t
}

// Predict routes the vector to a leaf and reports its class distribution.
// Side-effect-free.
func (t *Tree) Predict(vector []float64) (Prediction, error) {
	if err := t.checkVector(vector); err != nil {
		return Prediction{}, err
	}
	return t.predict(vector), nil
}

// Train runs one learning step: predict first (for drift tracking), apply
// weighted feedback when present, fold the outcome into the drift detector,
// rebuild from scratch plus feedback replay when drift fires, then update the
// leaf and evaluate the split criterion.
func (t *Tree) Train(vector []float64, label int, fb *Feedback) (TrainResult, error) {
	if err := t.checkVector(vector); err != nil {
		return TrainResult{}, err
	}
	if err := t.checkLabel(label); err != nil {
		return TrainResult{}, err
	}
	if fb != nil {
		if err := t.checkLabel(fb.Label); err != nil {
			return TrainResult{}, err
		}
		if fb.Confidence < 0 || fb.Confidence > 1 {
			return TrainResult{}, fmt.Errorf("train: %w: %v", ErrFeedbackRange, fb.Confidence)
		}
	}

	var result TrainResult

	pred := t.predict(vector)
	t.predSeen++
	if pred.Label == label {
		t.predCorrect++
	}

	if fb != nil {
		t.bufferFeedback(vector, fb)
		t.applyWeighted(vector, fb.Label, fb.Confidence, fb.Weight)
	}

	t.detector.Update(pred.Label != label)
	if t.detector.Drift() {
		// The window describes the discarded model's errors; it goes with it.
		t.resetModel()
		t.detector.Reset()
		t.driftCount++
		result.Drift = true
		t.replayFeedback()
	}

	leaf := t.route(vector)
	t.updateLeaf(leaf, vector, label, 1)
	t.attemptSplit(leaf)

	t.instancesSeen++
	result.Accuracy = t.accuracy()
	result.SplitCount = t.splitCount
	return result, nil
}

// #endregion tree

// #region accessors
// InstancesSeen returns the number of training calls folded in.
func (t *Tree) InstancesSeen() int64 { return t.instancesSeen }

// DriftCount returns how many times the tree discarded itself.
func (t *Tree) DriftCount() int { return t.driftCount }

// SplitCount returns the lifetime split total, across drift resets.
func (t *Tree) SplitCount() int { return t.splitCount }

// NodeCount returns the current arena size.
func (t *Tree) NodeCount() int { return len(t.nodes) }

// FeedbackBuffered returns how many feedback records the replay ring holds.
func (t *Tree) FeedbackBuffered() int { return len(t.feedback) }

// Depth returns the longest root-to-leaf path of the current tree.
func (t *Tree) Depth() int { return t.depth(t.root) }

func (t *Tree) depth(idx int32) int {
	n := &t.nodes[idx]
	if n.leaf() {
		return 0
	}
	left := t.depth(n.Left)
	right := t.depth(n.Right)
	if right > left {
		left = right
	}
	return 1 + left
}

func (t *Tree) accuracy() float64 {
	if t.predSeen == 0 {
		return 0
	}
	return float64(t.predCorrect) / float64(t.predSeen)
}

// #endregion accessors

// #region internals
func (t *Tree) checkVector(vector []float64) error {
	if len(vector) != t.config.FeatureCount {
		return fmt.Errorf("vector: %w: got %d, want %d",
			ErrVectorLength, len(vector), t.config.FeatureCount)
	}
	return nil
}

func (t *Tree) checkLabel(label int) error {
	if label < 0 || label >= t.config.ClassCount {
		return fmt.Errorf("label: %w: %d not in [0,%d)",
			ErrLabelRange, label, t.config.ClassCount)
	}
	return nil
}

// predict assumes a validated vector.
func (t *Tree) predict(vector []float64) Prediction {
	n := &t.nodes[t.route(vector)]

	dist := make([]float64, t.config.ClassCount)
	total := n.total()
	if total <= 0 {
		// Empty leaf: neutral label, uniform distribution.
		for i := range dist {
			dist[i] = 1.0 / float64(t.config.ClassCount)
		}
		return Prediction{Label: 1, Confidence: dist[1], Distribution: dist}
	}

	best := 0
	for k, c := range n.ClassCounts {
		dist[k] = c / total
		if dist[k] > dist[best] {
			best = k
		}
	}
	return Prediction{Label: best, Confidence: dist[best], Distribution: dist}
}

// route walks internal nodes (<= goes left) down to a leaf index.
func (t *Tree) route(vector []float64) int32 {
	idx := t.root
	for {
		n := &t.nodes[idx]
		if n.leaf() {
			return idx
		}
		if vector[n.SplitFeature] <= n.SplitThreshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// updateLeaf folds one labeled vector into a leaf, weight times.
func (t *Tree) updateLeaf(idx int32, vector []float64, label, weight int) {
	if weight <= 0 {
		return
	}
	w := float64(weight)
	n := &t.nodes[idx]
	n.ClassCounts[label] += w
	stats := n.Stats[label]
	for i, x := range vector {
		stats[i].Sum += x * w
		stats[i].SumSq += x * x * w
		stats[i].Count += w
	}
}

// applyWeighted runs the extra-weighted feedback update: the corrected label
// is applied ceil(weight x confidence) times to the vector's leaf.
func (t *Tree) applyWeighted(vector []float64, label int, confidence, weight float64) {
	if weight <= 0 {
		weight = t.config.FeedbackWeight
	}
	repeats := int(math.Ceil(weight * confidence))
	if repeats <= 0 {
		return
	}
	t.updateLeaf(t.route(vector), vector, label, repeats)
}

// bufferFeedback keeps a bounded ring of recent corrections for drift replay.
func (t *Tree) bufferFeedback(vector []float64, fb *Feedback) {
	vec := make([]float64, len(vector))
	copy(vec, vector)
	t.feedback = append(t.feedback, feedbackRecord{
		vector:     vec,
		label:      fb.Label,
		confidence: fb.Confidence,
		weight:     fb.Weight,
	})
	if len(t.feedback) > t.config.FeedbackCap {
		t.feedback = t.feedback[1:]
	}
}

// replayFeedback re-applies the buffered corrections, oldest first, to
// partially recover after a drift reset.
func (t *Tree) replayFeedback() {
	for _, rec := range t.feedback {
		t.applyWeighted(rec.vector, rec.label, rec.confidence, rec.weight)
	}
}

// resetModel replaces the whole arena with a single fresh leaf.
func (t *Tree) resetModel() {
	t.nodes = []Node{newLeafNode(t.config.ClassCount, t.config.FeatureCount)}
	t.root = 0
}

// #endregion internals
