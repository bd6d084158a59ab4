package tree

import "fmt"

// #region model
// Model is the self-describing serialized form of the tree: the full node
// arena plus aggregate counters. Export followed by Load reproduces the
// structure and counts exactly. The feedback ring and the drift window are
// transient and are not part of the model.
type Model struct {
	FeatureCount  int    `json:"feature_count"`
	ClassCount    int    `json:"class_count"`
	Root          int32  `json:"root"`
	Nodes         []Node `json:"nodes"`
	InstancesSeen int64  `json:"instances_seen"`
	DriftCount    int    `json:"drift_count"`
	SplitCount    int    `json:"split_count"`
	PredSeen      int64  `json:"pred_seen"`
	PredCorrect   int64  `json:"pred_correct"`
}

// Export deep-copies the full tree state.
func (t *Tree) Export() Model {
	nodes := make([]Node, len(t.nodes))
	for i := range t.nodes {
		nodes[i] = copyNode(t.nodes[i])
	}
	return Model{
		FeatureCount:  t.config.FeatureCount,
		ClassCount:    t.config.ClassCount,
		Root:          t.root,
		Nodes:         nodes,
		InstancesSeen: t.instancesSeen,
		DriftCount:    t.driftCount,
		SplitCount:    t.splitCount,
		PredSeen:      t.predSeen,
		PredCorrect:   t.predCorrect,
	}
}

// Load replaces the tree with a validated model. The drift window starts
// empty after a load; the feedback ring is cleared.
func (t *Tree) Load(m Model) error {
	if err := t.validateModel(m); err != nil {
		return err
	}

	nodes := make([]Node, len(m.Nodes))
	for i := range m.Nodes {
		nodes[i] = copyNode(m.Nodes[i])
	}
	t.nodes = nodes
	t.root = m.Root
	t.instancesSeen = m.InstancesSeen
	t.driftCount = m.DriftCount
	t.splitCount = m.SplitCount
	t.predSeen = m.PredSeen
	t.predCorrect = m.PredCorrect
	t.feedback = nil
	t.detector.Reset()
	return nil
}

func (t *Tree) validateModel(m Model) error {
	if m.FeatureCount != t.config.FeatureCount || m.ClassCount != t.config.ClassCount {
		return fmt.Errorf("load: %w: shape %dx%d, want %dx%d", ErrBadModel,
			m.FeatureCount, m.ClassCount, t.config.FeatureCount, t.config.ClassCount)
	}
	if len(m.Nodes) == 0 {
		return fmt.Errorf("load: %w: empty arena", ErrBadModel)
	}
	if m.Root < 0 || int(m.Root) >= len(m.Nodes) {
		return fmt.Errorf("load: %w: root %d out of range", ErrBadModel, m.Root)
	}
	if m.InstancesSeen < 0 || m.PredSeen < 0 || m.PredCorrect < 0 ||
		m.DriftCount < 0 || m.SplitCount < 0 {
		return fmt.Errorf("load: %w: negative counter", ErrBadModel)
	}

	for i := range m.Nodes {
		n := &m.Nodes[i]
		if n.leaf() {
			if n.Left != -1 || n.Right != -1 {
				return fmt.Errorf("load: %w: node %d half-linked", ErrBadModel, i)
			}
			if len(n.ClassCounts) != t.config.ClassCount {
				return fmt.Errorf("load: %w: node %d class counts", ErrBadModel, i)
			}
			if len(n.Stats) != t.config.ClassCount {
				return fmt.Errorf("load: %w: node %d stats shape", ErrBadModel, i)
			}
			for k := range n.Stats {
				if len(n.Stats[k]) != t.config.FeatureCount {
					return fmt.Errorf("load: %w: node %d stats row %d", ErrBadModel, i, k)
				}
			}
			continue
		}
		// Internal nodes: both children present, after the parent, in range.
		if n.Left <= int32(i) || n.Right <= int32(i) ||
			int(n.Left) >= len(m.Nodes) || int(n.Right) >= len(m.Nodes) {
			return fmt.Errorf("load: %w: node %d children out of order", ErrBadModel, i)
		}
		if n.SplitFeature < 0 || n.SplitFeature >= t.config.FeatureCount {
			return fmt.Errorf("load: %w: node %d split feature %d", ErrBadModel, i, n.SplitFeature)
		}
	}
	return nil
}

// #endregion model
