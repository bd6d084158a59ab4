package tree

// #region node
// FeatStat is the running accumulator for one feature within one class.
type FeatStat struct {
	Sum   float64 `json:"sum"`
	SumSq float64 `json:"sum_sq"`
	Count float64 `json:"count"`
}

// Node is one arena slot. A leaf accumulates statistics; an internal node
// holds the chosen split. Children are arena indices, -1 when absent, and a
// node is a leaf exactly when both are -1. Children always follow their
// parent in the arena, so the structure is acyclic by construction.
type Node struct {
	Left  int32 `json:"left"`
	Right int32 `json:"right"`

	SplitFeature   int     `json:"split_feature"`
	SplitThreshold float64 `json:"split_threshold"`

	// Leaf statistics; discarded when the node converts to internal.
	ClassCounts []float64    `json:"class_counts,omitempty"`
	Stats       [][]FeatStat `json:"stats,omitempty"` // [class][feature]
}

// leaf reports whether the node has no children.
func (n *Node) leaf() bool { return n.Left < 0 && n.Right < 0 }

// total sums the leaf's class counts.
func (n *Node) total() float64 {
	var sum float64
	for _, c := range n.ClassCounts {
		sum += c
	}
	return sum
}

// newLeafNode allocates an empty leaf for the given shape.
func newLeafNode(classCount, featureCount int) Node {
	stats := make([][]FeatStat, classCount)
	for k := range stats {
		stats[k] = make([]FeatStat, featureCount)
	}
	return Node{
		Left:         -1,
		Right:        -1,
		SplitFeature: -1,
		ClassCounts:  make([]float64, classCount),
		Stats:        stats,
	}
}

// copyNode deep-copies a node for serialization.
func copyNode(n Node) Node {
	out := n
	if n.ClassCounts != nil {
		out.ClassCounts = make([]float64, len(n.ClassCounts))
		copy(out.ClassCounts, n.ClassCounts)
	}
	if n.Stats != nil {
		out.Stats = make([][]FeatStat, len(n.Stats))
		for k := range n.Stats {
			out.Stats[k] = make([]FeatStat, len(n.Stats[k]))
			copy(out.Stats[k], n.Stats[k])
		}
	}
	return out
}

// #endregion node
