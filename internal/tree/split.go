package tree

import "math"

// #region split
// attemptSplit evaluates the split criterion on a leaf: past the grace
// period, the best-gain feature splits the leaf when its gain clears the
// Hoeffding bound for the configured confidence.
func (t *Tree) attemptSplit(idx int32) {
	n := &t.nodes[idx]
	total := n.total()
	if total <= float64(t.config.GracePeriod) {
		return
	}

	// A single-class leaf has zero entropy and nothing to gain.
	active := 0
	for _, c := range n.ClassCounts {
		if c > 0 {
			active++
		}
	}
	if active < 2 {
		return
	}

	base := entropy(n.ClassCounts)

	bestGain := 0.0
	bestFeature := -1
	bestThreshold := 0.0

	for f := 0; f < t.config.FeatureCount; f++ {
		thr, ok := candidateThreshold(n, f)
		if !ok {
			continue
		}
		gain := t.splitGain(n, f, thr, base, total)
		if gain > bestGain {
			bestGain = gain
			bestFeature = f
			bestThreshold = thr
		}
	}
	if bestFeature < 0 {
		return
	}

	bound := math.Sqrt(math.Log(1.0/t.config.HoeffdingDelta) / (2.0 * total))
	if bestGain <= bound {
		return
	}

	t.split(idx, bestFeature, bestThreshold)
}

// candidateThreshold is the feature's aggregate mean over the leaf; features
// with fewer than two observed values produce no candidate.
func candidateThreshold(n *Node, f int) (float64, bool) {
	var sum, count float64
	for k := range n.Stats {
		sum += n.Stats[k][f].Sum
		count += n.Stats[k][f].Count
	}
	if count < 2 {
		return 0, false
	}
	return sum / count, true
}

// splitGain estimates the information gain of cutting the leaf at thr on
// feature f: whole-leaf entropy minus the instance-weighted entropy of the
// two hypothetical halves. Each class's mass is apportioned across the cut
// from its Gaussian estimate; a degenerate variance assigns the whole class
// to its mean's side.
func (t *Tree) splitGain(n *Node, f int, thr, base, total float64) float64 {
	left := make([]float64, t.config.ClassCount)
	right := make([]float64, t.config.ClassCount)

	for k, c := range n.ClassCounts {
		if c <= 0 {
			continue
		}
		st := n.Stats[k][f]
		frac := 0.5 // counts inherited on a split carry no feature statistics
		if st.Count > 0 {
			mu := st.Sum / st.Count
			variance := st.SumSq/st.Count - mu*mu
			if variance > 1e-12 {
				frac = normalCDF((thr - mu) / math.Sqrt(variance))
			} else if mu <= thr {
				frac = 1.0
			} else {
				frac = 0.0
			}
		}
		left[k] = c * frac
		right[k] = c * (1.0 - frac)
	}

	var nLeft, nRight float64
	for k := range left {
		nLeft += left[k]
		nRight += right[k]
	}
	if nLeft <= 0 || nRight <= 0 {
		return 0
	}
	return base - (nLeft*entropy(left)+nRight*entropy(right))/total
}

// split converts the leaf to an internal node: the winning feature and
// threshold move in, two empty leaf children spawn, and the accumulated
// class counts halve between them. Per-feature statistics are not
// redistributed.
func (t *Tree) split(idx int32, feature int, threshold float64) {
	left := newLeafNode(t.config.ClassCount, t.config.FeatureCount)
	right := newLeafNode(t.config.ClassCount, t.config.FeatureCount)
	for k, c := range t.nodes[idx].ClassCounts {
		left.ClassCounts[k] = c / 2.0
		right.ClassCounts[k] = c / 2.0
	}

	leftIdx := int32(len(t.nodes))
	t.nodes = append(t.nodes, left)
	rightIdx := int32(len(t.nodes))
	t.nodes = append(t.nodes, right)

	// Re-take the pointer: the appends may have moved the arena.
	n := &t.nodes[idx]
	n.SplitFeature = feature
	n.SplitThreshold = threshold
	n.Left = leftIdx
	n.Right = rightIdx
	n.ClassCounts = nil
	n.Stats = nil

	t.splitCount++
}

// #endregion split

// #region math
// entropy is base-2 Shannon entropy over normalized counts; an empty
// distribution has entropy 0.
func entropy(counts []float64) float64 {
	var total float64
	for _, c := range counts {
		total += c
	}
	if total <= 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / total
		h -= p * math.Log2(p)
	}
	return h
}

// normalCDF is the standard normal distribution function.
func normalCDF(z float64) float64 {
	return 0.5 * math.Erfc(-z/math.Sqrt2)
}

// #endregion math
