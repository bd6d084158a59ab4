package gate

import (
	"fmt"
	"time"
)

// #region gate
// Gate screens incoming feedback before it reaches the models. Rejected
// feedback never alters tree counts or vote weights.
type Gate struct {
	config Config
}

// New creates a gate with the given configuration, filling zero values
// from the defaults.
func New(config Config) *Gate {
	defaults := DefaultConfig()
	if config.ClassCount <= 0 {
		config.ClassCount = defaults.ClassCount
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}
	if config.WeightCeil <= config.WeightFloor {
		config.WeightFloor = defaults.WeightFloor
		config.WeightCeil = defaults.WeightCeil
	}
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then maps the soft trust score into
// the effective weight band.
func (g *Gate) Evaluate(fb Feedback, now time.Time) Decision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	// 1. Label within the class space.
	if fb.Label < 0 || fb.Label >= g.config.ClassCount {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoLabelRange,
			Reason: fmt.Sprintf("label %d outside [0,%d)", fb.Label, g.config.ClassCount),
		})
	}

	// 2. Confidence inside (0,1] and above the floor.
	if fb.Confidence <= 0 || fb.Confidence > 1 {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoConfidence,
			Reason: fmt.Sprintf("confidence %.4f outside (0,1]", fb.Confidence),
		})
	} else if fb.Confidence < g.config.MinConfidence {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoConfidence,
			Reason: fmt.Sprintf("confidence %.4f below minimum %.4f", fb.Confidence, g.config.MinConfidence),
		})
	}

	// 3. Staleness.
	if !fb.ObservedAt.IsZero() {
		if age := now.Sub(fb.ObservedAt); age > g.config.MaxAge {
			vetoes = append(vetoes, VetoSignal{
				Type:   VetoStale,
				Reason: fmt.Sprintf("feedback aged %s exceeds %s", age.Round(time.Second), g.config.MaxAge),
			})
		}
	}

	// If any hard vetoes, reject immediately.
	if len(vetoes) > 0 {
		return Decision{
			Action:      ActionReject,
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	// --- Soft scoring ---
	trust := g.trustScore(fb, now)

	return Decision{
		Action:          ActionCommit,
		Reason:          fmt.Sprintf("passed gate: trust=%.4f", trust),
		TrustScore:      trust,
		EffectiveWeight: g.config.WeightFloor + trust*(g.config.WeightCeil-g.config.WeightFloor),
	}
}

// #endregion gate

// #region helpers
// trustScore composes confidence (weight 0.5), recency (weight 0.3), and
// source weight (weight 0.2) into [0,1].
func (g *Gate) trustScore(fb Feedback, now time.Time) float64 {
	score := 0.5 * fb.Confidence

	// Recency decays linearly across the accepted age window. Zero
	// ObservedAt means "just now" and earns full recency.
	recency := 1.0
	if !fb.ObservedAt.IsZero() {
		if age := now.Sub(fb.ObservedAt); age > 0 {
			recency = 1.0 - float64(age)/float64(g.config.MaxAge)
			if recency < 0 {
				recency = 0
			}
		}
	}
	score += 0.3 * recency

	source := 1.0
	if w, ok := g.config.SourceWeights[fb.Source]; ok {
		source = clamp01(w)
	}
	score += 0.2 * source

	return clamp01(score)
}

// clamp01 restricts v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion helpers
