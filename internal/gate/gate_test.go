package gate

import (
	"math"
	"testing"
	"time"
)

func TestGateCommitOnCleanFeedback(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	decision := g.Evaluate(Feedback{Label: 2, Confidence: 0.9, ObservedAt: now}, now)

	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	if decision.TrustScore <= 0 || decision.TrustScore > 1 {
		t.Fatalf("trust score %f outside (0,1]", decision.TrustScore)
	}
	if decision.EffectiveWeight < 2.0 || decision.EffectiveWeight > 3.5 {
		t.Fatalf("effective weight %f outside [2.0,3.5]", decision.EffectiveWeight)
	}
}

func TestGateRejectOnLabelRange(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	for _, label := range []int{-1, 3, 7} {
		decision := g.Evaluate(Feedback{Label: label, Confidence: 0.9, ObservedAt: now}, now)
		if decision.Action != ActionReject {
			t.Fatalf("label %d: expected reject, got %s", label, decision.Action)
		}
		if decision.VetoSignals[0].Type != VetoLabelRange {
			t.Fatalf("label %d: expected VetoLabelRange, got %s", label, decision.VetoSignals[0].Type)
		}
	}
}

func TestGateRejectOnConfidenceRange(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	for _, conf := range []float64{0, -0.2, 1.5} {
		decision := g.Evaluate(Feedback{Label: 1, Confidence: conf, ObservedAt: now}, now)
		if decision.Action != ActionReject {
			t.Fatalf("confidence %f: expected reject, got %s", conf, decision.Action)
		}
		if decision.VetoSignals[0].Type != VetoConfidence {
			t.Fatalf("confidence %f: expected VetoConfidence, got %s", conf, decision.VetoSignals[0].Type)
		}
	}
}

func TestGateRejectOnLowConfidence(t *testing.T) {
	config := DefaultConfig()
	config.MinConfidence = 0.1
	g := New(config)
	now := time.Now()

	decision := g.Evaluate(Feedback{Label: 1, Confidence: 0.05, ObservedAt: now}, now)
	if decision.Action != ActionReject {
		t.Fatalf("expected reject below minimum confidence, got %s", decision.Action)
	}
	if decision.VetoSignals[0].Type != VetoConfidence {
		t.Fatalf("expected VetoConfidence, got %s", decision.VetoSignals[0].Type)
	}
}

func TestGateRejectOnStaleFeedback(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	decision := g.Evaluate(Feedback{
		Label:      1,
		Confidence: 0.9,
		ObservedAt: now.Add(-20 * time.Minute),
	}, now)
	if decision.Action != ActionReject {
		t.Fatalf("expected reject for stale feedback, got %s", decision.Action)
	}
	if decision.VetoSignals[0].Type != VetoStale {
		t.Fatalf("expected VetoStale, got %s", decision.VetoSignals[0].Type)
	}
}

func TestGateZeroObservedAtSkipsAgeCheck(t *testing.T) {
	g := New(DefaultConfig())

	decision := g.Evaluate(Feedback{Label: 1, Confidence: 0.9}, time.Now())
	if decision.Action != ActionCommit {
		t.Fatalf("zero ObservedAt should commit, got %s: %s", decision.Action, decision.Reason)
	}
}

func TestGateCollectsAllVetoes(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	decision := g.Evaluate(Feedback{
		Label:      9,
		Confidence: 0,
		ObservedAt: now.Add(-time.Hour),
	}, now)
	if decision.Action != ActionReject {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	if len(decision.VetoSignals) != 3 {
		t.Fatalf("expected 3 veto signals, got %d", len(decision.VetoSignals))
	}
}

func TestEffectiveWeightBand(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	// Full trust pins the weight at the ceiling of the band.
	top := g.Evaluate(Feedback{Label: 2, Confidence: 1.0, ObservedAt: now}, now)
	if math.Abs(top.TrustScore-1.0) > 1e-9 {
		t.Fatalf("full-trust score = %f, want 1.0", top.TrustScore)
	}
	if math.Abs(top.EffectiveWeight-3.5) > 1e-9 {
		t.Fatalf("full-trust weight = %f, want 3.5", top.EffectiveWeight)
	}

	// Trust maps linearly: conf 0.05 fresh → 0.5*0.05 + 0.3 + 0.2 = 0.525.
	low := g.Evaluate(Feedback{Label: 2, Confidence: 0.05, ObservedAt: now}, now)
	wantTrust := 0.525
	if math.Abs(low.TrustScore-wantTrust) > 1e-9 {
		t.Fatalf("low-trust score = %f, want %f", low.TrustScore, wantTrust)
	}
	wantWeight := 2.0 + wantTrust*1.5
	if math.Abs(low.EffectiveWeight-wantWeight) > 1e-9 {
		t.Fatalf("low-trust weight = %f, want %f", low.EffectiveWeight, wantWeight)
	}
}

func TestTrustRecencyDecay(t *testing.T) {
	g := New(DefaultConfig())
	now := time.Now()

	fresh := g.Evaluate(Feedback{Label: 1, Confidence: 0.8, ObservedAt: now}, now)
	aged := g.Evaluate(Feedback{
		Label:      1,
		Confidence: 0.8,
		ObservedAt: now.Add(-10 * time.Minute),
	}, now)
	if aged.Action != ActionCommit {
		t.Fatalf("within-window feedback should commit, got %s", aged.Action)
	}
	if aged.TrustScore >= fresh.TrustScore {
		t.Fatalf("aged trust %f should be below fresh trust %f", aged.TrustScore, fresh.TrustScore)
	}
}

func TestSourceWeights(t *testing.T) {
	config := DefaultConfig()
	config.SourceWeights = map[string]float64{"heuristic": 0.5}
	g := New(config)
	now := time.Now()

	user := g.Evaluate(Feedback{Label: 1, Confidence: 1.0, Source: "user", ObservedAt: now}, now)
	heuristic := g.Evaluate(Feedback{Label: 1, Confidence: 1.0, Source: "heuristic", ObservedAt: now}, now)

	if heuristic.TrustScore >= user.TrustScore {
		t.Fatalf("down-weighted source trust %f should be below default %f",
			heuristic.TrustScore, user.TrustScore)
	}
	want := 0.5 + 0.3 + 0.2*0.5
	if math.Abs(heuristic.TrustScore-want) > 1e-9 {
		t.Fatalf("heuristic trust = %f, want %f", heuristic.TrustScore, want)
	}
}
