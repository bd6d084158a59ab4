package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Each test uses its own subject label so shared collectors do not
// leak counts across cases.

func TestRecordSample(t *testing.T) {
	RecordSample("subj-sample")
	RecordSample("subj-sample")

	got := testutil.ToFloat64(samplesTotal.WithLabelValues("subj-sample"))
	if got != 2 {
		t.Fatalf("samples_total = %v, want 2", got)
	}
}

func TestRecordFeedbackDecisions(t *testing.T) {
	RecordFeedback("subj-fb", "commit")
	RecordFeedback("subj-fb", "commit")
	RecordFeedback("subj-fb", "reject")

	if got := testutil.ToFloat64(feedbackTotal.WithLabelValues("subj-fb", "commit")); got != 2 {
		t.Fatalf("feedback_total{commit} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(feedbackTotal.WithLabelValues("subj-fb", "reject")); got != 1 {
		t.Fatalf("feedback_total{reject} = %v, want 1", got)
	}
}

func TestRecordVoteClassNames(t *testing.T) {
	RecordVote("subj-vote", 0)
	RecordVote("subj-vote", 1)
	RecordVote("subj-vote", 2)
	RecordVote("subj-vote", 2)

	if got := testutil.ToFloat64(votesTotal.WithLabelValues("subj-vote", "productive")); got != 1 {
		t.Fatalf("votes_total{productive} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(votesTotal.WithLabelValues("subj-vote", "neutral")); got != 1 {
		t.Fatalf("votes_total{neutral} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(votesTotal.WithLabelValues("subj-vote", "overuse")); got != 2 {
		t.Fatalf("votes_total{overuse} = %v, want 2", got)
	}
}

func TestRecordSplitsIgnoresNonPositive(t *testing.T) {
	RecordSplits("subj-split", 0)
	RecordSplits("subj-split", -3)
	RecordSplits("subj-split", 2)

	if got := testutil.ToFloat64(splitsTotal.WithLabelValues("subj-split")); got != 2 {
		t.Fatalf("splits_total = %v, want 2", got)
	}
}

func TestSetWeights(t *testing.T) {
	SetWeights("subj-w", 1.25, 0.75)

	if got := testutil.ToFloat64(weightTree.WithLabelValues("subj-w")); got != 1.25 {
		t.Fatalf("weight_tree = %v, want 1.25", got)
	}
	if got := testutil.ToFloat64(weightSPC.WithLabelValues("subj-w")); got != 0.75 {
		t.Fatalf("weight_spc = %v, want 0.75", got)
	}

	// Weights are gauges: a later publish replaces the value.
	SetWeights("subj-w", 0.5, 1.5)
	if got := testutil.ToFloat64(weightTree.WithLabelValues("subj-w")); got != 0.5 {
		t.Fatalf("weight_tree after update = %v, want 0.5", got)
	}
}

func TestClassNameFallback(t *testing.T) {
	if got := className(7); got != "7" {
		t.Fatalf("className(7) = %q, want \"7\"", got)
	}
}
