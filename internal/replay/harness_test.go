package replay

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
)

// helper: temp sqlite store for comparison tests.
func tempStore(t *testing.T) *modelstore.Store {
	t.Helper()
	store, err := modelstore.NewStore(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// helper: calm-pattern sample event.
func lowEvent(turnID string, label int) Event {
	return Event{
		Kind:  EventSample,
		Label: label,
		Sample: sample.TelemetrySample{
			TurnID:               turnID,
			ClickRate:            2,
			KeyRate:              3,
			ScrollRate:           1,
			NavigationRate:       0.5,
			InteractionFrequency: 4,
			Visibility:           1,
			SessionSeconds:       300,
			TabSwitches:          2,
			ScrollDepth:          10,
			MediaSeconds:         30,
			RequestCount:         5,
			BurstScore:           0.2,
			IdleSeconds:          120,
			ActivityScore:        0.4,
			DomainDiversity:      3,
			FocusRatio:           0.8,
		},
	}
}

// helper: burst-pattern sample event.
func highEvent(turnID string, label int) Event {
	return Event{
		Kind:  EventSample,
		Label: label,
		Sample: sample.TelemetrySample{
			TurnID:               turnID,
			ClickRate:            40,
			KeyRate:              80,
			ScrollRate:           30,
			NavigationRate:       12,
			InteractionFrequency: 90,
			Visibility:           1,
			SessionSeconds:       7200,
			TabSwitches:          60,
			ScrollDepth:          95,
			MediaSeconds:         5400,
			RequestCount:         400,
			BurstScore:           9.5,
			IdleSeconds:          5,
			ActivityScore:        9.8,
			DomainDiversity:      40,
			FocusRatio:           0.1,
		},
	}
}

// helper: feedback event over the burst pattern.
func feedbackEvent(turnID string, label int, confidence float64) Event {
	ev := highEvent(turnID, 0)
	ev.Kind = EventFeedback
	ev.Label = label
	ev.Confidence = confidence
	return ev
}

// helper: a representative mixed run. One committed correction, one vetoed.
func mixedEvents() []Event {
	return []Event{
		lowEvent("t-1", 0),
		highEvent("t-2", 2),
		feedbackEvent("t-2", 2, 1.0),
		lowEvent("t-3", 0),
		highEvent("t-4", 2),
		feedbackEvent("t-9", 2, 0), // zero confidence, vetoed
		lowEvent("t-5", 0),
	}
}

// 1. Samples produce one vote each; turn ids are preserved in order.
func TestReplaySampleVotes(t *testing.T) {
	events := []Event{lowEvent("t-1", 0), highEvent("t-2", 2), lowEvent("t-3", 0)}

	results, final, err := Replay("votes", engine.DefaultConfig(), events)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Kind != EventSample {
			t.Errorf("result %d: kind = %q, want sample", i, r.Kind)
		}
		if r.TurnID != events[i].Sample.TurnID {
			t.Errorf("result %d: turn id = %q, want %q", i, r.TurnID, events[i].Sample.TurnID)
		}
		// SPC is in burn-in and weights are balanced: everything lands neutral.
		if r.Vote != ensemble.ClassNeutral {
			t.Errorf("result %d: vote = %d, want neutral", i, r.Vote)
		}
		if r.Confidence <= 0 || r.Confidence > 1 {
			t.Errorf("result %d: confidence = %v", i, r.Confidence)
		}
	}
	if final.SamplesSeen != 3 {
		t.Errorf("samples seen = %d, want 3", final.SamplesSeen)
	}
}

// 2. Feedback events surface the gate decision: full-confidence fresh
// feedback commits at the top of the weight band, zero confidence is vetoed.
func TestReplayFeedbackActions(t *testing.T) {
	results, final, err := Replay("actions", engine.DefaultConfig(), mixedEvents())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	commit := results[2]
	if commit.Kind != EventFeedback || commit.Action != gate.ActionCommit {
		t.Fatalf("result 2 = %+v, want committed feedback", commit)
	}
	if commit.EffectiveWeight != 3.5 {
		t.Errorf("effective weight = %v, want 3.5", commit.EffectiveWeight)
	}

	reject := results[5]
	if reject.Action != gate.ActionReject {
		t.Fatalf("result 5 = %+v, want rejected feedback", reject)
	}
	if reject.Reason == "" {
		t.Error("expected the veto reason")
	}

	if final.FeedbackSeen != 1 {
		t.Errorf("feedback seen = %d, want 1 (rejected feedback must not train)", final.FeedbackSeen)
	}
}

// 3. Unknown event kinds abort the run.
func TestReplayUnknownKind(t *testing.T) {
	events := []Event{{Kind: "bogus"}}
	if _, _, err := Replay("bogus", engine.DefaultConfig(), events); err == nil {
		t.Fatal("expected an error for an unknown event kind")
	}
}

// 4. A malformed sample aborts the run with the boundary error.
func TestReplayMalformedSample(t *testing.T) {
	ev := lowEvent("t-1", 0)
	ev.Sample.ClickRate = math.NaN()

	_, _, err := Replay("malformed", engine.DefaultConfig(), []Event{ev})
	if !errors.Is(err, sample.ErrBadSample) {
		t.Fatalf("err = %v, want ErrBadSample", err)
	}
}

// 5. Deterministic: the same fixture replayed twice produces identical
// results and summaries.
func TestReplayDeterministic(t *testing.T) {
	cfg := engine.DefaultConfig()

	results1, final1, err := Replay("det", cfg, mixedEvents())
	if err != nil {
		t.Fatalf("first replay: %v", err)
	}
	results2, final2, err := Replay("det", cfg, mixedEvents())
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}

	if !reflect.DeepEqual(results1, results2) {
		t.Fatalf("results differ:\n first  %+v\n second %+v", results1, results2)
	}
	if Summarize(results1, final1) != Summarize(results2, final2) {
		t.Fatalf("summaries differ:\n first  %+v\n second %+v",
			Summarize(results1, final1), Summarize(results2, final2))
	}
}

// 6. Summarize counts match the result stream and the final status.
func TestSummarizeCounts(t *testing.T) {
	results, final, err := Replay("counts", engine.DefaultConfig(), mixedEvents())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	summary := Summarize(results, final)
	if summary.Events != 7 || summary.Samples != 5 || summary.Feedbacks != 2 {
		t.Errorf("event counts = %d/%d/%d, want 7/5/2",
			summary.Events, summary.Samples, summary.Feedbacks)
	}
	if summary.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", summary.Rejected)
	}
	if summary.OveruseVotes != 0 || summary.SPCAlarms != 0 {
		t.Errorf("overuse/alarms = %d/%d, want 0/0", summary.OveruseVotes, summary.SPCAlarms)
	}
	if summary.WeightTree != final.WeightTree || summary.WeightSPC != final.WeightSPC {
		t.Errorf("weights = %v/%v, want %v/%v",
			summary.WeightTree, summary.WeightSPC, final.WeightTree, final.WeightSPC)
	}
	if summary.Accuracy != final.Eval.Accuracy {
		t.Errorf("accuracy = %v, want %v", summary.Accuracy, final.Eval.Accuracy)
	}
}

// 7. CheckExpectations flags wrong votes and missing turns.
func TestCheckExpectationsMismatches(t *testing.T) {
	results := []Result{
		{TurnID: "t-1", Kind: EventSample, Vote: 1},
		{TurnID: "t-2", Kind: EventSample, Vote: 2},
	}
	expected := []FixtureExpectation{
		{TurnID: "t-1", Vote: 1}, // met
		{TurnID: "t-2", Vote: 1}, // wrong vote
		{TurnID: "t-3", Vote: 1}, // never voted
	}

	mismatches := CheckExpectations(results, expected)
	if len(mismatches) != 2 {
		t.Fatalf("mismatches = %+v, want 2", mismatches)
	}
	if mismatches[0].TurnID != "t-2" || mismatches[0].Got != 2 {
		t.Errorf("mismatch 0 = %+v", mismatches[0])
	}
	if mismatches[1].TurnID != "t-3" || mismatches[1].Got != -1 {
		t.Errorf("mismatch 1 = %+v", mismatches[1])
	}
}

// 8. A replay of the events a live engine recorded reproduces its votes
// exactly: no divergences against the provenance log.
func TestCompareWithStoreMatchesLiveRun(t *testing.T) {
	store := tempStore(t)
	events := mixedEvents()

	live, err := engine.New("cmp", engine.DefaultConfig(), store, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	for i, ev := range events {
		switch ev.Kind {
		case EventSample:
			s := ev.Sample
			if _, err := live.HandleSample(&s, ev.Label); err != nil {
				t.Fatalf("live sample %d: %v", i, err)
			}
		case EventFeedback:
			fb := engine.Feedback{Sample: ev.Sample, Label: ev.Label, Confidence: ev.Confidence}
			if _, err := live.HandleFeedback(fb); err != nil {
				t.Fatalf("live feedback %d: %v", i, err)
			}
		}
	}

	results, _, err := Replay("cmp", engine.DefaultConfig(), events)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	divergences, err := CompareWithStore(store, "cmp", results)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(divergences) != 0 {
		t.Fatalf("unexpected divergences: %+v", divergences)
	}
}

// 9. A recorded vote that the replay cannot reproduce is reported; turns
// only one side knows are skipped.
func TestCompareWithStoreFlagsDivergence(t *testing.T) {
	store := tempStore(t)
	if _, err := store.EnsureSubject("tampered", ""); err != nil {
		t.Fatalf("ensure subject: %v", err)
	}

	log := func(turnID string, vote int) {
		t.Helper()
		rec := logging.VoteRecord{TurnID: turnID, Vector: make([]float64, 16), Vote: vote}
		raw, err := rec.Encode()
		if err != nil {
			t.Fatalf("encode record: %v", err)
		}
		err = store.LogProvenance(logging.ProvenanceEntry{
			SubjectID:   "tampered",
			TurnID:      turnID,
			TriggerType: logging.TriggerSample,
			VoteJSON:    raw,
			Decision:    "commit",
		})
		if err != nil {
			t.Fatalf("log provenance: %v", err)
		}
	}
	log("t-1", ensemble.ClassNeutral) // matches the replay
	log("t-2", ensemble.ClassOveruse) // replay will vote neutral
	log("t-8", ensemble.ClassOveruse) // never replayed, skipped

	results, _, err := Replay("tampered", engine.DefaultConfig(),
		[]Event{lowEvent("t-1", 0), highEvent("t-2", 2)})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	divergences, err := CompareWithStore(store, "tampered", results)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(divergences) != 1 {
		t.Fatalf("divergences = %+v, want exactly one", divergences)
	}
	d := divergences[0]
	if d.TurnID != "t-2" || d.Recorded != ensemble.ClassOveruse || d.Replayed != ensemble.ClassNeutral {
		t.Errorf("divergence = %+v", d)
	}
}
