package replay

import (
	"fmt"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/ensemble"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/gate"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/sample"
)

// Event kinds.
const (
	EventSample   = "sample"
	EventFeedback = "feedback"
)

// #region types
// Event is a single recorded turn for replay: a labeled sample or a
// ground-truth feedback. Confidence and source apply to feedback only.
type Event struct {
	Kind       string
	Sample     sample.TelemetrySample
	Label      int
	Confidence float64
	Source     string
}

// Result captures the outcome of replaying one event. Vote fields are set
// for samples, action fields for feedback.
type Result struct {
	TurnID string `json:"turn_id"`
	Kind   string `json:"kind"`

	// Sample outcome.
	Vote       int     `json:"vote,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	TreeLabel  int     `json:"tree_label,omitempty"`
	SPCAlarmed bool    `json:"spc_alarmed,omitempty"`
	Drift      bool    `json:"drift,omitempty"`

	// Feedback outcome.
	Action          string  `json:"action,omitempty"`
	Reason          string  `json:"reason,omitempty"`
	EffectiveWeight float64 `json:"effective_weight,omitempty"`
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Events       int     `json:"events"`
	Samples      int     `json:"samples"`
	Feedbacks    int     `json:"feedbacks"`
	Rejected     int     `json:"rejected"`
	OveruseVotes int     `json:"overuse_votes"`
	SPCAlarms    int     `json:"spc_alarms"`
	DriftResets  int     `json:"drift_resets"`
	Splits       int     `json:"splits"`
	WeightTree   float64 `json:"weight_tree"`
	WeightSPC    float64 `json:"weight_spc"`
	Accuracy     float64 `json:"accuracy"`
}

// Mismatch is an expectation the replayed run did not meet. Got is -1 when
// the turn produced no sample vote at all.
type Mismatch struct {
	TurnID string `json:"turn_id"`
	Want   int    `json:"want"`
	Got    int    `json:"got"`
}

// Divergence is a sample turn whose replayed vote differs from the vote in
// the recorded provenance.
type Divergence struct {
	TurnID   string `json:"turn_id"`
	Recorded int    `json:"recorded"`
	Replayed int    `json:"replayed"`
}

// #endregion types

// #region replay
// Replay drives the events through a fresh in-memory engine in order. The
// run is fully deterministic: no store, no clock-dependent gating (replayed
// feedback carries no observation timestamp and is always fresh). A
// malformed event aborts the run.
func Replay(subject string, cfg engine.Config, events []Event) ([]Result, engine.Status, error) {
	if subject == "" {
		subject = "replay"
	}
	eng, err := engine.New(subject, cfg, nil, nil)
	if err != nil {
		return nil, engine.Status{}, err
	}

	results := make([]Result, 0, len(events))
	for i, ev := range events {
		switch ev.Kind {
		case EventSample:
			s := ev.Sample
			res, err := eng.HandleSample(&s, ev.Label)
			if err != nil {
				return nil, engine.Status{}, fmt.Errorf("event %d (%s): %w", i, ev.Sample.TurnID, err)
			}
			results = append(results, Result{
				TurnID:     res.TurnID,
				Kind:       EventSample,
				Vote:       res.Vote.Vote,
				Confidence: res.Vote.Confidence,
				TreeLabel:  res.Vote.TreeVote,
				SPCAlarmed: res.Vote.SPCAlarmed,
				Drift:      res.Train.Drift,
			})
		case EventFeedback:
			outcome, err := eng.HandleFeedback(engine.Feedback{
				Sample:     ev.Sample,
				Label:      ev.Label,
				Confidence: ev.Confidence,
				Source:     ev.Source,
			})
			if err != nil {
				return nil, engine.Status{}, fmt.Errorf("event %d (%s): %w", i, ev.Sample.TurnID, err)
			}
			results = append(results, Result{
				TurnID:          outcome.TurnID,
				Kind:            EventFeedback,
				Action:          outcome.Decision.Action,
				Reason:          outcome.Decision.Reason,
				EffectiveWeight: outcome.Decision.EffectiveWeight,
			})
		default:
			return nil, engine.Status{}, fmt.Errorf("event %d: unknown kind %q", i, ev.Kind)
		}
	}
	return results, eng.Status(), nil
}

// Summarize computes aggregate stats from a replay run.
func Summarize(results []Result, final engine.Status) Summary {
	s := Summary{
		Events:      len(results),
		DriftResets: final.DriftCount,
		Splits:      final.SplitCount,
		WeightTree:  final.WeightTree,
		WeightSPC:   final.WeightSPC,
		Accuracy:    final.Eval.Accuracy,
	}
	for _, r := range results {
		switch r.Kind {
		case EventSample:
			s.Samples++
			if r.Vote == ensemble.ClassOveruse {
				s.OveruseVotes++
			}
			if r.SPCAlarmed {
				s.SPCAlarms++
			}
		case EventFeedback:
			s.Feedbacks++
			if r.Action == gate.ActionReject {
				s.Rejected++
			}
		}
	}
	return s
}

// CheckExpectations compares replayed sample votes against the fixture's
// expected results. When the same turn id voted more than once, the last
// vote counts.
func CheckExpectations(results []Result, expected []FixtureExpectation) []Mismatch {
	votes := make(map[string]int, len(results))
	for _, r := range results {
		if r.Kind == EventSample {
			votes[r.TurnID] = r.Vote
		}
	}

	var mismatches []Mismatch
	for _, exp := range expected {
		got, ok := votes[exp.TurnID]
		if !ok {
			mismatches = append(mismatches, Mismatch{TurnID: exp.TurnID, Want: exp.Vote, Got: -1})
			continue
		}
		if got != exp.Vote {
			mismatches = append(mismatches, Mismatch{TurnID: exp.TurnID, Want: exp.Vote, Got: got})
		}
	}
	return mismatches
}

// CompareWithStore aligns replayed sample votes against the subject's
// recorded provenance by turn id. Turns present on only one side are
// skipped; a divergence means the same inputs no longer produce the vote
// the recorded run logged.
func CompareWithStore(store *modelstore.Store, subject string, results []Result) ([]Divergence, error) {
	entries, err := store.ListProvenance(subject, 0)
	if err != nil {
		return nil, err
	}

	recorded := make(map[string]int, len(entries))
	for _, entry := range entries {
		if entry.TriggerType != logging.TriggerSample || entry.VoteJSON == "" {
			continue
		}
		rec, err := logging.DecodeVoteRecord(entry.VoteJSON)
		if err != nil {
			return nil, fmt.Errorf("provenance %d: %w", entry.ID, err)
		}
		// Entries arrive newest first; keep the earliest vote per turn.
		recorded[rec.TurnID] = rec.Vote
	}

	var divergences []Divergence
	for _, r := range results {
		if r.Kind != EventSample {
			continue
		}
		rec, ok := recorded[r.TurnID]
		if !ok {
			continue
		}
		if rec != r.Vote {
			divergences = append(divergences, Divergence{
				TurnID:   r.TurnID,
				Recorded: rec,
				Replayed: r.Vote,
			})
		}
	}
	return divergences, nil
}

// #endregion replay
