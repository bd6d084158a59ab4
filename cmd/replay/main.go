package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	dbPath := flag.String("db", "", "optional sqlite path: compare replayed votes against recorded provenance")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--db path/to/usage-sentry.db] [--json]")
		os.Exit(2)
	}
	os.Exit(run(*fixturePath, *dbPath, *jsonOut))
}

// #endregion main

// #region run

// jsonReport is the --json output shape.
type jsonReport struct {
	Summary     replay.Summary      `json:"summary"`
	Mismatches  []replay.Mismatch   `json:"mismatches,omitempty"`
	Divergences []replay.Divergence `json:"divergences,omitempty"`
}

func run(fixturePath, dbPath string, jsonOut bool) int {
	f, err := replay.LoadFixture(fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}
	cfg, err := f.Config.ToEngineConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixture config: %v\n", err)
		return 2
	}

	events := make([]replay.Event, len(f.Events))
	for i := range f.Events {
		events[i] = f.Events[i].ToEvent()
	}

	results, final, err := replay.Replay(f.Subject, cfg, events)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 1
	}

	mismatches := replay.CheckExpectations(results, f.Expected)

	var divergences []replay.Divergence
	if dbPath != "" {
		store, err := modelstore.NewStore(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open db: %v\n", err)
			return 1
		}
		defer store.Close()
		divergences, err = replay.CompareWithStore(store, f.Subject, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "compare: %v\n", err)
			return 1
		}
	}

	summary := replay.Summarize(results, final)
	if jsonOut {
		if err := printJSON(jsonReport{Summary: summary, Mismatches: mismatches, Divergences: divergences}); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	} else {
		printRun(results, summary, len(f.Expected), mismatches, divergences, dbPath != "")
	}

	if len(mismatches) > 0 || len(divergences) > 0 {
		return 1
	}
	return 0
}

// #endregion run

// #region output

func printRun(results []replay.Result, summary replay.Summary, expected int,
	mismatches []replay.Mismatch, divergences []replay.Divergence, compared bool) {

	fmt.Printf("%-14s| %-9s| %s\n", "Turn", "Kind", "Outcome")
	fmt.Printf("%-14s+%-10s+%s\n", "--------------", "----------", "------------------------")
	for _, r := range results {
		switch r.Kind {
		case replay.EventSample:
			outcome := fmt.Sprintf("vote=%d conf=%.2f", r.Vote, r.Confidence)
			if r.SPCAlarmed {
				outcome += " alarm"
			}
			if r.Drift {
				outcome += " drift"
			}
			fmt.Printf("%-14s| %-9s| %s\n", r.TurnID, r.Kind, outcome)
		case replay.EventFeedback:
			outcome := r.Action
			if r.EffectiveWeight > 0 {
				outcome = fmt.Sprintf("%s w=%.2f", r.Action, r.EffectiveWeight)
			}
			fmt.Printf("%-14s| %-9s| %s\n", r.TurnID, r.Kind, outcome)
		}
	}

	fmt.Printf("\nExpectations: %d checked, %d mismatched\n", expected, len(mismatches))
	for _, m := range mismatches {
		fmt.Printf("  DIFF %-12s want=%d got=%d\n", m.TurnID, m.Want, m.Got)
	}
	if compared {
		fmt.Printf("Store comparison: %d divergences\n", len(divergences))
		for _, d := range divergences {
			fmt.Printf("  DIFF %-12s recorded=%d replayed=%d\n", d.TurnID, d.Recorded, d.Replayed)
		}
	}

	fmt.Printf("\nSummary: %d events (%d samples, %d feedback, %d rejected), overuse=%d alarms=%d drift=%d splits=%d\n",
		summary.Events, summary.Samples, summary.Feedbacks, summary.Rejected,
		summary.OveruseVotes, summary.SPCAlarms, summary.DriftResets, summary.Splits)
	fmt.Printf("Weights: tree=%.4f spc=%.4f | accuracy=%.4f\n",
		summary.WeightTree, summary.WeightSPC, summary.Accuracy)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
