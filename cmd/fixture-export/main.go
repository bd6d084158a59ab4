package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/replay"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to usage-sentry.db")
	subject := flag.String("subject", "", "subject whose history to export")
	last := flag.Int("last", 50, "number of most recent provenance rows to export, 0 for all")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *subject == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --subject id --out path/to/fixture.json [--last N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *subject, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, subjectID string, last int, outPath string) error {
	store, err := modelstore.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	if _, err := store.GetSubject(subjectID); err != nil {
		return err
	}

	// Entries arrive newest first; reverse for chronological order.
	entries, err := store.ListProvenance(subjectID, last)
	if err != nil {
		return err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	var events []replay.FixtureEvent
	var expected []replay.FixtureExpectation
	for _, e := range entries {
		if e.TriggerType != logging.TriggerSample && e.TriggerType != logging.TriggerFeedback {
			continue
		}
		if e.VoteJSON == "" {
			continue
		}
		rec, err := logging.DecodeVoteRecord(e.VoteJSON)
		if err != nil {
			continue // not VoteRecord format
		}
		ev, err := replay.EventFromRecord(e.TriggerType, rec)
		if err != nil {
			continue
		}
		events = append(events, ev)
		if e.TriggerType == logging.TriggerSample {
			expected = append(expected, replay.FixtureExpectation{TurnID: rec.TurnID, Vote: rec.Vote})
		}
	}
	if len(events) == 0 {
		return fmt.Errorf("no vote records found for subject %s", subjectID)
	}

	fmt.Printf("Found %d vote records\n", len(events))

	fixture := buildFixture(subjectID, events, expected)
	return writeFixture(&fixture, outPath)
}

// #endregion extract

// #region output

// buildFixture packages the recovered events under the default config; the
// engine never persists its config, so exports only round-trip for subjects
// that ran with the defaults.
func buildFixture(subjectID string, events []replay.FixtureEvent, expected []replay.FixtureExpectation) replay.Fixture {
	samples := len(expected)
	return replay.Fixture{
		Description: fmt.Sprintf("Session export: %d provenance events (%d samples) for subject %s", len(events), samples, subjectID),
		Subject:     subjectID,
		Events:      events,
		Expected:    expected,
	}
}

func writeFixture(fixture *replay.Fixture, outPath string) error {
	if err := replay.SaveFixture(outPath, fixture); err != nil {
		return err
	}
	info, err := os.Stat(outPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", outPath, err)
	}
	fmt.Printf("Wrote fixture to %s (%d bytes, %d events)\n", outPath, info.Size(), len(fixture.Events))
	return nil
}

// #endregion output
