package eval

import (
	"fmt"
	"testing"
)

func TestRecordOutcomePairsByTurnID(t *testing.T) {
	e := New(DefaultConfig())

	e.RecordVote("turn-1", 2, 2, true)
	e.RecordVote("turn-2", 1, 0, false)

	if !e.RecordOutcome("turn-1", 2) {
		t.Fatal("expected turn-1 to pair")
	}
	if !e.RecordOutcome("turn-2", 0) {
		t.Fatal("expected turn-2 to pair")
	}

	report := e.Report()
	if report.Turns != 2 {
		t.Fatalf("turns = %d, want 2", report.Turns)
	}
	// turn-1: vote 2 vs truth 2 → correct. turn-2: vote 1 vs truth 0
	// remapped to 1 → correct.
	if report.Correct != 2 {
		t.Fatalf("correct = %d, want 2", report.Correct)
	}
	if report.Accuracy != 1.0 {
		t.Fatalf("accuracy = %f, want 1.0", report.Accuracy)
	}
	if report.Pending != 0 {
		t.Fatalf("pending = %d, want 0", report.Pending)
	}
}

func TestRecordOutcomeUnknownTurn(t *testing.T) {
	e := New(DefaultConfig())
	if e.RecordOutcome("never-voted", 1) {
		t.Fatal("unknown turn should not pair")
	}
	if report := e.Report(); report.Turns != 0 {
		t.Fatalf("turns = %d, want 0", report.Turns)
	}
}

func TestConfusionCountsTreePredictions(t *testing.T) {
	e := New(DefaultConfig())

	e.RecordVote("a", 2, 2, false)
	e.RecordOutcome("a", 2) // tree said 2, truth 2
	e.RecordVote("b", 1, 0, false)
	e.RecordOutcome("b", 1) // tree said 0, truth 1
	e.RecordVote("c", 1, 0, false)
	e.RecordOutcome("c", 1)

	report := e.Report()
	if report.Confusion[2][2] != 1 {
		t.Errorf("confusion[2][2] = %d, want 1", report.Confusion[2][2])
	}
	if report.Confusion[0][1] != 2 {
		t.Errorf("confusion[0][1] = %d, want 2", report.Confusion[0][1])
	}
}

func TestAlarmPrecision(t *testing.T) {
	e := New(DefaultConfig())

	// Two alarmed votes: one confirmed overuse, one refuted.
	e.RecordVote("a", 2, 2, true)
	e.RecordOutcome("a", 2)
	e.RecordVote("b", 2, 2, true)
	e.RecordOutcome("b", 1)
	// Unalarmed votes never enter the precision denominator.
	e.RecordVote("c", 1, 1, false)
	e.RecordOutcome("c", 2)

	report := e.Report()
	if report.AlarmPrecision != 0.5 {
		t.Fatalf("alarm precision = %f, want 0.5", report.AlarmPrecision)
	}
}

func TestPendingBounded(t *testing.T) {
	config := DefaultConfig()
	config.PendingCap = 3
	e := New(config)

	for i := 0; i < 6; i++ {
		e.RecordVote(fmt.Sprintf("turn-%d", i), 1, 1, false)
	}
	if report := e.Report(); report.Pending != 3 {
		t.Fatalf("pending = %d, want 3", report.Pending)
	}
	// The oldest three were evicted and can no longer pair.
	if e.RecordOutcome("turn-0", 1) {
		t.Fatal("evicted turn should not pair")
	}
	if !e.RecordOutcome("turn-5", 1) {
		t.Fatal("retained turn should pair")
	}
}

func TestRepeatedTurnIDReplacesVote(t *testing.T) {
	e := New(DefaultConfig())

	e.RecordVote("a", 1, 1, false)
	e.RecordVote("a", 2, 2, false)
	e.RecordOutcome("a", 2)

	report := e.Report()
	if report.Turns != 1 || report.Correct != 1 {
		t.Fatalf("report = %+v, want the replacing vote scored", report)
	}
}

func TestResetClearsBookkeeping(t *testing.T) {
	e := New(DefaultConfig())
	e.RecordVote("a", 2, 2, true)
	e.RecordOutcome("a", 2)

	e.Reset()

	report := e.Report()
	if report.Turns != 0 || report.Correct != 0 || report.Pending != 0 {
		t.Fatalf("report after reset = %+v", report)
	}
	if report.Confusion[2][2] != 0 {
		t.Fatalf("confusion survived reset")
	}
}
