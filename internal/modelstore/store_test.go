package modelstore

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureSubjectIdempotent(t *testing.T) {
	s := tempDB(t)

	first, err := s.EnsureSubject("subj-1", "workstation-a")
	if err != nil {
		t.Fatalf("EnsureSubject: %v", err)
	}
	if first.SubjectID != "subj-1" || first.DisplayName != "workstation-a" {
		t.Fatalf("unexpected subject: %+v", first)
	}

	// A second ensure must not reset the row.
	again, err := s.EnsureSubject("subj-1", "renamed")
	if err != nil {
		t.Fatalf("EnsureSubject again: %v", err)
	}
	if again.DisplayName != "workstation-a" {
		t.Fatalf("expected original display name, got %q", again.DisplayName)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed on re-ensure")
	}
}

func TestTouchSubjectAccumulates(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	if err := s.TouchSubject("subj-1", 3); err != nil {
		t.Fatalf("TouchSubject: %v", err)
	}
	if err := s.TouchSubject("subj-1", 2); err != nil {
		t.Fatalf("TouchSubject: %v", err)
	}

	subj, err := s.GetSubject("subj-1")
	if err != nil {
		t.Fatalf("GetSubject: %v", err)
	}
	if subj.SampleCount != 5 {
		t.Fatalf("sample count = %d, want 5", subj.SampleCount)
	}
	if !subj.LastSeenAt.After(subj.CreatedAt) && !subj.LastSeenAt.Equal(subj.CreatedAt) {
		t.Fatal("last_seen_at should not precede created_at")
	}
}

func TestGetSubjectNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetSubject("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveVersionAndLoadActive(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	v1, err := s.SaveVersion(ModelVersion{
		SubjectID:     "subj-1",
		TriggerType:   "checkpoint",
		StateJSON:     `{"tree":{}}`,
		NodeCount:     1,
		InstancesSeen: 10,
	})
	if err != nil {
		t.Fatalf("SaveVersion: %v", err)
	}
	if v1.VersionID == "" {
		t.Fatal("expected generated version id")
	}
	if v1.CreatedAt.IsZero() {
		t.Fatal("expected filled created_at")
	}

	active, err := s.LoadActive("subj-1")
	if err != nil {
		t.Fatalf("LoadActive: %v", err)
	}
	if active.VersionID != v1.VersionID {
		t.Fatalf("active = %s, want %s", active.VersionID, v1.VersionID)
	}
	if active.StateJSON != `{"tree":{}}` {
		t.Fatalf("state json round-trip failed: %q", active.StateJSON)
	}
	if active.InstancesSeen != 10 || active.NodeCount != 1 {
		t.Fatalf("counters lost: %+v", active)
	}

	// A second save moves the active pointer and records lineage.
	v2, err := s.SaveVersion(ModelVersion{
		SubjectID:   "subj-1",
		ParentID:    v1.VersionID,
		TriggerType: "drift",
		StateJSON:   `{"tree":{"n":2}}`,
		NodeCount:   3,
	})
	if err != nil {
		t.Fatalf("SaveVersion v2: %v", err)
	}

	active, _ = s.LoadActive("subj-1")
	if active.VersionID != v2.VersionID {
		t.Fatalf("active = %s, want %s", active.VersionID, v2.VersionID)
	}
	if active.ParentID != v1.VersionID {
		t.Fatalf("parent = %s, want %s", active.ParentID, v1.VersionID)
	}
	if active.TriggerType != "drift" {
		t.Fatalf("trigger = %s, want drift", active.TriggerType)
	}
}

func TestLoadActiveWithoutVersions(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")
	if _, err := s.LoadActive("subj-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetVersionNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetVersion("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListVersionsNewestFirst(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.SaveVersion(ModelVersion{
			VersionID:   []string{"v-a", "v-b", "v-c"}[i],
			SubjectID:   "subj-1",
			TriggerType: "checkpoint",
			StateJSON:   "{}",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("SaveVersion %d: %v", i, err)
		}
	}

	versions, err := s.ListVersions("subj-1", 10)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	if versions[0].VersionID != "v-c" || versions[2].VersionID != "v-a" {
		t.Fatalf("wrong order: %s, %s, %s",
			versions[0].VersionID, versions[1].VersionID, versions[2].VersionID)
	}
	if versions[0].StateJSON != "" {
		t.Fatal("listing should not carry state json")
	}

	limited, _ := s.ListVersions("subj-1", 2)
	if len(limited) != 2 {
		t.Fatalf("limit ignored: got %d", len(limited))
	}
}

func TestLineageWalk(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	v1, _ := s.SaveVersion(ModelVersion{SubjectID: "subj-1", TriggerType: "checkpoint", StateJSON: "{}"})
	v2, _ := s.SaveVersion(ModelVersion{SubjectID: "subj-1", ParentID: v1.VersionID, TriggerType: "drift", StateJSON: "{}"})
	v3, _ := s.SaveVersion(ModelVersion{SubjectID: "subj-1", ParentID: v2.VersionID, TriggerType: "checkpoint", StateJSON: "{}"})

	chain, err := s.Lineage(v3.VersionID, 10)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("chain length = %d, want 3", len(chain))
	}
	if chain[0].VersionID != v3.VersionID || chain[2].VersionID != v1.VersionID {
		t.Fatal("chain should run child before parent")
	}

	// Limit cuts the walk short.
	short, _ := s.Lineage(v3.VersionID, 2)
	if len(short) != 2 {
		t.Fatalf("limited chain length = %d, want 2", len(short))
	}
}

func TestLineageCycleGuard(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	v1, _ := s.SaveVersion(ModelVersion{SubjectID: "subj-1", TriggerType: "checkpoint", StateJSON: "{}"})
	v2, _ := s.SaveVersion(ModelVersion{SubjectID: "subj-1", ParentID: v1.VersionID, TriggerType: "checkpoint", StateJSON: "{}"})

	// Corrupt the lineage into a cycle.
	if _, err := s.DB().Exec(
		`UPDATE model_versions SET parent_id = ? WHERE version_id = ?`,
		v2.VersionID, v1.VersionID,
	); err != nil {
		t.Fatalf("corrupt lineage: %v", err)
	}

	chain, err := s.Lineage(v2.VersionID, 100)
	if err != nil {
		t.Fatalf("Lineage on cycle: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("cycle walk returned %d entries, want 2", len(chain))
	}
}

func TestLogAndListProvenance(t *testing.T) {
	s := tempDB(t)
	s.EnsureSubject("subj-1", "")

	record := logging.VoteRecord{TurnID: "t-2", Vote: 2, Confidence: 0.8}
	voteJSON, err := record.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	entries := []logging.ProvenanceEntry{
		{SubjectID: "subj-1", TurnID: "t-1", TriggerType: logging.TriggerSample, Decision: "commit"},
		{SubjectID: "subj-1", TurnID: "t-2", TriggerType: logging.TriggerSample, Decision: "commit", VoteJSON: voteJSON},
		{SubjectID: "subj-1", TurnID: "t-3", TriggerType: logging.TriggerFeedback, Decision: "reject", Reason: "stale"},
	}
	for _, entry := range entries {
		if err := s.LogProvenance(entry); err != nil {
			t.Fatalf("LogProvenance: %v", err)
		}
	}

	got, err := s.ListProvenance("subj-1", 10)
	if err != nil {
		t.Fatalf("ListProvenance: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].TurnID != "t-3" || got[2].TurnID != "t-1" {
		t.Fatal("entries should list newest first")
	}
	if got[0].Reason != "stale" {
		t.Fatalf("reason lost: %q", got[0].Reason)
	}

	decoded, err := logging.DecodeVoteRecord(got[1].VoteJSON)
	if err != nil {
		t.Fatalf("decode stored vote: %v", err)
	}
	if decoded.Vote != 2 || decoded.TurnID != "t-2" {
		t.Fatalf("vote record mangled: %+v", decoded)
	}
}
