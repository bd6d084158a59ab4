package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/engine"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/modelstore"
	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/tree"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to usage-sentry.db")
	subject := flag.String("subject", "", "show versions for one subject")
	version := flag.String("version", "", "show single version detail")
	last := flag.Int("last", 20, "show N most recent versions")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" || (*version != "" && *subject == "") {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/usage-sentry.db [--subject id [--version id] [--last N]] [--json]")
		os.Exit(2)
	}

	store, err := modelstore.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetailMode(store, *subject, *version, *jsonOut)
	case *subject != "":
		err = runVersionsMode(store, *subject, *last, *jsonOut)
	default:
		err = runSubjectsMode(store, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region subjects-mode

type subjectRow struct {
	SubjectID   string `json:"subject_id"`
	DisplayName string `json:"display_name,omitempty"`
	SampleCount int64  `json:"sample_count"`
	LastSeenAt  string `json:"last_seen_at"`
}

func runSubjectsMode(store *modelstore.Store, jsonOut bool) error {
	subjects, err := store.ListSubjects()
	if err != nil {
		return err
	}
	if len(subjects) == 0 {
		fmt.Fprintln(os.Stderr, "no subjects found")
		return nil
	}

	rows := make([]subjectRow, len(subjects))
	for i, s := range subjects {
		rows[i] = subjectRow{
			SubjectID:   s.SubjectID,
			DisplayName: s.DisplayName,
			SampleCount: s.SampleCount,
			LastSeenAt:  s.LastSeenAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-24s  %-20s  %8s  %s\n", "Subject", "Display Name", "Samples", "Last Seen")
	fmt.Printf("%-24s+-%-20s+-%8s+-%s\n",
		"------------------------", "--------------------", "--------", "--------------------")
	for _, r := range rows {
		name := r.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-24s  %-20s  %8d  %s\n", r.SubjectID, name, r.SampleCount, r.LastSeenAt)
	}
	return nil
}

// #endregion subjects-mode

// #region versions-mode

type versionRow struct {
	VersionID     string `json:"version_id"`
	ParentID      string `json:"parent_id,omitempty"`
	TriggerType   string `json:"trigger_type"`
	NodeCount     int    `json:"node_count"`
	InstancesSeen int64  `json:"instances_seen"`
	DriftCount    int64  `json:"drift_count"`
	CreatedAt     string `json:"created_at"`
}

func runVersionsMode(store *modelstore.Store, subjectID string, last int, jsonOut bool) error {
	if _, err := store.GetSubject(subjectID); err != nil {
		return err
	}
	versions, err := store.ListVersions(subjectID, last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Store returns DESC, reverse for chronological display.
	rows := make([]versionRow, len(versions))
	for i, v := range versions {
		rows[len(versions)-1-i] = versionRow{
			VersionID:     v.VersionID,
			ParentID:      v.ParentID,
			TriggerType:   v.TriggerType,
			NodeCount:     v.NodeCount,
			InstancesSeen: v.InstancesSeen,
			DriftCount:    v.DriftCount,
			CreatedAt:     v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %-12s  %-10s  %6s  %9s  %6s  %s\n",
		"Version", "Parent", "Trigger", "Nodes", "Instances", "Drift", "Time")
	fmt.Printf("%-12s+-%-12s+-%-10s+-%6s+-%9s+-%6s+-%s\n",
		"------------", "------------", "----------", "------", "---------", "------", "--------------------")
	for _, r := range rows {
		parent := "-"
		if r.ParentID != "" {
			parent = shortID(r.ParentID)
		}
		fmt.Printf("%-12s  %-12s  %-10s  %6d  %9d  %6d  %s\n",
			shortID(r.VersionID), parent, r.TriggerType, r.NodeCount, r.InstancesSeen, r.DriftCount, r.CreatedAt)
	}

	latest := rows[len(rows)-1]
	fmt.Printf("\nLatest: %s (%s, %d nodes, %d instances)\n",
		latest.VersionID, latest.TriggerType, latest.NodeCount, latest.InstancesSeen)
	return nil
}

// #endregion versions-mode

// #region detail-mode

type detailOutput struct {
	VersionID     string          `json:"version_id"`
	ParentID      string          `json:"parent_id,omitempty"`
	SubjectID     string          `json:"subject_id"`
	TriggerType   string          `json:"trigger_type"`
	CreatedAt     string          `json:"created_at"`
	NodeCount     int             `json:"node_count"`
	InstancesSeen int64           `json:"instances_seen"`
	DriftCount    int64           `json:"drift_count"`
	Voter         *voterDetail    `json:"voter,omitempty"`
	SPC           *spcDetail      `json:"spc,omitempty"`
	Tree          *treeDetail     `json:"tree,omitempty"`
	Lineage       []string        `json:"lineage,omitempty"`
	Provenance    []provenanceRow `json:"provenance,omitempty"`
}

type voterDetail struct {
	WeightTree   float64 `json:"weight_tree"`
	WeightSPC    float64 `json:"weight_spc"`
	FeedbackSeen int64   `json:"feedback_seen"`
}

type spcDetail struct {
	N        int64   `json:"n"`
	UCL      float64 `json:"ucl"`
	LimitSet bool    `json:"limit_set"`
}

type treeDetail struct {
	SplitCount  int       `json:"split_count"`
	PredSeen    int64     `json:"pred_seen"`
	PredCorrect int64     `json:"pred_correct"`
	ClassCounts []float64 `json:"class_counts"`
}

type provenanceRow struct {
	TurnID      string `json:"turn_id,omitempty"`
	TriggerType string `json:"trigger_type"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	CreatedAt   string `json:"created_at"`
}

func runDetailMode(store *modelstore.Store, subjectID, versionID string, jsonOut bool) error {
	v, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	if v.SubjectID != subjectID {
		return fmt.Errorf("version %s belongs to subject %s", shortID(versionID), v.SubjectID)
	}

	out := detailOutput{
		VersionID:     v.VersionID,
		ParentID:      v.ParentID,
		SubjectID:     v.SubjectID,
		TriggerType:   v.TriggerType,
		CreatedAt:     v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		NodeCount:     v.NodeCount,
		InstancesSeen: v.InstancesSeen,
		DriftCount:    v.DriftCount,
	}

	if v.StateJSON != "" {
		var st engine.State
		if err := json.Unmarshal([]byte(v.StateJSON), &st); err != nil {
			return fmt.Errorf("decode state for %s: %w", shortID(versionID), err)
		}
		out.Voter = &voterDetail{
			WeightTree:   st.Voter.WeightTree,
			WeightSPC:    st.Voter.WeightSPC,
			FeedbackSeen: st.Voter.FeedbackSeen,
		}
		out.SPC = &spcDetail{N: st.SPC.N, UCL: st.SPC.UCL, LimitSet: st.SPC.LimitSet}
		out.Tree = &treeDetail{
			SplitCount:  st.Tree.SplitCount,
			PredSeen:    st.Tree.PredSeen,
			PredCorrect: st.Tree.PredCorrect,
			ClassCounts: leafClassCounts(st.Tree),
		}
	}

	chain, err := store.Lineage(v.VersionID, 5)
	if err != nil {
		return err
	}
	for _, link := range chain {
		out.Lineage = append(out.Lineage, shortID(link.VersionID))
	}

	entries, err := store.ListProvenance(subjectID, 10)
	if err != nil {
		return err
	}
	for _, e := range entries {
		out.Provenance = append(out.Provenance, provenanceRow{
			TurnID:      e.TurnID,
			TriggerType: e.TriggerType,
			Decision:    e.Decision,
			Reason:      e.Reason,
			CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:    %s\n", out.VersionID)
	parent := out.ParentID
	if parent == "" {
		parent = "-"
	}
	fmt.Printf("Parent:     %s\n", parent)
	fmt.Printf("Subject:    %s\n", out.SubjectID)
	fmt.Printf("Trigger:    %s\n", out.TriggerType)
	fmt.Printf("Created:    %s\n", out.CreatedAt)
	fmt.Printf("Nodes:      %d\n", out.NodeCount)
	fmt.Printf("Instances:  %d\n", out.InstancesSeen)
	fmt.Printf("Drift:      %d\n", out.DriftCount)

	if out.Voter != nil {
		fmt.Printf("\nVoter:\n")
		fmt.Printf("  Weight Tree:    %.4f\n", out.Voter.WeightTree)
		fmt.Printf("  Weight SPC:     %.4f\n", out.Voter.WeightSPC)
		fmt.Printf("  Feedback Seen:  %d\n", out.Voter.FeedbackSeen)
	}
	if out.SPC != nil {
		fmt.Printf("\nSPC:\n")
		fmt.Printf("  Observations:   %d\n", out.SPC.N)
		fmt.Printf("  UCL:            %.4f\n", out.SPC.UCL)
		fmt.Printf("  Limit Set:      %v\n", out.SPC.LimitSet)
	}
	if out.Tree != nil {
		fmt.Printf("\nTree:\n")
		fmt.Printf("  Splits:         %d\n", out.Tree.SplitCount)
		fmt.Printf("  Pred Seen:      %d\n", out.Tree.PredSeen)
		fmt.Printf("  Pred Correct:   %d\n", out.Tree.PredCorrect)
		fmt.Printf("  Class Counts:   %v\n", out.Tree.ClassCounts)
	}
	if len(out.Lineage) > 0 {
		fmt.Printf("\nLineage:\n")
		for i, id := range out.Lineage {
			fmt.Printf("  %d. %s\n", i+1, id)
		}
	}
	if len(out.Provenance) > 0 {
		fmt.Printf("\nProvenance (most recent first):\n")
		for _, p := range out.Provenance {
			turn := p.TurnID
			if turn == "" {
				turn = "-"
			}
			fmt.Printf("  %-12s  %-10s  %-8s  %s\n", turn, p.TriggerType, p.Decision, p.CreatedAt)
		}
	}
	return nil
}

// leafClassCounts sums the observed class counts across every leaf, which
// for an unsplit tree is just the root's counts.
func leafClassCounts(m tree.Model) []float64 {
	totals := make([]float64, m.ClassCount)
	for i := range m.Nodes {
		n := &m.Nodes[i]
		if n.Left >= 0 || n.Right >= 0 {
			continue
		}
		for k, c := range n.ClassCounts {
			if k < len(totals) {
				totals[k] += c
			}
		}
	}
	return totals
}

// #endregion detail-mode

// #region helpers

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion helpers
