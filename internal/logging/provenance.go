package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (subject_id, version_id, turn_id, trigger_type, vote_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SubjectID,
		nullIfEmpty(entry.VersionID),
		nullIfEmpty(entry.TurnID),
		entry.TriggerType,
		nullIfEmpty(entry.VoteJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region vote-record-codec
// Encode serializes the record for the vote_json column.
func (r VoteRecord) Encode() (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode vote record: %w", err)
	}
	return string(raw), nil
}

// DecodeVoteRecord parses a vote_json column value.
func DecodeVoteRecord(raw string) (VoteRecord, error) {
	var record VoteRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return VoteRecord{}, fmt.Errorf("decode vote record: %w", err)
	}
	return record, nil
}

// #endregion vote-record-codec

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
