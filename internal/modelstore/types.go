package modelstore

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a subject or version does not exist.
var ErrNotFound = errors.New("not found")

// #region model-version
// ModelVersion is one persisted engine checkpoint.
type ModelVersion struct {
	VersionID     string    `json:"version_id"`
	SubjectID     string    `json:"subject_id"`
	ParentID      string    `json:"parent_id,omitempty"` // previous version in the lineage, empty for the first
	TriggerType   string    `json:"trigger_type"`        // "checkpoint" | "drift" | "import" | "shutdown"
	StateJSON     string    `json:"state_json,omitempty"` // serialized engine state
	NodeCount     int       `json:"node_count"`
	InstancesSeen int64     `json:"instances_seen"`
	DriftCount    int64     `json:"drift_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// #endregion model-version

// #region subject
// Subject is one monitored subject row.
type Subject struct {
	SubjectID   string    `json:"subject_id"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	SampleCount int64     `json:"sample_count"`
}

// #endregion subject
