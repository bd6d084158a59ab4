package modelstore

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/usage-sentry/go-engine/internal/logging"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	subject_id   TEXT PRIMARY KEY,
	display_name TEXT,
	created_at   TEXT NOT NULL,
	last_seen_at TEXT NOT NULL,
	sample_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS model_versions (
	version_id     TEXT PRIMARY KEY,
	subject_id     TEXT NOT NULL,
	parent_id      TEXT,
	trigger_type   TEXT NOT NULL,
	state_json     TEXT NOT NULL,
	node_count     INTEGER NOT NULL,
	instances_seen INTEGER NOT NULL,
	drift_count    INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (subject_id) REFERENCES subjects(subject_id),
	FOREIGN KEY (parent_id) REFERENCES model_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_model (
	subject_id TEXT PRIMARY KEY,
	version_id TEXT NOT NULL,
	FOREIGN KEY (subject_id) REFERENCES subjects(subject_id),
	FOREIGN KEY (version_id) REFERENCES model_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id   TEXT NOT NULL,
	version_id   TEXT,
	turn_id      TEXT,
	trigger_type TEXT NOT NULL,
	vote_json    TEXT,
	decision     TEXT NOT NULL,
	reason       TEXT,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (subject_id) REFERENCES subjects(subject_id)
);
`

// #endregion schema

// #region store-struct
// Store manages subjects, versioned model checkpoints, and the provenance
// log in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region subjects
// EnsureSubject creates the subject row if missing and returns it.
func (s *Store) EnsureSubject(subjectID, displayName string) (Subject, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(
		`INSERT INTO subjects (subject_id, display_name, created_at, last_seen_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(subject_id) DO NOTHING`,
		subjectID, displayName, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Subject{}, fmt.Errorf("ensure subject: %w", err)
	}
	return s.GetSubject(subjectID)
}

// TouchSubject advances last_seen_at and adds to the cumulative sample count.
func (s *Store) TouchSubject(subjectID string, samples int64) error {
	_, err := s.db.Exec(
		`UPDATE subjects SET last_seen_at = ?, sample_count = sample_count + ? WHERE subject_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), samples, subjectID,
	)
	if err != nil {
		return fmt.Errorf("touch subject: %w", err)
	}
	return nil
}

// GetSubject retrieves one subject row.
func (s *Store) GetSubject(subjectID string) (Subject, error) {
	var subj Subject
	var createdStr, seenStr string
	var displayName sql.NullString
	err := s.db.QueryRow(
		`SELECT subject_id, display_name, created_at, last_seen_at, sample_count
		 FROM subjects WHERE subject_id = ?`, subjectID,
	).Scan(&subj.SubjectID, &displayName, &createdStr, &seenStr, &subj.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Subject{}, fmt.Errorf("%w: subject %s", ErrNotFound, subjectID)
	}
	if err != nil {
		return Subject{}, fmt.Errorf("get subject %s: %w", subjectID, err)
	}
	if displayName.Valid {
		subj.DisplayName = displayName.String
	}
	subj.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	subj.LastSeenAt, _ = time.Parse(time.RFC3339Nano, seenStr)
	return subj, nil
}

// ListSubjects returns all known subjects, most recently seen first.
func (s *Store) ListSubjects() ([]Subject, error) {
	rows, err := s.db.Query(
		`SELECT subject_id, display_name, created_at, last_seen_at, sample_count
		 FROM subjects ORDER BY last_seen_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var subj Subject
		var createdStr, seenStr string
		var displayName sql.NullString
		if err := rows.Scan(&subj.SubjectID, &displayName, &createdStr, &seenStr, &subj.SampleCount); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		if displayName.Valid {
			subj.DisplayName = displayName.String
		}
		subj.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		subj.LastSeenAt, _ = time.Parse(time.RFC3339Nano, seenStr)
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

// #endregion subjects

// #region save-version
// SaveVersion inserts a new model version and moves the subject's active
// pointer to it atomically. A missing version id or created-at is filled in.
func (s *Store) SaveVersion(v ModelVersion) (ModelVersion, error) {
	if v.VersionID == "" {
		v.VersionID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return ModelVersion{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if v.ParentID != "" {
		parentPtr = v.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO model_versions (version_id, subject_id, parent_id, trigger_type, state_json, node_count, instances_seen, drift_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VersionID, v.SubjectID, parentPtr, v.TriggerType, v.StateJSON,
		v.NodeCount, v.InstancesSeen, v.DriftCount, v.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO active_model (subject_id, version_id) VALUES (?, ?)
		 ON CONFLICT(subject_id) DO UPDATE SET version_id = excluded.version_id`,
		v.SubjectID, v.VersionID,
	)
	if err != nil {
		return ModelVersion{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ModelVersion{}, fmt.Errorf("commit: %w", err)
	}
	return v, nil
}

// #endregion save-version

// #region load-active
// ActiveVersionID returns the subject's active version id, or empty when
// the subject has never checkpointed.
func (s *Store) ActiveVersionID(subjectID string) (string, error) {
	var versionID string
	err := s.db.QueryRow(
		`SELECT version_id FROM active_model WHERE subject_id = ?`, subjectID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return versionID, nil
}

// LoadActive reads the subject's active model version.
func (s *Store) LoadActive(subjectID string) (ModelVersion, error) {
	versionID, err := s.ActiveVersionID(subjectID)
	if err != nil {
		return ModelVersion{}, err
	}
	if versionID == "" {
		return ModelVersion{}, fmt.Errorf("%w: no active model for subject %s", ErrNotFound, subjectID)
	}
	return s.GetVersion(versionID)
}

// #endregion load-active

// #region get-version
// GetVersion retrieves a specific model version by id.
func (s *Store) GetVersion(id string) (ModelVersion, error) {
	var v ModelVersion
	var parentID sql.NullString
	var createdStr string

	err := s.db.QueryRow(
		`SELECT version_id, subject_id, parent_id, trigger_type, state_json, node_count, instances_seen, drift_count, created_at
		 FROM model_versions WHERE version_id = ?`, id,
	).Scan(&v.VersionID, &v.SubjectID, &parentID, &v.TriggerType, &v.StateJSON,
		&v.NodeCount, &v.InstancesSeen, &v.DriftCount, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return ModelVersion{}, fmt.Errorf("%w: version %s", ErrNotFound, id)
	}
	if err != nil {
		return ModelVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}

	if parentID.Valid {
		v.ParentID = parentID.String
	}
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return v, nil
}

// #endregion get-version

// #region list-versions
// ListVersions returns the subject's most recent versions, newest first.
// StateJSON is left empty; fetch the full payload with GetVersion.
func (s *Store) ListVersions(subjectID string, limit int) ([]ModelVersion, error) {
	rows, err := s.db.Query(
		`SELECT version_id, subject_id, parent_id, trigger_type, node_count, instances_seen, drift_count, created_at
		 FROM model_versions WHERE subject_id = ? ORDER BY created_at DESC LIMIT ?`,
		subjectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []ModelVersion
	for rows.Next() {
		var v ModelVersion
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&v.VersionID, &v.SubjectID, &parentID, &v.TriggerType,
			&v.NodeCount, &v.InstancesSeen, &v.DriftCount, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			v.ParentID = parentID.String
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// #endregion list-versions

// #region lineage
// Lineage walks parent pointers starting at the given version, child before
// parent, for at most limit entries. Repeated ids terminate the walk.
func (s *Store) Lineage(versionID string, limit int) ([]ModelVersion, error) {
	seen := make(map[string]bool)
	var chain []ModelVersion
	current := versionID
	for current != "" && len(chain) < limit {
		if seen[current] {
			break
		}
		seen[current] = true
		v, err := s.GetVersion(current)
		if err != nil {
			return nil, err
		}
		v.StateJSON = ""
		chain = append(chain, v)
		current = v.ParentID
	}
	return chain, nil
}

// #endregion lineage

// #region provenance
// LogProvenance appends a provenance entry through the shared handle.
func (s *Store) LogProvenance(entry logging.ProvenanceEntry) error {
	return logging.LogDecision(s.db, entry)
}

// ListProvenance returns the subject's latest provenance entries, newest
// first. A limit below 1 returns the full history.
func (s *Store) ListProvenance(subjectID string, limit int) ([]logging.ProvenanceEntry, error) {
	if limit < 1 {
		limit = -1 // sqlite treats a negative limit as unlimited
	}
	rows, err := s.db.Query(
		`SELECT id, subject_id, version_id, turn_id, trigger_type, vote_json, decision, reason, created_at
		 FROM provenance_log WHERE subject_id = ? ORDER BY id DESC LIMIT ?`,
		subjectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	var entries []logging.ProvenanceEntry
	for rows.Next() {
		var entry logging.ProvenanceEntry
		var versionID, turnID, voteJSON, reason sql.NullString
		var createdStr string
		if err := rows.Scan(&entry.ID, &entry.SubjectID, &versionID, &turnID,
			&entry.TriggerType, &voteJSON, &entry.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		if versionID.Valid {
			entry.VersionID = versionID.String
		}
		if turnID.Valid {
			entry.TurnID = turnID.String
		}
		if voteJSON.Valid {
			entry.VoteJSON = voteJSON.String
		}
		if reason.Valid {
			entry.Reason = reason.String
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// #endregion provenance
