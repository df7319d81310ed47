// Package store persists pipeline state in sqlite: per-stage segment
// results with idempotent upsert, job status, and the read path of the
// versioned project memory.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/litera-ai/litera/internal/memory"
	"github.com/litera-ai/litera/internal/segment"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT,
		attempt INTEGER NOT NULL DEFAULT 0,
		workflow_run_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- segment_results holds one row per (job, stage, segment). Redelivered
	-- jobs overwrite rather than duplicate.
	CREATE TABLE IF NOT EXISTS segment_results (
		job_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		segment_id TEXT NOT NULL,
		source_text TEXT NOT NULL,
		target_text TEXT NOT NULL,
		notes TEXT,
		guard_json TEXT,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		retry_count INTEGER NOT NULL DEFAULT 0,
		memory_version INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (job_id, stage, segment_index)
	);

	-- project_memory is append-only; this module only reads it, apart
	-- from the CLI seed helper standing in for the memory collaborator.
	CREATE TABLE IF NOT EXISTS project_memory (
		project_id TEXT NOT NULL,
		version INTEGER NOT NULL,
		style_profile TEXT,
		term_map TEXT,
		symbol_table TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (project_id, version)
	);

	CREATE INDEX IF NOT EXISTS idx_results_job ON segment_results(job_id, stage);
	CREATE INDEX IF NOT EXISTS idx_jobs_project ON jobs(project_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SegmentResult is one persisted row of segment_results.
type SegmentResult struct {
	JobID         string
	Stage         string
	SegmentIndex  int
	SegmentID     string
	SourceText    string
	TargetText    string
	Notes         string
	Guard         *segment.GuardResult
	NeedsReview   bool
	RetryCount    int
	MemoryVersion int
}

// UpsertSegmentResult writes one row keyed (job_id, stage,
// segment_index); a repeated write for the same key overwrites.
func (s *Store) UpsertSegmentResult(ctx context.Context, r SegmentResult) error {
	var guardJSON sql.NullString
	if r.Guard != nil {
		b, err := json.Marshal(r.Guard)
		if err != nil {
			return fmt.Errorf("failed to marshal guard result: %w", err)
		}
		guardJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO segment_results
		 (job_id, stage, segment_index, segment_id, source_text, target_text, notes, guard_json, needs_review, retry_count, memory_version, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.JobID, r.Stage, r.SegmentIndex, r.SegmentID,
		normalizeText(r.SourceText), normalizeText(r.TargetText),
		r.Notes, guardJSON, r.NeedsReview, r.RetryCount, r.MemoryVersion, time.Now())
	return err
}

// UpsertSegmentResults writes a whole batch. The caller treats the
// batch as one unit: everything is persisted before any transition
// decision.
func (s *Store) UpsertSegmentResults(ctx context.Context, results []SegmentResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch write: %w", err)
	}
	defer tx.Rollback()

	for _, r := range results {
		var guardJSON sql.NullString
		if r.Guard != nil {
			b, err := json.Marshal(r.Guard)
			if err != nil {
				return fmt.Errorf("failed to marshal guard result: %w", err)
			}
			guardJSON = sql.NullString{String: string(b), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO segment_results
			 (job_id, stage, segment_index, segment_id, source_text, target_text, notes, guard_json, needs_review, retry_count, memory_version, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.JobID, r.Stage, r.SegmentIndex, r.SegmentID,
			normalizeText(r.SourceText), normalizeText(r.TargetText),
			r.Notes, guardJSON, r.NeedsReview, r.RetryCount, r.MemoryVersion, time.Now()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListSegmentResults returns the persisted rows for one (job, stage) in
// segment order.
func (s *Store) ListSegmentResults(ctx context.Context, jobID, stage string) ([]SegmentResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, stage, segment_index, segment_id, source_text, target_text, notes, guard_json, needs_review, retry_count, memory_version
		 FROM segment_results WHERE job_id = ? AND stage = ? ORDER BY segment_index`,
		jobID, stage)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SegmentResult
	for rows.Next() {
		var r SegmentResult
		var notes, guardJSON sql.NullString
		if err := rows.Scan(&r.JobID, &r.Stage, &r.SegmentIndex, &r.SegmentID,
			&r.SourceText, &r.TargetText, &notes, &guardJSON,
			&r.NeedsReview, &r.RetryCount, &r.MemoryVersion); err != nil {
			return nil, err
		}
		r.Notes = notes.String
		if guardJSON.Valid {
			var g segment.GuardResult
			if err := json.Unmarshal([]byte(guardJSON.String), &g); err != nil {
				return nil, fmt.Errorf("corrupt guard result for segment %d: %w", r.SegmentIndex, err)
			}
			r.Guard = &g
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// NeedsReviewCount counts flagged segments across all stages of a job.
func (s *Store) NeedsReviewCount(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM segment_results WHERE job_id = ? AND needs_review`, jobID).Scan(&n)
	return n, err
}

// JobRecord mirrors one row of the jobs table.
type JobRecord struct {
	JobID         string
	ProjectID     string
	Stage         string
	Status        string
	Error         string
	Attempt       int
	WorkflowRunID string
}

// Job status values.
const (
	JobRunning = "running"
	JobDone    = "done"
	JobError   = "error"
)

// UpsertJob records a job's current stage and attempt.
func (s *Store) UpsertJob(ctx context.Context, j JobRecord) error {
	if j.Status == "" {
		j.Status = JobRunning
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (job_id, project_id, stage, status, error, attempt, workflow_run_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.JobID, j.ProjectID, j.Stage, j.Status, j.Error, j.Attempt, j.WorkflowRunID, time.Now())
	return err
}

// MarkJob sets a job's terminal status and optional error message.
func (s *Store) MarkJob(ctx context.Context, jobID, status, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE job_id = ?`,
		status, errMsg, time.Now(), jobID)
	return err
}

// GetJob returns one job record.
func (s *Store) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	var j JobRecord
	var errMsg, wfRun sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, project_id, stage, status, error, attempt, workflow_run_id FROM jobs WHERE job_id = ?`,
		jobID).Scan(&j.JobID, &j.ProjectID, &j.Stage, &j.Status, &errMsg, &j.Attempt, &wfRun)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, err
	}
	j.Error = errMsg.String
	j.WorkflowRunID = wfRun.String
	return &j, nil
}

// Latest returns the newest project memory version, or nil when the
// project has none yet. Implements memory.Reader.
func (s *Store) Latest(ctx context.Context, projectID string) (*memory.ProjectMemory, error) {
	var m memory.ProjectMemory
	var style, termJSON, symJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, version, style_profile, term_map, symbol_table
		 FROM project_memory WHERE project_id = ? ORDER BY version DESC LIMIT 1`,
		projectID).Scan(&m.ProjectID, &m.Version, &style, &termJSON, &symJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.StyleProfile = style.String
	if termJSON.Valid && termJSON.String != "" {
		if err := json.Unmarshal([]byte(termJSON.String), &m.TermMap); err != nil {
			return nil, fmt.Errorf("corrupt term map for project %s: %w", projectID, err)
		}
	}
	if symJSON.Valid && symJSON.String != "" {
		if err := json.Unmarshal([]byte(symJSON.String), &m.SymbolTable); err != nil {
			return nil, fmt.Errorf("corrupt symbol table for project %s: %w", projectID, err)
		}
	}
	return &m, nil
}

// AppendMemory writes the next memory version for a project. The
// pipeline never calls this; it backs the CLI stand-in for the external
// memory collaborator.
func (s *Store) AppendMemory(ctx context.Context, m memory.ProjectMemory) (int, error) {
	var current sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM project_memory WHERE project_id = ?`,
		m.ProjectID).Scan(&current); err != nil {
		return 0, err
	}
	next := int(current.Int64) + 1

	termJSON, err := json.Marshal(m.TermMap)
	if err != nil {
		return 0, err
	}
	symJSON, err := json.Marshal(m.SymbolTable)
	if err != nil {
		return 0, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO project_memory (project_id, version, style_profile, term_map, symbol_table)
		 VALUES (?, ?, ?, ?, ?)`,
		m.ProjectID, next, m.StyleProfile, string(termJSON), string(symJSON))
	return next, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// so key comparisons are stable across writers.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
