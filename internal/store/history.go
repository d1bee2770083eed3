package store

import (
	"context"
	"database/sql"
	"time"

	"jobbot-engine/internal/domain"
)

type Attempt struct {
	ID       int64     `json:"id"`
	CycleID  string    `json:"cycle_id"`
	At       time.Time `json:"at"`
	Identity string    `json:"identity"`
	Title    string    `json:"title"`
	Company  string    `json:"company"`
	Source   string    `json:"source"`
	Outcome  string    `json:"outcome"`
}

// History mirrors cycle results and per-job attempts for the status API.
type History struct {
	db *sql.DB
}

func NewHistory(d *DB) *History { return &History{db: d.Pool} }

func (h *History) RecordAttempt(ctx context.Context, cycleID string, job domain.JobRecord, outcome string, at time.Time) error {
	_, err := h.db.ExecContext(ctx, `
INSERT INTO attempts (cycle_id, at, identity, title, company, source, outcome)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cycleID, at.UTC().Format(time.RFC3339), job.Identity, job.Title, job.Company, job.Source, outcome)
	return err
}

func (h *History) RecordCycle(ctx context.Context, r domain.CycleResult) error {
	_, err := h.db.ExecContext(ctx, `
INSERT INTO cycles (id, started_at, finished_at, considered, attempted, submitted, skipped, deferred, aborted, error)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  finished_at=excluded.finished_at, considered=excluded.considered, attempted=excluded.attempted,
  submitted=excluded.submitted, skipped=excluded.skipped, deferred=excluded.deferred,
  aborted=excluded.aborted, error=excluded.error`,
		r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.FinishedAt.UTC().Format(time.RFC3339Nano),
		r.Considered, r.Attempted, r.Submitted, r.Skipped, r.Deferred, boolInt(r.Aborted), r.Error)
	return err
}

// ListCycles returns the most recent cycles first.
func (h *History) ListCycles(ctx context.Context, limit int) ([]domain.CycleResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `
SELECT id, started_at, finished_at, considered, attempted, submitted, skipped, deferred, aborted, error
FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.CycleResult{}
	for rows.Next() {
		var (
			r              domain.CycleResult
			started, ended string
			aborted        int
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.Considered, &r.Attempted, &r.Submitted,
			&r.Skipped, &r.Deferred, &aborted, &r.Error); err != nil {
			return nil, err
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, ended)
		r.Aborted = aborted != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (h *History) ListAttempts(ctx context.Context, cycleID string) ([]Attempt, error) {
	rows, err := h.db.QueryContext(ctx, `
SELECT id, cycle_id, at, identity, title, company, source, outcome
FROM attempts WHERE cycle_id = ? ORDER BY id`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		var (
			a  Attempt
			at string
		)
		if err := rows.Scan(&a.ID, &a.CycleID, &at, &a.Identity, &a.Title, &a.Company, &a.Source, &a.Outcome); err != nil {
			return nil, err
		}
		a.At, _ = time.Parse(time.RFC3339, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Cleanup removes cycles (and their attempts) older than the cutoff.
func (h *History) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(time.RFC3339Nano)
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM attempts WHERE cycle_id IN (SELECT id FROM cycles WHERE started_at < ?)`, cutoff); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
