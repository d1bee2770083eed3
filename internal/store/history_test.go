package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"jobbot-engine/internal/domain"
)

func openTestDB(t *testing.T) *History {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewHistory(db)
}

// TestMigrate_Idempotent verifies a second migration is a no-op.
func TestMigrate_Idempotent(t *testing.T) {
	h := openTestDB(t)
	if err := Migrate(h.db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

// TestHistory_RecordAndList verifies cycles and attempts round trip, newest cycle first.
func TestHistory_RecordAndList(t *testing.T) {
	ctx := context.Background()
	h := openTestDB(t)
	t0 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	first := domain.CycleResult{ID: "c1", StartedAt: t0, FinishedAt: t0.Add(time.Minute), Considered: 2, Attempted: 1, Skipped: 1}
	second := domain.CycleResult{ID: "c2", StartedAt: t0.Add(time.Hour), FinishedAt: t0.Add(time.Hour), Aborted: true, Error: "ledger unavailable"}
	for _, r := range []domain.CycleResult{first, second} {
		if err := h.RecordCycle(ctx, r); err != nil {
			t.Fatalf("RecordCycle: %v", err)
		}
	}
	first.Submitted = 1
	if err := h.RecordCycle(ctx, first); err != nil {
		t.Fatalf("RecordCycle upsert: %v", err)
	}

	job := domain.JobRecord{Identity: "https://acme.com/jobs/1", Title: "Go", Company: "Acme", Source: "remotive"}
	if err := h.RecordAttempt(ctx, "c1", job, "submitted", t0); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	cycles, err := h.ListCycles(ctx, 10)
	if err != nil {
		t.Fatalf("ListCycles: %v", err)
	}
	if len(cycles) != 2 || cycles[0].ID != "c2" || !cycles[0].Aborted || cycles[1].Submitted != 1 {
		t.Fatalf("cycles = %+v", cycles)
	}
	if !cycles[1].StartedAt.Equal(t0) {
		t.Fatalf("started = %v", cycles[1].StartedAt)
	}

	attempts, err := h.ListAttempts(ctx, "c1")
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].Identity != job.Identity || attempts[0].Outcome != "submitted" {
		t.Fatalf("attempts = %+v", attempts)
	}

	n, err := h.Cleanup(ctx, 0)
	if err != nil || n != 2 {
		t.Fatalf("Cleanup = %d, %v", n, err)
	}
}
