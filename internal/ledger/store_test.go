package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rsextract/internal/take"
	"rsextract/internal/testsupport"
)

func TestRecordAndLatest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", 4, 3); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	first := []take.Status{
		{Kind: take.StatusCompleted, Action: "pour", Take: 1, Frames: 47, Duration: 2 * time.Second},
		{Kind: take.StatusError, Action: "pour", Take: 2, Err: errors.New("camera 2: stream open failed")},
		{Kind: take.StatusSkipped, Action: "lift", Take: 1},
	}
	for _, st := range first {
		if err := store.Record(ctx, "run-1", st); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := store.FinishRun(ctx, "run-1"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	if err := store.BeginRun(ctx, "run-2", 2, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Record(ctx, "run-2", take.Status{Kind: take.StatusCompleted, Action: "pour", Take: 2, Frames: 12}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	latest, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 3 {
		t.Fatalf("got %d latest records, want 3", len(latest))
	}
	if latest[0].Action != "lift" || latest[0].Status != take.StatusSkipped {
		t.Fatalf("unexpected first record %+v", latest[0])
	}
	if latest[1].Take != 1 || latest[1].Frames != 47 || latest[1].Duration != 2*time.Second {
		t.Fatalf("unexpected pour/1 record %+v", latest[1])
	}
	if latest[2].RunID != "run-2" || latest[2].Status != take.StatusCompleted || latest[2].Detail != "" {
		t.Fatalf("pour/2 should reflect the newer run, got %+v", latest[2])
	}

	runs, err := store.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" {
		t.Fatalf("unexpected runs %+v", runs)
	}
	old := runs[1]
	if old.Completed != 1 || old.Failed != 1 || old.Skipped != 1 || old.FinishedAt == nil || old.Workers != 4 {
		t.Fatalf("unexpected run summary %+v", old)
	}
	if runs[0].FinishedAt != nil {
		t.Fatal("unfinished run reported a finish time")
	}
}

func TestRecordRejectsInvalidStatus(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := store.BeginRun(ctx, "run-1", 1, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Record(ctx, "run-1", take.Status{Action: "pour", Take: 1}); err == nil {
		t.Fatal("expected error for empty status")
	}
	if err := store.BeginRun(ctx, " ", 1, 1); err == nil || !strings.Contains(err.Error(), "run id") {
		t.Fatalf("expected run id error, got %v", err)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()
	if err := store.BeginRun(ctx, "run-1", 1, 1); err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened := testsupport.MustOpenLedger(t, cfg)
	runs, err := reopened.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("Runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" {
		t.Fatalf("unexpected runs after reopen %+v", runs)
	}
}
