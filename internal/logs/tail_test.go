package logs_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rsextract/internal/logs"
)

func record(msg, action string, take int, extra string) string {
	return fmt.Sprintf(`{"ts":"2026-03-01T10:00:00Z","level":"info","msg":%q,"component":"take","run_id":"r1","action":%q,"take":%d%s}`+"\n", msg, action, take, extra)
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rsextract.log")
	var content string
	for _, l := range lines {
		content += l
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailKeepsLastMatchingRecords(t *testing.T) {
	path := writeLog(t,
		record("a", "pour", 1, ""),
		record("b", "pour", 2, ""),
		"garbage\n",
		record("c", "pour", 1, ""),
		record("d", "pour", 1, ""),
		record("e", "wave", 1, ""),
	)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{
		Filter: logs.Filter{Action: "pour", Take: 1},
		Offset: -1,
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("tail returned error: %v", err)
	}
	if len(result.Entries) != 2 || result.Entries[0].Message != "c" || result.Entries[1].Message != "d" {
		t.Fatalf("unexpected entries: %#v", result.Entries)
	}
	info, _ := os.Stat(path)
	if result.Offset != info.Size() || result.Done {
		t.Fatalf("offset = %d done = %v, want %d and not done", result.Offset, result.Done, info.Size())
	}
}

func TestTailMissingFile(t *testing.T) {
	result, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "none.log"), logs.TailOptions{Offset: -1, Limit: 5})
	if err != nil || len(result.Entries) != 0 {
		t.Fatalf("missing file: %#v, %v", result, err)
	}
}

func TestTailLeavesPartialLine(t *testing.T) {
	full := record("a", "pour", 1, "")
	path := writeLog(t, full, `{"msg":"half`)

	result, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(result.Entries) != 1 || result.Offset != int64(len(full)) {
		t.Fatalf("entries = %d offset = %d, want 1 and %d", len(result.Entries), result.Offset, len(full))
	}
}

func TestTailFollowSkipsOtherTakesAndStopsAtOutcome(t *testing.T) {
	path := writeLog(t, record("start", "pour", 2, ""))
	filter := logs.Filter{Action: "pour", Take: 2}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	result, err := logs.Tail(ctx, path, logs.TailOptions{Filter: filter, Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("initial tail: %v", err)
	}
	if len(result.Entries) != 1 || result.Done {
		t.Fatalf("initial tail = %#v", result)
	}

	type outcome struct {
		res logs.TailResult
		err error
	}
	done := make(chan outcome, 1)
	go func(offset int64) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{Filter: filter, Offset: offset, Follow: true, Wait: 5 * time.Second})
		done <- outcome{res, err}
	}(result.Offset)

	time.Sleep(100 * time.Millisecond)
	appendLog(t, path, record("other take", "pour", 3, ""))
	time.Sleep(400 * time.Millisecond)
	appendLog(t, path, record("take completed", "pour", 2, `,"event_type":"take_completed"`))

	select {
	case got := <-done:
		if got.err != nil {
			t.Fatalf("follow tail error: %v", got.err)
		}
		if len(got.res.Entries) != 1 || got.res.Entries[0].Message != "take completed" || !got.res.Done {
			t.Fatalf("unexpected follow result: %#v", got.res)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tail follow did not return")
	}
}
