package service

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/granarylabs/granary/internal/domain"
	"github.com/granarylabs/granary/internal/logger"
)

func newTestScheduler(h *harness, workers int) *Scheduler {
	log := logger.New(&logger.Config{Level: "error", ServiceName: "test"})
	return NewScheduler(h.store, h.registry, h.processor, nil, nil, nil, log, SchedulerConfig{
		Folder:  h.folder,
		Workers: workers,
	})
}

func TestRunPassProcessesEligibleFiles(t *testing.T) {
	h := newHarness(t, 3)
	h.dropFile(t, "a.tbl", memTable{name: "a1", cols: intCols(), rows: intRows(2)})
	h.dropFile(t, "b.tbl", memTable{name: "b1", cols: intCols(), rows: intRows(3)})
	sched := newTestScheduler(h, 1)

	result, err := sched.RunPass(context.Background())
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	if result.Total != 2 || result.Succeeded != 2 {
		t.Errorf("result = total %d / success %d, want 2/2", result.Total, result.Succeeded)
	}
	if result.RowsImported != 5 {
		t.Errorf("rows imported = %d, want 5", result.RowsImported)
	}
	if last, ok := sched.LastResult(); !ok || last.PassID != result.PassID {
		t.Error("LastResult() does not reflect the finished pass")
	}
}

func TestRunPassIdempotentSkip(t *testing.T) {
	h := newHarness(t, 3)
	h.dropFile(t, "once.tbl", memTable{name: "t", cols: intCols(), rows: intRows(4)})
	sched := newTestScheduler(h, 1)
	ctx := context.Background()

	if _, err := sched.RunPass(ctx); err != nil {
		t.Fatalf("first pass error = %v", err)
	}
	calls := h.sink.insertCalls()

	// Unchanged file: the second pass makes zero additional transfer calls.
	result, err := sched.RunPass(ctx)
	if err != nil {
		t.Fatalf("second pass error = %v", err)
	}
	if result.Total != 0 {
		t.Errorf("second pass total = %d, want 0 eligible files", result.Total)
	}
	if h.sink.insertCalls() != calls {
		t.Errorf("insert calls grew from %d to %d on an unchanged file", calls, h.sink.insertCalls())
	}
}

func TestRunPassReArmsOnModTimeAdvance(t *testing.T) {
	h := newHarness(t, 3)
	path := h.dropFile(t, "changing.tbl", memTable{name: "t", cols: intCols(), rows: intRows(1)})
	sched := newTestScheduler(h, 1)
	ctx := context.Background()

	if _, err := sched.RunPass(ctx); err != nil {
		t.Fatal(err)
	}
	rec, _ := h.store.Get(path)
	if rec.Status != domain.FileStatusSuccess {
		t.Fatalf("first pass record = %q, want success", rec.Status)
	}

	// A newer file version re-arms the record.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	result, err := sched.RunPass(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 1 || result.Succeeded != 1 {
		t.Errorf("pass after modTime advance = total %d / success %d, want 1/1", result.Total, result.Succeeded)
	}
}

func TestRunPassRetryBudget(t *testing.T) {
	const maxRetries = 2
	h := newHarness(t, maxRetries)
	path := h.dropFile(t, "cursed.tbl", memTable{name: "bad", cols: intCols(), rows: intRows(1)})
	h.sink.failTables["bad"] = true
	sched := newTestScheduler(h, 1)
	ctx := context.Background()

	for attempt := 1; attempt <= maxRetries; attempt++ {
		result, err := sched.RunPass(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if result.Failed != 1 {
			t.Fatalf("attempt %d: failed = %d, want 1", attempt, result.Failed)
		}
		rec, _ := h.store.Get(path)
		if rec.RetryCount != attempt {
			t.Fatalf("attempt %d: retryCount = %d", attempt, rec.RetryCount)
		}
	}

	// Budget exhausted: the file drops out of the eligible set.
	result, err := sched.RunPass(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 0 {
		t.Errorf("pass after budget exhausted: total = %d, want 0", result.Total)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	const files = 6
	ctx := context.Background()

	run := func(workers int) *domain.PassResult {
		h := newHarness(t, 3)
		for i := 0; i < files; i++ {
			h.dropFile(t, fmt.Sprintf("f%d.tbl", i),
				memTable{name: fmt.Sprintf("t%d", i), cols: intCols(), rows: intRows(i + 1)})
		}
		// One file fails so mixed counters are compared too.
		h.sink.failTables["t3"] = true

		result, err := newTestScheduler(h, workers).RunPass(ctx)
		if err != nil {
			t.Fatal(err)
		}
		return result
	}

	sequential := run(1)
	for workers := 2; workers <= files; workers++ {
		parallel := run(workers)
		if parallel.Total != sequential.Total ||
			parallel.Succeeded != sequential.Succeeded ||
			parallel.Failed != sequential.Failed ||
			parallel.Skipped != sequential.Skipped ||
			parallel.RowsImported != sequential.RowsImported {
			t.Errorf("workers=%d counters (%d/%d/%d/%d rows %d) differ from sequential (%d/%d/%d/%d rows %d)",
				workers,
				parallel.Total, parallel.Succeeded, parallel.Failed, parallel.Skipped, parallel.RowsImported,
				sequential.Total, sequential.Succeeded, sequential.Failed, sequential.Skipped, sequential.RowsImported)
		}
	}
}

func TestRunPassRejectedWhileRunning(t *testing.T) {
	h := newHarness(t, 3)
	h.dropFile(t, "slow.tbl", memTable{name: "slow", cols: intCols(), rows: intRows(1)})
	sched := newTestScheduler(h, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	h.sink.onInsert = func(string) {
		close(started)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := sched.RunPass(context.Background())
		done <- err
	}()

	<-started
	if _, err := sched.RunPass(context.Background()); err != ErrPassInProgress {
		t.Errorf("concurrent RunPass() error = %v, want ErrPassInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first pass error = %v", err)
	}
}

func TestTriggerDroppedNotQueued(t *testing.T) {
	h := newHarness(t, 3)
	sched := newTestScheduler(h, 1)

	if !sched.Trigger("first") {
		t.Error("first trigger should be accepted")
	}
	// The kick buffer holds one pending trigger; further ones are dropped.
	if sched.Trigger("second") {
		t.Error("second trigger should be dropped, not queued")
	}
}

func TestRunPassMissingFolder(t *testing.T) {
	h := newHarness(t, 3)
	if err := os.RemoveAll(h.folder); err != nil {
		t.Fatal(err)
	}
	sched := newTestScheduler(h, 1)

	result, err := sched.RunPass(context.Background())
	if err == nil {
		t.Fatal("RunPass() on a missing folder should report the scan error")
	}
	if result == nil || result.Message == "" {
		t.Error("aborted pass should carry the scan error message")
	}

	// The scheduler recovers: a later pass against a restored folder works.
	if err := os.MkdirAll(h.folder, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := sched.RunPass(context.Background()); err != nil {
		t.Errorf("pass after folder restore error = %v", err)
	}
}

func TestCancelledPassStopsDequeuing(t *testing.T) {
	h := newHarness(t, 3)
	for i := 0; i < 4; i++ {
		h.dropFile(t, fmt.Sprintf("c%d.tbl", i),
			memTable{name: fmt.Sprintf("c%d", i), cols: intCols(), rows: intRows(1)})
	}
	sched := newTestScheduler(h, 1)

	ctx, cancel := context.WithCancel(context.Background())
	h.sink.onInsert = func(string) { cancel() }

	result, err := sched.RunPass(ctx)
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}

	// At least one file was in flight when the signal arrived; files never
	// handed to a worker stay pending for the next pass.
	if result.Processed()+result.Skipped >= result.Total {
		t.Errorf("cancellation should leave files unprocessed: %+v", result)
	}
	pending := 0
	for _, rec := range h.store.All() {
		if rec.Status == domain.FileStatusPending {
			pending++
		}
	}
	if pending == 0 {
		t.Error("no records left pending after cancellation")
	}
}
