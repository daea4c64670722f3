package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/granarylabs/granary/internal/logger"
)

func TestWatcherTriggersAfterDrop(t *testing.T) {
	h := newHarness(t, 3)
	sched := newTestScheduler(h, 1)
	log := logger.New(&logger.Config{Level: "error", ServiceName: "test"})
	w := NewWatcher(h.folder, 50*time.Millisecond, h.registry, sched, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	// Give the watch a moment to establish before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(h.folder, "dropped.tbl"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The debounced event lands in the scheduler's trigger queue.
	select {
	case reason := <-sched.kick:
		if reason != "watch" {
			t.Errorf("trigger reason = %q, want watch", reason)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger after dropping a file")
	}

	cancel()
	<-done
}

func TestWatcherMissingFolder(t *testing.T) {
	h := newHarness(t, 3)
	sched := newTestScheduler(h, 1)
	log := logger.New(&logger.Config{Level: "error", ServiceName: "test"})
	w := NewWatcher(filepath.Join(h.dir, "nope"), time.Second, h.registry, sched, log)

	if err := w.Run(context.Background()); err == nil {
		t.Fatal("Run() on a missing folder should fail")
	}
}

func TestWatcherRelevance(t *testing.T) {
	h := newHarness(t, 3)
	sched := newTestScheduler(h, 1)
	log := logger.New(&logger.Config{Level: "error", ServiceName: "test"})
	w := NewWatcher(h.folder, time.Second, h.registry, sched, log)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"registered extension create", fsnotify.Event{Name: "a.tbl", Op: fsnotify.Create}, true},
		{"registered extension write", fsnotify.Event{Name: "a.tbl", Op: fsnotify.Write}, true},
		{"rename into folder", fsnotify.Event{Name: "a.tbl", Op: fsnotify.Rename}, true},
		{"unclaimed extension", fsnotify.Event{Name: "a.txt", Op: fsnotify.Create}, false},
		{"no extension", fsnotify.Event{Name: "README", Op: fsnotify.Create}, false},
		{"removal ignored", fsnotify.Event{Name: "a.tbl", Op: fsnotify.Remove}, false},
		{"chmod ignored", fsnotify.Event{Name: "a.tbl", Op: fsnotify.Chmod}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.relevant(tt.event); got != tt.want {
				t.Errorf("relevant(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}
