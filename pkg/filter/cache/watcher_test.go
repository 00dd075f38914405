package cache

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestShouldProcessEvent(t *testing.T) {
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"yaml write", fsnotify.Event{Name: "rules.yaml", Op: fsnotify.Write}, true},
		{"yml create", fsnotify.Event{Name: "extra.yml", Op: fsnotify.Create}, true},
		{"chmod ignored", fsnotify.Event{Name: "rules.yaml", Op: fsnotify.Chmod}, false},
		{"hidden file ignored", fsnotify.Event{Name: ".rules.yaml.swp", Op: fsnotify.Write}, false},
		{"non-yaml ignored", fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write}, false},
		{"rename", fsnotify.Event{Name: "rules.yaml", Op: fsnotify.Rename}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldProcessEvent(tt.event); got != tt.want {
				t.Errorf("shouldProcessEvent(%v) = %t, want %t", tt.event, got, tt.want)
			}
		})
	}
}

func TestDebouncer_CoalescesBursts(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		d.trigger(func() { fired.Add(1) })
	}

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	// Quiet period so a stray second fire would be observed.
	time.Sleep(50 * time.Millisecond)

	if got := fired.Load(); got != 1 {
		t.Errorf("callback fired %d times, want 1", got)
	}
}

func TestDebouncer_StopSuppressesPending(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	var fired atomic.Int32
	d.trigger(func() { fired.Add(1) })
	d.stop()

	time.Sleep(80 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("callback fired %d times after stop, want 0", got)
	}
}

func TestWatcher_RefreshOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRuleFile(t, path, `rules:
  - id: 1
    name: first
    type: keyword
    pattern: alpha
    severity: 5
    category: test
    active: true
`)

	c, err := New(Config{TTL: time.Hour}, NewFileSource(path), testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	before := c.Current().Version

	w, err := NewWatcher(path, c, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- w.Watch(ctx) }()
	defer w.Stop()

	// Give the watcher a moment to register the path.
	time.Sleep(50 * time.Millisecond)

	writeRuleFile(t, path, `rules:
  - id: 1
    name: first
    type: keyword
    pattern: alpha|beta
    severity: 5
    category: test
    active: true
`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if c.Current().Version != before {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if c.Current().Version == before {
		t.Fatal("snapshot version unchanged after file modification")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := <-watchDone; err != nil {
		t.Errorf("Watch returned error: %v", err)
	}
}

func TestWatcher_StopWithoutWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeRuleFile(t, path, "rules: []\n")

	c, err := New(Config{TTL: time.Hour}, NewFileSource(path), testLogger())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	w, err := NewWatcher(path, c, testLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}
}

func writeRuleFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing rule file: %v", err)
	}
}
