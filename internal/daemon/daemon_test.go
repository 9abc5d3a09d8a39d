package daemon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/pipeline"
)

// fakeProcessor records the paths it was asked to process.
type fakeProcessor struct {
	mu      sync.Mutex
	paths   []string
	err     error
	delay   time.Duration
	active  int
	overlap bool
	done    chan string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{done: make(chan string, 100)}
}

func (f *fakeProcessor) Process(ctx context.Context, path string) (*pipeline.Result, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.paths = append(f.paths, path)
	err := f.err
	f.mu.Unlock()

	f.done <- path
	if err != nil {
		return nil, err
	}
	return &pipeline.Result{Path: path}, nil
}

func (f *fakeProcessor) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func testConfig() *Config {
	return &Config{
		SettleDelay: 30 * time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// waitFor reads n paths from the processor or fails.
func waitFor(t *testing.T, f *fakeProcessor, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.done:
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d of %d processed logs", i, n)
		}
	}
}

// startDaemon runs d in the background and stops it at the end of the test.
func startDaemon(t *testing.T, d *Daemon) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		proc    Processor
		wantErr bool
	}{
		{"valid processor", newFakeProcessor(), false},
		{"nil processor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.proc, t.TempDir())
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && d == nil {
				t.Fatal("New() returned nil daemon")
			}
		})
	}
}

func TestNewWithConfig_Defaults(t *testing.T) {
	d, err := NewWithConfig(newFakeProcessor(), "", &Config{})
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	if d.config.SettleDelay != DefaultSettleDelay {
		t.Errorf("SettleDelay = %v, want %v", d.config.SettleDelay, DefaultSettleDelay)
	}
	if d.config.Logger == nil {
		t.Error("Logger should default to non-nil")
	}
}

func TestQueue_DedupeAndSettle(t *testing.T) {
	proc := newFakeProcessor()
	d, err := NewWithConfig(proc, "", testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}

	clock := time.Date(2025, 9, 13, 14, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	d.Notify("a.log")
	d.Notify("b.log")
	d.Notify("a.log")
	if d.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", d.Pending())
	}

	// Nothing has settled yet.
	d.processPendingChanges()
	if got := proc.processed(); len(got) != 0 {
		t.Fatalf("processed before settle: %v", got)
	}

	// A repeat notification restarts the wait for a.log only.
	clock = clock.Add(20 * time.Millisecond)
	d.Notify("a.log")
	clock = clock.Add(15 * time.Millisecond)

	d.processPendingChanges()
	if got := proc.processed(); len(got) != 1 || got[0] != "b.log" {
		t.Fatalf("processed = %v, want [b.log]", got)
	}

	clock = clock.Add(30 * time.Millisecond)
	d.processPendingChanges()
	if got := proc.processed(); len(got) != 2 || got[1] != "a.log" {
		t.Fatalf("processed = %v, want [b.log a.log]", got)
	}
	if d.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", d.Pending())
	}
}

func TestDaemon_ProcessesInQueueOrder(t *testing.T) {
	proc := newFakeProcessor()
	proc.delay = 10 * time.Millisecond
	d, err := NewWithConfig(proc, "", testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}

	d.Notify("1.log")
	d.Notify("2.log")
	d.Notify("3.log")
	startDaemon(t, d)

	waitFor(t, proc, 3)

	got := proc.processed()
	want := []string{"1.log", "2.log", "3.log"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processed = %v, want %v", got, want)
		}
	}
	if proc.overlap {
		t.Error("logs were processed concurrently")
	}
}

func TestDaemon_KeepsRunningAfterFailure(t *testing.T) {
	proc := newFakeProcessor()
	proc.err = errors.New("parse failed")
	d, err := NewWithConfig(proc, "", testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	d.Notify("bad.log")
	waitFor(t, proc, 1)

	d.Notify("next.log")
	waitFor(t, proc, 1)
}

func TestDaemon_WatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	proc := newFakeProcessor()
	d, err := NewWithConfig(proc, dir, testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	// Give the watcher time to start.
	time.Sleep(100 * time.Millisecond)

	logPath := filepath.Join(dir, "Nightly.log")
	if err := os.WriteFile(logPath, []byte("Nightly 9/13/2025 [2:30:15 PM]\n"), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	waitFor(t, proc, 1)
	if got := proc.processed(); got[0] != logPath {
		t.Errorf("processed = %v, want [%s]", got, logPath)
	}

	// The write after create must not queue the log a second time.
	time.Sleep(150 * time.Millisecond)
	if got := proc.processed(); len(got) != 1 {
		t.Errorf("processed = %v, want a single run", got)
	}
}

func TestDaemon_PollsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.log"), []byte(""), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	proc := newFakeProcessor()
	cfg := testConfig()
	cfg.PollInterval = 20 * time.Millisecond
	d, err := NewWithConfig(proc, dir, cfg)
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	startDaemon(t, d)

	time.Sleep(50 * time.Millisecond)
	newPath := filepath.Join(dir, "new.html")
	if err := os.WriteFile(newPath, []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	waitFor(t, proc, 1)
	if got := proc.processed(); len(got) != 1 || got[0] != newPath {
		t.Errorf("processed = %v, want [%s]", got, newPath)
	}
}

func TestDaemon_StopWaitsForCurrentLog(t *testing.T) {
	proc := newFakeProcessor()
	proc.delay = 200 * time.Millisecond
	d, err := NewWithConfig(proc, "", testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	d.Notify("slow.log")

	// Let the worker pick the log up, then stop mid-run.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("daemon did not stop")
	}

	if got := proc.processed(); len(got) != 1 {
		t.Errorf("processed = %v, want the in-flight log to finish", got)
	}

	// Stop is idempotent.
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestDaemon_StartMissingDirectory(t *testing.T) {
	d, err := NewWithConfig(newFakeProcessor(), filepath.Join(t.TempDir(), "missing"), testConfig())
	if err != nil {
		t.Fatalf("NewWithConfig() failed: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}
