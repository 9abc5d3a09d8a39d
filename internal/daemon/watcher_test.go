package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// TestNewFileWatcher verifies that creating a new FileWatcher succeeds.
func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

// TestFileWatcher_StartStop verifies that the watcher can start and stop cleanly.
func TestFileWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if fw.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", fw.Dir(), dir)
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}

	// Channels are closed after Stop.
	if _, ok := <-fw.Events(); ok {
		t.Error("Events() should be closed after Stop()")
	}
}

// TestFileWatcher_StartAlreadyRunning verifies that starting an already running watcher fails.
func TestFileWatcher_StartAlreadyRunning(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(dir); err != nil {
		t.Fatalf("First Start() failed: %v", err)
	}
	if err := fw.Start(dir); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}
}

// TestFileWatcher_MissingDirectory verifies that a missing directory is reported.
func TestFileWatcher_MissingDirectory(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Start() should fail for a missing directory")
	}
}

// TestFileWatcher_LogCreated verifies that creating a log triggers an event.
func TestFileWatcher_LogCreated(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(dir, "Nightly 2025-09-13.HTML")
	if err := os.WriteFile(path, []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("Failed to write log: %v", err)
	}

	select {
	case event := <-fw.Events():
		if event.Op != OpCreate {
			t.Errorf("Expected OpCreate, got %v", event.Op)
		}
		if event.Format != synclog.Markup {
			t.Errorf("Expected Markup, got %v", event.Format)
		}
		if filepath.Base(event.Path) != "Nightly 2025-09-13.HTML" {
			t.Errorf("Unexpected path %s", event.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for create event")
	}
}

// TestFileWatcher_IgnoresOtherFiles verifies that non-log files are ignored.
func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(dir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	select {
	case event := <-fw.Events():
		t.Errorf("Unexpected event for non-log file: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConvertEvent(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "folder.log")
	if err := os.Mkdir(logDir, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	logPath := filepath.Join(dir, "run.log")

	tests := []struct {
		name   string
		event  fsnotify.Event
		wantOK bool
		wantOp EventOp
	}{
		{"create log", fsnotify.Event{Name: logPath, Op: fsnotify.Create}, true, OpCreate},
		{"write log", fsnotify.Event{Name: logPath, Op: fsnotify.Write}, true, OpModify},
		{"remove log", fsnotify.Event{Name: logPath, Op: fsnotify.Remove}, true, OpDelete},
		{"rename log", fsnotify.Event{Name: logPath, Op: fsnotify.Rename}, true, OpDelete},
		{"chmod log", fsnotify.Event{Name: logPath, Op: fsnotify.Chmod}, false, 0},
		{"create txt", fsnotify.Event{Name: filepath.Join(dir, "a.txt"), Op: fsnotify.Create}, false, 0},
		{"create directory named like a log", fsnotify.Event{Name: logDir, Op: fsnotify.Create}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := convertEvent(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("convertEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.Op != tt.wantOp {
				t.Errorf("convertEvent() op = %v, want %v", got.Op, tt.wantOp)
			}
		})
	}
}

func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("EventOp(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
