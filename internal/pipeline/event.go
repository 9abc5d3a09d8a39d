package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage marks a step of processing one log.
type Stage int

const (
	StageDetected Stage = iota
	StageParsed
	StageReduced
	StageSink
	StageComplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageDetected:
		return "detected"
	case StageParsed:
		return "parsed"
	case StageReduced:
		return "reduced"
	case StageSink:
		return "sink"
	case StageComplete:
		return "complete"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the stage name in JSON status messages.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is a status update for one run.
type Event struct {
	RunID   uuid.UUID `json:"run_id"`
	Stage   Stage     `json:"stage"`
	Path    string    `json:"path"`
	Sink    string    `json:"sink,omitempty"`
	Message string    `json:"message"`
	Err     string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// Failed reports whether the event carries an error.
func (e Event) Failed() bool {
	return e.Err != ""
}

// Reporter receives status updates. Report must not block for long; it runs
// on the processing goroutine.
type Reporter interface {
	Report(Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Event)

// Report implements Reporter.
func (f ReporterFunc) Report(e Event) { f(e) }

// MultiReporter fans events out to several reporters in order.
type MultiReporter struct {
	mu        sync.RWMutex
	reporters []Reporter
}

// Add registers r.
func (m *MultiReporter) Add(r Reporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reporters = append(m.reporters, r)
}

// Report implements Reporter.
func (m *MultiReporter) Report(e Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.reporters {
		r.Report(e)
	}
}

// LogReporter writes every event as a structured log line.
type LogReporter struct {
	Logger *slog.Logger
}

// Report implements Reporter.
func (l LogReporter) Report(e Event) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{"stage", e.Stage.String(), "path", e.Path, "run", e.RunID.String()}
	if e.Sink != "" {
		attrs = append(attrs, "sink", e.Sink)
	}
	if e.Failed() {
		attrs = append(attrs, "error", e.Err)
		logger.Warn(e.Message, attrs...)
		return
	}
	logger.Info(e.Message, attrs...)
}
