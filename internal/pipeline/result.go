package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncsentinel/syncsentinel/internal/record"
	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// SinkOutcome is the result of reconciling one sink.
type SinkOutcome struct {
	Sink string
	Rows int
	Err  error
}

// OK reports whether the sink was reconciled.
func (o SinkOutcome) OK() bool {
	return o.Err == nil
}

// Result is everything produced by processing one log.
type Result struct {
	ID          uuid.UUID
	Path        string
	Format      synclog.Format
	Run         *synclog.SyncRun
	Records     []record.FileRecord
	Sinks       []SinkOutcome
	ProcessedAt time.Time
	Duration    time.Duration
}

// Date returns the run date, or "" if the run is unknown.
func (r *Result) Date() string {
	if r == nil || r.Run == nil {
		return ""
	}
	return r.Run.Date
}

// TSV returns the records as a tab-separated block ready for the clipboard.
func (r *Result) TSV() string {
	if r == nil {
		return ""
	}
	return record.TSV(r.Date(), r.Records)
}

// FailedSinks returns the outcomes that carry an error.
func (r *Result) FailedSinks() []SinkOutcome {
	var failed []SinkOutcome
	for _, o := range r.Sinks {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	return failed
}

// LastResult holds the most recent successful run.
type LastResult struct {
	mu sync.RWMutex
	r  *Result
}

// Store replaces the held result.
func (l *LastResult) Store(r *Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r = r
}

// Snapshot returns the held result, or nil if nothing has run yet.
func (l *LastResult) Snapshot() *Result {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.r
}
