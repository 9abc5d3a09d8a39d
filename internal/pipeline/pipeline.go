// Package pipeline processes one sync log end to end: parse it, reduce it to
// file records and reconcile the records into every configured sink.
//
// Sinks are independent. A failing sink is reported and recorded in the
// result but does not stop the others, and a log that cannot be read only
// fails its own run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/syncsentinel/syncsentinel/internal/record"
	"github.com/syncsentinel/syncsentinel/internal/sink"
	"github.com/syncsentinel/syncsentinel/internal/synclog"
)

// DefaultSinkTimeout bounds each sink reconcile.
const DefaultSinkTimeout = time.Minute

// Binding attaches a write policy to a sink.
type Binding struct {
	Sink   sink.Sink
	Policy sink.Policy
}

// Store persists results beyond the life of the process.
type Store interface {
	RecordRun(ctx context.Context, r *Result) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink adds a sink with its policy. Sinks are reconciled in the order
// they were added.
func WithSink(s sink.Sink, p sink.Policy) Option {
	return func(pl *Pipeline) {
		pl.bindings = append(pl.bindings, Binding{Sink: s, Policy: p})
	}
}

// WithReporter adds a status reporter.
func WithReporter(r Reporter) Option {
	return func(pl *Pipeline) {
		pl.reporters.Add(r)
	}
}

// WithStore persists every result to s.
func WithStore(s Store) Option {
	return func(pl *Pipeline) {
		pl.store = s
	}
}

// WithSinkTimeout overrides DefaultSinkTimeout.
func WithSinkTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		if d > 0 {
			pl.sinkTimeout = d
		}
	}
}

// WithLogger sets the logger used for internal failures. Status lines go
// through reporters.
func WithLogger(l *slog.Logger) Option {
	return func(pl *Pipeline) {
		if l != nil {
			pl.logger = l
		}
	}
}

// Pipeline runs logs through the parser, the reducer and the sinks.
type Pipeline struct {
	bindings    []Binding
	reporters   MultiReporter
	store       Store
	last        LastResult
	sinkTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Pipeline. With no sinks it still parses and reduces, which
// is enough for the clipboard export.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		sinkTimeout: DefaultSinkTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Bindings returns the configured sinks.
func (p *Pipeline) Bindings() []Binding {
	return append([]Binding(nil), p.bindings...)
}

// Last returns the most recent result, or nil.
func (p *Pipeline) Last() *Result {
	return p.last.Snapshot()
}

// AddReporter registers r after construction.
func (p *Pipeline) AddReporter(r Reporter) {
	p.reporters.Add(r)
}

// Process runs the log at path through every stage.
//
// A log that cannot be read returns an error and leaves the last result
// untouched. Sink failures never make Process fail; they are reported and
// listed in Result.Sinks.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	start := p.now()
	res := &Result{
		ID:     uuid.New(),
		Path:   path,
		Format: synclog.FormatForPath(path),
	}
	name := filepath.Base(path)

	p.emit(res, StageDetected, "", fmt.Sprintf("New log detected: %s", name), nil)

	run, err := synclog.ParseFile(path)
	if err != nil {
		p.emit(res, StageFailed, "", fmt.Sprintf("Error parsing %s", name), err)
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	res.Run = run
	p.emit(res, StageParsed, "", fmt.Sprintf("Parsed %s: %d operations, %d files created",
		name, len(run.Operations), run.FileCount()), nil)

	res.Records = record.Reduce(run)
	p.emit(res, StageReduced, "", fmt.Sprintf("Found %d unique files", len(res.Records)), nil)

	batch := sink.Batch{Date: run.Date, Records: res.Records}
	for _, b := range p.bindings {
		outcome := p.reconcile(ctx, b, batch)
		res.Sinks = append(res.Sinks, outcome)
		if outcome.Err != nil {
			p.emit(res, StageSink, outcome.Sink, fmt.Sprintf("Failed to write %s", outcome.Sink), outcome.Err)
			continue
		}
		p.emit(res, StageSink, outcome.Sink, fmt.Sprintf("Wrote %d rows to %s", outcome.Rows, outcome.Sink), nil)
	}

	res.ProcessedAt = p.now()
	res.Duration = res.ProcessedAt.Sub(start)
	p.last.Store(res)

	if p.store != nil {
		if err := p.store.RecordRun(ctx, res); err != nil {
			p.logger.Warn("failed to record run history", "path", path, "error", err)
		}
	}

	msg := fmt.Sprintf("Finished %s: %d files, %d of %d sinks written",
		name, len(res.Records), len(res.Sinks)-len(res.FailedSinks()), len(res.Sinks))
	p.emit(res, StageComplete, "", msg, nil)
	return res, nil
}

// reconcile runs one sink under the sink timeout. A panicking sink is
// turned into a failed outcome.
func (p *Pipeline) reconcile(ctx context.Context, b Binding, batch sink.Batch) (out SinkOutcome) {
	out.Sink = b.Sink.Name()

	ctx, cancel := context.WithTimeout(ctx, p.sinkTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("sink panicked", "sink", out.Sink, "panic", r)
			out.Rows = 0
			out.Err = fmt.Errorf("sink panicked: %v", r)
		}
	}()

	out.Rows, out.Err = b.Sink.Reconcile(ctx, batch, b.Policy)
	return out
}

func (p *Pipeline) emit(res *Result, stage Stage, sinkName, msg string, err error) {
	e := Event{
		RunID:   res.ID,
		Stage:   stage,
		Path:    res.Path,
		Sink:    sinkName,
		Message: msg,
		Time:    p.now(),
	}
	if err != nil {
		e.Err = err.Error()
	}
	p.reporters.Report(e)
}
