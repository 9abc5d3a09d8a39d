package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/config"
	"github.com/syncsentinel/syncsentinel/internal/history"
	"github.com/syncsentinel/syncsentinel/internal/logging"
	"github.com/syncsentinel/syncsentinel/internal/pipeline"
	"github.com/syncsentinel/syncsentinel/internal/sink"
	"github.com/syncsentinel/syncsentinel/internal/sink/sheets"
	"github.com/syncsentinel/syncsentinel/internal/sink/workbook"
	"github.com/syncsentinel/syncsentinel/internal/ui"
)

// localSink returns the local file sink for path: a workbook for .xlsx,
// CSV otherwise.
func localSink(path, sheet string) sink.Sink {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return workbook.New(path, sheet)
	}
	return sink.NewLocalFile(path)
}

// remoteSink connects to the configured spreadsheet.
func remoteSink(ctx context.Context, c *config.Config, target string) (*sheets.Sink, error) {
	if target == "" {
		target = c.Sheets.Target
	}
	t, err := sheets.ParseTarget(target)
	if err != nil {
		return nil, err
	}
	api, err := sheets.NewGoogleAPI(ctx, c.Sheets.Credentials)
	if err != nil {
		return nil, err
	}
	return sheets.New(api, t, sheets.Options{
		Timeout: c.Sheets.Timeout,
		Logger:  logging.Component("sheets"),
	}), nil
}

// bindings returns the sinks selected by the configuration, local first.
func bindings(ctx context.Context, c *config.Config) ([]pipeline.Binding, error) {
	var out []pipeline.Binding
	if c.Local.Path != "" {
		out = append(out, pipeline.Binding{Sink: localSink(c.Local.Path, c.Local.Sheet), Policy: c.LocalPolicy()})
	}
	if c.Sheets.Enabled {
		s, err := remoteSink(ctx, c, "")
		if err != nil {
			return nil, fmt.Errorf("google sheets: %w", err)
		}
		out = append(out, pipeline.Binding{Sink: s, Policy: c.SheetsPolicy()})
	}
	return out, nil
}

// app is the wired pipeline plus the resources it holds.
type app struct {
	pipe  *pipeline.Pipeline
	store *history.Store
}

// newApp builds the pipeline for c. Close must be called when done.
func newApp(ctx context.Context, c *config.Config, out io.Writer) (*app, error) {
	bs, err := bindings(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(bs) == 0 {
		slog.Warn("no sinks configured; set local.path or sheets.enabled")
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logging.Component("pipeline")),
		pipeline.WithReporter(pipeline.LogReporter{Logger: logging.Component("status")}),
	}
	if out != nil {
		opts = append(opts, pipeline.WithReporter(&consoleReporter{w: out}))
	}
	for _, b := range bs {
		opts = append(opts, pipeline.WithSink(b.Sink, b.Policy))
	}

	a := &app{}
	if c.History.Enabled {
		store, err := history.Open(c.History.Path)
		if err != nil {
			return nil, err
		}
		a.store = store
		opts = append(opts, pipeline.WithStore(store))
	}

	a.pipe = pipeline.New(opts...)
	return a, nil
}

// Close releases the history store.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("failed to close history", "error", err)
		}
	}
}

// openHistory opens the configured history store for reading.
func openHistory(c *config.Config) (*history.Store, error) {
	if !c.History.Enabled {
		return nil, fmt.Errorf("history is disabled (history.enabled=false)")
	}
	return history.Open(c.History.Path)
}

// consoleReporter prints one line per pipeline event, like an activity log.
type consoleReporter struct {
	w io.Writer
}

func (r *consoleReporter) Report(e pipeline.Event) {
	stamp := ui.RenderMuted(e.Time.Format(time.TimeOnly))
	switch {
	case e.Failed():
		fmt.Fprintf(r.w, "%s %s %s: %s\n", stamp, ui.RenderFail("✗"), e.Message, e.Err)
	case e.Stage == pipeline.StageComplete:
		fmt.Fprintf(r.w, "%s %s %s\n", stamp, ui.RenderPass("✓"), e.Message)
	case e.Stage == pipeline.StageDetected:
		fmt.Fprintf(r.w, "%s %s %s\n", stamp, ui.RenderAccent("→"), e.Message)
	default:
		fmt.Fprintf(r.w, "%s   %s\n", stamp, e.Message)
	}
}
