package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/record"
	"github.com/syncsentinel/syncsentinel/internal/sink"
)

// DefaultTimeout bounds one reconcile when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// ErrSheetNotFound is returned when a sheet selected by name does not exist,
// or the spreadsheet has no sheets at all.
var ErrSheetNotFound = errors.New("sheet not found")

// Options configures a Sink.
type Options struct {
	// Timeout bounds every reconcile, including sheet resolution.
	Timeout time.Duration

	Logger *slog.Logger
}

// Sink writes batches to one sheet of a remote spreadsheet.
type Sink struct {
	api    API
	target Target
	opts   Options

	mu       sync.Mutex
	resolved *SheetInfo
}

// New returns a sink for target using api.
func New(api API, target Target, opts Options) *Sink {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Sink{api: api, target: target, opts: opts}
}

// Name implements sink.Sink.
func (s *Sink) Name() string {
	return "sheets:" + s.target.String()
}

// ListSheets returns the sheets of the target spreadsheet.
func (s *Sink) ListSheets(ctx context.Context) ([]SheetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	infos, err := s.api.Sheets(ctx, s.target.SpreadsheetID)
	if err != nil {
		return nil, s.fail("list sheets", err)
	}
	return infos, nil
}

// ResolveTarget returns the sheet the sink writes to.
func (s *Sink) ResolveTarget(ctx context.Context) (SheetInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.resolve(ctx)
}

// Reconcile implements sink.Sink.
func (s *Sink) Reconcile(ctx context.Context, b sink.Batch, p sink.Policy) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	sheet, err := s.resolve(ctx)
	if err != nil {
		return 0, err
	}

	values, err := s.api.Read(ctx, s.target.SpreadsheetID, a1(sheet.Title, "A:E"))
	if err != nil {
		return 0, s.fail("read", err)
	}
	existing := trimTrailingEmpty(values)

	rows := b.Rows()
	plan := sink.Plan(sink.StateOf(existing), rows, p)
	if len(plan) == 0 {
		return 0, nil
	}

	a := &remoteApplier{
		ctx:     ctx,
		api:     s.api,
		id:      s.target.SpreadsheetID,
		sheet:   sheet,
		table:   sink.Table{Rows: existing},
		logger:  s.opts.Logger,
		sinkTag: s.Name(),
	}
	if err := sink.Execute(plan, a); err != nil {
		return 0, s.fail("write", err)
	}
	return len(rows), nil
}

// resolve maps the target to a concrete sheet. A sheet found by name or gid
// is cached. An unknown gid falls back to the first sheet for this call only
// and is retried on the next one.
func (s *Sink) resolve(ctx context.Context) (SheetInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved != nil {
		return *s.resolved, nil
	}

	infos, err := s.api.Sheets(ctx, s.target.SpreadsheetID)
	if err != nil {
		return SheetInfo{}, s.fail("resolve sheet", err)
	}
	if len(infos) == 0 {
		return SheetInfo{}, sink.NewError(sink.KindUnreachable, s.Name(), "resolve sheet", ErrSheetNotFound)
	}

	switch {
	case s.target.HasGID:
		for _, info := range infos {
			if info.ID == s.target.GID {
				s.resolved = &info
				return info, nil
			}
		}
		s.opts.Logger.Warn("sheet gid not found, using first sheet",
			"sink", s.Name(), "gid", s.target.GID, "sheet", infos[0].Title)
		return infos[0], nil

	case s.target.SheetName != "":
		for _, info := range infos {
			if info.Title == s.target.SheetName {
				s.resolved = &info
				return info, nil
			}
		}
		return SheetInfo{}, sink.NewError(sink.KindUnreachable, s.Name(), "resolve sheet",
			fmt.Errorf("%w: %q", ErrSheetNotFound, s.target.SheetName))

	default:
		first := infos[0]
		s.resolved = &first
		return first, nil
	}
}

func (s *Sink) fail(op string, err error) error {
	var se *sink.Error
	if errors.As(err, &se) {
		return err
	}
	return sink.NewError(classify(err), s.Name(), op, err)
}

// remoteApplier applies a plan to one sheet. table mirrors the sheet content
// so fallbacks can rewrite it without another read.
type remoteApplier struct {
	ctx     context.Context
	api     API
	id      string
	sheet   SheetInfo
	table   sink.Table
	logger  *slog.Logger
	sinkTag string
}

func (a *remoteApplier) WriteHeader() error {
	if len(a.table.Rows) == 0 {
		if err := a.api.Write(a.ctx, a.id, a1(a.sheet.Title, "A1:E1"), [][]string{sink.HeaderRow()}); err != nil {
			return err
		}
		return a.table.WriteHeader()
	}

	if err := a.api.InsertRows(a.ctx, a.id, a.sheet.ID, 0, 1); err != nil {
		if a.ctx.Err() != nil {
			return err
		}
		a.logger.Warn("row insert failed, rewriting sheet", "sink", a.sinkTag, "error", err)
		if err := a.table.WriteHeader(); err != nil {
			return err
		}
		return a.writeFrom(1, a.table.Rows)
	}
	if err := a.api.Write(a.ctx, a.id, a1(a.sheet.Title, "A1:E1"), [][]string{sink.HeaderRow()}); err != nil {
		return err
	}
	return a.table.WriteHeader()
}

func (a *remoteApplier) InsertAfterHeader(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	err := a.api.InsertRows(a.ctx, a.id, a.sheet.ID, 1, len(rows))
	if err == nil {
		if err := a.writeFrom(2, rows); err != nil {
			return err
		}
		return a.table.InsertAfterHeader(rows)
	}
	if a.ctx.Err() != nil {
		return err
	}

	a.logger.Warn("row insert failed, rewriting rows below header", "sink", a.sinkTag, "error", err)
	below, err := a.api.Read(a.ctx, a.id, a1(a.sheet.Title, "A2:E"))
	if err != nil {
		return err
	}
	below = trimTrailingEmpty(below)
	if err := a.writeFrom(2, rows); err != nil {
		return err
	}
	if len(below) > 0 {
		if err := a.writeFrom(2+len(rows), below); err != nil {
			return err
		}
	}
	a.table.Rows = append(append([][]string{sink.HeaderRow()}, rows...), below...)
	return nil
}

func (a *remoteApplier) Append(rows [][]string) error {
	if err := a.writeFrom(len(a.table.Rows)+1, rows); err != nil {
		return err
	}
	return a.table.Append(rows)
}

// writeFrom writes rows starting at the one-based row first.
func (a *remoteApplier) writeFrom(first int, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	rng := fmt.Sprintf("A%d:E%d", first, first+len(rows)-1)
	return a.api.Write(a.ctx, a.id, a1(a.sheet.Title, rng), padRows(rows))
}

// a1 qualifies rng with a quoted sheet title.
func a1(title, rng string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'!" + rng
}

// padRows widens every row to the full column count so shorter rows clear
// stale cells when written over existing content.
func padRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) >= record.Columns {
			out[i] = r
			continue
		}
		p := make([]string, record.Columns)
		copy(p, r)
		out[i] = p
	}
	return out
}

func trimTrailingEmpty(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isEmptyRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
