// Package workbook implements a sink backed by a local .xlsx workbook.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/syncsentinel/syncsentinel/internal/sink"
)

// DefaultSheet is the worksheet used when none is configured.
const DefaultSheet = "Sync Log"

// Sink writes batches to one worksheet of a workbook file.
type Sink struct {
	path  string
	sheet string
}

// New returns a sink for the given worksheet of the workbook at path. The
// workbook and worksheet are created when missing.
func New(path, sheet string) *Sink {
	if sheet == "" {
		sheet = DefaultSheet
	}
	return &Sink{path: path, sheet: sheet}
}

// Name implements sink.Sink.
func (s *Sink) Name() string {
	return fmt.Sprintf("xlsx:%s[%s]", s.path, s.sheet)
}

// Reconcile implements sink.Sink.
func (s *Sink) Reconcile(ctx context.Context, b sink.Batch, p sink.Policy) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, s.fail(sink.KindUnreachable, "reconcile", err)
	}

	f, err := s.open()
	if err != nil {
		return 0, err
	}
	defer f.Close()

	existing, err := f.GetRows(s.sheet)
	if err != nil {
		return 0, s.fail(sink.KindMalformedExisting, "read", err)
	}

	rows := b.Rows()
	plan := sink.Plan(sink.StateOf(existing), rows, p)
	if len(plan) == 0 {
		return 0, nil
	}

	a := &sheetApplier{f: f, sheet: s.sheet, rows: len(existing)}
	if err := sink.Execute(plan, a); err != nil {
		return 0, s.fail(sink.KindMalformedExisting, "write", err)
	}
	if err := s.save(f); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// open loads the workbook, or starts a new one, and makes sure the worksheet
// exists.
func (s *Sink) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		f = excelize.NewFile()
		if err := f.SetSheetName("Sheet1", s.sheet); err != nil {
			f.Close()
			return nil, s.fail(sink.KindUnreachable, "create", err)
		}
		return f, nil
	case errors.Is(err, fs.ErrPermission):
		return nil, s.fail(sink.KindPermissionDenied, "open", err)
	default:
		return nil, s.fail(sink.KindMalformedExisting, "open", err)
	}

	idx, err := f.GetSheetIndex(s.sheet)
	if err != nil {
		f.Close()
		return nil, s.fail(sink.KindMalformedExisting, "open", err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(s.sheet); err != nil {
			f.Close()
			return nil, s.fail(sink.KindUnreachable, "create sheet", err)
		}
	}
	return f, nil
}

// save writes the workbook to a temporary file and renames it over the
// original.
func (s *Sink) save(f *excelize.File) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.fail(ioKind(err), "create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return s.fail(ioKind(err), "save", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return s.fail(ioKind(err), "save", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return s.fail(ioKind(err), "save", err)
	}
	if err := tmp.Close(); err != nil {
		return s.fail(ioKind(err), "save", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return s.fail(ioKind(err), "replace", err)
	}
	return nil
}

func (s *Sink) fail(kind sink.Kind, op string, err error) error {
	return sink.NewError(kind, s.Name(), op, err)
}

func ioKind(err error) sink.Kind {
	if errors.Is(err, fs.ErrPermission) {
		return sink.KindPermissionDenied
	}
	return sink.KindUnreachable
}

// sheetApplier edits one worksheet in place. rows tracks the number of used
// rows so appends land after the last one.
type sheetApplier struct {
	f     *excelize.File
	sheet string
	rows  int
}

func (a *sheetApplier) WriteHeader() error {
	if a.rows > 0 {
		if err := a.f.InsertRows(a.sheet, 1, 1); err != nil {
			return err
		}
	}
	if err := a.setRow(1, sink.HeaderRow()); err != nil {
		return err
	}
	a.rows++
	return nil
}

func (a *sheetApplier) InsertAfterHeader(rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	if a.rows > 1 {
		if err := a.f.InsertRows(a.sheet, 2, len(rows)); err != nil {
			return err
		}
	}
	for i, row := range rows {
		if err := a.setRow(2+i, row); err != nil {
			return err
		}
	}
	a.rows += len(rows)
	return nil
}

func (a *sheetApplier) Append(rows [][]string) error {
	for _, row := range rows {
		if err := a.setRow(a.rows+1, row); err != nil {
			return err
		}
		a.rows++
	}
	return nil
}

func (a *sheetApplier) setRow(n int, row []string) error {
	cell, err := excelize.CoordinatesToCellName(1, n)
	if err != nil {
		return err
	}
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	return a.f.SetSheetRow(a.sheet, cell, &values)
}
