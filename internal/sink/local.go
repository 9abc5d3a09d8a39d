package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Excel's "CSV UTF-8" files start with a byte order mark.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// LocalFile is a sink backed by a CSV file on the local filesystem.
//
// Appending to a file that already has its header only writes the new rows.
// Any other change rewrites the file: the new content goes to a temporary
// file in the same directory which then replaces the original.
type LocalFile struct {
	path string
}

// NewLocalFile returns a sink writing to the CSV file at path. The file and
// its parent directory are created on first use.
func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: path}
}

// Name implements Sink.
func (s *LocalFile) Name() string {
	return "csv:" + s.path
}

// Path returns the file the sink writes to.
func (s *LocalFile) Path() string {
	return s.path
}

// Reconcile implements Sink.
func (s *LocalFile) Reconcile(ctx context.Context, b Batch, p Policy) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, s.fail(KindUnreachable, "reconcile", err)
	}

	raw, existing, err := s.load()
	if err != nil {
		return 0, err
	}

	rows := b.Rows()
	plan := Plan(StateOf(existing), rows, p)
	if len(plan) == 0 {
		return 0, nil
	}

	if raw != nil && AppendOnly(plan) {
		if err := s.appendRows(raw, plan); err != nil {
			return 0, err
		}
		return len(rows), nil
	}

	table := &Table{Rows: existing}
	if err := Execute(plan, table); err != nil {
		return 0, s.fail(KindUnreachable, "plan", err)
	}
	if err := s.rewrite(table.Rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// load reads the file. A missing file yields nil content and no rows.
func (s *LocalFile) load() ([]byte, [][]string, error) {
	// #nosec G304 - path is configured by the user
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, s.fail(ioKind(err), "read", err)
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, utf8BOM)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, s.fail(KindMalformedExisting, "read", err)
	}
	return raw, rows, nil
}

// appendRows writes the append instructions to the end of the file.
func (s *LocalFile) appendRows(raw []byte, plan []Instruction) error {
	// #nosec G304 - path is configured by the user
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return s.fail(ioKind(err), "append", err)
	}

	if len(raw) > 0 && raw[len(raw)-1] != '\n' {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return s.fail(ioKind(err), "append", err)
		}
	}

	w := csv.NewWriter(f)
	for _, in := range plan {
		if err := w.WriteAll(in.Rows); err != nil {
			f.Close()
			return s.fail(ioKind(err), "append", err)
		}
	}
	if err := f.Close(); err != nil {
		return s.fail(ioKind(err), "append", err)
	}
	return nil
}

// rewrite replaces the file with rows.
func (s *LocalFile) rewrite(rows [][]string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return s.fail(ioKind(err), "create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return s.fail(ioKind(err), "write", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := writeCSV(tmp, rows); err != nil {
		tmp.Close()
		return s.fail(ioKind(err), "write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return s.fail(ioKind(err), "sync", err)
	}
	if err := tmp.Close(); err != nil {
		return s.fail(ioKind(err), "write", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		_ = os.Chmod(tmpPath, info.Mode().Perm())
	} else {
		_ = os.Chmod(tmpPath, 0o644)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return s.fail(ioKind(err), "replace", err)
	}
	return nil
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func (s *LocalFile) fail(kind Kind, op string, err error) error {
	return NewError(kind, s.Name(), op, err)
}

// ioKind maps a filesystem error to a sink error kind.
func ioKind(err error) Kind {
	if errors.Is(err, fs.ErrPermission) {
		return KindPermissionDenied
	}
	return KindUnreachable
}
