// Package sink reconciles record batches into tabular destinations.
//
// Every sink holds a five-column table (Date, Time, Type, Section, File
// Name) whose first row is the header. Reconciling a batch inserts the batch
// as a contiguous block, either directly after the header (prepend) or at the
// end (append), optionally marked with a separator row. Existing rows are
// never dropped and the header is never duplicated, whatever state the sink
// was found in.
//
// The placement rules live in Plan and are shared by every medium; a sink
// only reads its State and applies the resulting instructions.
package sink

import (
	"context"

	"github.com/syncsentinel/syncsentinel/internal/record"
)

// SeparatorMarker is the Date cell of a separator row.
const SeparatorMarker = "--- New Log Entry ---"

// Policy controls where a batch lands and whether it is marked.
type Policy struct {
	// Prepend inserts the batch right after the header; otherwise it is
	// appended at the end.
	Prepend bool

	// Separator adds a marker row next to a non-empty batch.
	Separator bool
}

// DefaultPolicy is prepend with separators.
var DefaultPolicy = Policy{Prepend: true, Separator: true}

// Batch is the output of one run: its records and the date that fills the
// Date column of every row.
type Batch struct {
	Date    string
	Records []record.FileRecord
}

// Rows returns the batch as sink rows.
func (b Batch) Rows() [][]string {
	return record.Rows(b.Date, b.Records)
}

// Sink is a tabular destination.
type Sink interface {
	// Name identifies the sink in logs and results.
	Name() string

	// Reconcile writes b into the sink under p and returns the number of
	// record rows written. Separator rows are not counted.
	Reconcile(ctx context.Context, b Batch, p Policy) (int, error)
}

// SeparatorRow returns a new separator row.
func SeparatorRow() []string {
	row := make([]string, record.Columns)
	row[0] = SeparatorMarker
	return row
}

// HeaderRow returns a copy of the header row.
func HeaderRow() []string {
	return append([]string(nil), record.Header...)
}
