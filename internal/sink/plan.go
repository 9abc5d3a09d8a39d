package sink

import (
	"errors"
	"fmt"

	"github.com/syncsentinel/syncsentinel/internal/record"
)

// State is what a sink holds before a reconcile.
type State struct {
	// HasHeader is true when row 1 is exactly the header.
	HasHeader bool

	// DataRows counts the rows that are not the header, separators included.
	DataRows int
}

// StateOf derives the State of a table held in memory.
func StateOf(rows [][]string) State {
	if len(rows) == 0 {
		return State{}
	}
	if record.IsHeader(rows[0]) {
		return State{HasHeader: true, DataRows: len(rows) - 1}
	}
	return State{DataRows: len(rows)}
}

// Op is one kind of table edit.
type Op int

const (
	// OpWriteHeader makes the header row 1. Existing rows shift down.
	OpWriteHeader Op = iota
	// OpInsertAfterHeader inserts Rows directly below the header.
	OpInsertAfterHeader
	// OpAppend adds Rows after the last row.
	OpAppend
)

func (o Op) String() string {
	switch o {
	case OpWriteHeader:
		return "write-header"
	case OpInsertAfterHeader:
		return "insert-after-header"
	case OpAppend:
		return "append"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Instruction is one step of a reconcile.
type Instruction struct {
	Op   Op
	Rows [][]string
}

// Plan decides the edits that bring a sink in state to its reconciled form
// for rows under p.
//
// The header is written first when missing. An empty rows slice plans
// nothing else. In prepend mode the separator follows the new block; in
// append mode it precedes the block, and only when the sink already holds
// data rows.
func Plan(state State, rows [][]string, p Policy) []Instruction {
	var plan []Instruction
	if !state.HasHeader {
		plan = append(plan, Instruction{Op: OpWriteHeader})
	}
	if len(rows) == 0 {
		return plan
	}

	block := make([][]string, 0, len(rows)+1)
	if p.Prepend {
		block = append(block, rows...)
		if p.Separator {
			block = append(block, SeparatorRow())
		}
		return append(plan, Instruction{Op: OpInsertAfterHeader, Rows: block})
	}

	if p.Separator && state.DataRows > 0 {
		block = append(block, SeparatorRow())
	}
	block = append(block, rows...)
	return append(plan, Instruction{Op: OpAppend, Rows: block})
}

// Applier performs instructions against one storage medium.
type Applier interface {
	WriteHeader() error
	InsertAfterHeader(rows [][]string) error
	Append(rows [][]string) error
}

// Execute applies plan to a in order, stopping at the first error.
func Execute(plan []Instruction, a Applier) error {
	for _, in := range plan {
		var err error
		switch in.Op {
		case OpWriteHeader:
			err = a.WriteHeader()
		case OpInsertAfterHeader:
			err = a.InsertAfterHeader(in.Rows)
		case OpAppend:
			err = a.Append(in.Rows)
		default:
			err = fmt.Errorf("unknown instruction %v", in.Op)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", in.Op, err)
		}
	}
	return nil
}

// AppendOnly reports whether plan only appends rows.
func AppendOnly(plan []Instruction) bool {
	for _, in := range plan {
		if in.Op != OpAppend {
			return false
		}
	}
	return true
}

var errTableNoHeader = errors.New("table has no header")

// Table is an in-memory Applier. Sinks that rewrite their whole content
// build the new content with it.
type Table struct {
	Rows [][]string
}

// WriteHeader implements Applier.
func (t *Table) WriteHeader() error {
	t.Rows = append([][]string{HeaderRow()}, t.Rows...)
	return nil
}

// InsertAfterHeader implements Applier.
func (t *Table) InsertAfterHeader(rows [][]string) error {
	if len(t.Rows) == 0 {
		return errTableNoHeader
	}
	out := make([][]string, 0, len(t.Rows)+len(rows))
	out = append(out, t.Rows[0])
	out = append(out, rows...)
	out = append(out, t.Rows[1:]...)
	t.Rows = out
	return nil
}

// Append implements Applier.
func (t *Table) Append(rows [][]string) error {
	t.Rows = append(t.Rows, rows...)
	return nil
}
