// Package synclog parses the logs written by the folder synchronization tool.
//
// Two physical formats are understood: the plain-text .log file and the HTML
// report. Both are reduced to a SyncRun. Parsing is pattern extraction, not
// grammar validation: text that carries none of the expected markers yields
// a SyncRun with every optional field unset and no operations.
package synclog

import (
	"path/filepath"
	"strings"
)

// Format identifies which grammar a log is written in.
type Format int

const (
	// PlainText is the line-oriented .log format.
	PlainText Format = iota
	// Markup is the HTML report format.
	Markup
)

// String returns a human-readable representation of the format.
func (f Format) String() string {
	switch f {
	case PlainText:
		return "log"
	case Markup:
		return "html"
	default:
		return "unknown"
	}
}

// FormatForPath infers the log format from a file name.
// Only the .html extension selects Markup; everything else is PlainText.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".html") {
		return Markup
	}
	return PlainText
}

// IsLogFile reports whether path names a file the parser accepts (.log or .html).
func IsLogFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".log", ".html":
		return true
	}
	return false
}

// SyncRun is one parsed log file.
type SyncRun struct {
	// SyncName is the job name from the header line, "" when absent.
	SyncName string

	// Date is the run date as written in the log (M/D/Y). It is never normalized.
	Date string

	// StartTime is the run start time (H:MM:SS AM|PM), "" when absent.
	StartTime string

	ItemsProcessed  *int
	TotalSize       *string
	TotalTime       *string
	ComparisonItems *int
	ComparisonTime  *string

	// Operations holds the folder pairs in log order. It may be empty.
	Operations []SyncOperation
}

// SyncOperation is one folder-pair synchronization block within a run.
type SyncOperation struct {
	Source       string
	Destination  string
	FilesCreated []FileEvent
}

// FileEvent is one "Creating file" line.
type FileEvent struct {
	// Timestamp is the time the file was created (H:MM:SS AM|PM).
	Timestamp string

	// FilePath is the path exactly as the sync tool wrote it. It uses the
	// tool's separator, which is not necessarily the host's.
	FilePath string
}

// FileCount returns the total number of file events across all operations.
func (r *SyncRun) FileCount() int {
	n := 0
	for _, op := range r.Operations {
		n += len(op.FilesCreated)
	}
	return n
}

// newSyncRun returns an empty run with a non-nil operation slice.
func newSyncRun() *SyncRun {
	return &SyncRun{Operations: make([]SyncOperation, 0)}
}
