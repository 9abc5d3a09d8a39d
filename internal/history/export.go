package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/syncsentinel/syncsentinel/internal/record"
)

// ExportedRun is one line of a JSONL history export.
type ExportedRun struct {
	ID          string          `json:"id"`
	Path        string          `json:"path"`
	SyncName    string          `json:"sync_name"`
	Date        string          `json:"date"`
	ProcessedAt time.Time       `json:"processed_at"`
	DurationMS  int64           `json:"duration_ms"`
	FailedSinks int             `json:"failed_sinks"`
	Records     []ExportedEntry `json:"records"`
}

// ExportedEntry is one file record of an exported run.
type ExportedEntry struct {
	FileName  string `json:"file_name"`
	Type      string `json:"type"`
	Section   string `json:"section"`
	Timestamp string `json:"timestamp"`
}

// Export writes the runs selected by filter to w as JSON lines, newest
// first, and returns the number written.
func (s *Store) Export(ctx context.Context, w io.Writer, filter ListFilter) (int, error) {
	runs, err := s.ListRuns(ctx, filter)
	if err != nil {
		return 0, err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, r := range runs {
		recs, err := s.records(ctx, r.ID.String())
		if err != nil {
			return i, err
		}
		line := ExportedRun{
			ID:          r.ID.String(),
			Path:        r.Path,
			SyncName:    r.SyncName,
			Date:        r.Date,
			ProcessedAt: r.ProcessedAt,
			DurationMS:  r.Duration.Milliseconds(),
			FailedSinks: r.FailedSinks,
			Records:     exportEntries(recs),
		}
		if err := enc.Encode(&line); err != nil {
			return i, fmt.Errorf("failed to encode run %s: %w", r.ID, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return len(runs), fmt.Errorf("failed to write export: %w", err)
	}
	return len(runs), nil
}

func exportEntries(recs []record.FileRecord) []ExportedEntry {
	out := make([]ExportedEntry, len(recs))
	for i, r := range recs {
		out[i] = ExportedEntry{FileName: r.FileName, Type: string(r.FileType), Section: r.Section, Timestamp: r.Timestamp}
	}
	return out
}

// ReadExport decodes a JSONL export produced by Export.
func ReadExport(r io.Reader) ([]ExportedRun, error) {
	dec := json.NewDecoder(r)
	var out []ExportedRun
	for line := 1; ; line++ {
		var run ExportedRun
		if err := dec.Decode(&run); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", line, err)
		}
		out = append(out, run)
	}
}
