package history

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestExport(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	base := time.Date(2025, 9, 13, 14, 0, 0, 0, time.UTC)
	older := testResult("9/12/2025", base.Add(-24*time.Hour), "a.mov")
	newer := testResult("9/13/2025", base, "b.wav", "c.png")
	if err := s.RecordRun(ctx, older); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	if err := s.RecordRun(ctx, newer); err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf, ListFilter{})
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("Export() = %d, want 2", n)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 2 {
		t.Errorf("expected 2 lines, got %d", lines)
	}

	runs, err := ReadExport(&buf)
	if err != nil {
		t.Fatalf("ReadExport() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != newer.ID.String() {
		t.Errorf("first run = %s, want newest %s", runs[0].ID, newer.ID)
	}
	if len(runs[0].Records) != 2 || runs[0].Records[1].FileName != "c.png" {
		t.Errorf("unexpected records: %+v", runs[0].Records)
	}
	if runs[0].Records[0].Type != "Video" || runs[0].DurationMS != 1500 {
		t.Errorf("unexpected run: %+v", runs[0])
	}
}

func TestReadExport_InvalidLine(t *testing.T) {
	_, err := ReadExport(strings.NewReader("{\"id\":\"x\"}\n{not json}\n"))
	if err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error at line 2, got %v", err)
	}
}
