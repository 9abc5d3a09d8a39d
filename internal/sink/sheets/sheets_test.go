package sheets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/syncsentinel/syncsentinel/internal/record"
	"github.com/syncsentinel/syncsentinel/internal/sink"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newSink(api API, target Target) *Sink {
	return New(api, target, Options{Logger: quietLogger})
}

func batchOf(names ...string) sink.Batch {
	b := sink.Batch{Date: "9/13/2025"}
	for _, n := range names {
		b.Records = append(b.Records, record.FileRecord{FileName: n, FileType: record.Video, Section: "S", Timestamp: "1:00:00 PM"})
	}
	return b
}

func row(name string) []string {
	return []string{"9/13/2025", "1:00:00 PM", "Video", "S", name}
}

var sepRow = []string{sink.SeparatorMarker}

func TestParseTarget(t *testing.T) {
	tests := []struct {
		in      string
		want    Target
		wantErr bool
	}{
		{in: "abc123", want: Target{SpreadsheetID: "abc123"}},
		{in: "  abc123  ", want: Target{SpreadsheetID: "abc123"}},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit",
			want: Target{SpreadsheetID: "abc123"},
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit#gid=456",
			want: Target{SpreadsheetID: "abc123", GID: 456, HasGID: true},
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit#gid=0",
			want: Target{SpreadsheetID: "abc123", GID: 0, HasGID: true},
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit?gid=7#gid=7",
			want: Target{SpreadsheetID: "abc123", GID: 7, HasGID: true},
		},
		{
			in:   "https://docs.google.com/spreadsheets/d/abc123/edit#Shot%20Log",
			want: Target{SpreadsheetID: "abc123", SheetName: "Shot Log"},
		},
		{
			in:   "docs.google.com/spreadsheets/d/abc123",
			want: Target{SpreadsheetID: "abc123"},
		},
		{in: "", wantErr: true},
		{in: "https://example.com/spreadsheets/d/abc", wantErr: true},
		{in: "https://docs.google.com/spreadsheets/u/0/", wantErr: true},
		{in: "https://docs.google.com/spreadsheets/d/abc/edit#gid=x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTarget(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidTarget))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "id", Target{SpreadsheetID: "id"}.String())
	assert.Equal(t, "id#gid=0", Target{SpreadsheetID: "id", HasGID: true}.String())
	assert.Equal(t, "id#Log", Target{SpreadsheetID: "id", SheetName: "Log"}.String())
}

func TestSink_EmptySheet(t *testing.T) {
	api := newFakeAPI("Log")
	s := newSink(api, Target{SpreadsheetID: "id"})

	n, err := s.Reconcile(context.Background(), batchOf("a.mov", "b.mov"), sink.DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, [][]string{record.Header, row("a.mov"), row("b.mov"), sepRow}, api.rows("Log"))
	assert.Equal(t, "'Log'!A1:E1", api.writes[0])
}

func TestSink_Prepend(t *testing.T) {
	api := newFakeAPI("Log")
	api.sheets["Log"] = [][]string{record.Header, row("old.mov")}
	s := newSink(api, Target{SpreadsheetID: "id"})

	_, err := s.Reconcile(context.Background(), batchOf("a.mov", "b.mov"), sink.DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t, 1, api.insertCalls)
	assert.Equal(t, []string{"'Log'!A2:E4"}, api.writes)
	assert.Equal(t, [][]string{record.Header, row("a.mov"), row("b.mov"), sepRow, row("old.mov")}, api.rows("Log"))
}

func TestSink_PrependFallback(t *testing.T) {
	api := newFakeAPI("Log")
	api.sheets["Log"] = [][]string{record.Header, row("old1.mov"), row("old2.mov")}
	api.insertErr = errors.New("insertDimension unsupported")
	s := newSink(api, Target{SpreadsheetID: "id"})

	_, err := s.Reconcile(context.Background(), batchOf("a.mov"), sink.DefaultPolicy)
	require.NoError(t, err)
	assert.Equal(t,
		[][]string{record.Header, row("a.mov"), sepRow, row("old1.mov"), row("old2.mov")},
		api.rows("Log"))
}

func TestSink_Append(t *testing.T) {
	api := newFakeAPI("Log")
	api.sheets["Log"] = [][]string{record.Header, row("old.mov")}
	s := newSink(api, Target{SpreadsheetID: "id"})

	_, err := s.Reconcile(context.Background(), batchOf("new.mov"), sink.Policy{Separator: true})
	require.NoError(t, err)
	assert.Zero(t, api.insertCalls)
	assert.Equal(t, []string{"'Log'!A3:E4"}, api.writes)
	assert.Equal(t, [][]string{record.Header, row("old.mov"), sepRow, row("new.mov")}, api.rows("Log"))
}

func TestSink_HeaderOnlyAppendSkipsSeparator(t *testing.T) {
	api := newFakeAPI("Log")
	api.sheets["Log"] = [][]string{record.Header}
	s := newSink(api, Target{SpreadsheetID: "id"})

	_, err := s.Reconcile(context.Background(), batchOf("new.mov"), sink.Policy{Separator: true})
	require.NoError(t, err)
	assert.Equal(t, [][]string{record.Header, row("new.mov")}, api.rows("Log"))
}

func TestSink_HeaderlessSheet(t *testing.T) {
	for _, failInsert := range []bool{false, true} {
		t.Run(fmt.Sprintf("insert failing=%v", failInsert), func(t *testing.T) {
			api := newFakeAPI("Log")
			api.sheets["Log"] = [][]string{row("old.mov")}
			if failInsert {
				api.insertErr = errors.New("no batch update")
			}
			s := newSink(api, Target{SpreadsheetID: "id"})

			_, err := s.Reconcile(context.Background(), batchOf("new.mov"), sink.Policy{Prepend: true})
			require.NoError(t, err)
			assert.Equal(t, [][]string{record.Header, row("new.mov"), row("old.mov")}, api.rows("Log"))
		})
	}
}

func TestSink_EmptyBatch(t *testing.T) {
	api := newFakeAPI("Log")
	api.sheets["Log"] = [][]string{record.Header, row("old.mov")}
	s := newSink(api, Target{SpreadsheetID: "id"})

	n, err := s.Reconcile(context.Background(), sink.Batch{}, sink.DefaultPolicy)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, api.writes)
}

func TestSink_ResolveByGID(t *testing.T) {
	api := newFakeAPI("First", "Second")
	s := newSink(api, Target{SpreadsheetID: "id", GID: 1000, HasGID: true})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := s.Reconcile(ctx, batchOf(fmt.Sprintf("f%d.mov", i)), sink.Policy{})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.sheetsCalls, "resolved gid is cached")
	assert.Empty(t, api.rows("First"))
	assert.Len(t, api.rows("Second"), 3)
}

func TestSink_UnknownGIDFallsBackToFirstSheet(t *testing.T) {
	api := newFakeAPI("First", "Second")
	s := newSink(api, Target{SpreadsheetID: "id", GID: 999, HasGID: true})
	ctx := context.Background()

	_, err := s.Reconcile(ctx, batchOf("a.mov"), sink.Policy{})
	require.NoError(t, err)
	_, err = s.Reconcile(ctx, batchOf("b.mov"), sink.Policy{})
	require.NoError(t, err)

	assert.Equal(t, 2, api.sheetsCalls, "unresolved gid is retried")
	assert.Len(t, api.rows("First"), 3)

	info, err := s.ResolveTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First", info.Title)
}

func TestSink_ResolveByName(t *testing.T) {
	api := newFakeAPI("First", "It's Log")
	s := newSink(api, Target{SpreadsheetID: "id", SheetName: "It's Log"})

	_, err := s.Reconcile(context.Background(), batchOf("a.mov"), sink.Policy{})
	require.NoError(t, err)
	assert.Len(t, api.rows("It's Log"), 2)
	assert.Equal(t, "'It''s Log'!A1:E1", api.writes[0])
}

func TestSink_UnknownName(t *testing.T) {
	api := newFakeAPI("First")
	s := newSink(api, Target{SpreadsheetID: "id", SheetName: "Missing"})

	_, err := s.Reconcile(context.Background(), batchOf("a.mov"), sink.Policy{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sink.ErrUnreachable))
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestSink_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", &googleapi.Error{Code: 401}, sink.ErrPermissionDenied},
		{"forbidden", &googleapi.Error{Code: 403}, sink.ErrPermissionDenied},
		{"not found", &googleapi.Error{Code: 404}, sink.ErrUnreachable},
		{"bad request", &googleapi.Error{Code: 400}, sink.ErrMalformedExisting},
		{"rate limited", &googleapi.Error{Code: 429}, sink.ErrRemoteQuotaOrTransport},
		{"server error", &googleapi.Error{Code: 503}, sink.ErrRemoteQuotaOrTransport},
		{"transport", errors.New("connection reset"), sink.ErrRemoteQuotaOrTransport},
		{"deadline", context.DeadlineExceeded, sink.ErrRemoteQuotaOrTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI("Log")
			api.sheetsErr = tt.err
			_, err := newSink(api, Target{SpreadsheetID: "id"}).Reconcile(context.Background(), batchOf("a.mov"), sink.DefaultPolicy)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

// slowAPI never answers reads.
type slowAPI struct {
	*fakeAPI
}

func (s slowAPI) Read(ctx context.Context, id, rng string) ([][]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestSink_Timeout(t *testing.T) {
	api := slowAPI{newFakeAPI("Log")}
	s := New(api, Target{SpreadsheetID: "id"}, Options{Timeout: 20 * time.Millisecond, Logger: quietLogger})

	start := time.Now()
	_, err := s.Reconcile(context.Background(), batchOf("a.mov"), sink.DefaultPolicy)
	require.Error(t, err)
	assert.True(t, sink.IsRemote(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSink_ListSheets(t *testing.T) {
	api := newFakeAPI("A", "B")
	infos, err := newSink(api, Target{SpreadsheetID: "id"}).ListSheets(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "B", infos[1].Title)
	assert.Equal(t, int64(1000), infos[1].ID)
}

func TestNew_Defaults(t *testing.T) {
	s := New(newFakeAPI(), Target{SpreadsheetID: "id"}, Options{})
	assert.Equal(t, DefaultTimeout, s.opts.Timeout)
	assert.NotNil(t, s.opts.Logger)
	assert.Equal(t, "sheets:id", s.Name())
}
