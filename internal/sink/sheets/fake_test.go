package sheets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// fakeAPI is an in-memory spreadsheet.
type fakeAPI struct {
	mu     sync.Mutex
	infos  []SheetInfo
	sheets map[string][][]string

	sheetsErr error
	insertErr error
	writeErr  error

	sheetsCalls int
	insertCalls int
	writes      []string
}

func newFakeAPI(titles ...string) *fakeAPI {
	f := &fakeAPI{sheets: make(map[string][][]string)}
	for i, t := range titles {
		f.infos = append(f.infos, SheetInfo{ID: int64(i * 1000), Title: t, Index: i})
		f.sheets[t] = nil
	}
	return f
}

var rangePattern = regexp.MustCompile(`^A(\d*):E(\d*)$`)

func (f *fakeAPI) parseRange(rng string) (string, int, error) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return "", 0, fmt.Errorf("unqualified range %q", rng)
	}
	title := strings.ReplaceAll(strings.Trim(rng[:i], "'"), "''", "'")
	if _, ok := f.sheets[title]; !ok {
		return "", 0, fmt.Errorf("no sheet %q", title)
	}
	m := rangePattern.FindStringSubmatch(rng[i+1:])
	if m == nil {
		return "", 0, fmt.Errorf("bad range %q", rng)
	}
	start := 1
	if m[1] != "" {
		start, _ = strconv.Atoi(m[1])
	}
	return title, start, nil
}

func (f *fakeAPI) Sheets(ctx context.Context, id string) ([]SheetInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sheetsCalls++
	if f.sheetsErr != nil {
		return nil, f.sheetsErr
	}
	return append([]SheetInfo(nil), f.infos...), nil
}

func (f *fakeAPI) Read(ctx context.Context, id, rng string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	title, start, err := f.parseRange(rng)
	if err != nil {
		return nil, err
	}
	rows := f.sheets[title]
	if start-1 >= len(rows) {
		return nil, nil
	}
	out := make([][]string, 0, len(rows)-(start-1))
	for _, r := range rows[start-1:] {
		out = append(out, trimCells(r))
	}
	return out, nil
}

func (f *fakeAPI) Write(ctx context.Context, id, rng string, rows [][]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	title, start, err := f.parseRange(rng)
	if err != nil {
		return err
	}
	f.writes = append(f.writes, rng)
	sheet := f.sheets[title]
	for len(sheet) < start-1+len(rows) {
		sheet = append(sheet, nil)
	}
	for i, r := range rows {
		sheet[start-1+i] = append([]string(nil), r...)
	}
	f.sheets[title] = sheet
	return nil
}

func (f *fakeAPI) InsertRows(ctx context.Context, id string, sheetID int64, start, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, info := range f.infos {
		if info.ID != sheetID {
			continue
		}
		sheet := f.sheets[info.Title]
		if start > len(sheet) {
			return errors.New("insert past end of sheet")
		}
		out := make([][]string, 0, len(sheet)+count)
		out = append(out, sheet[:start]...)
		out = append(out, make([][]string, count)...)
		out = append(out, sheet[start:]...)
		f.sheets[info.Title] = out
		return nil
	}
	return fmt.Errorf("no sheet id %d", sheetID)
}

func (f *fakeAPI) rows(title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, 0, len(f.sheets[title]))
	for _, r := range f.sheets[title] {
		out = append(out, trimCells(r))
	}
	return out
}

func trimCells(r []string) []string {
	end := len(r)
	for end > 0 && r[end-1] == "" {
		end--
	}
	return append([]string(nil), r[:end]...)
}
