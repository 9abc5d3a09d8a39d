package sheets

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidTarget is returned when a spreadsheet reference cannot be parsed.
var ErrInvalidTarget = errors.New("invalid spreadsheet reference")

// Target identifies a spreadsheet and, optionally, one sheet inside it.
type Target struct {
	SpreadsheetID string

	// SheetName selects a sheet by title.
	SheetName string

	// GID selects a sheet by its numeric id when HasGID is set.
	GID    int64
	HasGID bool
}

// String renders the target the way it would appear in a browser.
func (t Target) String() string {
	switch {
	case t.HasGID:
		return fmt.Sprintf("%s#gid=%d", t.SpreadsheetID, t.GID)
	case t.SheetName != "":
		return t.SpreadsheetID + "#" + t.SheetName
	default:
		return t.SpreadsheetID
	}
}

// ParseTarget accepts either a bare spreadsheet ID or a spreadsheet URL such
// as
//
//	https://docs.google.com/spreadsheets/d/<id>/edit#gid=123
//	https://docs.google.com/spreadsheets/d/<id>/edit#Sheet%20Name
//
// A "#gid=N" fragment (or gid query parameter) selects a sheet by id; any
// other fragment selects a sheet by name.
func ParseTarget(urlOrID string) (Target, error) {
	s := strings.TrimSpace(urlOrID)
	if s == "" {
		return Target{}, fmt.Errorf("%w: empty", ErrInvalidTarget)
	}
	if !strings.Contains(s, "/") {
		return Target{SpreadsheetID: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	if !strings.Contains(u.Host+u.Path, "docs.google.com/spreadsheets") {
		return Target{}, fmt.Errorf("%w: not a spreadsheet URL: %s", ErrInvalidTarget, s)
	}

	var t Target
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p == "d" && i+1 < len(parts) {
			t.SpreadsheetID = parts[i+1]
			break
		}
	}
	if t.SpreadsheetID == "" {
		return Target{}, fmt.Errorf("%w: no spreadsheet id in %s", ErrInvalidTarget, s)
	}

	gid := u.Query().Get("gid")
	switch frag := u.Fragment; {
	case strings.HasPrefix(frag, "gid="):
		gid = strings.TrimPrefix(frag, "gid=")
	case frag != "":
		t.SheetName = frag
	}
	if gid != "" && t.SheetName == "" {
		n, err := strconv.ParseInt(gid, 10, 64)
		if err != nil {
			return Target{}, fmt.Errorf("%w: bad gid %q", ErrInvalidTarget, gid)
		}
		t.GID, t.HasGID = n, true
	}
	return t, nil
}
