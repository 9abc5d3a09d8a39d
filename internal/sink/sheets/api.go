// Package sheets implements a sink backed by a remote spreadsheet.
//
// The sink talks to the spreadsheet service through the small API interface
// so that the placement logic can be exercised without network access.
// NewGoogleAPI provides the production implementation.
package sheets

import "context"

// SheetInfo describes one sheet (tab) of a spreadsheet.
type SheetInfo struct {
	ID    int64
	Title string
	Index int
}

// API is the subset of the spreadsheet service the sink needs.
type API interface {
	// Sheets lists the sheets of a spreadsheet in display order.
	Sheets(ctx context.Context, spreadsheetID string) ([]SheetInfo, error)

	// Read returns the values in an A1 range. Trailing empty cells and rows
	// may be omitted.
	Read(ctx context.Context, spreadsheetID, rng string) ([][]string, error)

	// Write overwrites the values in an A1 range.
	Write(ctx context.Context, spreadsheetID, rng string, rows [][]string) error

	// InsertRows inserts count empty rows before the zero-based row start of
	// the sheet with the given id, shifting later rows down.
	InsertRows(ctx context.Context, spreadsheetID string, sheetID int64, start, count int) error
}
