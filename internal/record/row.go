package record

import "strings"

// Header is the first row of every sink.
var Header = []string{"Date", "Time", "Type", "Section", "File Name"}

// Columns is the fixed width of every row.
const Columns = 5

// Row returns the sink row for r, with date in the first column.
func Row(date string, r FileRecord) []string {
	return []string{date, r.Timestamp, string(r.FileType), r.Section, r.FileName}
}

// Rows returns one sink row per record, in order.
func Rows(date string, records []FileRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, Row(date, r))
	}
	return rows
}

// IsHeader reports whether row is exactly the header row. Trailing empty cells
// and a byte order mark before the first cell are ignored.
func IsHeader(row []string) bool {
	for len(row) > Columns && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	if len(row) != Columns {
		return false
	}
	for i, h := range Header {
		cell := row[i]
		if i == 0 {
			cell = strings.TrimPrefix(cell, "\ufeff")
		}
		if strings.TrimSpace(cell) != h {
			return false
		}
	}
	return true
}

// TSV renders records as tab-separated lines for pasting into a spreadsheet.
// There is no header; each line ends with a newline.
func TSV(date string, records []FileRecord) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(strings.Join(Row(date, r), "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}
