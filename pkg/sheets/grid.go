package sheets

import (
	"strconv"
	"strings"
)

// TableInfo identifies one tab of the spreadsheet.
type TableInfo struct {
	ID    int64
	Title string
	Index int64
}

// TableProps controls how a new tab is created.
type TableProps struct {
	FrozenRows int64
	// First places the tab at index 0.
	First bool
}

// Range addresses a rectangle of cells. Columns are 0-based (A=0); rows are 1-based
// and a zero EndRow leaves the range open to the bottom of the table.
type Range struct {
	Table    string
	StartCol int
	EndCol   int
	StartRow int
	EndRow   int
}

// Columns returns a range over whole columns of table.
func Columns(table string, startCol, endCol int) Range {
	return Range{Table: table, StartCol: startCol, EndCol: endCol}
}

// Rows returns the A1-style range table!<startCol><startRow>:<endCol><endRow>.
func Rows(table string, startCol, endCol, startRow, endRow int) Range {
	return Range{Table: table, StartCol: startCol, EndCol: endCol, StartRow: startRow, EndRow: endRow}
}

// A1 renders the range in A1 notation with a quoted table name.
func (r Range) A1() string {
	startRow := r.StartRow
	if startRow == 0 && r.EndRow > 0 {
		startRow = 1
	}
	var b strings.Builder
	b.WriteString(QuoteTable(r.Table))
	b.WriteByte('!')
	b.WriteString(ColumnLetter(r.StartCol))
	if startRow > 0 {
		b.WriteString(strconv.Itoa(startRow))
	}
	b.WriteByte(':')
	b.WriteString(ColumnLetter(r.EndCol))
	if r.EndRow > 0 {
		b.WriteString(strconv.Itoa(r.EndRow))
	}
	return b.String()
}

// QuoteTable wraps a tab title in single quotes, doubling embedded quotes.
func QuoteTable(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// ColumnLetter converts a 0-based column index to its letter name (0 -> A, 26 -> AA).
func ColumnLetter(col int) string {
	if col < 0 {
		col = 0
	}
	var out []byte
	for n := col + 1; n > 0; n = (n - 1) / 26 {
		out = append([]byte{byte('A' + (n-1)%26)}, out...)
	}
	return string(out)
}
