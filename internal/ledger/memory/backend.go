// Package memory is an in-process tabular backend for local runs and tests.
// Formulas are never evaluated, but their row references move with inserted
// and deleted rows the way a spreadsheet's do.
package memory

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/movingops/jobreport-backend/pkg/sheets"
)

type table struct {
	info sheets.TableInfo
	rows [][]string
	bold map[int64]bool
}

// Backend keeps tables in memory. It is safe for concurrent use.
type Backend struct {
	mu     sync.Mutex
	tables []*table
	nextID int64
	fail   map[string]error
	calls  map[string]int
}

// New returns an empty backend.
func New() *Backend {
	return &Backend{nextID: 1, fail: map[string]error{}, calls: map[string]int{}}
}

// Fail makes every subsequent call to op ("Tables", "Values", "Update", ...) return err.
// A nil err clears the failure.
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.fail, op)
		return
	}
	b.fail[op] = err
}

// Calls returns how many times op was invoked.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *Backend) enter(op string) error {
	b.calls[op]++
	return b.fail[op]
}

func (b *Backend) byTitle(title string) (*table, error) {
	for _, t := range b.tables {
		if t.info.Title == title {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unable to parse range: %s", sheets.QuoteTable(title))
}

func (b *Backend) byID(id int64) (*table, error) {
	for _, t := range b.tables {
		if t.info.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("no grid with id: %d", id)
}

// Tables lists tables in tab order.
func (b *Backend) Tables(context.Context) ([]sheets.TableInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Tables"); err != nil {
		return nil, err
	}
	out := make([]sheets.TableInfo, len(b.tables))
	for i, t := range b.tables {
		info := t.info
		info.Index = int64(i)
		out[i] = info
	}
	return out, nil
}

// AddTable creates an empty table.
func (b *Backend) AddTable(_ context.Context, title string, props sheets.TableProps) (sheets.TableInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("AddTable"); err != nil {
		return sheets.TableInfo{}, err
	}
	if _, err := b.byTitle(title); err == nil {
		return sheets.TableInfo{}, fmt.Errorf("a sheet with the name %q already exists", title)
	}
	t := &table{info: sheets.TableInfo{ID: b.nextID, Title: title}, bold: map[int64]bool{}}
	b.nextID++
	if props.First {
		b.tables = append([]*table{t}, b.tables...)
	} else {
		b.tables = append(b.tables, t)
	}
	return t.info, nil
}

// Values returns the cells in r, trimming trailing blank rows and cells like the Sheets API.
func (b *Backend) Values(_ context.Context, r sheets.Range) ([][]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Values"); err != nil {
		return nil, err
	}
	t, err := b.byTitle(r.Table)
	if err != nil {
		return nil, err
	}
	start, end := rowBounds(r, len(t.rows))
	var out [][]string
	for i := start; i < end && i < len(t.rows); i++ {
		var cells []string
		for c := r.StartCol; c <= r.EndCol; c++ {
			v := ""
			if c < len(t.rows[i]) {
				v = t.rows[i][c]
			}
			cells = append(cells, v)
		}
		out = append(out, trimCells(cells))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// Update writes rows starting at r's top-left cell.
func (b *Backend) Update(_ context.Context, r sheets.Range, rows [][]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Update"); err != nil {
		return err
	}
	t, err := b.byTitle(r.Table)
	if err != nil {
		return err
	}
	start, _ := rowBounds(r, 0)
	for i, row := range rows {
		for j, v := range row {
			t.set(start+i, r.StartCol+j, v)
		}
	}
	return nil
}

// Append writes rows after the last non-blank row.
func (b *Backend) Append(_ context.Context, title string, rows [][]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Append"); err != nil {
		return err
	}
	t, err := b.byTitle(title)
	if err != nil {
		return err
	}
	at := len(t.rows)
	for at > 0 && len(trimCells(t.rows[at-1])) == 0 {
		at--
	}
	for i, row := range rows {
		for j, v := range row {
			t.set(at+i, j, v)
		}
	}
	return nil
}

// InsertRows inserts blank rows before 0-based index at.
func (b *Backend) InsertRows(_ context.Context, tableID int64, at, count int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("InsertRows"); err != nil {
		return err
	}
	t, err := b.byID(tableID)
	if err != nil {
		return err
	}
	if at < 0 || count <= 0 {
		return fmt.Errorf("invalid insert range %d+%d", at, count)
	}
	for int64(len(t.rows)) < at {
		t.rows = append(t.rows, nil)
	}
	blank := make([][]string, count)
	t.rows = append(t.rows[:at], append(blank, t.rows[at:]...)...)

	shifted := map[int64]bool{}
	for row := range t.bold {
		if row >= at {
			shifted[row+count] = true
		} else {
			shifted[row] = true
		}
	}
	t.bold = shifted
	t.shiftRefs(func(n int64) int64 {
		if n-1 >= at {
			return n + count
		}
		return n
	})
	return nil
}

// DeleteRows removes rows [at, at+count), 0-based.
func (b *Backend) DeleteRows(_ context.Context, tableID int64, at, count int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("DeleteRows"); err != nil {
		return err
	}
	t, err := b.byID(tableID)
	if err != nil {
		return err
	}
	if at < 0 || count <= 0 {
		return fmt.Errorf("invalid delete range %d+%d", at, count)
	}
	if at < int64(len(t.rows)) {
		end := min(at+count, int64(len(t.rows)))
		t.rows = append(t.rows[:at], t.rows[end:]...)
	}

	shifted := map[int64]bool{}
	for row := range t.bold {
		switch {
		case row < at:
			shifted[row] = true
		case row >= at+count:
			shifted[row-count] = true
		}
	}
	t.bold = shifted
	t.shiftRefs(func(n int64) int64 {
		switch {
		case n-1 >= at+count:
			return n - count
		case n-1 >= at:
			return at + 1
		}
		return n
	})
	return nil
}

var cellRef = regexp.MustCompile(`([A-Z]+)(\d+)`)

// shiftRefs rewrites the 1-based row numbers referenced by formula cells.
func (t *table) shiftRefs(move func(n int64) int64) {
	for _, row := range t.rows {
		for j, v := range row {
			if !strings.HasPrefix(v, "=") {
				continue
			}
			row[j] = cellRef.ReplaceAllStringFunc(v, func(ref string) string {
				m := cellRef.FindStringSubmatch(ref)
				n, err := strconv.ParseInt(m[2], 10, 64)
				if err != nil {
					return ref
				}
				return m[1] + strconv.FormatInt(move(n), 10)
			})
		}
	}
}

// Clear blanks the cells in r.
func (b *Backend) Clear(_ context.Context, r sheets.Range) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Clear"); err != nil {
		return err
	}
	t, err := b.byTitle(r.Table)
	if err != nil {
		return err
	}
	start, end := rowBounds(r, len(t.rows))
	for i := start; i < end && i < len(t.rows); i++ {
		for c := r.StartCol; c <= r.EndCol && c < len(t.rows[i]); c++ {
			t.rows[i][c] = ""
		}
	}
	return nil
}

// Bold marks rows [startRow, endRow) bold.
func (b *Backend) Bold(_ context.Context, tableID int64, startRow, endRow int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("Bold"); err != nil {
		return err
	}
	t, err := b.byID(tableID)
	if err != nil {
		return err
	}
	for r := startRow; r < endRow; r++ {
		t.bold[r] = true
	}
	return nil
}

// IsBold reports whether the 0-based row of title is bold.
func (b *Backend) IsBold(title string, row int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.byTitle(title)
	if err != nil {
		return false
	}
	return t.bold[row]
}

// Rows returns a copy of a table's raw cells, trailing blanks trimmed.
func (b *Backend) Rows(title string) [][]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, err := b.byTitle(title)
	if err != nil {
		return nil
	}
	out := make([][]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = trimCells(append([]string(nil), row...))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func (t *table) set(row, col int, v string) {
	for len(t.rows) <= row {
		t.rows = append(t.rows, nil)
	}
	for len(t.rows[row]) <= col {
		t.rows[row] = append(t.rows[row], "")
	}
	t.rows[row][col] = v
}

// rowBounds converts a 1-based, end-inclusive range into 0-based [start, end).
func rowBounds(r sheets.Range, size int) (int, int) {
	start := 0
	if r.StartRow > 0 {
		start = r.StartRow - 1
	}
	end := size
	if r.EndRow > 0 {
		end = r.EndRow
	}
	return start, end
}

func trimCells(cells []string) []string {
	n := len(cells)
	for n > 0 && strings.TrimSpace(cells[n-1]) == "" {
		n--
	}
	return cells[:n]
}
