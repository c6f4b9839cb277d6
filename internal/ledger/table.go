package ledger

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/sheets"
)

type (
	Range      = sheets.Range
	TableInfo  = sheets.TableInfo
	TableProps = sheets.TableProps
)

// Backend is the tabular store holding the month tables and the Summary.
type Backend interface {
	Tables(ctx context.Context) ([]TableInfo, error)
	AddTable(ctx context.Context, title string, props TableProps) (TableInfo, error)
	Values(ctx context.Context, r Range) ([][]string, error)
	Update(ctx context.Context, r Range, rows [][]string) error
	Append(ctx context.Context, table string, rows [][]string) error
	InsertRows(ctx context.Context, tableID int64, at, count int64) error
	DeleteRows(ctx context.Context, tableID int64, at, count int64) error
	Clear(ctx context.Context, r Range) error
	Bold(ctx context.Context, tableID int64, startRow, endRow int64) error
}

// SummaryTable is the derived, fully regenerated overview tab.
const SummaryTable = "Summary"

// Month table layout: row 1 header, row 2 running totals, data from row 3.
const (
	HeaderRow    = 1
	TotalsRow    = 2
	FirstDataRow = 3
	FrozenRows   = 2
)

// Column indexes, A..I.
const (
	ColDate = iota
	ColJobID
	ColSummary
	ColStatus
	ColTotalRevenue
	ColNetRevenue
	ColPaymentType
	ColSubmittedAt
	ColSource

	columnCount = ColSource + 1
	lastCol     = ColSource
)

var (
	// Header is row 1 of every month table.
	Header = []string{"Date", "Job ID", "Summary", "Status", "Total Revenue", "Net Revenue", "Payment Type", "Submitted At", "Source"}
	// Totals is row 2 of every month table.
	Totals = []string{"", "", "TOTALS:", "", "=SUM(E3:E)", "=SUM(F3:F)", "", "", ""}

	monthTitle = regexp.MustCompile(`^[A-Z][a-z]{2} \d{4}$`)
)

// LedgerRow is one job's record in a month table.
type LedgerRow struct {
	Date         string `json:"date"`
	JobID        string `json:"job_id"`
	Summary      string `json:"summary"`
	Status       string `json:"status"`
	TotalRevenue string `json:"total_revenue"`
	NetRevenue   string `json:"net_revenue"`
	PaymentType  string `json:"payment_type"`
	SubmittedAt  string `json:"submitted_at"`
	Source       string `json:"source"`
}

// Values renders the row in column order.
func (r LedgerRow) Values() []string {
	return []string{r.Date, r.JobID, r.Summary, r.Status, r.TotalRevenue, r.NetRevenue, r.PaymentType, r.SubmittedAt, r.Source}
}

// Reported reports whether a crew has submitted a status for the row.
func (r LedgerRow) Reported() bool {
	return strings.TrimSpace(r.Status) != ""
}

func rowFromValues(cells []string) LedgerRow {
	get := func(i int) string {
		if i < len(cells) {
			return cells[i]
		}
		return ""
	}
	return LedgerRow{
		Date:         get(ColDate),
		JobID:        get(ColJobID),
		Summary:      get(ColSummary),
		Status:       get(ColStatus),
		TotalRevenue: get(ColTotalRevenue),
		NetRevenue:   get(ColNetRevenue),
		PaymentType:  get(ColPaymentType),
		SubmittedAt:  get(ColSubmittedAt),
		Source:       get(ColSource),
	}
}

// RowRef locates a job's row.
type RowRef struct {
	Table string    `json:"table"`
	Row   int       `json:"row"`
	Data  LedgerRow `json:"data"`
}

// NewRow is a prepopulated row: identity fields only, outcome fields blank.
type NewRow struct {
	Date    string
	JobID   string
	Summary string
	Source  enums.JobSource
}

// Submission carries the crew-reported fields written to columns D..H.
type Submission struct {
	JobID        string
	Status       string
	TotalRevenue string
	NetRevenue   string
	PaymentType  string
}

// AppendResult lists the job ids written by AppendRows.
type AppendResult struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
}

// IsMonthTable reports whether title names a month table such as "Feb 2026".
func IsMonthTable(title string) bool {
	return monthTitle.MatchString(title)
}

// SortMonths orders month table titles chronologically; unparsable titles keep their relative order at the end.
func SortMonths(titles []string) {
	sort.SliceStable(titles, func(i, j int) bool {
		ti, erri := bizclock.ParseMonthLabel(titles[i])
		tj, errj := bizclock.ParseMonthLabel(titles[j])
		switch {
		case erri != nil:
			return false
		case errj != nil:
			return true
		default:
			return ti.Before(tj)
		}
	})
}

func findTable(tables []TableInfo, title string) (TableInfo, bool) {
	for _, t := range tables {
		if t.Title == title {
			return t, true
		}
	}
	return TableInfo{}, false
}

func dataRange(table string) Range {
	return sheets.Rows(table, ColDate, lastCol, FirstDataRow, 0)
}

func rowRange(table string, startCol, endCol, row int) Range {
	return sheets.Rows(table, startCol, endCol, row, row)
}
