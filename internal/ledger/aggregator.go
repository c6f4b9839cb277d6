package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/movingops/jobreport-backend/pkg/enums"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/sheets"
)

// SummaryHeader is row 1 of the Summary table.
var SummaryHeader = []string{"Month", "Total Revenue", "Net Revenue", "Yelp Revenue", "Google LSA Revenue", "Yelp Jobs", "Google LSA Jobs", "Other Jobs", "Total Jobs"}

const grandTotalLabel = "GRAND TOTAL"

// MonthSummary holds the totals for one month table, or the grand total.
type MonthSummary struct {
	Month        string          `json:"month"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	NetRevenue   decimal.Decimal `json:"net_revenue"`
	YelpRevenue  decimal.Decimal `json:"yelp_revenue"`
	LSARevenue   decimal.Decimal `json:"google_lsa_revenue"`
	YelpJobs     int             `json:"yelp_jobs"`
	LSAJobs      int             `json:"google_lsa_jobs"`
	OtherJobs    int             `json:"other_jobs"`
	TotalJobs    int             `json:"total_jobs"`
}

func (m *MonthSummary) add(o MonthSummary) {
	m.TotalRevenue = m.TotalRevenue.Add(o.TotalRevenue)
	m.NetRevenue = m.NetRevenue.Add(o.NetRevenue)
	m.YelpRevenue = m.YelpRevenue.Add(o.YelpRevenue)
	m.LSARevenue = m.LSARevenue.Add(o.LSARevenue)
	m.YelpJobs += o.YelpJobs
	m.LSAJobs += o.LSAJobs
	m.OtherJobs += o.OtherJobs
	m.TotalJobs += o.TotalJobs
}

// Summary is the computed counterpart of the Summary table.
type Summary struct {
	Months     []MonthSummary `json:"months"`
	GrandTotal MonthSummary   `json:"grand_total"`
}

// Aggregator regenerates the Summary table from the month tables.
type Aggregator struct {
	backend Backend
	logg    *logger.Logger
}

// NewAggregator binds an aggregator to a backend.
func NewAggregator(backend Backend, logg *logger.Logger) *Aggregator {
	return &Aggregator{backend: backend, logg: logg}
}

// Rebuild overwrites the Summary table: header, one formula row per month in
// chronological order, then a grand-total row. It also returns the totals computed
// from the month tables' current values.
func (a *Aggregator) Rebuild(ctx context.Context) (Summary, error) {
	tables, err := a.backend.Tables(ctx)
	if err != nil {
		return Summary{}, dependency(err, "listing ledger tables")
	}
	months := monthTitles(tables)

	summary, ok := findTable(tables, SummaryTable)
	if !ok {
		summary, err = a.backend.AddTable(ctx, SummaryTable, TableProps{First: true})
		if err != nil {
			return Summary{}, dependency(err, "creating summary table")
		}
	}

	rows := SummaryRows(months)
	if err := a.backend.Clear(ctx, sheets.Columns(SummaryTable, 0, len(SummaryHeader)-1)); err != nil {
		return Summary{}, dependency(err, "clearing summary table")
	}
	if err := a.backend.Update(ctx, sheets.Rows(SummaryTable, 0, len(SummaryHeader)-1, 1, len(rows)), rows); err != nil {
		return Summary{}, dependency(err, "writing summary table")
	}
	if err := a.backend.Bold(ctx, summary.ID, 0, 1); err != nil {
		a.warn(ctx, "formatting summary header failed", err)
	}
	if err := a.backend.Bold(ctx, summary.ID, int64(len(rows)-1), int64(len(rows))); err != nil {
		a.warn(ctx, "formatting summary grand total failed", err)
	}

	computed, err := a.Compute(ctx, months)
	if err != nil {
		return Summary{}, err
	}
	if a.logg != nil {
		a.logg.Info(a.logg.WithField(ctx, "months", len(months)), "summary rebuilt")
	}
	return computed, nil
}

// SummaryRows renders the Summary table: len(months)+2 rows.
func SummaryRows(months []string) [][]string {
	rows := make([][]string, 0, len(months)+2)
	rows = append(rows, append([]string(nil), SummaryHeader...))
	for _, m := range months {
		rows = append(rows, monthFormulaRow(m))
	}

	total := []string{grandTotalLabel}
	last := len(months) + 1
	for col := 1; col < len(SummaryHeader); col++ {
		if len(months) == 0 {
			total = append(total, "0")
			continue
		}
		letter := sheets.ColumnLetter(col)
		total = append(total, fmt.Sprintf("=SUM(%s2:%s%d)", letter, letter, last))
	}
	return append(rows, total)
}

func monthFormulaRow(month string) []string {
	q := sheets.QuoteTable(month)
	yelp := fmt.Sprintf("COUNTIF(%s!I3:I, %q)", q, enums.JobSourceYelp)
	lsa := fmt.Sprintf("COUNTIF(%s!I3:I, %q)", q, enums.JobSourceGoogleLSA)
	count := fmt.Sprintf("COUNTA(%s!B3:B)", q)
	return []string{
		month,
		fmt.Sprintf("=SUM(%s!E3:E)", q),
		fmt.Sprintf("=SUM(%s!F3:F)", q),
		fmt.Sprintf("=SUMIF(%s!I3:I, %q, %s!E3:E)", q, enums.JobSourceYelp, q),
		fmt.Sprintf("=SUMIF(%s!I3:I, %q, %s!E3:E)", q, enums.JobSourceGoogleLSA, q),
		"=" + yelp,
		"=" + lsa,
		fmt.Sprintf("=%s-%s-%s", count, yelp, lsa),
		"=" + count,
	}
}

// Compute sums the given month tables. Revenue cells that do not parse as numbers are
// ignored, as SUM would ignore them.
func (a *Aggregator) Compute(ctx context.Context, months []string) (Summary, error) {
	out := Summary{Months: make([]MonthSummary, 0, len(months)), GrandTotal: MonthSummary{Month: grandTotalLabel}}
	for _, month := range months {
		rows, err := readMonth(ctx, a.backend, month)
		if err != nil {
			return Summary{}, err
		}
		ms := summarizeMonth(month, rows)
		out.Months = append(out.Months, ms)
		out.GrandTotal.add(ms)
	}
	return out, nil
}

func summarizeMonth(month string, rows []LedgerRow) MonthSummary {
	ms := MonthSummary{Month: month}
	for _, r := range rows {
		total := parseAmount(r.TotalRevenue)
		ms.TotalRevenue = ms.TotalRevenue.Add(total)
		ms.NetRevenue = ms.NetRevenue.Add(parseAmount(r.NetRevenue))
		switch enums.JobSource(r.Source) {
		case enums.JobSourceYelp:
			ms.YelpRevenue = ms.YelpRevenue.Add(total)
			ms.YelpJobs++
		case enums.JobSourceGoogleLSA:
			ms.LSARevenue = ms.LSARevenue.Add(total)
			ms.LSAJobs++
		}
		if strings.TrimSpace(r.JobID) != "" {
			ms.TotalJobs++
		}
	}
	ms.OtherJobs = ms.TotalJobs - ms.YelpJobs - ms.LSAJobs
	return ms
}

func parseAmount(raw string) decimal.Decimal {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a *Aggregator) warn(ctx context.Context, msg string, err error) {
	if a.logg != nil {
		a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), msg)
	}
}
