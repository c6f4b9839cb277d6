package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movingops/jobreport-backend/internal/ledger/memory"
	"github.com/movingops/jobreport-backend/pkg/enums"
)

func TestSummaryRowsLayout(t *testing.T) {
	rows := SummaryRows([]string{"Jan 2026", "Feb 2026"})
	require.Len(t, rows, 4)
	assert.Equal(t, SummaryHeader, rows[0])
	assert.Equal(t, "Jan 2026", rows[1][0])
	assert.Equal(t, "=SUM('Jan 2026'!E3:E)", rows[1][1])
	assert.Equal(t, `=SUMIF('Feb 2026'!I3:I, "Google LSA", 'Feb 2026'!E3:E)`, rows[2][4])
	assert.Equal(t, `=COUNTA('Feb 2026'!B3:B)-COUNTIF('Feb 2026'!I3:I, "Yelp")-COUNTIF('Feb 2026'!I3:I, "Google LSA")`, rows[2][7])
	assert.Equal(t, []string{"GRAND TOTAL", "=SUM(B2:B3)", "=SUM(C2:C3)", "=SUM(D2:D3)", "=SUM(E2:E3)", "=SUM(F2:F3)", "=SUM(G2:G3)", "=SUM(H2:H3)", "=SUM(I2:I3)"}, rows[3])
}

func TestSummaryRowsWithoutMonths(t *testing.T) {
	rows := SummaryRows(nil)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"GRAND TOTAL", "0", "0", "0", "0", "0", "0", "0", "0"}, rows[1])
}

func TestRebuildAfterMutations(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	create(t, s, "2026-01-15", "j1", enums.JobSourceYelp)
	create(t, s, "2026-02-02", "f1", enums.JobSourceGoogleLSA)
	create(t, s, "2026-02-03", "f2", enums.JobSourceOther)
	_, err := s.UpdateRow(ctx, Submission{JobID: "j1", Status: "Yes", TotalRevenue: "200", NetRevenue: "150", PaymentType: "Cash"})
	require.NoError(t, err)
	_, err = s.UpdateRow(ctx, Submission{JobID: "f1", Status: "Yes", TotalRevenue: "300.25", NetRevenue: "250", PaymentType: "Card"})
	require.NoError(t, err)
	_, err = s.UpdateRow(ctx, Submission{JobID: "f2", Status: "Completed", TotalRevenue: "99.75", NetRevenue: "50", PaymentType: "Zelle"})
	require.NoError(t, err)

	summary, err := s.Aggregator().Rebuild(ctx)
	require.NoError(t, err)

	rows := backend.Rows(SummaryTable)
	assert.Len(t, rows, 2+2, "header + one row per month + grand total")
	assert.Equal(t, "Jan 2026", rows[1][0])
	assert.Equal(t, "Feb 2026", rows[2][0])
	assert.True(t, backend.IsBold(SummaryTable, 0))
	assert.True(t, backend.IsBold(SummaryTable, 3))

	tables, err := backend.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, SummaryTable, tables[0].Title, "summary is the first tab")

	require.Len(t, summary.Months, 2)
	feb := summary.Months[1]
	assert.True(t, feb.TotalRevenue.Equal(decimal.RequireFromString("400")))
	assert.True(t, feb.LSARevenue.Equal(decimal.RequireFromString("300.25")))
	assert.Equal(t, 1, feb.LSAJobs)
	assert.Equal(t, 1, feb.OtherJobs)
	assert.Equal(t, 2, feb.TotalJobs)

	grand := summary.GrandTotal
	var sum decimal.Decimal
	jobs := 0
	for _, m := range summary.Months {
		sum = sum.Add(m.TotalRevenue)
		jobs += m.TotalJobs
	}
	assert.True(t, grand.TotalRevenue.Equal(sum))
	assert.True(t, grand.TotalRevenue.Equal(decimal.RequireFromString("600")))
	assert.True(t, grand.YelpRevenue.Equal(decimal.RequireFromString("200")))
	assert.Equal(t, jobs, grand.TotalJobs)
	assert.Equal(t, 3, grand.TotalJobs)
}

func TestRebuildShrinksStaleRows(t *testing.T) {
	backend := memory.New()
	agg := NewAggregator(backend, nil)
	ctx := context.Background()

	_, err := backend.AddTable(ctx, SummaryTable, TableProps{First: true})
	require.NoError(t, err)
	stale := make([][]string, 6)
	for i := range stale {
		stale[i] = []string{"stale"}
	}
	require.NoError(t, backend.Update(ctx, Range{Table: SummaryTable, StartRow: 1, EndRow: 6}, stale))

	_, err = backend.AddTable(ctx, "Feb 2026", TableProps{FrozenRows: FrozenRows})
	require.NoError(t, err)
	_, err = backend.AddTable(ctx, "Notes", TableProps{})
	require.NoError(t, err)

	summary, err := agg.Rebuild(ctx)
	require.NoError(t, err)
	assert.Len(t, backend.Rows(SummaryTable), 3)
	require.Len(t, summary.Months, 1)
	assert.Equal(t, "Feb 2026", summary.Months[0].Month)
	assert.True(t, summary.GrandTotal.TotalRevenue.IsZero())
}

func TestIsMonthTable(t *testing.T) {
	assert.True(t, IsMonthTable("Feb 2026"))
	assert.False(t, IsMonthTable("Summary"))
	assert.False(t, IsMonthTable("February 2026"))
	assert.False(t, IsMonthTable("feb 2026"))
}
