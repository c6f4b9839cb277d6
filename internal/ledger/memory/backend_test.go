package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/movingops/jobreport-backend/pkg/sheets"
)

func TestInsertRowsShiftsValuesAndFormatting(t *testing.T) {
	ctx := context.Background()
	b := New()
	info, err := b.AddTable(ctx, "Feb 2026", sheets.TableProps{FrozenRows: 2})
	require.NoError(t, err)

	require.NoError(t, b.Update(ctx, sheets.Rows("Feb 2026", 0, 1, 1, 3), [][]string{{"Date", "Job ID"}, {"", ""}, {"2026-02-03", "B"}}))
	require.NoError(t, b.Bold(ctx, info.ID, 2, 3))
	require.NoError(t, b.InsertRows(ctx, info.ID, 2, 1))
	require.NoError(t, b.Update(ctx, sheets.Rows("Feb 2026", 0, 1, 3, 3), [][]string{{"2026-02-02", "C"}}))

	got, err := b.Values(ctx, sheets.Columns("Feb 2026", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Job ID"}, {}, {"C"}, {"B"}}, got)
	assert.False(t, b.IsBold("Feb 2026", 2))
	assert.True(t, b.IsBold("Feb 2026", 3))
}

func TestAddTableFirstAndDuplicates(t *testing.T) {
	ctx := context.Background()
	b := New()
	_, err := b.AddTable(ctx, "Jan 2026", sheets.TableProps{})
	require.NoError(t, err)
	_, err = b.AddTable(ctx, "Summary", sheets.TableProps{First: true})
	require.NoError(t, err)
	_, err = b.AddTable(ctx, "Summary", sheets.TableProps{})
	assert.Error(t, err)

	tables, err := b.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "Summary", tables[0].Title)
	assert.Equal(t, int64(1), tables[1].Index)
}

func TestMissingTableAndInjectedFailures(t *testing.T) {
	ctx := context.Background()
	b := New()
	_, err := b.Values(ctx, sheets.Columns("Mar 2026", 0, 0))
	assert.Error(t, err)

	boom := errors.New("boom")
	b.Fail("Tables", boom)
	_, err = b.Tables(ctx)
	assert.ErrorIs(t, err, boom)
	b.Fail("Tables", nil)
	_, err = b.Tables(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, b.Calls("Tables"))
}

func TestAppendAfterLastRow(t *testing.T) {
	ctx := context.Background()
	b := New()
	_, err := b.AddTable(ctx, "Log", sheets.TableProps{})
	require.NoError(t, err)
	require.NoError(t, b.Append(ctx, "Log", [][]string{{"a"}}))
	require.NoError(t, b.Append(ctx, "Log", [][]string{{"b"}, {"c"}}))
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}}, b.Rows("Log"))
}

func TestRowShiftsMoveFormulaReferences(t *testing.T) {
	ctx := context.Background()
	b := New()
	info, err := b.AddTable(ctx, "Feb 2026", sheets.TableProps{})
	require.NoError(t, err)
	require.NoError(t, b.Update(ctx, sheets.Rows("Feb 2026", 0, 4, 1, 3), [][]string{
		{"Date"},
		{"", "", "TOTALS:", "", "=SUM(E3:E)"},
		{"2026-02-03", "B", "", "", "10"},
	}))

	require.NoError(t, b.InsertRows(ctx, info.ID, 2, 1))
	assert.Equal(t, "=SUM(E4:E)", b.Rows("Feb 2026")[1][4])

	require.NoError(t, b.InsertRows(ctx, info.ID, 4, 1))
	assert.Equal(t, "=SUM(E4:E)", b.Rows("Feb 2026")[1][4], "rows below the reference leave it alone")

	require.NoError(t, b.DeleteRows(ctx, info.ID, 2, 1))
	rows := b.Rows("Feb 2026")
	assert.Equal(t, "=SUM(E3:E)", rows[1][4])
	assert.Equal(t, "B", rows[2][1])
}

func TestDeleteRowsShiftsFormatting(t *testing.T) {
	ctx := context.Background()
	b := New()
	info, err := b.AddTable(ctx, "Feb 2026", sheets.TableProps{})
	require.NoError(t, err)
	require.NoError(t, b.Update(ctx, sheets.Rows("Feb 2026", 0, 1, 1, 3), [][]string{{"Date", "Job ID"}, {"2026-02-01", "A"}, {"2026-02-02", "B"}}))
	require.NoError(t, b.Bold(ctx, info.ID, 2, 3))

	require.NoError(t, b.DeleteRows(ctx, info.ID, 1, 1))

	got, err := b.Values(ctx, sheets.Columns("Feb 2026", 1, 1))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Job ID"}, {"B"}}, got)
	assert.True(t, b.IsBold("Feb 2026", 1))
	assert.False(t, b.IsBold("Feb 2026", 2))
	assert.Equal(t, 1, b.Calls("DeleteRows"))
}
