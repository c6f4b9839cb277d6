package ledger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportMonth writes a month table as an .xlsx workbook. Revenue cells are written as
// numbers and the totals row carries live SUM formulas, mirroring the ledger layout.
func (s *Store) ExportMonth(ctx context.Context, label string, w io.Writer) error {
	rows, err := s.MonthRows(ctx, label)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := label
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("naming export sheet: %w", err)
	}

	if err := setRow(f, sheet, HeaderRow, Header); err != nil {
		return err
	}
	lastRow := FirstDataRow + len(rows) - 1
	if lastRow < FirstDataRow {
		lastRow = FirstDataRow
	}
	if err := f.SetCellValue(sheet, "C2", "TOTALS:"); err != nil {
		return fmt.Errorf("writing totals label: %w", err)
	}
	for _, col := range []string{"E", "F"} {
		formula := fmt.Sprintf("SUM(%s%d:%s%d)", col, FirstDataRow, col, lastRow)
		if err := f.SetCellFormula(sheet, fmt.Sprintf("%s%d", col, TotalsRow), formula); err != nil {
			return fmt.Errorf("writing totals formula: %w", err)
		}
	}

	for i, row := range rows {
		values := make([]any, 0, len(Header))
		for col, v := range row.Values() {
			if col == ColTotalRevenue || col == ColNetRevenue {
				if amount, ok := numericCell(v); ok {
					values = append(values, amount)
					continue
				}
			}
			values = append(values, v)
		}
		cell, err := excelize.CoordinatesToCellName(1, FirstDataRow+i)
		if err != nil {
			return fmt.Errorf("resolving export cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("writing export row: %w", err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: FrozenRows, TopLeftCell: "A3", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freezing export header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating export style: %w", err)
	}
	if err := f.SetRowStyle(sheet, HeaderRow, TotalsRow, bold); err != nil {
		return fmt.Errorf("styling export header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing export workbook: %w", err)
	}
	return nil
}

func numericCell(raw string) (float64, bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	amount, _ := d.Float64()
	return amount, true
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolving export cell: %w", err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing export row: %w", err)
	}
	return nil
}
