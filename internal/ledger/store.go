package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/movingops/jobreport-backend/pkg/bizclock"
	pkgerrors "github.com/movingops/jobreport-backend/pkg/errors"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/sheets"
)

// Store owns the month tables: where a job's row lives, whether it exists,
// sorted insertion and in-place updates. Every mutation is followed by a Summary rebuild.
type Store struct {
	backend Backend
	clock   *bizclock.Clock
	index   RowIndex
	agg     *Aggregator
	logg    *logger.Logger

	// mu serializes mutations issued by this process; rows shift on insert.
	mu sync.Mutex
}

// StoreOption configures optional store behavior.
type StoreOption func(*Store)

// WithRowIndex enables the row position cache.
func WithRowIndex(idx RowIndex) StoreOption {
	return func(s *Store) {
		if idx != nil {
			s.index = idx
		}
	}
}

// NewStore wires a store over the tabular backend.
func NewStore(backend Backend, clock *bizclock.Clock, logg *logger.Logger, opts ...StoreOption) (*Store, error) {
	if backend == nil {
		return nil, errors.New("ledger backend required")
	}
	if clock == nil {
		return nil, errors.New("business clock required")
	}
	s := &Store{
		backend: backend,
		clock:   clock,
		index:   noopIndex{},
		agg:     NewAggregator(backend, logg),
		logg:    logg,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Aggregator returns the summary aggregator bound to the same backend.
func (s *Store) Aggregator() *Aggregator {
	return s.agg
}

// EnsureTable creates the month table with its header and totals rows if it is missing.
func (s *Store) EnsureTable(ctx context.Context, label string) (TableInfo, error) {
	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return TableInfo{}, dependency(err, "listing ledger tables")
	}
	return s.ensureTable(ctx, tables, label)
}

func (s *Store) ensureTable(ctx context.Context, tables []TableInfo, label string) (TableInfo, error) {
	if label == SummaryTable {
		return TableInfo{}, pkgerrors.New(pkgerrors.CodeValidation, "summary is not a month table")
	}
	if existing, ok := findTable(tables, label); ok {
		return existing, nil
	}

	ctx = s.withTable(ctx, label)
	info, err := s.backend.AddTable(ctx, label, TableProps{FrozenRows: FrozenRows})
	if err != nil {
		return TableInfo{}, dependency(err, "creating month table")
	}
	head := sheets.Rows(label, ColDate, lastCol, HeaderRow, TotalsRow)
	if err := s.backend.Update(ctx, head, [][]string{Header, Totals}); err != nil {
		return TableInfo{}, dependency(err, "writing month table header")
	}
	if err := s.backend.Bold(ctx, info.ID, 0, TotalsRow); err != nil {
		s.warn(ctx, "formatting month table header failed", err)
	}
	if err := s.index.Invalidate(ctx, label); err != nil {
		s.warn(ctx, "row index invalidate failed", err)
	}
	s.info(ctx, "month table created")
	return info, nil
}

// FindRow locates a job's row across every month table, first match wins.
// The scan is O(total rows); a row index hit short-circuits it after verification.
func (s *Store) FindRow(ctx context.Context, jobID string) (RowRef, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return RowRef{}, false, pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	ctx = s.withJob(ctx, jobID)

	if ref, ok := s.lookupHint(ctx, jobID); ok {
		return ref, true, nil
	}

	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return RowRef{}, false, dependency(err, "listing ledger tables")
	}
	for _, t := range tables {
		if t.Title == SummaryTable {
			continue
		}
		rows, err := s.backend.Values(ctx, dataRange(t.Title))
		if err != nil {
			return RowRef{}, false, dependency(err, "reading ledger table")
		}
		for i, cells := range rows {
			if len(cells) > ColJobID && cells[ColJobID] == jobID {
				ref := RowRef{Table: t.Title, Row: FirstDataRow + i, Data: rowFromValues(cells)}
				s.remember(ctx, jobID, ref)
				return ref, true, nil
			}
		}
	}
	return RowRef{}, false, nil
}

func (s *Store) lookupHint(ctx context.Context, jobID string) (RowRef, bool) {
	hint, ok, err := s.index.Lookup(ctx, jobID)
	if err != nil {
		s.warn(ctx, "row index lookup failed", err)
		return RowRef{}, false
	}
	if !ok || hint.Row < FirstDataRow {
		return RowRef{}, false
	}
	rows, err := s.backend.Values(ctx, rowRange(hint.Table, ColDate, lastCol, hint.Row))
	if err != nil || len(rows) == 0 || len(rows[0]) <= ColJobID || rows[0][ColJobID] != jobID {
		if invErr := s.index.Invalidate(ctx, hint.Table); invErr != nil {
			s.warn(ctx, "row index invalidate failed", invErr)
		}
		return RowRef{}, false
	}
	return RowRef{Table: hint.Table, Row: hint.Row, Data: rowFromValues(rows[0])}, true
}

func (s *Store) remember(ctx context.Context, jobID string, ref RowRef) {
	if err := s.index.Remember(ctx, jobID, RowHint{Table: ref.Table, Row: ref.Row}); err != nil {
		s.warn(ctx, "row index remember failed", err)
	}
}

// CreateRow prepopulates a job's row in its month table, keeping the table sorted by date.
// It returns the 1-based row number; a job that already has a row is a conflict.
func (s *Store) CreateRow(ctx context.Context, row NewRow) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lr := LedgerRow{
		Date:    strings.TrimSpace(row.Date),
		JobID:   strings.TrimSpace(row.JobID),
		Summary: row.Summary,
		Source:  row.Source.String(),
	}
	if lr.Source == "" {
		lr.Source = "Other"
	}
	n, err := s.createRow(ctx, lr)
	if err != nil {
		return 0, err
	}
	s.rebuildSummary(ctx)
	return n, nil
}

func (s *Store) createRow(ctx context.Context, row LedgerRow) (int, error) {
	label, err := s.labelFor(row)
	if err != nil {
		return 0, err
	}
	_, exists, err := s.FindRow(ctx, row.JobID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, pkgerrors.New(pkgerrors.CodeConflict, "job already has a ledger row").
			WithDetails(map[string]string{"job_id": row.JobID})
	}
	n, _, err := s.insertSorted(ctx, label, row)
	return n, err
}

// insertSorted returns the 1-based row number and the id of the table it landed in.
// A row that was inserted but could not be written is deleted again.
func (s *Store) insertSorted(ctx context.Context, label string, row LedgerRow) (int, int64, error) {
	ctx = s.withTable(s.withJob(ctx, row.JobID), label)

	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return 0, 0, dependency(err, "listing ledger tables")
	}
	info, err := s.ensureTable(ctx, tables, label)
	if err != nil {
		return 0, 0, err
	}

	dates, err := s.backend.Values(ctx, sheets.Columns(label, ColDate, ColDate))
	if err != nil {
		return 0, 0, dependency(err, "reading ledger dates")
	}
	at := insertionIndex(dates, row.Date)

	if err := s.backend.InsertRows(ctx, info.ID, int64(at), 1); err != nil {
		return 0, 0, dependency(err, "inserting ledger row")
	}
	if err := s.index.Invalidate(ctx, label); err != nil {
		s.warn(ctx, "row index invalidate failed", err)
	}
	rowNumber := at + 1
	target := rowRange(label, ColDate, lastCol, rowNumber)
	values := [][]string{row.Values()}
	if rowNumber == FirstDataRow {
		// The totals formulas follow the old first row down; pin them back to row 3.
		target = sheets.Rows(label, ColDate, lastCol, TotalsRow, rowNumber)
		values = [][]string{Totals, row.Values()}
	}
	if err := s.backend.Update(ctx, target, values); err != nil {
		if delErr := s.backend.DeleteRows(ctx, info.ID, int64(at), 1); delErr != nil {
			s.warn(s.logField(ctx, "row", rowNumber), "removing unwritten ledger row failed", delErr)
		}
		return 0, 0, dependency(err, "writing ledger row")
	}
	s.remember(ctx, row.JobID, RowRef{Table: label, Row: rowNumber})
	s.info(s.logField(ctx, "row", rowNumber), "ledger row created")
	return rowNumber, info.ID, nil
}

// insertionIndex returns the 0-based row index before which a row dated date belongs:
// the first data row whose date is strictly later, else the end of the table.
func insertionIndex(dates [][]string, date string) int {
	first := FirstDataRow - 1
	at := len(dates)
	if at < first {
		at = first
	}
	for i := first; i < len(dates); i++ {
		cell := ""
		if len(dates[i]) > 0 {
			cell = strings.TrimSpace(dates[i][0])
		}
		if cell > date {
			return i
		}
	}
	return at
}

// UpdateRow writes a submission into the job's existing row. It never creates a row.
func (s *Store) UpdateRow(ctx context.Context, sub Submission) (RowRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, _, err := s.updateRow(ctx, sub, "")
	if err != nil {
		return RowRef{}, err
	}
	s.rebuildSummary(ctx)
	return ref, nil
}

// updateRow returns the written row along with its previous contents.
func (s *Store) updateRow(ctx context.Context, sub Submission, submittedAt string) (RowRef, LedgerRow, error) {
	ref, ok, err := s.FindRow(ctx, sub.JobID)
	if err != nil {
		return RowRef{}, LedgerRow{}, err
	}
	if !ok {
		return RowRef{}, LedgerRow{}, pkgerrors.New(pkgerrors.CodeNotFound, "job not found in ledger").
			WithDetails(map[string]string{"job_id": sub.JobID})
	}
	if submittedAt == "" {
		submittedAt = s.clock.Timestamp()
	}

	prev := ref.Data
	values := []string{sub.Status, sub.TotalRevenue, sub.NetRevenue, sub.PaymentType, submittedAt}
	ctx = s.withTable(s.withJob(ctx, sub.JobID), ref.Table)
	if err := s.backend.Update(ctx, outcomeRange(ref), [][]string{values}); err != nil {
		return RowRef{}, LedgerRow{}, dependency(err, "updating ledger row")
	}

	ref.Data.Status = sub.Status
	ref.Data.TotalRevenue = sub.TotalRevenue
	ref.Data.NetRevenue = sub.NetRevenue
	ref.Data.PaymentType = sub.PaymentType
	ref.Data.SubmittedAt = submittedAt
	s.info(s.logField(ctx, "row", ref.Row), "ledger row updated")
	return ref, prev, nil
}

func outcomeRange(ref RowRef) Range {
	return rowRange(ref.Table, ColStatus, ColSubmittedAt, ref.Row)
}

func outcomeValues(row LedgerRow) []string {
	return []string{row.Status, row.TotalRevenue, row.NetRevenue, row.PaymentType, row.SubmittedAt}
}

type plannedRow struct {
	row    LedgerRow
	label  string
	exists bool
}

// AppendRows writes complete rows, each into the month table of its own date.
// Jobs that already have a row are updated in place; new jobs are inserted in date order.
// Every row is validated and located before the first write. If a write fails, the
// writes already made are undone in reverse order so the batch can be retried as is.
func (s *Store) AppendRows(ctx context.Context, rows []LedgerRow) (AppendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result AppendResult
	if len(rows) == 0 {
		return result, nil
	}

	plan := make([]plannedRow, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		row.Date = strings.TrimSpace(row.Date)
		row.JobID = strings.TrimSpace(row.JobID)
		label, err := s.labelFor(row)
		if err != nil {
			return result, err
		}
		if row.SubmittedAt == "" {
			row.SubmittedAt = s.clock.Timestamp()
		}
		exists := seen[row.JobID]
		if !exists {
			_, exists, err = s.FindRow(ctx, row.JobID)
			if err != nil {
				return result, err
			}
		}
		seen[row.JobID] = true
		plan = append(plan, plannedRow{row: row, label: label, exists: exists})
	}

	var undo []func(context.Context) error
	for _, p := range plan {
		row := p.row
		if p.exists {
			sub := Submission{
				JobID:        row.JobID,
				Status:       row.Status,
				TotalRevenue: row.TotalRevenue,
				NetRevenue:   row.NetRevenue,
				PaymentType:  row.PaymentType,
			}
			ref, prev, err := s.updateRow(ctx, sub, row.SubmittedAt)
			if err != nil {
				return AppendResult{}, s.rollback(ctx, undo, err)
			}
			undo = append(undo, func(ctx context.Context) error {
				return s.backend.Update(ctx, outcomeRange(ref), [][]string{outcomeValues(prev)})
			})
			result.Updated = append(result.Updated, row.JobID)
			continue
		}
		n, tableID, err := s.insertSorted(ctx, p.label, row)
		if err != nil {
			return AppendResult{}, s.rollback(ctx, undo, err)
		}
		label := p.label
		undo = append(undo, func(ctx context.Context) error {
			if err := s.index.Invalidate(ctx, label); err != nil {
				s.warn(ctx, "row index invalidate failed", err)
			}
			return s.backend.DeleteRows(ctx, tableID, int64(n-1), 1)
		})
		result.Created = append(result.Created, row.JobID)
	}
	s.rebuildSummary(ctx)
	return result, nil
}

// rollback undoes a partial batch newest first and returns cause. Undo failures are
// logged; the Summary is rebuilt whenever anything was written.
func (s *Store) rollback(ctx context.Context, undo []func(context.Context) error, cause error) error {
	if len(undo) == 0 {
		return cause
	}
	for i := len(undo) - 1; i >= 0; i-- {
		if err := undo[i](ctx); err != nil {
			s.warn(ctx, "rolling back ledger write failed", err)
		}
	}
	s.warn(s.logField(ctx, "undone", len(undo)), "ledger batch rolled back", cause)
	s.rebuildSummary(ctx)
	return cause
}

// RowExistsForDate reports whether any row of date's month table carries date in column A.
// A missing month table means no row.
func (s *Store) RowExistsForDate(ctx context.Context, date string) (bool, error) {
	date = strings.TrimSpace(date)
	label, err := bizclock.MonthLabel(date)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return false, dependency(err, "listing ledger tables")
	}
	if _, ok := findTable(tables, label); !ok {
		return false, nil
	}
	cells, err := s.backend.Values(ctx, sheets.Columns(label, ColDate, ColDate))
	if err != nil {
		return false, dependency(err, "reading ledger dates")
	}
	for _, c := range cells {
		if len(c) > 0 && c[0] == date {
			return true, nil
		}
	}
	return false, nil
}

// MonthRows returns the data rows of a month table.
func (s *Store) MonthRows(ctx context.Context, label string) ([]LedgerRow, error) {
	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return nil, dependency(err, "listing ledger tables")
	}
	if _, ok := findTable(tables, label); !ok || label == SummaryTable {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "month table not found").
			WithDetails(map[string]string{"month": label})
	}
	return readMonth(ctx, s.backend, label)
}

func readMonth(ctx context.Context, backend Backend, label string) ([]LedgerRow, error) {
	cells, err := backend.Values(ctx, dataRange(label))
	if err != nil {
		return nil, dependency(err, "reading ledger table")
	}
	rows := make([]LedgerRow, 0, len(cells))
	for _, c := range cells {
		row := rowFromValues(c)
		if strings.TrimSpace(row.JobID) == "" && strings.TrimSpace(row.Date) == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// MonthTables lists month table titles in chronological order.
func (s *Store) MonthTables(ctx context.Context) ([]string, error) {
	tables, err := s.backend.Tables(ctx)
	if err != nil {
		return nil, dependency(err, "listing ledger tables")
	}
	return monthTitles(tables), nil
}

func monthTitles(tables []TableInfo) []string {
	var months []string
	for _, t := range tables {
		if IsMonthTable(t.Title) {
			months = append(months, t.Title)
		}
	}
	SortMonths(months)
	return months
}

func (s *Store) labelFor(row LedgerRow) (string, error) {
	if row.JobID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "job id is required")
	}
	label, err := bizclock.MonthLabel(row.Date)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return label, nil
}

// rebuildSummary refreshes the Summary after a mutation; failures are logged only.
func (s *Store) rebuildSummary(ctx context.Context) {
	if _, err := s.agg.Rebuild(ctx); err != nil {
		s.warn(ctx, "summary rebuild failed", err)
	}
}

func dependency(err error, message string) error {
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s failed", message))
}

func (s *Store) withJob(ctx context.Context, jobID string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithJobID(ctx, jobID)
}

func (s *Store) withTable(ctx context.Context, table string) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithTable(ctx, table)
}

func (s *Store) logField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *Store) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Store) warn(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
	}
}
