package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/movingops/jobreport-backend/pkg/config"
	"github.com/movingops/jobreport-backend/pkg/google"
	"github.com/movingops/jobreport-backend/pkg/logger"
	"github.com/movingops/jobreport-backend/pkg/retry"
)

const valueInputOption = "USER_ENTERED"

var (
	errSpreadsheetRequired  = errors.New("spreadsheet id is required")
	errClientNotInitialized = errors.New("sheets client not initialized")
	errTableNotFound        = errors.New("table not found")
	errEmptyReply           = errors.New("empty reply")
)

// Client performs the tabular operations the ledger needs against one spreadsheet.
// Every call waits on a client-side limiter. Reads and range overwrites are retried
// on transient failures; row inserts, deletes and appends are sent once because a
// failed response does not tell whether the server applied them.
type Client struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	limiter       *rate.Limiter
	retry         retry.Policy
}

// Option configures optional client behavior.
type Option func(*Client)

// WithLimiter overrides the request limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient builds a Sheets v4 client from config.
func NewClient(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts ...option.ClientOption) (*Client, error) {
	svc, err := sheetsapi.NewService(ctx, google.ClientOptions(cfg.Google, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}
	client, err := NewWithService(svc, cfg.Google.SpreadsheetID,
		WithLimiter(limiterFromConfig(cfg.Sheets)),
		WithRetry(retry.FromConfig(cfg.Retry)),
	)
	if err != nil {
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "spreadsheet_id", client.spreadsheetID), "sheets client initialized")
	}
	return client, nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *sheetsapi.Service, spreadsheetID string, opts ...Option) (*Client, error) {
	id := strings.TrimSpace(spreadsheetID)
	if id == "" {
		return nil, errSpreadsheetRequired
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: id,
		limiter:       rate.NewLimiter(rate.Inf, 1),
		retry:         retry.Policy{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

func limiterFromConfig(cfg config.SheetsConfig) *rate.Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
}

func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	return c.retry.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func (c *Client) callOnce(ctx context.Context, fn func(context.Context) error) error {
	if c == nil || c.svc == nil {
		return errClientNotInitialized
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Tables lists the spreadsheet's tabs in display order.
func (c *Client) Tables(ctx context.Context) ([]TableInfo, error) {
	var tables []TableInfo
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		tables, err = c.listTables(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	return tables, nil
}

func (c *Client) listTables(ctx context.Context) ([]TableInfo, error) {
	resp, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	tables := make([]TableInfo, 0, len(resp.Sheets))
	for _, s := range resp.Sheets {
		if s == nil || s.Properties == nil {
			continue
		}
		tables = append(tables, TableInfo{ID: s.Properties.SheetId, Title: s.Properties.Title, Index: s.Properties.Index})
	}
	return tables, nil
}

// AddTable creates a tab and returns its identity. A retried attempt first checks
// whether the previous one created the tab after all.
func (c *Client) AddTable(ctx context.Context, title string, props TableProps) (TableInfo, error) {
	sp := &sheetsapi.SheetProperties{Title: title}
	if props.FrozenRows > 0 {
		sp.GridProperties = &sheetsapi.GridProperties{FrozenRowCount: props.FrozenRows}
	}
	if props.First {
		sp.Index = 0
		sp.ForceSendFields = []string{"Index"}
	}
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{AddSheet: &sheetsapi.AddSheetRequest{Properties: sp}}},
	}
	var (
		info    TableInfo
		attempt int
	)
	err := c.call(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			tables, err := c.listTables(ctx)
			if err != nil {
				return err
			}
			for _, t := range tables {
				if t.Title == title {
					info = t
					return nil
				}
			}
		}
		resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		if err != nil {
			return err
		}
		if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
			return errEmptyReply
		}
		p := resp.Replies[0].AddSheet.Properties
		info = TableInfo{ID: p.SheetId, Title: p.Title, Index: p.Index}
		return nil
	})
	if err != nil {
		return TableInfo{}, fmt.Errorf("adding table %q: %w", title, err)
	}
	return info, nil
}

// Values reads a range as strings. Trailing empty rows and cells are omitted, matching the API.
func (c *Client) Values(ctx context.Context, r Range) ([][]string, error) {
	var resp *sheetsapi.ValueRange
	err := c.call(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.svc.Spreadsheets.Values.Get(c.spreadsheetID, r.A1()).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", r.A1(), err)
	}
	out := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out, nil
}

// Update overwrites a range with user-entered values, so formulas are evaluated.
func (c *Client) Update(ctx context.Context, r Range, rows [][]string) error {
	vr := &sheetsapi.ValueRange{Values: toInterfaces(rows)}
	err := c.call(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, r.A1(), vr).
			ValueInputOption(valueInputOption).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("updating %s: %w", r.A1(), err)
	}
	return nil
}

// Append adds rows after the last non-empty row of table.
func (c *Client) Append(ctx context.Context, table string, rows [][]string) error {
	a1 := QuoteTable(table) + "!A1"
	vr := &sheetsapi.ValueRange{Values: toInterfaces(rows)}
	err := c.callOnce(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1, vr).
			ValueInputOption(valueInputOption).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("appending to %s: %w", table, err)
	}
	return nil
}

// InsertRows inserts count blank rows before the 0-based row index at, without inheriting formatting.
func (c *Client) InsertRows(ctx context.Context, tableID int64, at, count int64) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			InsertDimension: &sheetsapi.InsertDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:         tableID,
					Dimension:       "ROWS",
					StartIndex:      at,
					EndIndex:        at + count,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
				InheritFromBefore: false,
			},
		}},
	}
	err := c.callOnce(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting rows at %d: %w", at, err)
	}
	return nil
}

// DeleteRows removes count rows starting at the 0-based row index at.
func (c *Client) DeleteRows(ctx context.Context, tableID int64, at, count int64) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			DeleteDimension: &sheetsapi.DeleteDimensionRequest{
				Range: &sheetsapi.DimensionRange{
					SheetId:         tableID,
					Dimension:       "ROWS",
					StartIndex:      at,
					EndIndex:        at + count,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	err := c.callOnce(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting rows at %d: %w", at, err)
	}
	return nil
}

// Clear blanks the values in a range, keeping formatting.
func (c *Client) Clear(ctx context.Context, r Range) error {
	err := c.call(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, r.A1(), &sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clearing %s: %w", r.A1(), err)
	}
	return nil
}

// Bold sets bold text on the 0-based, end-exclusive row span [startRow, endRow).
func (c *Client) Bold(ctx context.Context, tableID int64, startRow, endRow int64) error {
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			RepeatCell: &sheetsapi.RepeatCellRequest{
				Range: &sheetsapi.GridRange{
					SheetId:         tableID,
					StartRowIndex:   startRow,
					EndRowIndex:     endRow,
					ForceSendFields: []string{"SheetId", "StartRowIndex"},
				},
				Cell: &sheetsapi.CellData{
					UserEnteredFormat: &sheetsapi.CellFormat{
						TextFormat: &sheetsapi.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat.textFormat.bold",
			},
		}},
	}
	err := c.call(ctx, func(ctx context.Context) error {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("formatting rows %d-%d: %w", startRow, endRow, err)
	}
	return nil
}

// TableByTitle finds a tab by exact title.
func (c *Client) TableByTitle(ctx context.Context, title string) (TableInfo, error) {
	tables, err := c.Tables(ctx)
	if err != nil {
		return TableInfo{}, err
	}
	for _, t := range tables {
		if t.Title == title {
			return t, nil
		}
	}
	return TableInfo{}, fmt.Errorf("%w: %s", errTableNotFound, title)
}

func toInterfaces(rows [][]string) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		out[i] = cells
	}
	return out
}
