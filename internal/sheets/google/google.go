package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"kpiboard/internal/core"
	"kpiboard/internal/report"
	ports "kpiboard/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client mirrors documents into two tabs of one spreadsheet.
type Client struct {
	svc            *gsheet.Service
	spreadsheetID  string
	budgetSheet    string
	dashboardSheet string
}

// Ensure interface conformance
var _ ports.DocumentMirror = (*Client)(nil)

// Options configures the client. One of ServiceAccountJSON or
// ServiceAccountFile is required.
type Options struct {
	SpreadsheetID      string
	BudgetSheet        string
	DashboardSheet     string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts.ServiceAccountJSON, opts.ServiceAccountFile)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, opts), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, opts Options) *Client {
	budget := strings.TrimSpace(opts.BudgetSheet)
	if budget == "" {
		budget = "Budget"
	}
	dashboard := strings.TrimSpace(opts.DashboardSheet)
	if dashboard == "" {
		dashboard = "Dashboard"
	}
	return &Client{
		svc:            svc,
		spreadsheetID:  strings.TrimSpace(opts.SpreadsheetID),
		budgetSheet:    budget,
		dashboardSheet: dashboard,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, serviceAccountJSON, serviceAccountFile string) (*gsheet.Service, error) {
	serviceAccountJSON = strings.TrimSpace(serviceAccountJSON)
	serviceAccountFile = strings.TrimSpace(serviceAccountFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// MirrorBudget replaces the budget tab with the current budget table.
func (c *Client) MirrorBudget(ctx context.Context, doc core.BudgetDocument, cal core.FiscalCalendar) error {
	return c.writeTable(ctx, c.budgetSheet, report.BudgetTable(doc, cal))
}

// MirrorDashboard replaces the dashboard tab with the current figures.
func (c *Client) MirrorDashboard(ctx context.Context, doc core.DashboardDocument) error {
	return c.writeTable(ctx, c.dashboardSheet, report.DashboardTable(doc))
}

func (c *Client) writeTable(ctx context.Context, sheet string, table report.Table) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	values := table.Values()
	clearRange := fmt.Sprintf("%s!A:ZZ", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", sheet, err)
	}

	rng := tableRange(sheet, len(values), len(table.Header))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}

	slog.InfoContext(ctx, "Mirrored table to sheet", "sheet", sheet, "rows", len(values))
	return nil
}

// tableRange returns the A1 range covering rows x cols starting at A1.
func tableRange(sheet string, rows, cols int) string {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	return fmt.Sprintf("%s!A1:%s%d", sheet, columnName(cols), rows)
}

// columnName converts a 1-based column number to its letter name (1 -> A,
// 27 -> AA).
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
