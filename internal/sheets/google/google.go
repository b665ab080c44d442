package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	ports "smartexpense/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const (
	defaultExpensesSheet = "Expenses"
	defaultSummarySheet  = "Monthly"
)

// Config selects the spreadsheet and the service-account credentials.
// CredentialsJSON wins over CredentialsFile.
type Config struct {
	SpreadsheetID   string
	ExpensesSheet   string
	SummarySheet    string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	expensesSheet string
	summarySheet  string
	logger        *applog.Logger
}

var _ ports.Mirror = (*Client)(nil)

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_EXPENSES_SHEET,
// GOOGLE_SUMMARY_SHEET and the service-account variables.
func ConfigFromEnv() Config {
	cfg := Config{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		ExpensesSheet:   strings.TrimSpace(os.Getenv("GOOGLE_EXPENSES_SHEET")),
		SummarySheet:    strings.TrimSpace(os.Getenv("GOOGLE_SUMMARY_SHEET")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		cfg.CredentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return cfg
}

// NewClient builds a Sheets client authenticated as a service account.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := newClient(svc, cfg)
	c.logger.InfoContext(ctx, "Google Sheets mirror ready",
		"spreadsheet_id", c.spreadsheetID,
		"expenses_sheet", c.expensesSheet,
		"summary_sheet", c.summarySheet)
	return c, nil
}

func newClient(svc *gsheet.Service, cfg Config) *Client {
	c := &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		expensesSheet: cfg.ExpensesSheet,
		summarySheet:  cfg.SummarySheet,
		logger:        applog.New(applog.Config{Component: applog.ComponentSheets}),
	}
	if c.expensesSheet == "" {
		c.expensesSheet = defaultExpensesSheet
	}
	if c.summarySheet == "" {
		c.summarySheet = defaultSummarySheet
	}
	return c
}

func credentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.CredentialsJSON != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// AppendExpenseEvent writes one row per expense change:
// timestamp, event, user, expense id, date, category, description, amount.
func (c *Client) AppendExpenseEvent(ctx context.Context, eventType string, e core.Expense) (string, error) {
	return c.append(ctx, c.expensesSheet, expenseRow(eventType, e, time.Now().UTC()))
}

// AppendMonthlySummary writes one row per user and closed month.
func (c *Client) AppendMonthlySummary(ctx context.Context, s ports.MonthlySummary) (string, error) {
	return c.append(ctx, c.summarySheet, summaryRow(s))
}

func (c *Client) append(ctx context.Context, sheet string, row []any) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:H", sheet)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", sheet, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Row appended", applog.FieldOperation, applog.OpAppend, "range", ref)
	return ref, nil
}

func expenseRow(eventType string, e core.Expense, at time.Time) []any {
	return []any{
		at.Format(time.RFC3339),
		eventType,
		e.UserID,
		e.ID,
		e.Date.Format(time.DateOnly),
		string(e.Category),
		e.Description,
		e.Amount.StringFixed(2),
	}
}

func summaryRow(s ports.MonthlySummary) []any {
	top := make([]string, 0, len(s.TopCategories))
	for _, ct := range s.TopCategories {
		top = append(top, fmt.Sprintf("%s %s", ct.Category, ct.Total.StringFixed(2)))
	}
	return []any{
		fmt.Sprintf("%04d-%02d", s.Year, int(s.Month)),
		s.UserID,
		s.UserEmail,
		s.Count,
		s.Total.StringFixed(2),
		s.PercentageChange.StringFixed(1),
		strings.Join(top, ", "),
	}
}
