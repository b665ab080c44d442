package google

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"smartexpense/internal/core"
	ports "smartexpense/internal/sheets"

	"github.com/shopspring/decimal"
)

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := NewClient(context.Background(), Config{CredentialsJSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte(`{"type":"service_account"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := credentials(Config{CredentialsFile: path})
	if err != nil || !strings.Contains(string(got), "service_account") {
		t.Fatalf("file credentials = %s, %v", got, err)
	}

	got, err = credentials(Config{CredentialsJSON: `{"inline":true}`, CredentialsFile: path})
	if err != nil || string(got) != `{"inline":true}` {
		t.Fatalf("inline JSON should win: %s, %v", got, err)
	}

	if _, err := credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", " abc ")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")

	cfg := ConfigFromEnv()
	if cfg.SpreadsheetID != "abc" || cfg.CredentialsFile != "/secrets/sa.json" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestNewClientDefaults(t *testing.T) {
	c := newClient(nil, Config{SpreadsheetID: "id"})
	if c.expensesSheet != defaultExpensesSheet || c.summarySheet != defaultSummarySheet {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if _, err := c.AppendExpenseEvent(context.Background(), "expense.created", core.Expense{}); err == nil {
		t.Fatal("append without a service should fail")
	}
}

func TestExpenseRow(t *testing.T) {
	e := core.Expense{
		ID:          "e1",
		UserID:      "u1",
		Amount:      decimal.RequireFromString("7.5"),
		Category:    core.Transport,
		Description: "bus",
		Date:        time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
	}
	at := time.Date(2025, 2, 14, 8, 30, 0, 0, time.UTC)

	row := expenseRow("expense.created", e, at)
	want := []any{"2025-02-14T08:30:00Z", "expense.created", "u1", "e1", "2025-02-14", "Transport", "bus", "7.50"}
	if len(row) != len(want) {
		t.Fatalf("row = %v", row)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("col %d = %v, want %v", i, row[i], want[i])
		}
	}
}

func TestSummaryRow(t *testing.T) {
	row := summaryRow(ports.MonthlySummary{
		UserID:           "u1",
		UserEmail:        "a@b.c",
		Year:             2025,
		Month:            time.January,
		Total:            decimal.RequireFromString("160"),
		Count:            3,
		PercentageChange: decimal.RequireFromString("-12.5"),
		TopCategories: []core.CategoryTotal{
			{Category: core.Food, Total: decimal.RequireFromString("100")},
			{Category: core.Bills, Total: decimal.RequireFromString("60")},
		},
	})
	if row[0] != "2025-01" || row[4] != "160.00" || row[5] != "-12.5" {
		t.Errorf("row = %v", row)
	}
	if row[6] != "Food 100.00, Bills 60.00" {
		t.Errorf("top categories = %v", row[6])
	}
}
