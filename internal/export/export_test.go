package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kpiboard/internal/core"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{" JSON ", FormatJSON, false},
		{"Pdf", FormatPDF, false},
		{"xlsx", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBudgetCSV(t *testing.T) {
	dir := t.TempDir()
	cal := core.FiscalCalendar{StartMonth: core.DefaultFiscalStartMonth}

	path, err := Budget(core.DefaultBudget(), cal, FormatCSV, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %s", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "budget_report_") || filepath.Ext(path) != ".csv" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[0][0] != "Category" || records[0][7] != "Aug" {
		t.Fatalf("unexpected header %v", records[0])
	}
	if records[1][1] != "commissions" || records[1][5] != "3,900,000.00" {
		t.Fatalf("unexpected first row %v", records[1])
	}
}

func TestBudgetJSON(t *testing.T) {
	dir := t.TempDir()
	path, err := Budget(core.DefaultBudget(), core.FiscalCalendar{StartMonth: 1}, FormatJSON, dir)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var got struct {
		Months   []string            `json:"months"`
		Document core.BudgetDocument `json:"document"`
		Summary  core.BudgetSummary  `json:"summary"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Months[0] != "Jan" {
		t.Fatalf("expected months to start at Jan, got %v", got.Months)
	}
	if got.Document.FiscalYearLabel != "FY 25-26" {
		t.Fatalf("unexpected label %q", got.Document.FiscalYearLabel)
	}
	if got.Summary.Budget.Revenue != core.SummarizeBudget(core.DefaultBudget()).Budget.Revenue {
		t.Fatalf("summary revenue mismatch")
	}
}

func TestPDFExports(t *testing.T) {
	dir := t.TempDir()
	cal := core.FiscalCalendar{StartMonth: core.DefaultFiscalStartMonth}

	budgetPath, err := Budget(core.DefaultBudget(), cal, FormatPDF, dir)
	if err != nil {
		t.Fatalf("budget pdf: %v", err)
	}
	dashboardPath, err := Dashboard(core.DefaultDashboard(), FormatPDF, dir)
	if err != nil {
		t.Fatalf("dashboard pdf: %v", err)
	}

	for _, p := range []string{budgetPath, dashboardPath} {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if !strings.HasPrefix(string(data), "%PDF-") {
			t.Fatalf("%s is not a PDF", p)
		}
	}
}

func TestDashboardCSV(t *testing.T) {
	path, err := Dashboard(core.DefaultDashboard(), FormatCSV, t.TempDir())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "Outside Spending Total,\"90,000.00\"") {
		t.Fatalf("missing spending total in:\n%s", data)
	}
}

func TestUnsupportedFormat(t *testing.T) {
	if _, err := Budget(core.DefaultBudget(), core.FiscalCalendar{}, Format("xml"), t.TempDir()); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
