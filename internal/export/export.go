// Package export writes budget and dashboard reports to CSV, JSON or PDF
// files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"kpiboard/internal/core"
	"kpiboard/internal/report"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts csv, json or pdf in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: must be csv, json or pdf", s)
	}
}

// budgetReport is the JSON shape of an exported budget.
type budgetReport struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Months      []string            `json:"months"`
	Document    core.BudgetDocument `json:"document"`
	Summary     core.BudgetSummary  `json:"summary"`
}

type dashboardReport struct {
	GeneratedAt time.Time              `json:"generatedAt"`
	Document    core.DashboardDocument `json:"document"`
	Summary     core.DashboardSummary  `json:"summary"`
}

// Budget writes the budget report to dir (the working directory when empty)
// and returns the absolute path of the file.
func Budget(doc core.BudgetDocument, cal core.FiscalCalendar, format Format, dir string) (string, error) {
	switch format {
	case FormatCSV:
		return writeCSV(report.BudgetTable(doc, cal), "budget_report", dir)
	case FormatJSON:
		return writeJSON(budgetReport{
			GeneratedAt: time.Now().UTC(),
			Months:      cal.Labels(),
			Document:    doc,
			Summary:     core.SummarizeBudget(doc),
		}, "budget_report", dir)
	case FormatPDF:
		return budgetPDF(doc, cal, dir)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// Dashboard writes the dashboard report and returns the absolute path.
func Dashboard(doc core.DashboardDocument, format Format, dir string) (string, error) {
	switch format {
	case FormatCSV:
		return writeCSV(report.DashboardTable(doc), "dashboard_report", dir)
	case FormatJSON:
		return writeJSON(dashboardReport{
			GeneratedAt: time.Now().UTC(),
			Document:    doc,
			Summary:     core.SummarizeDashboard(doc),
		}, "dashboard_report", dir)
	case FormatPDF:
		return dashboardPDF(doc, dir)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

func writeCSV(table report.Table, base, dir string) (string, error) {
	outputFilename, err := generateFilename(base, dir, "csv")
	if err != nil {
		return "", err
	}

	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(table.Header); err != nil {
		return "", fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, record := range table.Strings() {
		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("error writing CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("error flushing CSV file: %w", err)
	}

	return filepath.Abs(outputFilename)
}

func writeJSON(data any, base, dir string) (string, error) {
	outputFilename, err := generateFilename(base, dir, "json")
	if err != nil {
		return "", err
	}

	file, err := os.Create(outputFilename)
	if err != nil {
		return "", fmt.Errorf("error creating JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return "", fmt.Errorf("error encoding JSON data: %w", err)
	}

	return filepath.Abs(outputFilename)
}

var (
	headerColor     = [3]int{40, 40, 40}
	headerTextColor = [3]int{255, 255, 255}
	bodyTextColor   = [3]int{50, 50, 50}
	lineColor       = [3]int{200, 200, 200}
)

// pdfColumns are the budget columns that fit a landscape A4 page.
var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Line Item", 72, "L"},
	{"Prior Year 1", 32, "R"},
	{"Prior Year 2", 32, "R"},
	{"Budget", 32, "R"},
	{"Actual", 32, "R"},
	{"Variance", 32, "R"},
	{"% of Budget", 25, "R"},
}

func budgetPDF(doc core.BudgetDocument, cal core.FiscalCalendar, dir string) (string, error) {
	outputFilename, err := generateFilename("budget_report", dir, "pdf")
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	summary := core.SummarizeBudget(doc)
	page := 0

	for _, cat := range summary.Categories {
		pdf.AddPage()
		page++
		pageHeader(pdf, tr, fmt.Sprintf("  %s Budget: %s", doc.FiscalYearLabel, cat.Label),
			fmt.Sprintf("  Fiscal year %s - %s", cal.MonthLabel(0), cal.MonthLabel(core.MonthsPerYear-1)))

		pdf.SetFont("Arial", "B", 10)
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, tr(col.title), "B", 0, col.align, false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range cat.Rows {
			tableRow(pdf, tr, []string{
				row.Label,
				report.Amount(row.PriorYearActual1),
				report.Amount(row.PriorYearActual2),
				report.Amount(row.Budget),
				report.Amount(row.Actual),
				report.Amount(row.Variance),
				report.Percent(row.PercentOfBudget),
			}, row.Variance)
		}

		pdf.SetFont("Arial", "B", 9)
		tableRow(pdf, tr, []string{
			"Total " + cat.Label,
			"", "",
			report.Amount(cat.Budget),
			report.Amount(cat.Actual),
			report.Amount(cat.Variance),
			report.Percent(cat.PercentOfBudget),
		}, cat.Variance)

		pageFooter(pdf, tr, page)
	}

	pdf.AddPage()
	page++
	pageHeader(pdf, tr, fmt.Sprintf("  %s Income Statement", doc.FiscalYearLabel),
		fmt.Sprintf("  Net variance: %s", report.Amount(summary.NetVariance)))
	statement := []struct {
		label          string
		actual, budget float64
	}{
		{"Revenue", summary.Actual.Revenue, summary.Budget.Revenue},
		{"Expenses", summary.Actual.Expenses, summary.Budget.Expenses},
		{"Net Operating Income", summary.Actual.NetOperatingIncome, summary.Budget.NetOperatingIncome},
		{"Interest Expense", summary.Actual.InterestExpense, summary.Budget.InterestExpense},
		{"Earnings Before Tax", summary.Actual.EarningsBeforeTax, summary.Budget.EarningsBeforeTax},
		{"Income Taxes", summary.Actual.IncomeTaxes, summary.Budget.IncomeTaxes},
		{"Net Earnings", summary.Actual.NetEarnings, summary.Budget.NetEarnings},
	}
	pdf.SetFont("Arial", "", 10)
	for _, s := range statement {
		v := core.Variance(s.actual, s.budget)
		tableRow(pdf, tr, []string{
			s.label, "", "",
			report.Amount(s.budget),
			report.Amount(s.actual),
			report.Amount(v),
			report.Percent(core.PercentOfBudget(s.actual, s.budget)),
		}, v)
	}
	pageFooter(pdf, tr, page)

	if err := pdf.OutputFileAndClose(outputFilename); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}

	return filepath.Abs(outputFilename)
}

func dashboardPDF(doc core.DashboardDocument, dir string) (string, error) {
	outputFilename, err := generateFilename("dashboard_report", dir, "pdf")
	if err != nil {
		return "", err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	summary := core.SummarizeDashboard(doc)

	pdf.AddPage()
	pageHeader(pdf, tr, "  KPI Dashboard", fmt.Sprintf("  Revenue status: %s", summary.RevenueStatus))

	table := report.DashboardTable(doc)
	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	for _, row := range table.Strings() {
		pdf.CellFormat(120, 7, tr(row[0]), "B", 0, "L", false, 0, "")
		pdf.CellFormat(70, 7, tr(row[1]), "B", 1, "R", false, 0, "")
	}
	pageFooter(pdf, tr, 1)

	if err := pdf.OutputFileAndClose(outputFilename); err != nil {
		return "", fmt.Errorf("error writing PDF file: %w", err)
	}

	return filepath.Abs(outputFilename)
}

func pageHeader(pdf *gofpdf.Fpdf, tr func(string) string, title, subtitle string) {
	pdf.SetFillColor(headerColor[0], headerColor[1], headerColor[2])
	pdf.SetTextColor(headerTextColor[0], headerTextColor[1], headerTextColor[2])
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 12, tr(title), "", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	pdf.CellFormat(0, 8, tr(subtitle), "", 1, "L", true, 0, "")
	pdf.Ln(6)

	pdf.SetDrawColor(lineColor[0], lineColor[1], lineColor[2])
	pdf.Line(pdf.GetX(), pdf.GetY(), pdf.GetX()+257, pdf.GetY())
	pdf.Ln(2)
}

// tableRow draws one budget row; the variance cell is red when negative.
func tableRow(pdf *gofpdf.Fpdf, tr func(string) string, cells []string, variance float64) {
	for i, col := range pdfColumns {
		if col.title == "Variance" && variance < 0 {
			pdf.SetTextColor(192, 0, 0)
		}
		pdf.CellFormat(col.width, 6, tr(cells[i]), "", 0, col.align, false, 0, "")
		pdf.SetTextColor(bodyTextColor[0], bodyTextColor[1], bodyTextColor[2])
	}
	pdf.Ln(-1)
}

func pageFooter(pdf *gofpdf.Fpdf, tr func(string) string, page int) {
	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(128, 128, 128)
	footerText := fmt.Sprintf("Generated by kpiboard | %s", time.Now().Format("2006-01-02"))
	pdf.CellFormat(0, 10, tr(footerText), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Page %d", page)), "", 0, "R", false, 0, "")
}

func generateFilename(base, dir, ext string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("could not get current working directory: %w", err)
		}
		dir = cwd
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating output directory '%s': %w", dir, err)
	}
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_%s.%s", base, timestamp, ext)
	return filepath.Join(dir, filename), nil
}
