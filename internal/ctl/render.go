package ctl

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"kpiboard/internal/report"
)

var (
	green  = color.New(color.FgGreen, color.Bold).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func renderTable(w io.Writer, title string, data [][]string) {
	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(pterm.TableData(data)).
		Srender()
	if err != nil {
		fmt.Fprintf(w, "render table: %v\n", err)
		return
	}
	if title != "" {
		fmt.Fprintln(w, cyan(title))
	}
	fmt.Fprintln(w, table)
}

// signed colors a variance. For revenue and earnings more is better; for
// expenses it is the reverse.
func signed(v float64, moreIsBetter bool) string {
	s := report.Amount(v)
	if v > 0 {
		s = "+" + s
	}
	switch {
	case v == 0:
		return s
	case (v > 0) == moreIsBetter:
		return green(s)
	default:
		return red(s)
	}
}

func successf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, green("✓"), fmt.Sprintf(format, args...))
}

func warnf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, yellow("!"), fmt.Sprintf(format, args...))
}

func errorf(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, red("✗"), fmt.Sprintf(format, args...))
}
