package ctl

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"kpiboard/internal/core"
)

var errEmptyLine = errors.New("empty line")

// parseItemRef splits "category.key" and checks both halves.
func parseItemRef(ref string) (core.Category, string, error) {
	name, key, ok := strings.Cut(ref, ".")
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid line item %q: want <category>.<key>", ref)
	}
	c, err := core.ParseCategory(name)
	if err != nil {
		return "", "", fmt.Errorf("invalid line item %q: %w", ref, err)
	}
	if !c.HasKey(key) {
		return "", "", fmt.Errorf("invalid line item %q: %w", ref, core.ErrUnknownKey)
	}
	return c, key, nil
}

// parseMonth accepts a fiscal index (0 is the first fiscal month) or a month
// name such as "Sep" or "september".
func parseMonth(tok string, cal core.FiscalCalendar) (int, error) {
	if n, err := strconv.Atoi(tok); err == nil {
		if n < 0 || n >= core.MonthsPerYear {
			return 0, fmt.Errorf("invalid month index %d: must be between 0 and %d", n, core.MonthsPerYear-1)
		}
		return n, nil
	}
	if len(tok) >= 3 {
		for m := time.January; m <= time.December; m++ {
			name := m.String()
			if len(tok) <= len(name) && strings.EqualFold(name[:len(tok)], tok) {
				return cal.IndexOf(m), nil
			}
		}
	}
	return 0, fmt.Errorf("invalid month %q", tok)
}

// parseAmount is the strict counterpart of core.ParseMonthValue used for
// explicit command arguments.
func parseAmount(text string) (float64, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(strings.ReplaceAll(s, ",", ""), "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("invalid amount %q: must be a non-negative number", text)
	}
	return v, nil
}

// parseBudgetLine turns one edit line into a document transform. Accepted
// forms:
//
//	<category>.<key> <month> <value>
//	<category>.<key> budget <value>
//	fiscalYearLabel <label>
//
// Month values go through core.ParseMonthValue, so unreadable input counts
// as zero.
func parseBudgetLine(line string, cal core.FiscalCalendar) (func(core.BudgetDocument) core.BudgetDocument, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errEmptyLine
	}

	if fields[0] == "fiscalYearLabel" {
		label := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		if label == "" {
			return nil, errors.New("fiscalYearLabel needs a value")
		}
		return func(doc core.BudgetDocument) core.BudgetDocument {
			out := doc.Clone()
			out.FiscalYearLabel = label
			return out
		}, nil
	}

	if len(fields) != 3 {
		return nil, fmt.Errorf("invalid edit %q: want <category>.<key> <month|budget> <value>", line)
	}
	c, key, err := parseItemRef(fields[0])
	if err != nil {
		return nil, err
	}
	value := core.ParseMonthValue(fields[2])

	if strings.EqualFold(fields[1], "budget") {
		return func(doc core.BudgetDocument) core.BudgetDocument {
			item, err := doc.LineItem(c, key)
			if err != nil {
				return doc
			}
			item.Budget = value
			out, err := doc.WithLineItem(c, key, item)
			if err != nil {
				return doc
			}
			return out
		}, nil
	}

	month, err := parseMonth(fields[1], cal)
	if err != nil {
		return nil, err
	}
	return func(doc core.BudgetDocument) core.BudgetDocument {
		out, err := doc.SetMonthlyActual(c, key, month, value)
		if err != nil {
			return doc
		}
		return out
	}, nil
}

// parseDashboardLine turns one edit line into a dashboard transform:
//
//	revenueTarget|revenueCurrent|milestones.cash|milestones.escrow|ytd.revenue|ytd.expenses <amount>
//	spending <amount> <label>
//	spending.remove <label>
//	goal <pending|in-progress|completed> <text>
//	goal.remove <text>
func parseDashboardLine(line string) (func(core.DashboardDocument) core.DashboardDocument, error) {
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errEmptyLine
	}
	field := fields[0]
	rest := strings.TrimSpace(strings.TrimPrefix(line, field))

	setters := map[string]func(*core.DashboardDocument, float64){
		"revenueTarget":     func(d *core.DashboardDocument, v float64) { d.RevenueTarget = v },
		"revenueCurrent":    func(d *core.DashboardDocument, v float64) { d.RevenueCurrent = v },
		"milestones.cash":   func(d *core.DashboardDocument, v float64) { d.Milestones.Cash = v },
		"milestones.escrow": func(d *core.DashboardDocument, v float64) { d.Milestones.Escrow = v },
		"ytd.revenue":       func(d *core.DashboardDocument, v float64) { d.YTD.Revenue = v },
		"ytd.expenses":      func(d *core.DashboardDocument, v float64) { d.YTD.Expenses = v },
	}
	if set, ok := setters[field]; ok {
		v, err := parseAmount(rest)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return func(doc core.DashboardDocument) core.DashboardDocument {
			out := doc.Clone()
			set(&out, v)
			return out
		}, nil
	}

	switch field {
	case "spending":
		if len(fields) < 3 {
			return nil, errors.New("spending needs an amount and a label")
		}
		amount, err := parseAmount(fields[1])
		if err != nil {
			return nil, fmt.Errorf("spending: %w", err)
		}
		label := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		return func(doc core.DashboardDocument) core.DashboardDocument {
			out := doc.Clone()
			for i := range out.OutsideSpending {
				if out.OutsideSpending[i].Label == label {
					out.OutsideSpending[i].Amount = amount
					return out
				}
			}
			out.OutsideSpending = append(out.OutsideSpending, core.SpendingItem{Label: label, Amount: amount})
			return out
		}, nil

	case "spending.remove":
		if rest == "" {
			return nil, errors.New("spending.remove needs a label")
		}
		return func(doc core.DashboardDocument) core.DashboardDocument {
			out := doc.Clone()
			kept := out.OutsideSpending[:0]
			for _, it := range out.OutsideSpending {
				if it.Label != rest {
					kept = append(kept, it)
				}
			}
			out.OutsideSpending = kept
			return out
		}, nil

	case "goal":
		if len(fields) < 3 {
			return nil, errors.New("goal needs a status and a text")
		}
		status := core.GoalStatus(fields[1])
		if !status.IsValid() {
			return nil, fmt.Errorf("invalid goal status %q", fields[1])
		}
		text := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
		return func(doc core.DashboardDocument) core.DashboardDocument {
			out := doc.Clone()
			for i := range out.Goals {
				if out.Goals[i].Goal == text {
					out.Goals[i].Status = status
					return out
				}
			}
			out.Goals = append(out.Goals, core.Goal{Goal: text, Status: status})
			return out
		}, nil

	case "goal.remove":
		if rest == "" {
			return nil, errors.New("goal.remove needs a text")
		}
		return func(doc core.DashboardDocument) core.DashboardDocument {
			out := doc.Clone()
			kept := out.Goals[:0]
			for _, g := range out.Goals {
				if g.Goal != rest {
					kept = append(kept, g)
				}
			}
			out.Goals = kept
			return out
		}, nil
	}
	return nil, fmt.Errorf("unknown field %q", field)
}
