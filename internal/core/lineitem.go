// Package core holds the dashboard and budget documents, the line-item
// aggregator and the derived metrics computed over them.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MonthsPerYear is the number of monthly actuals tracked per line item.
const MonthsPerYear = 12

var (
	ErrInvalidMonthValue = errors.New("month value must be a non-negative number")
	ErrInvalidMonthIndex = errors.New("month index must be between 0 and 11")
	ErrUnknownCategory   = errors.New("unknown budget category")
	ErrUnknownKey        = errors.New("unknown line item key")
)

// LineItem is a single budget row: two prior-year actuals, the current-year
// budget, the current-year actual total and its monthly breakdown.
type LineItem struct {
	PriorYearActual1 float64                `json:"priorYearActual1"`
	PriorYearActual2 float64                `json:"priorYearActual2"`
	Budget           float64                `json:"budget"`
	ActualsTotal     float64                `json:"actualsTotal"`
	MonthlyActuals   [MonthsPerYear]float64 `json:"monthlyActuals"`
}

// WithMonthlyActuals returns a copy of the item carrying months and the
// matching ActualsTotal. The receiver is left untouched.
func (li LineItem) WithMonthlyActuals(months [MonthsPerYear]float64) (LineItem, error) {
	for _, v := range months {
		if !validAmount(v) {
			return li, ErrInvalidMonthValue
		}
	}
	out := li
	out.MonthlyActuals = months
	out.ActualsTotal = SumMonths(months)
	return out, nil
}

// WithMonth sets a single month (0 = first month of the fiscal year) and
// recomputes the total.
func (li LineItem) WithMonth(index int, value float64) (LineItem, error) {
	if index < 0 || index >= MonthsPerYear {
		return li, ErrInvalidMonthIndex
	}
	months := li.MonthlyActuals
	months[index] = value
	return li.WithMonthlyActuals(months)
}

// Consistent reports whether ActualsTotal equals the sum of the months.
func (li LineItem) Consistent() bool {
	return li.ActualsTotal == SumMonths(li.MonthlyActuals)
}

// SumMonths adds the twelve monthly values in decimal arithmetic so the total
// does not pick up binary rounding noise (0.1+0.2 sums to 0.3).
func SumMonths(months [MonthsPerYear]float64) float64 {
	return sumFloats(months[:])
}

func sumFloats(values []float64) float64 {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total.InexactFloat64()
}

// ParseMonthValue converts a typed month value into a number. Anything that is
// not a valid non-negative number falls back to zero.
func ParseMonthValue(text string) float64 {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !validAmount(v) {
		return 0
	}
	return v
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
