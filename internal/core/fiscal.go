package core

import (
	"fmt"
	"time"
)

// DefaultFiscalStartMonth is the first month of the fiscal year unless
// configured otherwise.
const DefaultFiscalStartMonth = time.August

// FiscalCalendar maps monthly-actual indexes onto calendar months. Index 0 is
// StartMonth.
type FiscalCalendar struct {
	StartMonth time.Month
}

// NewFiscalCalendar validates the start month and returns the calendar.
func NewFiscalCalendar(start int) (FiscalCalendar, error) {
	if start < 1 || start > 12 {
		return FiscalCalendar{}, fmt.Errorf("invalid fiscal start month %d: must be between 1 and 12", start)
	}
	return FiscalCalendar{StartMonth: time.Month(start)}, nil
}

func (c FiscalCalendar) start() time.Month {
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return DefaultFiscalStartMonth
	}
	return c.StartMonth
}

// Month returns the calendar month stored at index.
func (c FiscalCalendar) Month(index int) time.Month {
	return time.Month((int(c.start())-1+index)%12 + 1)
}

// MonthLabel returns the three-letter name of the month at index.
func (c FiscalCalendar) MonthLabel(index int) string {
	return c.Month(index).String()[:3]
}

// Labels returns the twelve month labels in fiscal order.
func (c FiscalCalendar) Labels() []string {
	out := make([]string, MonthsPerYear)
	for i := range out {
		out[i] = c.MonthLabel(i)
	}
	return out
}

// IndexOf returns the monthly-actual index of a calendar month.
func (c FiscalCalendar) IndexOf(m time.Month) int {
	return (int(m) - int(c.start()) + 12) % 12
}

// ElapsedMonths returns how many fiscal months have started as of now,
// counting the current one (1..12).
func (c FiscalCalendar) ElapsedMonths(now time.Time) int {
	return c.IndexOf(now.Month()) + 1
}
