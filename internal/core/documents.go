package core

import "fmt"

// Document kinds, one singleton record each.
const (
	KindDashboard = "dashboard"
	KindBudget    = "budget"
)

type (
	// BudgetDocument is the annual budget: a fiscal year label and three
	// categories of line items keyed by their fixed names.
	BudgetDocument struct {
		FiscalYearLabel string              `json:"fiscalYearLabel"`
		Revenue         map[string]LineItem `json:"revenue"`
		Expenses        map[string]LineItem `json:"expenses"`
		Financials      map[string]LineItem `json:"financials"`
	}

	Milestones struct {
		Cash   float64 `json:"cash"`
		Escrow float64 `json:"escrow"`
	}

	SpendingItem struct {
		Label  string  `json:"label"`
		Amount float64 `json:"amount"`
	}

	YTD struct {
		Revenue  float64 `json:"revenue"`
		Expenses float64 `json:"expenses"`
	}

	GoalStatus string

	Goal struct {
		Goal   string     `json:"goal"`
		Status GoalStatus `json:"status"`
	}

	// DashboardDocument holds the KPI figures shown on the main dashboard.
	DashboardDocument struct {
		RevenueTarget   float64        `json:"revenueTarget"`
		RevenueCurrent  float64        `json:"revenueCurrent"`
		Milestones      Milestones     `json:"milestones"`
		OutsideSpending []SpendingItem `json:"outsideSpending"`
		YTD             YTD            `json:"ytd"`
		Goals           []Goal         `json:"goals"`
	}
)

const (
	GoalPending    GoalStatus = "pending"
	GoalInProgress GoalStatus = "in-progress"
	GoalCompleted  GoalStatus = "completed"
)

// GoalStatuses returns the allowed goal statuses.
func GoalStatuses() []GoalStatus {
	return []GoalStatus{GoalPending, GoalInProgress, GoalCompleted}
}

// IsValid returns true if the status is one of the three allowed values.
func (s GoalStatus) IsValid() bool {
	switch s {
	case GoalPending, GoalInProgress, GoalCompleted:
		return true
	default:
		return false
	}
}

// Items returns the line items of a category. The map is shared with the
// document; use WithLineItem to modify.
func (b BudgetDocument) Items(c Category) map[string]LineItem {
	switch c {
	case CategoryRevenue:
		return b.Revenue
	case CategoryExpenses:
		return b.Expenses
	case CategoryFinancials:
		return b.Financials
	default:
		return nil
	}
}

// LineItem returns a single line item.
func (b BudgetDocument) LineItem(c Category, key string) (LineItem, error) {
	if !c.IsValid() {
		return LineItem{}, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	if !c.HasKey(key) {
		return LineItem{}, fmt.Errorf("%w: %s.%s", ErrUnknownKey, c, key)
	}
	return b.Items(c)[key], nil
}

// WithLineItem returns a copy of the document with one line item replaced.
func (b BudgetDocument) WithLineItem(c Category, key string, item LineItem) (BudgetDocument, error) {
	if !c.IsValid() {
		return b, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	if !c.HasKey(key) {
		return b, fmt.Errorf("%w: %s.%s", ErrUnknownKey, c, key)
	}
	out := b.Clone()
	out.Items(c)[key] = item
	return out, nil
}

// SetMonthlyActual updates one month of one line item and recomputes its total.
func (b BudgetDocument) SetMonthlyActual(c Category, key string, month int, value float64) (BudgetDocument, error) {
	item, err := b.LineItem(c, key)
	if err != nil {
		return b, err
	}
	item, err = item.WithMonth(month, value)
	if err != nil {
		return b, fmt.Errorf("%s.%s month %d: %w", c, key, month, err)
	}
	return b.WithLineItem(c, key, item)
}

// Reconciled returns a copy with every ActualsTotal recomputed from its
// monthly actuals.
func (b BudgetDocument) Reconciled() BudgetDocument {
	out := b.Clone()
	for _, c := range Categories() {
		items := out.Items(c)
		for key, item := range items {
			item.ActualsTotal = SumMonths(item.MonthlyActuals)
			items[key] = item
		}
	}
	return out
}

// Clone deep-copies the document.
func (b BudgetDocument) Clone() BudgetDocument {
	return BudgetDocument{
		FiscalYearLabel: b.FiscalYearLabel,
		Revenue:         cloneItems(b.Revenue),
		Expenses:        cloneItems(b.Expenses),
		Financials:      cloneItems(b.Financials),
	}
}

func cloneItems(in map[string]LineItem) map[string]LineItem {
	out := make(map[string]LineItem, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Clone deep-copies the document. Nil lists come back empty, matching what
// the validator decodes from a missing or null list.
func (d DashboardDocument) Clone() DashboardDocument {
	out := d
	out.OutsideSpending = append([]SpendingItem{}, d.OutsideSpending...)
	out.Goals = append([]Goal{}, d.Goals...)
	return out
}
