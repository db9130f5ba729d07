package core

import "sort"

// Variance is actual minus budget. Whether a positive value is favorable
// depends on the caller (revenue vs expenses).
func Variance(actual, budget float64) float64 {
	return actual - budget
}

// PercentOfBudget returns actual as a percentage of budget. A zero (or
// negative) budget yields 0 rather than dividing by zero.
func PercentOfBudget(actual, budget float64) float64 {
	if budget > 0 {
		return actual / budget * 100
	}
	return 0
}

// SumActuals adds the ActualsTotal of every item.
func SumActuals(items map[string]LineItem) float64 {
	values := make([]float64, 0, len(items))
	for _, it := range items {
		values = append(values, it.ActualsTotal)
	}
	return sumFloats(values)
}

// SumBudget adds the Budget of every item.
func SumBudget(items map[string]LineItem) float64 {
	values := make([]float64, 0, len(items))
	for _, it := range items {
		values = append(values, it.Budget)
	}
	return sumFloats(values)
}

// Figures is one column (actual or budget) of the income statement.
type Figures struct {
	Revenue            float64 `json:"revenue"`
	Expenses           float64 `json:"expenses"`
	NetOperatingIncome float64 `json:"netOperatingIncome"`
	InterestExpense    float64 `json:"interestExpense"`
	EarningsBeforeTax  float64 `json:"earningsBeforeTax"`
	IncomeTaxes        float64 `json:"incomeTaxes"`
	NetEarnings        float64 `json:"netEarnings"`
}

func computeFigures(revenue, expenses, interest, taxes float64) Figures {
	noi := revenue - expenses
	ebt := noi - interest
	return Figures{
		Revenue:            revenue,
		Expenses:           expenses,
		NetOperatingIncome: noi,
		InterestExpense:    interest,
		EarningsBeforeTax:  ebt,
		IncomeTaxes:        taxes,
		NetEarnings:        ebt - taxes,
	}
}

// LineItemRow is a line item with its derived variance and progress.
type LineItemRow struct {
	Key              string  `json:"key"`
	Label            string  `json:"label"`
	PriorYearActual1 float64 `json:"priorYearActual1"`
	PriorYearActual2 float64 `json:"priorYearActual2"`
	Budget           float64 `json:"budget"`
	Actual           float64 `json:"actual"`
	Variance         float64 `json:"variance"`
	PercentOfBudget  float64 `json:"percentOfBudget"`
}

// CategorySummary totals one category. Rows are sorted by budget, largest first.
type CategorySummary struct {
	Category        Category      `json:"category"`
	Label           string        `json:"label"`
	Budget          float64       `json:"budget"`
	Actual          float64       `json:"actual"`
	Variance        float64       `json:"variance"`
	PercentOfBudget float64       `json:"percentOfBudget"`
	Rows            []LineItemRow `json:"rows"`
}

// BudgetSummary is the overview computed from a budget document.
type BudgetSummary struct {
	FiscalYearLabel  string            `json:"fiscalYearLabel"`
	Actual           Figures           `json:"actual"`
	Budget           Figures           `json:"budget"`
	RevenueVariance  float64           `json:"revenueVariance"`
	ExpensesVariance float64           `json:"expensesVariance"`
	NetVariance      float64           `json:"netVariance"`
	RevenueProgress  float64           `json:"revenueProgress"`
	ExpenseProgress  float64           `json:"expenseProgress"`
	OnTrack          bool              `json:"onTrack"`
	Categories       []CategorySummary `json:"categories"`
}

// SummarizeCategory computes totals and per-row metrics for one category.
func SummarizeCategory(c Category, items map[string]LineItem) CategorySummary {
	s := CategorySummary{
		Category: c,
		Label:    c.Label(),
		Budget:   SumBudget(items),
		Actual:   SumActuals(items),
		Rows:     make([]LineItemRow, 0, len(items)),
	}
	s.Variance = Variance(s.Actual, s.Budget)
	s.PercentOfBudget = PercentOfBudget(s.Actual, s.Budget)

	for key, it := range items {
		s.Rows = append(s.Rows, LineItemRow{
			Key:              key,
			Label:            c.KeyLabel(key),
			PriorYearActual1: it.PriorYearActual1,
			PriorYearActual2: it.PriorYearActual2,
			Budget:           it.Budget,
			Actual:           it.ActualsTotal,
			Variance:         Variance(it.ActualsTotal, it.Budget),
			PercentOfBudget:  PercentOfBudget(it.ActualsTotal, it.Budget),
		})
	}
	sort.SliceStable(s.Rows, func(i, j int) bool {
		if s.Rows[i].Budget != s.Rows[j].Budget {
			return s.Rows[i].Budget > s.Rows[j].Budget
		}
		return s.Rows[i].Key < s.Rows[j].Key
	})
	return s
}

// SummarizeBudget computes the income statement for actuals and budget in
// parallel, plus variances and progress.
func SummarizeBudget(doc BudgetDocument) BudgetSummary {
	interest := doc.Financials[InterestExpense]
	taxes := doc.Financials[IncomeTaxes]

	actual := computeFigures(SumActuals(doc.Revenue), SumActuals(doc.Expenses), interest.ActualsTotal, taxes.ActualsTotal)
	budget := computeFigures(SumBudget(doc.Revenue), SumBudget(doc.Expenses), interest.Budget, taxes.Budget)

	s := BudgetSummary{
		FiscalYearLabel:  doc.FiscalYearLabel,
		Actual:           actual,
		Budget:           budget,
		RevenueVariance:  Variance(actual.Revenue, budget.Revenue),
		ExpensesVariance: Variance(actual.Expenses, budget.Expenses),
		NetVariance:      Variance(actual.NetEarnings, budget.NetEarnings),
		RevenueProgress:  PercentOfBudget(actual.Revenue, budget.Revenue),
		ExpenseProgress:  PercentOfBudget(actual.Expenses, budget.Expenses),
	}
	s.OnTrack = s.NetVariance >= 0
	for _, c := range Categories() {
		s.Categories = append(s.Categories, SummarizeCategory(c, doc.Items(c)))
	}
	return s
}

// RevenueStatus buckets revenue progress against target.
type RevenueStatus string

const (
	RevenueOnTrack  RevenueStatus = "on-track"
	RevenueBehind   RevenueStatus = "behind"
	RevenueCritical RevenueStatus = "critical"
)

// RevenueStatusFor returns on-track from 50%, behind from 25%, critical below.
func RevenueStatusFor(progress float64) RevenueStatus {
	switch {
	case progress >= 50:
		return RevenueOnTrack
	case progress >= 25:
		return RevenueBehind
	default:
		return RevenueCritical
	}
}

// DashboardSummary is the set of figures derived from a dashboard document.
type DashboardSummary struct {
	RevenueProgress      float64            `json:"revenueProgress"`
	RevenueRemaining     float64            `json:"revenueRemaining"`
	RevenueStatus        RevenueStatus      `json:"revenueStatus"`
	MilestonesTotal      float64            `json:"milestonesTotal"`
	OutsideSpendingTotal float64            `json:"outsideSpendingTotal"`
	Profit               float64            `json:"profit"`
	ProfitMargin         float64            `json:"profitMargin"`
	GoalCounts           map[GoalStatus]int `json:"goalCounts"`
}

// ProfitMargin is (revenue - expenses) / revenue as a percentage; zero
// revenue yields 0.
func ProfitMargin(ytd YTD) float64 {
	if ytd.Revenue > 0 {
		return (ytd.Revenue - ytd.Expenses) / ytd.Revenue * 100
	}
	return 0
}

// SummarizeDashboard derives the dashboard figures.
func SummarizeDashboard(doc DashboardDocument) DashboardSummary {
	spending := make([]float64, len(doc.OutsideSpending))
	for i, it := range doc.OutsideSpending {
		spending[i] = it.Amount
	}
	progress := PercentOfBudget(doc.RevenueCurrent, doc.RevenueTarget)

	s := DashboardSummary{
		RevenueProgress:      progress,
		RevenueRemaining:     doc.RevenueTarget - doc.RevenueCurrent,
		RevenueStatus:        RevenueStatusFor(progress),
		MilestonesTotal:      sumFloats([]float64{doc.Milestones.Cash, doc.Milestones.Escrow}),
		OutsideSpendingTotal: sumFloats(spending),
		Profit:               doc.YTD.Revenue - doc.YTD.Expenses,
		ProfitMargin:         ProfitMargin(doc.YTD),
		GoalCounts:           make(map[GoalStatus]int, 3),
	}
	for _, st := range GoalStatuses() {
		s.GoalCounts[st] = 0
	}
	for _, g := range doc.Goals {
		s.GoalCounts[g.Status]++
	}
	return s
}
