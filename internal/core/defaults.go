package core

// DefaultDashboard returns the document created on first access when no seed
// file overrides it.
func DefaultDashboard() DashboardDocument {
	return DashboardDocument{
		RevenueTarget:  4500000,
		RevenueCurrent: 1320000,
		Milestones: Milestones{
			Cash:   1000000,
			Escrow: 3500000,
		},
		OutsideSpending: []SpendingItem{
			{Label: "Item 1", Amount: 40000},
			{Label: "Item 2", Amount: 25000},
			{Label: "Item 3", Amount: 25000},
		},
		YTD: YTD{
			Revenue:  1000000,
			Expenses: 500000,
		},
		Goals: []Goal{
			{Goal: "Launch V2", Status: GoalInProgress},
			{Goal: "Hire 2 sales reps", Status: GoalPending},
		},
	}
}

// seedRow is prior-year actual 1, prior-year actual 2, budget.
type seedRow [3]float64

var defaultBudgetRows = map[Category]map[string]seedRow{
	CategoryRevenue: {
		"commissions":        {3700155, 3000748, 3900000},
		"buyersPremium":      {5634392, 4363688, 5590000},
		"listingFees":        {416402, 371290, 432000},
		"advertisingRevenue": {221350, 233355, 310000},
		"variousFees":        {129672, 108842, 135000},
		"saasRevenue":        {0, 0, 30000},
		"otherRevenue":       {231031, 81355, 100000},
	},
	CategoryExpenses: {
		"badDebts":              {102969, 58157, 74820},
		"advertisingLeadGen":    {875365, 951243, 950000},
		"professionalFees":      {157998, 107876, 115000},
		"travelMealsAuto":       {608094, 491549, 410000},
		"payrollBenefits":       {5003857, 5121491, 4971838},
		"commissions":           {229098, 244778, 314910},
		"rent":                  {276000, 373000, 276000},
		"taxesFees":             {64098, 48628, 70000},
		"utilities":             {109113, 105442, 120000},
		"bankCharges":           {73878, 75800, 88000},
		"officeSupplyPostage":   {474727, 178870, 200000},
		"rdIt":                  {36182, 328621, 300000},
		"hrCultureAdmin":        {286141, 89035, 95000},
		"repairsMaintenance":    {57486, 112541, 65000},
		"miscellaneous":         {0, 43563, 50000},
		"donations":             {18110, 35678, 25000},
		"professionalInsurance": {46581, 39106, 50000},
	},
	CategoryFinancials: {
		InterestExpense: {0, 0, 240000},
		IncomeTaxes:     {401794, 0, 437101},
	},
}

// DefaultBudget returns the FY budget created on first access: every fixed
// key present, prior years and budget filled, no actuals yet.
func DefaultBudget() BudgetDocument {
	doc := BudgetDocument{FiscalYearLabel: "FY 25-26"}
	for _, c := range Categories() {
		items := make(map[string]LineItem, len(c.Keys()))
		for _, key := range c.Keys() {
			row := defaultBudgetRows[c][key]
			items[key] = LineItem{
				PriorYearActual1: row[0],
				PriorYearActual2: row[1],
				Budget:           row[2],
			}
		}
		switch c {
		case CategoryRevenue:
			doc.Revenue = items
		case CategoryExpenses:
			doc.Expenses = items
		case CategoryFinancials:
			doc.Financials = items
		}
	}
	return doc
}
