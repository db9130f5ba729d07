package core

// Category identifies one of the three closed line-item groups of a budget.
type Category string

const (
	CategoryRevenue    Category = "revenue"
	CategoryExpenses   Category = "expenses"
	CategoryFinancials Category = "financials"
)

// Financial line items referenced by the earnings formulas.
const (
	InterestExpense = "interestExpense"
	IncomeTaxes     = "incomeTaxes"
)

type keyLabel struct {
	key   string
	label string
}

var categoryKeys = map[Category][]keyLabel{
	CategoryRevenue: {
		{"commissions", "Commissions"},
		{"buyersPremium", "Buyers Premium"},
		{"listingFees", "Listing Fees"},
		{"advertisingRevenue", "Advertising Revenue"},
		{"variousFees", "Various Fees"},
		{"saasRevenue", "SaaS Revenue"},
		{"otherRevenue", "Other Revenue"},
	},
	CategoryExpenses: {
		{"badDebts", "Bad Debts"},
		{"advertisingLeadGen", "Advertising & Lead Gen"},
		{"professionalFees", "Professional Fees"},
		{"travelMealsAuto", "Travel, Meals & Auto"},
		{"payrollBenefits", "Payroll & Benefits"},
		{"commissions", "Commissions"},
		{"rent", "Rent"},
		{"taxesFees", "Taxes & Fees"},
		{"utilities", "Utilities"},
		{"bankCharges", "Bank Charges"},
		{"officeSupplyPostage", "Office Supply & Postage"},
		{"rdIt", "R&D / IT"},
		{"hrCultureAdmin", "HR & Culture / Admin"},
		{"repairsMaintenance", "Repairs & Maintenance"},
		{"miscellaneous", "Miscellaneous"},
		{"donations", "Donations"},
		{"professionalInsurance", "Professional Insurance"},
	},
	CategoryFinancials: {
		{InterestExpense, "Interest Expense"},
		{IncomeTaxes, "Income Taxes"},
	},
}

// Categories returns the budget categories in document order.
func Categories() []Category {
	return []Category{CategoryRevenue, CategoryExpenses, CategoryFinancials}
}

// ParseCategory returns the category named s.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", ErrUnknownCategory
	}
	return c, nil
}

// IsValid returns true if the category is one of the fixed budget categories.
func (c Category) IsValid() bool {
	_, ok := categoryKeys[c]
	return ok
}

// String implements fmt.Stringer
func (c Category) String() string {
	return string(c)
}

// Label returns the display name of the category.
func (c Category) Label() string {
	switch c {
	case CategoryRevenue:
		return "Revenue"
	case CategoryExpenses:
		return "Expenses"
	case CategoryFinancials:
		return "Financials"
	default:
		return string(c)
	}
}

// Keys returns the fixed line-item keys of the category in display order.
func (c Category) Keys() []string {
	entries := categoryKeys[c]
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.key
	}
	return keys
}

// HasKey reports whether key belongs to the category's closed key set.
func (c Category) HasKey(key string) bool {
	for _, e := range categoryKeys[c] {
		if e.key == key {
			return true
		}
	}
	return false
}

// KeyLabel returns the human-readable label for a line item of the category.
// Unknown keys are returned unchanged.
func (c Category) KeyLabel(key string) string {
	for _, e := range categoryKeys[c] {
		if e.key == key {
			return e.label
		}
	}
	return key
}
