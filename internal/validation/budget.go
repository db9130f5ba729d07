package validation

import "kpiboard/internal/core"

const budgetDocument = "budget"

// Budget validates raw JSON as a budget document. Each category must hold
// exactly its fixed keys. Fields outside the known shape are dropped.
func Budget(raw []byte) (core.BudgetDocument, error) {
	root, err := parse(raw, budgetDocument)
	if err != nil {
		return core.BudgetDocument{}, err
	}

	c := &checker{}
	label, ok := root["fiscalYearLabel"]
	doc := core.BudgetDocument{
		FiscalYearLabel: c.text("fiscalYearLabel", label, ok),
	}
	for _, cat := range core.Categories() {
		items := c.category(cat, root)
		switch cat {
		case core.CategoryRevenue:
			doc.Revenue = items
		case core.CategoryExpenses:
			doc.Expenses = items
		case core.CategoryFinancials:
			doc.Financials = items
		}
	}

	if err := c.failure(budgetDocument); err != nil {
		return core.BudgetDocument{}, err
	}
	return doc, nil
}

func (c *checker) category(cat core.Category, root map[string]any) map[string]core.LineItem {
	path := cat.String()
	v, present := root[path]
	obj, ok := c.object(path, v, present)
	if !ok {
		return nil
	}

	items := make(map[string]core.LineItem, len(cat.Keys()))
	for _, key := range cat.Keys() {
		raw, present := obj[key]
		items[key] = c.lineItem(join(path, key), raw, present)
	}
	for _, key := range sortedKeys(obj) {
		if !cat.HasKey(key) {
			c.add(join(path, key), RuleUnknownKey, "is not a %s line item", cat)
		}
	}
	return items
}

func (c *checker) lineItem(path string, v any, present bool) core.LineItem {
	obj, ok := c.object(path, v, present)
	if !ok {
		return core.LineItem{}
	}

	item := core.LineItem{
		PriorYearActual1: c.numberField(path, obj, "priorYearActual1"),
		PriorYearActual2: c.numberField(path, obj, "priorYearActual2"),
		Budget:           c.numberField(path, obj, "budget"),
		ActualsTotal:     c.numberField(path, obj, "actualsTotal"),
	}

	monthsPath := join(path, "monthlyActuals")
	raw, present := obj["monthlyActuals"]
	if !present || raw == nil {
		c.add(monthsPath, RuleRequired, "is required")
		return item
	}
	months, ok := raw.([]any)
	if !ok {
		c.add(monthsPath, RuleType, "expected array")
		return item
	}
	if len(months) != core.MonthsPerYear {
		c.add(monthsPath, RuleLength, "must contain exactly %d elements, got %d", core.MonthsPerYear, len(months))
	}
	for i, m := range months {
		v := c.number(index(monthsPath, i), m, true)
		if i < core.MonthsPerYear {
			item.MonthlyActuals[i] = v
		}
	}
	return item
}
