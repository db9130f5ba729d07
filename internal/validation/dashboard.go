package validation

import "kpiboard/internal/core"

const dashboardDocument = "dashboard"

// Dashboard validates raw JSON as a dashboard document. Missing or null
// outsideSpending and goals decode as empty lists.
func Dashboard(raw []byte) (core.DashboardDocument, error) {
	root, err := parse(raw, dashboardDocument)
	if err != nil {
		return core.DashboardDocument{}, err
	}

	c := &checker{}
	doc := core.DashboardDocument{
		RevenueTarget:   c.numberField("", root, "revenueTarget"),
		RevenueCurrent:  c.numberField("", root, "revenueCurrent"),
		OutsideSpending: []core.SpendingItem{},
		Goals:           []core.Goal{},
	}

	v, present := root["milestones"]
	if obj, ok := c.object("milestones", v, present); ok {
		doc.Milestones = core.Milestones{
			Cash:   c.numberField("milestones", obj, "cash"),
			Escrow: c.numberField("milestones", obj, "escrow"),
		}
	}

	v, present = root["ytd"]
	if obj, ok := c.object("ytd", v, present); ok {
		doc.YTD = core.YTD{
			Revenue:  c.numberField("ytd", obj, "revenue"),
			Expenses: c.numberField("ytd", obj, "expenses"),
		}
	}

	v, present = root["outsideSpending"]
	for i, el := range c.list("outsideSpending", v, present) {
		path := index("outsideSpending", i)
		obj, ok := c.object(path, el, true)
		if !ok {
			continue
		}
		label, has := obj["label"]
		doc.OutsideSpending = append(doc.OutsideSpending, core.SpendingItem{
			Label:  c.text(join(path, "label"), label, has),
			Amount: c.numberField(path, obj, "amount"),
		})
	}

	v, present = root["goals"]
	for i, el := range c.list("goals", v, present) {
		path := index("goals", i)
		obj, ok := c.object(path, el, true)
		if !ok {
			continue
		}
		goal, has := obj["goal"]
		status, hasStatus := obj["status"]
		doc.Goals = append(doc.Goals, core.Goal{
			Goal:   c.text(join(path, "goal"), goal, has),
			Status: c.goalStatus(join(path, "status"), status, hasStatus),
		})
	}

	if err := c.failure(dashboardDocument); err != nil {
		return core.DashboardDocument{}, err
	}
	return doc, nil
}

func (c *checker) goalStatus(path string, v any, present bool) core.GoalStatus {
	if !present || v == nil {
		c.add(path, RuleRequired, "is required")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		c.add(path, RuleType, "expected string")
		return ""
	}
	status := core.GoalStatus(s)
	if !status.IsValid() {
		c.add(path, RuleEnum, "must be one of %s, %s, %s; got %q", core.GoalPending, core.GoalInProgress, core.GoalCompleted, s)
	}
	return status
}
