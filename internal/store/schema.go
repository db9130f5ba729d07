package store

import (
	"kpiboard/internal/core"
	"kpiboard/internal/validation"
)

// Schema binds a document kind to its validator and default document.
// Reconcile, when set, restores derived fields after a partial update.
type Schema[T any] struct {
	Kind      string
	Decode    func(raw []byte) (T, error)
	Default   func() T
	Reconcile func(T) T
}

func BudgetSchema() Schema[core.BudgetDocument] {
	return Schema[core.BudgetDocument]{
		Kind:      core.KindBudget,
		Decode:    validation.Budget,
		Default:   core.DefaultBudget,
		Reconcile: core.BudgetDocument.Reconciled,
	}
}

func DashboardSchema() Schema[core.DashboardDocument] {
	return Schema[core.DashboardDocument]{
		Kind:    core.KindDashboard,
		Decode:  validation.Dashboard,
		Default: core.DefaultDashboard,
	}
}

// WithDefault returns a copy of the schema that seeds new records from doc.
func (s Schema[T]) WithDefault(doc T) Schema[T] {
	s.Default = func() T { return doc }
	return s
}
