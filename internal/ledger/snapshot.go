// Package ledger holds the month budget snapshot and the pure computations
// over it: local assignment edits, totals, and the full recalculation the
// local backends perform.
package ledger

import (
	"sobres/internal/core"
	"sobres/internal/goal"
)

type (
	// Snapshot is one month of the budget as the backend reports it.
	Snapshot struct {
		Month         core.Month
		ReadyToAssign core.Money
		Totals        Totals
		Groups        []GroupSummary
	}

	Totals struct {
		Assigned  core.Money
		Activity  core.Money
		Available core.Money
	}

	GroupSummary struct {
		GroupID    int64
		Name       string
		Categories []CategorySummary
	}

	CategorySummary struct {
		CategoryID int64
		Name       string
		Assigned   core.Money
		Activity   core.Money
		Available  core.Money
		// Tracking marks the payment category of an off-budget card. It is
		// listed but stays out of totals. Summaries from the REST backend
		// never set it.
		Tracking    bool
		Goal        goal.Progress
		GoalMessage string
	}
)

// Category finds a category by id.
func (s Snapshot) Category(id int64) (CategorySummary, bool) {
	for _, g := range s.Groups {
		for _, c := range g.Categories {
			if c.CategoryID == id {
				return c, true
			}
		}
	}
	return CategorySummary{}, false
}

// Categories flattens the groups in display order.
func (s Snapshot) Categories() []CategorySummary {
	var out []CategorySummary
	for _, g := range s.Groups {
		out = append(out, g.Categories...)
	}
	return out
}

// Clone returns a deep copy; edits on the copy never reach s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Groups = make([]GroupSummary, len(s.Groups))
	for i, g := range s.Groups {
		g.Categories = append([]CategorySummary(nil), g.Categories...)
		out.Groups[i] = g
	}
	return out
}

// Overspent lists categories with a negative available balance.
func (s Snapshot) Overspent() []CategorySummary {
	var out []CategorySummary
	for _, c := range s.Categories() {
		if c.Available.IsNegative() {
			out = append(out, c)
		}
	}
	return out
}
