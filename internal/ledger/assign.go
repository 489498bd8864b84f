package ledger

import "sobres/internal/core"

// ApplyAssignmentChange returns s with category categoryID assigned amount.
//
// The difference from the current assignment moves between the category and
// Ready to Assign: the category's assigned and available grow by it,
// totals.assigned grows by it and ready_to_assign shrinks by it. Nothing else
// changes; totals.activity and totals.available are left for the next fetch.
// Unknown categories return s unchanged with ok false. s is never modified.
func ApplyAssignmentChange(s Snapshot, categoryID int64, amount core.Money) (Snapshot, bool) {
	gi, ci, found := locate(s, categoryID)
	if !found {
		return s, false
	}

	diff := amount.Sub(s.Groups[gi].Categories[ci].Assigned)
	if diff.IsZero() {
		return s, true
	}

	out := s.Clone()
	cat := &out.Groups[gi].Categories[ci]
	cat.Assigned = amount
	cat.Available = cat.Available.Add(diff)
	out.Totals.Assigned = out.Totals.Assigned.Add(diff)
	out.ReadyToAssign = out.ReadyToAssign.Sub(diff)
	return out, true
}

// ComputeTotals sums on-budget categories. Integer addition keeps the result
// independent of order.
func ComputeTotals(categories []CategorySummary) Totals {
	var t Totals
	for _, c := range categories {
		if c.Tracking {
			continue
		}
		t.Assigned = t.Assigned.Add(c.Assigned)
		t.Activity = t.Activity.Add(c.Activity)
		t.Available = t.Available.Add(c.Available)
	}
	return t
}

func locate(s Snapshot, categoryID int64) (int, int, bool) {
	for gi, g := range s.Groups {
		for ci, c := range g.Categories {
			if c.CategoryID == categoryID {
				return gi, ci, true
			}
		}
	}
	return 0, 0, false
}
