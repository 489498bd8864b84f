// Package goal evaluates category funding goals.
//
// A Goal is a closed set of variants; Evaluate switches over all of them.
package goal

import (
	"sobres/internal/core"
)

type (
	// Goal is one of None, Monthly, TargetBalance or TargetDate.
	Goal interface {
		Kind() string
		isGoal()
	}

	// None means the category has no goal; no indicator is shown.
	None struct{}

	// Monthly asks for Target to be assigned every month.
	Monthly struct {
		Target core.Money
	}

	// TargetBalance asks for the available balance to stay at or above Target.
	TargetBalance struct {
		Target core.Money
	}

	// TargetDate asks for Target to be available by the month of Date.
	TargetDate struct {
		Target core.Money
		Date   core.Date
	}
)

func (None) Kind() string          { return core.GoalTypeNone }
func (Monthly) Kind() string       { return core.GoalTypeMonthly }
func (TargetBalance) Kind() string { return core.GoalTypeTargetBalance }
func (TargetDate) Kind() string    { return core.GoalTypeTargetDate }

func (None) isGoal()          {}
func (Monthly) isGoal()       {}
func (TargetBalance) isGoal() {}
func (TargetDate) isGoal()    {}

// Target returns the goal amount, zero for None.
func Target(g Goal) core.Money {
	switch g := g.(type) {
	case Monthly:
		return g.Target
	case TargetBalance:
		return g.Target
	case TargetDate:
		return g.Target
	default:
		return core.Money{}
	}
}

// FromCategory reads the stored goal fields of c. Unknown types and a
// TARGET_DATE without a date decode as None.
func FromCategory(c core.Category) Goal {
	switch c.GoalType {
	case core.GoalTypeMonthly:
		return Monthly{Target: c.GoalAmount}
	case core.GoalTypeTargetBalance:
		return TargetBalance{Target: c.GoalAmount}
	case core.GoalTypeTargetDate:
		if c.GoalTargetDate.IsZero() {
			return None{}
		}
		return TargetDate{Target: c.GoalAmount, Date: c.GoalTargetDate}
	default:
		return None{}
	}
}

// Patch returns the category update that stores g.
func Patch(g Goal) core.CategoryPatch {
	kind := g.Kind()
	amount := Target(g)
	var date core.Date
	if td, ok := g.(TargetDate); ok {
		date = td.Date
	}
	return core.CategoryPatch{
		GoalType:       &kind,
		GoalAmount:     &amount,
		GoalTargetDate: &date,
	}
}

// Validate is the save-time check. Evaluation tolerates any goal; saving a
// goal with a non-positive target or a TARGET_DATE without a date is rejected.
func Validate(g Goal) error {
	switch g := g.(type) {
	case nil:
		return core.Invalid("goal_type", "is required")
	case None:
		return nil
	case Monthly:
		return validateTarget(g.Target)
	case TargetBalance:
		return validateTarget(g.Target)
	case TargetDate:
		if g.Date.IsZero() {
			return core.Invalid("goal_target_date", "is required for TARGET_DATE goals")
		}
		return validateTarget(g.Target)
	default:
		return core.Invalid("goal_type", "unknown goal type")
	}
}

func validateTarget(m core.Money) error {
	if m.Cents <= 0 {
		return core.Invalid("goal_amount", "must be greater than zero")
	}
	return nil
}
