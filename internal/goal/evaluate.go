package goal

import (
	"fmt"

	"sobres/internal/core"
)

// State is the category's figures for the evaluated month.
type State struct {
	Assigned  core.Money
	Available core.Money
}

// Progress is the derived goal indicator for one category and month.
type Progress struct {
	Kind       string
	Target     core.Money
	Required   core.Money
	IsMet      bool
	Percentage int
	// Overspent is set whenever available is negative, regardless of goal type.
	Overspent bool
	// Set for TARGET_DATE goals only.
	MonthsRemaining int
	Suggested       core.Money
	OnTrack         bool
}

// Active reports whether an indicator should be shown.
func (p Progress) Active() bool {
	return p.Kind != "" && p.Kind != core.GoalTypeNone
}

// Evaluate derives progress for g in month. It never fails: a non-positive
// target evaluates as met at 0% with nothing required.
func Evaluate(g Goal, st State, month core.Month) Progress {
	p := Progress{
		Kind:      core.GoalTypeNone,
		Overspent: st.Available.IsNegative(),
	}
	if g == nil {
		return p
	}
	p.Kind = g.Kind()
	p.Target = Target(g)

	if _, none := g.(None); !none && p.Target.Cents <= 0 {
		p.IsMet = true
		return p
	}

	switch g := g.(type) {
	case None:
	case Monthly:
		p.Required = core.Max(g.Target.Sub(st.Assigned), core.Money{})
		p.IsMet = st.Assigned.Cmp(g.Target) >= 0
		p.Percentage = percentage(st.Assigned, g.Target)
	case TargetBalance:
		p.Required = core.Max(g.Target.Sub(st.Available), core.Money{})
		p.IsMet = st.Available.Cmp(g.Target) >= 0
		p.Percentage = percentage(st.Available, g.Target)
	case TargetDate:
		months := MonthsRemaining(month, g.Date)
		p.MonthsRemaining = months
		p.Required = divCeil(core.Max(g.Target.Sub(st.Available), core.Money{}), months)
		p.IsMet = st.Available.Cmp(g.Target) >= 0
		p.Percentage = percentage(st.Available, g.Target)

		startBalance := st.Available.Sub(st.Assigned)
		p.Suggested = divCeil(core.Max(g.Target.Sub(startBalance), core.Money{}), months)
		p.OnTrack = p.IsMet || st.Assigned.Cmp(p.Suggested) >= 0
	}
	return p
}

// MonthsRemaining counts months from month to the target date's month,
// inclusive of both. Targets in the current or a past month count as 1.
func MonthsRemaining(month core.Month, target core.Date) int {
	n := month.MonthsUntil(target.Month()) + 1
	if n < 1 {
		return 1
	}
	return n
}

// Message is the one-line summary shown next to the indicator.
func (p Progress) Message(loc core.Locale) string {
	switch p.Kind {
	case core.GoalTypeMonthly:
		if p.IsMet {
			return "Monthly goal met"
		}
		return fmt.Sprintf("%s more needed this month", loc.Format(p.Required))
	case core.GoalTypeTargetBalance:
		if p.IsMet {
			return "Target balance reached"
		}
		if p.Overspent {
			return fmt.Sprintf("Overspent, %s to go", loc.Format(p.Required))
		}
		return fmt.Sprintf("%s to go", loc.Format(p.Required))
	case core.GoalTypeTargetDate:
		switch {
		case p.IsMet:
			return "Goal reached"
		case p.OnTrack:
			return "On track this month"
		default:
			return fmt.Sprintf("Assign %s this month", loc.Format(p.Required))
		}
	default:
		return ""
	}
}

func percentage(value, target core.Money) int {
	if target.Cents <= 0 || value.Cents <= 0 {
		return 0
	}
	if value.Cents >= target.Cents {
		return 100
	}
	return int(value.Cents * 100 / target.Cents)
}

func divCeil(m core.Money, n int) core.Money {
	if n <= 1 || m.Cents <= 0 {
		return m
	}
	d := int64(n)
	return core.Money{Cents: (m.Cents + d - 1) / d}
}
