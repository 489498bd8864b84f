package goal

import (
	"strings"

	"sobres/internal/core"
	"sobres/internal/validate"
)

// Input is the raw goal form as typed by a user.
type Input struct {
	Type       string `validate:"required,oneof=NONE MONTHLY TARGET_BALANCE TARGET_DATE"`
	Target     string `validate:"required_unless=Type NONE"`
	TargetDate string `validate:"required_if=Type TARGET_DATE,omitempty,isodate"`
}

// Parse validates in and builds the goal it describes.
func Parse(in Input, loc core.Locale) (Goal, error) {
	in.Type = strings.ToUpper(strings.TrimSpace(in.Type))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	if in.Type == core.GoalTypeNone {
		return None{}, nil
	}

	target, err := core.ParseAmount(in.Target, loc)
	if err != nil {
		return nil, core.Invalid("target", "is not a valid amount")
	}

	var g Goal
	switch in.Type {
	case core.GoalTypeMonthly:
		g = Monthly{Target: target}
	case core.GoalTypeTargetBalance:
		g = TargetBalance{Target: target}
	case core.GoalTypeTargetDate:
		date, err := core.ParseDate(in.TargetDate)
		if err != nil {
			return nil, core.Invalid("targetdate", "must be a date (YYYY-MM-DD)")
		}
		g = TargetDate{Target: target, Date: date}
	}

	if err := Validate(g); err != nil {
		return nil, err
	}
	return g, nil
}
