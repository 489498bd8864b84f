package http

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	"sobres/internal/controller"
	"sobres/internal/core"
	"sobres/internal/goal"
	"sobres/internal/ports/rest"
	"sobres/internal/reconcile"
)

// templateFuncs are the helpers shared by every template. Money always
// renders through the locale passed in the view.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":      func(loc core.Locale, m core.Money) string { return loc.Format(m) },
		"moneyInput": func(loc core.Locale, m core.Money) string { return loc.FormatInput(m) },
		"amountClass": func(m core.Money) string {
			switch {
			case m.IsNegative():
				return "neg"
			case m.IsZero():
				return "zero"
			}
			return "pos"
		},
		"goalMessage": func(p goal.Progress, loc core.Locale) string { return p.Message(loc) },
		"clampPct": func(p int) int {
			return max(0, min(100, p))
		},
		"isoDate": func(d core.Date) string {
			if d.IsZero() {
				return ""
			}
			return d.String()
		},
		"add": func(a, b int) int { return a + b },
		"goalTypes": func() []string {
			return []string{core.GoalTypeNone, core.GoalTypeMonthly, core.GoalTypeTargetBalance, core.GoalTypeTargetDate}
		},
	}
}

// errorStatus maps an error from the controller onto a status code and the
// message shown to the user.
func errorStatus(err error) (int, string) {
	var (
		ve     *core.ValidationError
		rule   *reconcile.RuleError
		apiErr *rest.APIError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Error()
	case errors.As(err, &rule):
		return http.StatusUnprocessableEntity, rule.Reason
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrInvalidLocale):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict, "the change conflicts with the current data, reload and try again"
	case errors.As(err, &apiErr):
		return http.StatusBadGateway, "the budget server rejected the request: " + apiErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "the budget server did not answer in time"
	}
	return http.StatusInternalServerError, "something went wrong, please retry"
}

// outage returns the banner lines for a page load in which every fetch
// failed, and nil otherwise. Partial failures leave their sections empty
// without a banner.
func outage(err error) []string {
	var partial *controller.PartialError
	if !errors.As(err, &partial) {
		return nil
	}
	out := make([]string, 0, len(partial.Errs))
	for _, e := range partial.Errs {
		out = append(out, e.Error())
	}
	return out
}

// renderable reports whether a page load result can still be rendered.
func renderable(err error) bool {
	return err == nil || outage(err) != nil
}
