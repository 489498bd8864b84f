package http

import (
	"context"
	"net/http"

	"sobres/internal/controller"
	"sobres/internal/core"
	"sobres/internal/goal"
	"sobres/internal/ledger"
	"sobres/internal/log"
)

type budgetView struct {
	layout
	Month      core.Month
	Prev, Next core.Month
	Snapshot   ledger.Snapshot
	// Loaded is false when the month summary could not be fetched.
	Loaded     bool
	Categories map[int64]core.Category
	NetWorth   core.NetWorth
	// Saving marks categories whose assignment has not settled yet.
	Saving map[int64]bool
}

func (s *Server) budgetView(month core.Month, page controller.BudgetPage, loadErr error) budgetView {
	v := budgetView{
		layout:     s.layout(month.Label(), "budget", loadErr),
		Month:      month,
		Prev:       month.Prev(),
		Next:       month.Next(),
		Snapshot:   page.Snapshot,
		Loaded:     page.HasSnapshot,
		Categories: make(map[int64]core.Category, len(page.Categories)),
		NetWorth:   page.NetWorth,
		Saving:     make(map[int64]bool),
	}
	for _, c := range page.Categories {
		v.Categories[c.ID] = c
	}
	budget := s.ctrl.Budget()
	for _, c := range page.Snapshot.Categories() {
		if budget.EditState(month, c.CategoryID) != controller.Clean {
			v.Saving[c.CategoryID] = true
		}
	}
	return v
}

func (s *Server) loadBudget(ctx context.Context, r *http.Request) (budgetView, error) {
	month, err := parseMonthParam(r.URL.Query(), s.now())
	if err != nil {
		return budgetView{}, err
	}
	page, err := s.ctrl.BudgetPage(ctx, month)
	if !renderable(err) {
		return budgetView{}, err
	}
	return s.budgetView(month, page, err), nil
}

func (s *Server) handleBudgetPage(w http.ResponseWriter, r *http.Request) {
	v, err := s.loadBudget(r.Context(), r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "budget.html", v)
}

// handleBudgetPanel serves the polled budget panel.
func (s *Server) handleBudgetPanel(w http.ResponseWriter, r *http.Request) {
	v, err := s.loadBudget(r.Context(), r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "budget_panel", v)
}

// handleAssign applies the assignment optimistically and answers with the
// settled figures when the backend is quick, the optimistic ones otherwise.
func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpAssign, err)
		return
	}
	catID, err := body.Int("category_id")
	if err != nil {
		s.fail(w, r, log.OpAssign, err)
		return
	}
	in := controller.AssignInput{Month: body.Get("month"), CategoryID: catID, Amount: body.Get("amount")}

	edit, err := s.ctrl.Assign(ctx, in, s.prefs.Locale())
	if err != nil {
		s.fail(w, r, log.OpAssign, err)
		return
	}

	resp := NewHTMXResponse()
	snap := edit.Optimistic

	settle, cancel := context.WithTimeout(ctx, s.settleTimeout)
	_, _ = edit.Wait(settle)
	cancel()

	select {
	case <-edit.Done():
		final, err := edit.Wait(context.Background())
		if err != nil {
			s.logger.WarnContext(ctx, "Assignment not saved",
				log.Attrs().Op(log.OpAssign).Assignment(edit.Month.Key(), catID, edit.Amount.Cents).Err(err).Args()...)
			_, msg := errorStatus(err)
			resp.TriggerErrorNotification("Assignment not saved: " + msg)
			if refetched, rerr := s.ctrl.Budget().Snapshot(ctx, edit.Month); rerr == nil {
				snap = refetched
			}
		} else {
			snap = final
		}
	default:
		// Still in flight; the panel shows it as saving until the next poll.
	}

	page := controller.BudgetPage{Month: edit.Month, Snapshot: snap, HasSnapshot: true}
	page.Categories, _ = s.ctrl.Categories(ctx)
	page.Accounts, _ = s.ctrl.Accounts(ctx)
	page.NetWorth = core.SummarizeAccounts(page.Accounts)

	s.respond(w, r, resp, "budget_panel", s.budgetView(edit.Month, page, nil))
}

// handleSaveGoal stores the goal form and re-renders the month.
func (s *Server) handleSaveGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	month, err := core.ParseMonth(body.Get("month"))
	if err != nil {
		month = core.CurrentMonth(s.now())
	}

	in := goal.Input{Type: body.Get("goal_type"), Target: body.Get("goal_target"), TargetDate: body.Get("goal_date")}
	if _, err := s.ctrl.SaveGoal(ctx, id, in, s.prefs.Locale()); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}

	page, err := s.ctrl.BudgetPage(ctx, month)
	if !renderable(err) {
		s.fail(w, r, log.OpRead, err)
		return
	}
	s.respond(w, r, NewHTMXResponse().TriggerSuccessNotification("Goal saved"), "budget_panel", s.budgetView(month, page, err))
}
