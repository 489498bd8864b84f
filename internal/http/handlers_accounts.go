package http

import (
	"fmt"
	"net/http"

	"sobres/internal/controller"
	"sobres/internal/core"
	"sobres/internal/log"
)

type accountsView struct {
	layout
	OnBudget  []core.Account
	OffBudget []core.Account
	NetWorth  core.NetWorth
	Types     []core.AccountType
}

var accountTypes = []core.AccountType{core.Checking, core.Savings, core.Cash, core.Credit, core.Asset, core.Loan}

func (s *Server) accountsView(page controller.AccountsPage, loadErr error) accountsView {
	v := accountsView{
		layout:   s.layout("Accounts", "accounts", loadErr),
		NetWorth: page.NetWorth,
		Types:    accountTypes,
	}
	for _, a := range page.Accounts {
		if a.OnBudget() {
			v.OnBudget = append(v.OnBudget, a)
		} else {
			v.OffBudget = append(v.OffBudget, a)
		}
	}
	return v
}

func (s *Server) handleAccountsPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.ctrl.AccountsPage(r.Context())
	if !renderable(err) {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "accounts.html", s.accountsView(page, err))
}

func (s *Server) handleAccountsPanel(w http.ResponseWriter, r *http.Request) {
	s.accountsPanel(w, r, NewHTMXResponse())
}

func (s *Server) accountsPanel(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder) {
	page, err := s.ctrl.AccountsPage(r.Context())
	if !renderable(err) {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond(w, r, resp, "accounts_panel", s.accountsView(page, err))
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	in := controller.AccountInput{
		Name:      body.Get("name"),
		Type:      body.Get("type"),
		OffBudget: body.Bool("off_budget"),
		Balance:   body.Get("balance"),
	}
	a, err := s.ctrl.CreateAccount(r.Context(), in, s.prefs.Locale())
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Account created", log.FieldOperation, log.OpCreate, log.FieldAccountID, a.ID)

	resp := NewHTMXResponse().
		TriggerFormReset().
		TriggerBudgetChanged("").
		TriggerSuccessNotification(fmt.Sprintf("Account %q created", a.Name))
	s.accountsPanel(w, r, resp)
}

// handleReconcile sets an account to its real balance, booking the difference.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}
	loc := s.prefs.Locale()
	res, err := s.ctrl.Reconcile(r.Context(), controller.ReconcileInput{AccountID: id, Target: body.Get("target")}, loc)
	if err != nil {
		s.fail(w, r, log.OpReconcile, err)
		return
	}

	resp := NewHTMXResponse()
	if res.Adjusted {
		msg := "Adjusted by " + loc.Format(res.Delta)
		if !res.RTAImpact.IsZero() {
			msg += ", Ready to Assign " + loc.Format(res.RTAImpact)
		}
		resp.TriggerBudgetChanged("").
			TriggerTransactionsChanged().
			TriggerSuccessNotification(msg)
	} else {
		resp.TriggerNotification(NotificationInfo, "Balance already matches", 3000)
	}
	s.accountsPanel(w, r, resp)
}
