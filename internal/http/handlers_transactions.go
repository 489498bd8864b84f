package http

import (
	"net/http"

	"sobres/internal/controller"
	"sobres/internal/core"
	"sobres/internal/log"
	"sobres/internal/reconcile"
)

type transactionsView struct {
	layout
	Page       core.TransactionPage
	Loaded     bool
	Poll       bool
	Accounts   []core.Account
	Categories []core.Category
	Payees     []core.Payee
	Today      string
}

func (s *Server) transactionsView(page controller.TransactionsPage, loadErr error) transactionsView {
	return transactionsView{
		layout:     s.layout("Transactions", "transactions", loadErr),
		Page:       page.Page,
		Loaded:     page.Page.Page > 0,
		Poll:       page.Poll,
		Accounts:   page.Accounts,
		Categories: page.Categories,
		Payees:     page.Payees,
		Today:      core.DateOf(s.now()).String(),
	}
}

func (s *Server) handleTransactionsPage(w http.ResponseWriter, r *http.Request) {
	page, err := s.ctrl.TransactionsPage(r.Context(), parsePageParam(r.URL.Query()))
	if !renderable(err) {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond(w, r, NewHTMXResponse(), "transactions.html", s.transactionsView(page, err))
}

func (s *Server) handleTransactionsPanel(w http.ResponseWriter, r *http.Request) {
	s.transactionsPanel(w, r, parsePageParam(r.URL.Query()), NewHTMXResponse())
}

func (s *Server) transactionsPanel(w http.ResponseWriter, r *http.Request, pageNum int, resp *HTMXResponseBuilder) {
	page, err := s.ctrl.TransactionsPage(r.Context(), pageNum)
	if !renderable(err) {
		s.fail(w, r, log.OpList, err)
		return
	}
	s.respond(w, r, resp, "transactions_panel", s.transactionsView(page, err))
}

// pageOf reads the page the form was posted from.
func pageOf(body *RequestBodyParser) int {
	n, err := body.Int("page")
	if err != nil || n < 1 {
		return 1
	}
	return int(n)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	accountID, err := body.Int("account_id")
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	categoryID, err := body.Int("category_id")
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	in := controller.TransactionInput{
		AccountID:  accountID,
		Date:       body.Get("date"),
		Amount:     body.Get("amount"),
		Payee:      body.Get("payee"),
		Memo:       body.Get("memo"),
		CategoryID: categoryID,
	}
	tx, err := s.ctrl.CreateTransaction(r.Context(), in, s.prefs.Locale())
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	s.logger.InfoContext(r.Context(), "Transaction created",
		log.FieldOperation, log.OpCreate, log.FieldTransactionID, tx.ID, log.FieldAmountCents, tx.Amount.Cents)

	resp := NewHTMXResponse().
		TriggerFormReset().
		TriggerBudgetChanged("").
		TriggerAccountsChanged().
		TriggerSuccessNotification("Transaction saved")
	s.transactionsPanel(w, r, 1, resp)
}

func (s *Server) handleLinkTransfer(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpLink, err)
		return
	}
	first, err := body.Int("id_1")
	if err != nil {
		s.fail(w, r, log.OpLink, err)
		return
	}
	second, err := body.Int("id_2")
	if err != nil {
		s.fail(w, r, log.OpLink, err)
		return
	}
	if err := s.ctrl.LinkTransfer(r.Context(), reconcile.LinkInput{First: first, Second: second}); err != nil {
		s.fail(w, r, log.OpLink, err)
		return
	}
	resp := NewHTMXResponse().TriggerBudgetChanged("").TriggerSuccessNotification("Transfer linked")
	s.transactionsPanel(w, r, pageOf(body), resp)
}

func (s *Server) handleUnlinkTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		s.fail(w, r, log.OpUnlink, err)
		return
	}
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpUnlink, err)
		return
	}
	if err := s.ctrl.UnlinkTransfer(r.Context(), id); err != nil {
		s.fail(w, r, log.OpUnlink, err)
		return
	}
	resp := NewHTMXResponse().TriggerBudgetChanged("").TriggerSuccessNotification("Transfer unlinked")
	s.transactionsPanel(w, r, pageOf(body), resp)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
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
	categoryID, err := body.Int("category_id")
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	if _, err := s.ctrl.SetTransactionCategory(r.Context(), id, categoryID); err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	resp := NewHTMXResponse().TriggerBudgetChanged("").TriggerSuccessNotification("Category updated")
	s.transactionsPanel(w, r, pageOf(body), resp)
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		s.fail(w, r, log.OpTransfer, err)
		return
	}
	var ids [3]int64
	for i, key := range []string{"source", "destination", "category"} {
		if ids[i], err = body.Int(key); err != nil {
			s.fail(w, r, log.OpTransfer, err)
			return
		}
	}
	in := reconcile.TransferInput{
		Source:      ids[0],
		Destination: ids[1],
		Amount:      body.Get("amount"),
		Date:        body.Get("date"),
		Memo:        body.Get("memo"),
		Category:    ids[2],
	}
	if _, err := s.ctrl.CreateTransfer(r.Context(), in, s.prefs.Locale()); err != nil {
		s.fail(w, r, log.OpTransfer, err)
		return
	}
	resp := NewHTMXResponse().
		TriggerFormReset().
		TriggerBudgetChanged("").
		TriggerAccountsChanged().
		TriggerSuccessNotification("Transfer created")
	s.transactionsPanel(w, r, 1, resp)
}
