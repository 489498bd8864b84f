package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
	"sobres/internal/reconcile"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(Config{BaseURL: srv.URL + "/", Retries: 2})
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestBudgetSummary(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/budget_summary/", r.URL.Path)
		assert.Equal(t, "2024-03-01", r.URL.Query().Get("month"))
		fmt.Fprint(w, `{
			"month": "2024-03-01",
			"ready_to_assign": "1250.50",
			"groups": [{
				"group_id": 1, "group_name": "Bills",
				"categories": [
					{"category_id": 7, "category_name": "Rent", "assigned": 900, "activity": "-900", "available": 0,
					 "goal": {"type": "MONTHLY", "is_met": true, "percentage": 100, "required": 0, "message": "Monthly goal met"}},
					{"category_id": 8, "category_name": "Power", "assigned": 50, "activity": -80, "available": -30, "goal": null}
				]
			}],
			"totals": {"assigned": 950, "activity": -980, "available": -30}
		}`)
	}))

	snap, err := c.BudgetSummary(context.Background(), core.NewMonth(2024, 3))
	require.NoError(t, err)
	assert.Equal(t, int64(125050), snap.ReadyToAssign.Cents)
	assert.Equal(t, core.Units(950), snap.Totals.Assigned)

	rent, ok := snap.Category(7)
	require.True(t, ok)
	assert.Equal(t, core.Units(-900), rent.Activity)
	assert.True(t, rent.Goal.IsMet)
	assert.Equal(t, 100, rent.Goal.Percentage)
	assert.Equal(t, "Monthly goal met", rent.GoalMessage)

	power, ok := snap.Category(8)
	require.True(t, ok)
	assert.Equal(t, core.GoalTypeNone, power.Goal.Kind)
	assert.True(t, power.Goal.Overspent)
}

func TestBudgetSummary_GoalPercentageClamped(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"month": "2024-03-01",
			"ready_to_assign": 0,
			"groups": [{
				"group_id": 1, "group_name": "Goals",
				"categories": [
					{"category_id": 1, "category_name": "Huge", "assigned": 0, "activity": 0, "available": 0,
					 "goal": {"type": "TARGET_BALANCE", "percentage": 1e300}},
					{"category_id": 2, "category_name": "Negative", "assigned": 0, "activity": 0, "available": 0,
					 "goal": {"type": "TARGET_BALANCE", "percentage": "-1e300"}},
					{"category_id": 3, "category_name": "NaN", "assigned": 0, "activity": 0, "available": 0,
					 "goal": {"type": "TARGET_BALANCE", "percentage": "NaN"}},
					{"category_id": 4, "category_name": "Partial", "assigned": 0, "activity": 0, "available": 0,
					 "goal": {"type": "TARGET_BALANCE", "percentage": 42.9}}
				]
			}]
		}`)
	}))

	snap, err := c.BudgetSummary(context.Background(), core.NewMonth(2024, 3))
	require.NoError(t, err)
	for id, want := range map[int64]int{1: 100, 2: 0, 3: 0, 4: 42} {
		cat, ok := snap.Category(id)
		require.True(t, ok)
		assert.Equal(t, want, cat.Goal.Percentage, cat.Name)
	}
}

func TestLists_EnvelopeAndBareArray(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/groups/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "name": "Bills", "order": 0}, {"id": 2, "name": "Old", "is_active": false}]`)
	})
	mux.HandleFunc("/api/categories/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"results": [{"id": 11, "group": 1, "name": "Power", "goal_type": "TARGET_DATE", "goal_amount": "600", "goal_target_date": "2024-12-01"}], "next": null, "previous": "x", "count": 2}`)
			return
		}
		fmt.Fprintf(w, `{"results": [{"id": 10, "group": 1, "name": "Rent", "goal_type": null, "goal_target_date": null}], "next": %q, "previous": null, "count": 2}`,
			srvURL+"/api/categories/?page=2")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL
	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	groups, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.True(t, groups[0].IsActive, "missing is_active means active")
	assert.False(t, groups[1].IsActive)

	cats, err := c.ListCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, core.GoalTypeNone, cats[0].GoalType)
	assert.Equal(t, core.Units(600), cats[1].GoalAmount)
	assert.Equal(t, "2024-12-01", cats[1].GoalTargetDate.String())
}

func TestListPayees(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payees/", r.URL.Path)
		fmt.Fprint(w, `[{"id": 2, "name": "Uber", "default_category": null},
			{"id": 1, "name": "Lider", "default_category": 7},
			{"id": 3, "name": ""}]`)
	}))

	payees, err := c.ListPayees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.Payee{
		{ID: 1, Name: "Lider", DefaultCategoryID: 7},
		{ID: 2, Name: "Uber"},
	}, payees)
}

func TestListTransactions(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		fmt.Fprint(w, `{"count": 120, "next": "http://x/api/transactions/?page=3", "previous": "http://x/api/transactions/?page=1",
			"results": [{"id": 5, "date": "2024-03-02", "payee": "Market", "amount": "-12.5", "memo": null,
			"account": 1, "account_name": "Checking", "category": null, "category_name": null}]}`)
	}))

	p, err := c.ListTransactions(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 120, p.Count)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrior)
	require.Len(t, p.Results, 1)
	tx := p.Results[0]
	assert.Equal(t, int64(-1250), tx.Amount.Cents)
	assert.Zero(t, tx.CategoryID)
	assert.Equal(t, "", tx.Memo)
}

func TestListTransactions_BareArrayHasOnePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "date": "2024-01-01", "amount": 5, "account": 1}]`)
	}))
	p1, err := c.ListTransactions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, p1.Results, 1)
	assert.False(t, p1.HasNext)

	p2, err := c.ListTransactions(context.Background(), 2)
	require.NoError(t, err)
	assert.Empty(t, p2.Results)
}

func TestSetAssignment_Payload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/budget_assignment/", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(7), body["category_id"])
		assert.Equal(t, "2024-03-01", body["month"])
		assert.Equal(t, 150.5, body["amount"])
		fmt.Fprint(w, `{"status": "success", "amount": 150.5}`)
	}))
	err := c.SetAssignment(context.Background(), 7, core.NewMonth(2024, 3), core.Money{Cents: 15050})
	assert.NoError(t, err)
}

func TestUpdateCategory_SendsOnlyPatchedFields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "MONTHLY", body["goal_type"])
		assert.NotContains(t, body, "name")
		fmt.Fprint(w, `{"id": 3, "group": 1, "name": "Fun", "goal_type": "MONTHLY", "goal_amount": 40}`)
	}))
	kind := core.GoalTypeMonthly
	amount := core.Units(40)
	got, err := c.UpdateCategory(context.Background(), 3, core.CategoryPatch{GoalType: &kind, GoalAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, core.Units(40), got.GoalAmount)
}

func TestReconcile(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["target_balance"] == "100" {
			fmt.Fprint(w, `{"status": "already balanced", "balance": 100}`)
			return
		}
		assert.Equal(t, "950.5", body["target_balance"])
		fmt.Fprint(w, `{"status": "adjusted", "adjustment": -49.5, "new_balance": 950.5}`)
	}))

	res, err := c.Reconcile(context.Background(), 4, core.Money{Cents: 95050})
	require.NoError(t, err)
	assert.True(t, res.Adjusted)
	assert.Equal(t, int64(-4950), res.Delta.Cents)

	res, err = c.Reconcile(context.Background(), 4, core.Units(100))
	require.NoError(t, err)
	assert.False(t, res.Adjusted)
	assert.Equal(t, core.Units(100), res.NewBalance)
}

func TestLinkTransfer_RejectionBecomesRuleError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": "amounts must be equal and opposite"}`)
	}))
	err := c.LinkTransfer(context.Background(), 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, reconcile.ErrRejected)
	assert.Equal(t, "amounts must be equal and opposite", err.Error())
}

func TestCreateTransfer(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(25), body["amount"], "amount is sent as a magnitude")
		assert.Nil(t, body["category"])
		fmt.Fprint(w, `{"status": "created", "ids": [31, 32]}`)
	}))
	ids, err := c.CreateTransfer(context.Background(), reconcile.TransferRequest{
		SourceAccountID: 1, DestinationAccountID: 2, Amount: core.Units(-25), Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(31), ids.Out)
	assert.Equal(t, int64(32), ids.In)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	accounts, err := c.ListAccounts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, accounts)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail": "Not found."}`)
	}))
	_, err := c.BudgetSummary(context.Background(), core.NewMonth(2024, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Not found.", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWrite_ValidationStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	err := c.SetAssignment(context.Background(), 1, core.NewMonth(2024, 1), core.Units(1))
	assert.ErrorIs(t, err, core.ErrValidation)
}
