package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/amqp"
	"sobres/internal/core"
	"sobres/internal/ports/memory"
	"sobres/internal/reconcile"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.LedgerChangeMessage
	err  error
}

func (p *recordingPublisher) PublishLedgerChange(_ context.Context, msg *amqp.LedgerChangeMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.ChangeKind, 0, len(p.msgs))
	for _, m := range p.msgs {
		out = append(out, m.Kind)
	}
	return out
}

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *LedgerService
	store     *memory.Store
	pub       *recordingPublisher
	checking  core.Account
	savings   core.Account
	card      core.Account
	mortgage  core.Account
	groceries core.Category
	rent      core.Category
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, Options{Now: func() time.Time { return fixedNow }, Publisher: pub, PageSize: 2})

	g, err := store.InsertGroup(ctx, core.Group{Name: "Everyday", IsActive: true})
	require.NoError(t, err)
	groceries, err := store.InsertCategory(ctx, core.Category{GroupID: g.ID, Name: "Groceries", IsActive: true, GoalType: core.GoalTypeNone})
	require.NoError(t, err)
	rent, err := store.InsertCategory(ctx, core.Category{GroupID: g.ID, Name: "Rent", Order: 1, IsActive: true, GoalType: core.GoalTypeNone})
	require.NoError(t, err)

	f := fixture{svc: svc, store: store, pub: pub, groceries: groceries, rent: rent}
	f.checking, err = svc.CreateAccount(ctx, core.Account{Name: "Checking", Type: core.Checking, Balance: core.Units(1000)})
	require.NoError(t, err)
	f.savings, err = svc.CreateAccount(ctx, core.Account{Name: "Savings", Type: core.Savings})
	require.NoError(t, err)
	f.card, err = svc.CreateAccount(ctx, core.Account{Name: "Visa", Type: core.Credit})
	require.NoError(t, err)
	f.mortgage, err = svc.CreateAccount(ctx, core.Account{Name: "Mortgage", Type: core.Loan})
	require.NoError(t, err)
	return f
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("opening balance is booked", func(t *testing.T) {
		assert.Equal(t, core.Units(1000), f.checking.Balance)
		accounts, err := f.svc.ListAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, accounts, 4)
		assert.Equal(t, core.Units(1000), accounts[0].Balance)
	})

	t.Run("tracking accounts are off-budget", func(t *testing.T) {
		assert.True(t, f.mortgage.OffBudget)
	})

	t.Run("credit card gets a payment category", func(t *testing.T) {
		require.NotZero(t, f.card.PaymentCategoryID)
		c, err := f.store.Category(ctx, f.card.PaymentCategoryID)
		require.NoError(t, err)
		assert.Equal(t, "Payment: Visa", c.Name)
		assert.Equal(t, f.card.ID, c.PaymentForAccountID)

		groups, err := f.svc.ListGroups(ctx)
		require.NoError(t, err)
		var names []string
		for _, g := range groups {
			names = append(names, g.Name)
		}
		assert.Contains(t, names, CardPaymentsGroup)
	})

	t.Run("rejects invalid accounts", func(t *testing.T) {
		_, err := f.svc.CreateAccount(ctx, core.Account{Name: "  ", Type: core.Checking})
		assert.ErrorIs(t, err, core.ErrEmptyName)
		_, err = f.svc.CreateAccount(ctx, core.Account{Name: "X", Type: "BOGUS"})
		assert.ErrorIs(t, err, core.ErrInvalidAccountType)
	})
}

func TestBudgetSummaryAndAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	march := core.NewMonth(2024, 3)

	_, err := f.svc.CreateTransaction(ctx, core.Transaction{
		Date: core.NewDate(2024, 3, 2), Amount: core.Units(-80), AccountID: f.checking.ID, CategoryID: f.groceries.ID, Payee: "Market",
	})
	require.NoError(t, err)
	require.NoError(t, f.svc.SetAssignment(ctx, f.groceries.ID, march, core.Units(200)))
	require.NoError(t, f.svc.SetAssignment(ctx, f.groceries.ID, march, core.Units(150)))

	snap, err := f.svc.BudgetSummary(ctx, march)
	require.NoError(t, err)
	assert.Equal(t, core.Units(1000-80-150), snap.ReadyToAssign)

	cs, ok := snap.Category(f.groceries.ID)
	require.True(t, ok)
	assert.Equal(t, core.Units(150), cs.Assigned)
	assert.Equal(t, core.Units(-80), cs.Activity)
	assert.Equal(t, core.Units(70), cs.Available)

	assert.Contains(t, f.pub.kinds(), amqp.ChangeAssignment)

	t.Run("unknown category", func(t *testing.T) {
		err := f.svc.SetAssignment(ctx, 999, march, core.Units(1))
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("publish failure does not fail the write", func(t *testing.T) {
		f.pub.err = errors.New("broker down")
		defer func() { f.pub.err = nil }()
		assert.NoError(t, f.svc.SetAssignment(ctx, f.rent.ID, march, core.Units(10)))
	})
}

func TestUpdateCategory_Goal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	kind := core.GoalTypeTargetBalance
	amount := core.Units(500)
	c, err := f.svc.UpdateCategory(ctx, f.rent.ID, core.CategoryPatch{GoalType: &kind, GoalAmount: &amount})
	require.NoError(t, err)
	assert.Equal(t, core.GoalTypeTargetBalance, c.GoalType)
	assert.Equal(t, amount, c.GoalAmount)

	zero := core.Money{}
	_, err = f.svc.UpdateCategory(ctx, f.rent.ID, core.CategoryPatch{GoalAmount: &zero})
	assert.ErrorIs(t, err, core.ErrValidation)

	dated := core.GoalTypeTargetDate
	_, err = f.svc.UpdateCategory(ctx, f.rent.ID, core.CategoryPatch{GoalType: &dated})
	assert.ErrorIs(t, err, core.ErrValidation, "TARGET_DATE needs a date")

	bogus := "WEEKLY"
	_, err = f.svc.UpdateCategory(ctx, f.rent.ID, core.CategoryPatch{GoalType: &bogus})
	assert.ErrorIs(t, err, core.ErrValidation)

	name := "  <b>Housing</b> "
	c, err = f.svc.UpdateCategory(ctx, f.rent.ID, core.CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Housing", c.Name)

	stored, err := f.store.Category(ctx, f.rent.ID)
	require.NoError(t, err)
	assert.Equal(t, core.Units(500), stored.GoalAmount, "rejected patches leave the category untouched")
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Reconcile(ctx, f.checking.ID, core.Units(950))
	require.NoError(t, err)
	assert.True(t, res.Adjusted)
	assert.Equal(t, core.Units(-50), res.Delta)

	accounts, err := f.svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Units(950), accounts[0].Balance)

	page, err := f.svc.ListTransactions(ctx, 1)
	require.NoError(t, err)
	adj := page.Results[0]
	assert.True(t, adj.IsAdjustment)
	assert.Zero(t, adj.CategoryID)
	assert.Equal(t, reconcile.AdjustmentPayee, adj.Payee)
	assert.Equal(t, "2024-03-15", adj.Date.String())

	res, err = f.svc.Reconcile(ctx, f.checking.ID, core.Units(950))
	require.NoError(t, err)
	assert.False(t, res.Adjusted, "matching balance books nothing")

	_, err = f.svc.Reconcile(ctx, 999, core.Units(1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReconcile_ReadyToAssignFollowsImpact(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	march := core.NewMonth(2024, 3)

	for _, acc := range []core.Account{f.checking, f.savings, f.card, f.mortgage} {
		before, err := f.svc.BudgetSummary(ctx, march)
		require.NoError(t, err)
		current, err := f.svc.accountWithBalance(ctx, acc.ID)
		require.NoError(t, err)

		res, err := f.svc.Reconcile(ctx, acc.ID, current.Balance.Add(core.Units(3000)))
		require.NoError(t, err)
		require.True(t, res.Adjusted, acc.Name)

		after, err := f.svc.BudgetSummary(ctx, march)
		require.NoError(t, err)
		assert.Equal(t, res.RTAImpact, after.ReadyToAssign.Sub(before.ReadyToAssign), acc.Name)
	}

	res, err := f.svc.Reconcile(ctx, f.card.ID, core.Units(0))
	require.NoError(t, err)
	assert.True(t, res.RTAImpact.IsZero())
	res, err = f.svc.Reconcile(ctx, f.checking.ID, core.Units(0))
	require.NoError(t, err)
	assert.Equal(t, res.Delta, res.RTAImpact)
}

func TestTransfers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ids, err := f.svc.CreateTransfer(ctx, reconcile.TransferRequest{
		SourceAccountID:      f.checking.ID,
		DestinationAccountID: f.savings.ID,
		Amount:               core.Units(-100),
		Date:                 core.NewDate(2024, 3, 10),
		CategoryID:           f.groceries.ID,
	})
	require.NoError(t, err)

	out, err := f.store.Transaction(ctx, ids.Out)
	require.NoError(t, err)
	in, err := f.store.Transaction(ctx, ids.In)
	require.NoError(t, err)
	assert.Equal(t, core.Units(-100), out.Amount)
	assert.Equal(t, core.Units(100), in.Amount)
	assert.Zero(t, out.CategoryID, "on-budget to on-budget drops the category")
	assert.Equal(t, "Transfer to Savings", out.Payee)

	require.NoError(t, f.svc.UnlinkTransfer(ctx, ids.In))
	out, _ = f.store.Transaction(ctx, ids.Out)
	in, _ = f.store.Transaction(ctx, ids.In)
	assert.False(t, out.Linked())
	assert.False(t, in.Linked())

	require.NoError(t, f.svc.LinkTransfer(ctx, ids.Out, ids.In))
	out, _ = f.store.Transaction(ctx, ids.Out)
	assert.Equal(t, ids.In, out.TransferPairID)

	t.Run("rejections", func(t *testing.T) {
		err := f.svc.LinkTransfer(ctx, ids.Out, ids.Out)
		assert.ErrorIs(t, err, reconcile.ErrRejected)

		err = f.svc.LinkTransfer(ctx, ids.Out, ids.In)
		assert.ErrorIs(t, err, reconcile.ErrRejected, "already linked")

		plain, err := f.svc.CreateTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 3, 1), Amount: core.Units(-5), AccountID: f.checking.ID})
		require.NoError(t, err)
		err = f.svc.UnlinkTransfer(ctx, plain.ID)
		assert.ErrorIs(t, err, reconcile.ErrRejected)

		_, err = f.svc.CreateTransfer(ctx, reconcile.TransferRequest{
			SourceAccountID: f.checking.ID, DestinationAccountID: f.checking.ID, Amount: core.Units(1), Date: core.NewDate(2024, 3, 1),
		})
		assert.ErrorIs(t, err, reconcile.ErrRejected)
	})

	t.Run("spending into a loan keeps the category", func(t *testing.T) {
		ids, err := f.svc.CreateTransfer(ctx, reconcile.TransferRequest{
			SourceAccountID:      f.checking.ID,
			DestinationAccountID: f.mortgage.ID,
			Amount:               core.Units(300),
			Date:                 core.NewDate(2024, 3, 20),
			CategoryID:           f.rent.ID,
		})
		require.NoError(t, err)
		snap, err := f.svc.BudgetSummary(ctx, core.NewMonth(2024, 3))
		require.NoError(t, err)
		cs, _ := snap.Category(f.rent.ID)
		assert.Equal(t, core.Units(-300), cs.Activity)

		out, _ := f.store.Transaction(ctx, ids.Out)
		assert.Equal(t, f.rent.ID, out.CategoryID)
	})
}

func TestSetTransactionCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.CreateTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 3, 3), Amount: core.Units(-20), AccountID: f.checking.ID})
	require.NoError(t, err)

	got, err := f.svc.SetTransactionCategory(ctx, tx.ID, f.groceries.ID)
	require.NoError(t, err)
	assert.Equal(t, f.groceries.ID, got.CategoryID)

	_, err = f.svc.SetTransactionCategory(ctx, tx.ID, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)

	// The opening balance is an adjustment and must stay uncategorized.
	page, err := f.svc.ListTransactions(ctx, 1)
	require.NoError(t, err)
	var opening core.Transaction
	for _, r := range page.Results {
		if r.IsAdjustment {
			opening = r
		}
	}
	require.NotZero(t, opening.ID)
	_, err = f.svc.SetTransactionCategory(ctx, opening.ID, f.groceries.ID)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestListTransactions_Pagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for d := 1; d <= 4; d++ {
		_, err := f.svc.CreateTransaction(ctx, core.Transaction{
			Date: core.NewDate(2024, 2, d), Amount: core.Units(-1), AccountID: f.checking.ID, CategoryID: f.groceries.ID,
		})
		require.NoError(t, err)
	}

	// 4 plus the opening balance, two per page.
	p1, err := f.svc.ListTransactions(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, p1.Count)
	assert.True(t, p1.HasNext)
	assert.False(t, p1.HasPrior)
	assert.Equal(t, "Checking", p1.Results[0].AccountName)

	p3, err := f.svc.ListTransactions(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, p3.Results, 1)
	assert.False(t, p3.HasNext)
	assert.True(t, p3.HasPrior)

	p9, err := f.svc.ListTransactions(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, p9.Results)
}

func TestCreateTransaction_Sanitizes(t *testing.T) {
	f := newFixture(t)
	tx, err := f.svc.CreateTransaction(context.Background(), core.Transaction{
		Date: core.NewDate(2024, 3, 1), Amount: core.Units(-3), AccountID: f.checking.ID,
		Payee: "<script>x</script>Cafe", IsTransfer: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Cafe", tx.Payee)
	assert.False(t, tx.IsTransfer)
}

func TestListPayees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tx := range []core.Transaction{
		{Date: core.NewDate(2024, 3, 1), Amount: core.Units(-40), AccountID: f.checking.ID, Payee: "Market", CategoryID: f.groceries.ID},
		{Date: core.NewDate(2024, 3, 2), Amount: core.Units(-900), AccountID: f.checking.ID, Payee: "Landlord", CategoryID: f.rent.ID},
		{Date: core.NewDate(2024, 3, 5), Amount: core.Units(-12), AccountID: f.checking.ID, Payee: "market"},
		{Date: core.NewDate(2024, 3, 6), Amount: core.Units(-1), AccountID: f.checking.ID, Payee: "  "},
	} {
		_, err := f.svc.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
	_, err := f.svc.CreateTransfer(ctx, reconcile.TransferRequest{
		SourceAccountID:      f.checking.ID,
		DestinationAccountID: f.savings.ID,
		Amount:               core.Units(-100),
		Date:                 core.NewDate(2024, 3, 10),
	})
	require.NoError(t, err)

	payees, err := f.svc.ListPayees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Payee{
		{Name: "Landlord", DefaultCategoryID: f.rent.ID},
		{Name: "market", DefaultCategoryID: f.groceries.ID},
	}, payees, "starting balances and transfer legs are not payees")
}
