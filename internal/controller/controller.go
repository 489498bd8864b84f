package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"sobres/internal/cache"
	"sobres/internal/core"
	"sobres/internal/goal"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/ports"
	"sobres/internal/reconcile"
	"sobres/internal/validate"
)

const listKey = "all"

// Controller drives every view: it loads pages from the ledger port and
// routes each edit through the budget state or the matching port call.
type Controller struct {
	ledger ports.Ledger
	budget *Budget
	logger *log.Logger

	accounts   *cache.LRUCache[[]core.Account]
	groups     *cache.LRUCache[[]core.Group]
	categories *cache.LRUCache[[]core.Category]
	payees     *cache.LRUCache[[]core.Payee]
}

// Options configure a Controller.
type Options struct {
	// ListTTL bounds how long account and category lists are reused.
	ListTTL time.Duration
	Logger  *log.Logger
	// Caches, when set, sweeps the list caches in the background.
	Caches *cache.Manager
}

func New(l ports.Ledger, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.ListTTL <= 0 {
		opts.ListTTL = 30 * time.Second
	}
	c := &Controller{
		ledger:     l,
		budget:     NewBudget(l, opts.Logger),
		logger:     opts.Logger.WithComponent(log.ComponentController),
		accounts:   cache.NewLRUCache[[]core.Account](1, opts.ListTTL),
		groups:     cache.NewLRUCache[[]core.Group](1, opts.ListTTL),
		categories: cache.NewLRUCache[[]core.Category](1, opts.ListTTL),
		payees:     cache.NewLRUCache[[]core.Payee](1, opts.ListTTL),
	}
	if opts.Caches != nil {
		opts.Caches.Register(c.accounts)
		opts.Caches.Register(c.groups)
		opts.Caches.Register(c.categories)
		opts.Caches.Register(c.payees)
	}
	return c
}

// Budget exposes the month state owner.
func (c *Controller) Budget() *Budget { return c.budget }

// PartialError carries the failed fetches of a page load.
type PartialError struct {
	Errs []error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of the page's requests failed: %v", len(e.Errs), errors.Join(e.Errs...))
}

func (e *PartialError) Unwrap() []error { return e.Errs }

// loader runs fetches in parallel and remembers which failed.
type loader struct {
	names []string
	fns   []func() error
}

func (l *loader) Go(name string, fn func() error) {
	l.names = append(l.names, name)
	l.fns = append(l.fns, fn)
}

// Wait runs the fetches and returns the failures, plus an error when every
// fetch failed.
func (l *loader) Wait() ([]error, error) {
	errs := make([]error, len(l.fns))
	var g errgroup.Group
	for i, fn := range l.fns {
		g.Go(func() error {
			if err := fn(); err != nil {
				errs[i] = fmt.Errorf("%s: %w", l.names[i], err)
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 && len(failed) == len(l.fns) {
		return failed, &PartialError{Errs: failed}
	}
	return failed, nil
}

// BudgetPage is everything the budget view renders.
type BudgetPage struct {
	Month       core.Month
	Snapshot    ledger.Snapshot
	HasSnapshot bool
	Categories  []core.Category
	Accounts    []core.Account
	NetWorth    core.NetWorth
	// Errors lists the fetches that failed; the rest of the page is still valid.
	Errors []error
}

// BudgetPage loads the month snapshot together with the category and account
// lists. It fails only when every fetch failed.
func (c *Controller) BudgetPage(ctx context.Context, month core.Month) (BudgetPage, error) {
	page := BudgetPage{Month: month}
	var l loader
	l.Go("budget summary", func() error {
		snap, err := c.budget.Snapshot(ctx, month)
		if err != nil {
			return err
		}
		page.Snapshot, page.HasSnapshot = snap, true
		return nil
	})
	l.Go("categories", func() (err error) {
		page.Categories, err = c.Categories(ctx)
		return err
	})
	l.Go("accounts", func() (err error) {
		page.Accounts, err = c.Accounts(ctx)
		return err
	})

	var err error
	page.Errors, err = l.Wait()
	page.NetWorth = core.SummarizeAccounts(page.Accounts)
	c.logPartial(ctx, "budget", page.Errors)
	return page, err
}

// AccountsPage is the account list with net worth totals.
type AccountsPage struct {
	Accounts   []core.Account
	Categories []core.Category
	NetWorth   core.NetWorth
	Errors     []error
}

func (c *Controller) AccountsPage(ctx context.Context) (AccountsPage, error) {
	var page AccountsPage
	var l loader
	l.Go("accounts", func() (err error) {
		page.Accounts, err = c.Accounts(ctx)
		return err
	})
	l.Go("categories", func() (err error) {
		page.Categories, err = c.Categories(ctx)
		return err
	})

	var err error
	page.Errors, err = l.Wait()
	page.NetWorth = core.SummarizeAccounts(page.Accounts)
	c.logPartial(ctx, "accounts", page.Errors)
	return page, err
}

// TransactionsPage is one page of transactions plus the lists its forms need.
type TransactionsPage struct {
	Page       core.TransactionPage
	Accounts   []core.Account
	Categories []core.Category
	// Payees feed the payee suggestions. A failed fetch leaves them empty and
	// is not a page error.
	Payees []core.Payee
	// Poll is set only on the first page; later pages would jump under the reader.
	Poll   bool
	Errors []error
}

func (c *Controller) TransactionsPage(ctx context.Context, page int) (TransactionsPage, error) {
	if page < 1 {
		page = 1
	}
	out := TransactionsPage{Poll: page == 1}
	var l loader
	l.Go("transactions", func() (err error) {
		out.Page, err = c.ledger.ListTransactions(ctx, page)
		return err
	})
	l.Go("accounts", func() (err error) {
		out.Accounts, err = c.Accounts(ctx)
		return err
	})
	l.Go("categories", func() (err error) {
		out.Categories, err = c.Categories(ctx)
		return err
	})
	payees := make(chan []core.Payee, 1)
	go func() {
		list, err := c.Payees(ctx)
		if err != nil {
			c.logger.WarnContext(ctx, "Payee suggestions unavailable", log.FieldOperation, log.OpRead, log.FieldError, err)
		}
		payees <- list
	}()

	var err error
	out.Errors, err = l.Wait()
	out.Payees = <-payees
	c.logPartial(ctx, "transactions", out.Errors)
	return out, err
}

func (c *Controller) logPartial(ctx context.Context, page string, errs []error) {
	for _, err := range errs {
		c.logger.WarnContext(ctx, "Page fetch failed", "page", page, log.FieldOperation, log.OpRead, log.FieldError, err)
	}
}

// Accounts returns the account list, reusing a recent copy.
func (c *Controller) Accounts(ctx context.Context) ([]core.Account, error) {
	return cached(c.accounts, func() ([]core.Account, error) { return c.ledger.ListAccounts(ctx) })
}

// Groups returns the category groups, reusing a recent copy.
func (c *Controller) Groups(ctx context.Context) ([]core.Group, error) {
	return cached(c.groups, func() ([]core.Group, error) { return c.ledger.ListGroups(ctx) })
}

// Categories returns the categories, reusing a recent copy.
func (c *Controller) Categories(ctx context.Context) ([]core.Category, error) {
	return cached(c.categories, func() ([]core.Category, error) { return c.ledger.ListCategories(ctx) })
}

// Payees returns the payee suggestions, reusing a recent copy.
func (c *Controller) Payees(ctx context.Context) ([]core.Payee, error) {
	return cached(c.payees, func() ([]core.Payee, error) { return c.ledger.ListPayees(ctx) })
}

func cached[T any](lc *cache.LRUCache[T], fetch func() (T, error)) (T, error) {
	if v, ok := lc.Get(listKey); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	lc.Set(listKey, v)
	return v, nil
}

// changed drops everything derived from balances or activity.
func (c *Controller) changed() {
	c.accounts.Clear()
	c.categories.Clear()
	c.payees.Clear()
	c.budget.Invalidate()
}

// Assign validates the form and starts an optimistic assignment.
func (c *Controller) Assign(ctx context.Context, in AssignInput, loc core.Locale) (*PendingEdit, error) {
	month, amount, err := parseAssign(in, loc)
	if err != nil {
		return nil, err
	}
	return c.budget.Assign(ctx, month, in.CategoryID, amount)
}

// SaveGoal stores the goal described by in on category id.
func (c *Controller) SaveGoal(ctx context.Context, id int64, in goal.Input, loc core.Locale) (core.Category, error) {
	g, err := goal.Parse(in, loc)
	if err != nil {
		return core.Category{}, err
	}
	cat, err := c.ledger.UpdateCategory(ctx, id, goal.Patch(g))
	if err != nil {
		return core.Category{}, fmt.Errorf("save goal: %w", err)
	}
	c.changed()
	c.logger.InfoContext(ctx, "Goal saved", log.FieldOperation, log.OpUpdate, log.FieldCategoryID, id, "goal_type", g.Kind())
	return cat, nil
}

// UpdateCategory renames or (de)activates a category.
func (c *Controller) UpdateCategory(ctx context.Context, id int64, patch core.CategoryPatch) (core.Category, error) {
	cat, err := c.ledger.UpdateCategory(ctx, id, patch)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	c.changed()
	return cat, nil
}

func (c *Controller) Reconcile(ctx context.Context, in ReconcileInput, loc core.Locale) (ports.ReconcileResult, error) {
	if err := validate.Struct(in); err != nil {
		return ports.ReconcileResult{}, err
	}
	target, err := reconcile.ParseTarget(in.Target, loc)
	if err != nil {
		return ports.ReconcileResult{}, err
	}
	res, err := c.ledger.Reconcile(ctx, in.AccountID, target)
	if err != nil {
		return ports.ReconcileResult{}, fmt.Errorf("reconcile: %w", err)
	}
	c.changed()
	c.logger.InfoContext(ctx, "Account reconciled",
		log.FieldOperation, log.OpReconcile, log.FieldAccountID, in.AccountID,
		"adjusted", res.Adjusted, log.FieldAmountCents, res.Delta.Cents)
	return res, nil
}

func (c *Controller) CreateAccount(ctx context.Context, in AccountInput, loc core.Locale) (core.Account, error) {
	a, err := parseAccount(in, loc)
	if err != nil {
		return core.Account{}, err
	}
	created, err := c.ledger.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	c.changed()
	c.groups.Clear()
	return created, nil
}

func (c *Controller) CreateTransaction(ctx context.Context, in TransactionInput, loc core.Locale) (core.Transaction, error) {
	tx, err := parseTransaction(in, loc)
	if err != nil {
		return core.Transaction{}, err
	}
	created, err := c.ledger.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	c.changed()
	return created, nil
}

func (c *Controller) SetTransactionCategory(ctx context.Context, id, categoryID int64) (core.Transaction, error) {
	if id <= 0 {
		return core.Transaction{}, core.Invalid("id", "is required")
	}
	if categoryID < 0 {
		return core.Transaction{}, core.Invalid("category", "is invalid")
	}
	tx, err := c.ledger.SetTransactionCategory(ctx, id, categoryID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("set category: %w", err)
	}
	c.changed()
	return tx, nil
}

func (c *Controller) LinkTransfer(ctx context.Context, in reconcile.LinkInput) error {
	if in.First == in.Second && in.First > 0 {
		return fmt.Errorf("link transfer: %w", &reconcile.RuleError{Reason: "a transaction cannot be linked with itself"})
	}
	if err := in.Validate(); err != nil {
		return err
	}
	if err := c.ledger.LinkTransfer(ctx, in.First, in.Second); err != nil {
		return fmt.Errorf("link transfer: %w", err)
	}
	c.changed()
	c.logger.InfoContext(ctx, "Transfer linked", log.FieldOperation, log.OpLink, "first", in.First, "second", in.Second)
	return nil
}

func (c *Controller) UnlinkTransfer(ctx context.Context, id int64) error {
	if id <= 0 {
		return core.Invalid("id", "is required")
	}
	if err := c.ledger.UnlinkTransfer(ctx, id); err != nil {
		return fmt.Errorf("unlink transfer: %w", err)
	}
	c.changed()
	c.logger.InfoContext(ctx, "Transfer unlinked", log.FieldOperation, log.OpUnlink, log.FieldTransactionID, id)
	return nil
}

func (c *Controller) CreateTransfer(ctx context.Context, in reconcile.TransferInput, loc core.Locale) (ports.TransferIDs, error) {
	req, err := reconcile.ParseTransfer(in, loc)
	if err != nil {
		return ports.TransferIDs{}, err
	}
	ids, err := c.ledger.CreateTransfer(ctx, req)
	if err != nil {
		return ports.TransferIDs{}, fmt.Errorf("create transfer: %w", err)
	}
	c.changed()
	c.logger.InfoContext(ctx, "Transfer created", log.FieldOperation, log.OpTransfer, "out", ids.Out, "in", ids.In)
	return ids, nil
}
