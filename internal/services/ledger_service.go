package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"sobres/internal/amqp"
	"sobres/internal/core"
	"sobres/internal/goal"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/ports"
	"sobres/internal/reconcile"
	"sobres/internal/sanitize"
)

const (
	DefaultPageSize = 50

	CardPaymentsGroup  = "Credit card payments"
	cardPaymentsPrefix = "Payment: "
	startingBalance    = "Starting balance"
)

// Publisher announces committed ledger changes.
type Publisher interface {
	PublishLedgerChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error
}

// Options configure a LedgerService. Zero values fall back to defaults.
type Options struct {
	Carry     ledger.CarryPolicy
	Locale    core.Locale
	PageSize  int
	Now       func() time.Time
	Publisher Publisher
	Logger    *log.Logger
}

// LedgerService plays the backend role on top of a Repository: it builds
// month snapshots and applies every ledger mutation with the same rules the
// remote backend enforces.
type LedgerService struct {
	repo      Repository
	publisher Publisher
	carry     ledger.CarryPolicy
	locale    core.Locale
	pageSize  int
	now       func() time.Time
	logger    *log.Logger

	// mu serializes read-modify-write mutations.
	mu sync.Mutex
}

var _ ports.Ledger = (*LedgerService)(nil)

func NewLedgerService(repo Repository, opts Options) *LedgerService {
	s := &LedgerService{
		repo:      repo,
		publisher: opts.Publisher,
		carry:     opts.Carry,
		locale:    opts.Locale,
		pageSize:  opts.PageSize,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if !s.carry.Valid() {
		s.carry = ledger.CarryAll
	}
	if s.locale.Validate() != nil {
		s.locale = core.DefaultLocale()
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.Nop()
	}
	s.logger = s.logger.WithComponent(log.ComponentBudget)
	return s
}

// BudgetSummary recomputes the snapshot of month from stored data.
func (s *LedgerService) BudgetSummary(ctx context.Context, month core.Month) (ledger.Snapshot, error) {
	in := ledger.Input{Month: month, Carry: s.carry, Locale: s.locale}
	var err error
	if in.Accounts, err = s.repo.Accounts(ctx); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load accounts: %w", err)
	}
	if in.Groups, err = s.repo.Groups(ctx); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load groups: %w", err)
	}
	if in.Categories, err = s.repo.Categories(ctx); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load categories: %w", err)
	}
	if in.Assignments, err = s.repo.Assignments(ctx); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load assignments: %w", err)
	}
	if in.Transactions, err = s.repo.Transactions(ctx); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("load transactions: %w", err)
	}
	return ledger.Build(in), nil
}

// SetAssignment stores the assigned amount for one category and month.
func (s *LedgerService) SetAssignment(ctx context.Context, categoryID int64, month core.Month, amount core.Money) error {
	if month.IsZero() {
		return core.Invalid("month", "is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Category(ctx, categoryID); err != nil {
		return fmt.Errorf("category %d: %w", categoryID, err)
	}
	a := ledger.Assignment{CategoryID: categoryID, Month: month, Amount: amount}
	if err := s.repo.UpsertAssignment(ctx, a); err != nil {
		return fmt.Errorf("save assignment: %w", err)
	}

	s.logger.InfoContext(ctx, "Assignment saved",
		log.Attrs().Op(log.OpAssign).Assignment(month.Key(), categoryID, amount.Cents).Args()...)
	s.publish(ctx, amqp.ChangeAssignment, categoryID, month.Key())
	return nil
}

func (s *LedgerService) ListGroups(ctx context.Context) ([]core.Group, error) {
	return s.repo.Groups(ctx)
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.repo.Categories(ctx)
}

// UpdateCategory applies a partial update. Goal changes are checked against
// the save-time goal rules.
func (s *LedgerService) UpdateCategory(ctx context.Context, id int64, patch core.CategoryPatch) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.Category(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %d: %w", id, err)
	}

	if patch.Name != nil {
		c.Name = sanitize.Text(*patch.Name)
		if err := c.Validate(); err != nil {
			return core.Category{}, core.Invalid("name", err.Error())
		}
	}
	if patch.IsActive != nil {
		c.IsActive = *patch.IsActive
	}
	goalChanged := patch.GoalType != nil || patch.GoalAmount != nil || patch.GoalTargetDate != nil
	if patch.GoalType != nil {
		switch *patch.GoalType {
		case core.GoalTypeNone, core.GoalTypeMonthly, core.GoalTypeTargetBalance, core.GoalTypeTargetDate:
			c.GoalType = *patch.GoalType
		default:
			return core.Category{}, core.Invalid("goal_type", "unknown goal type")
		}
	}
	if patch.GoalAmount != nil {
		c.GoalAmount = *patch.GoalAmount
	}
	if patch.GoalTargetDate != nil {
		c.GoalTargetDate = *patch.GoalTargetDate
	}
	if goalChanged {
		// FromCategory reads a dateless TARGET_DATE as no goal; saving one is an error.
		if c.GoalType == core.GoalTypeTargetDate && c.GoalTargetDate.IsZero() {
			return core.Category{}, core.Invalid("goal_target_date", "is required for TARGET_DATE goals")
		}
		if err := goal.Validate(goal.FromCategory(c)); err != nil {
			return core.Category{}, err
		}
	}

	if err := s.repo.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, fmt.Errorf("save category: %w", err)
	}
	s.logger.InfoContext(ctx, "Category updated",
		log.FieldOperation, log.OpUpdate, log.FieldCategoryID, id, "goal_type", c.GoalType)
	s.publish(ctx, amqp.ChangeCategory, id, "")
	return c, nil
}

// ListAccounts returns every account with its balance computed from its
// transactions.
func (s *LedgerService) ListAccounts(ctx context.Context) ([]core.Account, error) {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, err
	}
	balances := ledger.Balances(txs)
	for i := range accounts {
		accounts[i].Balance = balances[accounts[i].ID]
	}
	return accounts, nil
}

// CreateAccount stores a new account. A non-zero Balance is booked as a
// starting balance adjustment. CREDIT accounts get their payment category.
func (s *LedgerService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = sanitize.Text(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if a.Type.Tracking() {
		a.OffBudget = true
	}
	opening := a.Balance
	a.Balance = core.Money{}
	a.ID = 0

	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.repo.InsertAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}

	if created.Type == core.Credit && !created.OffBudget {
		catID, err := s.ensurePaymentCategory(ctx, created)
		if err != nil {
			return core.Account{}, err
		}
		created.PaymentCategoryID = catID
		if err := s.repo.UpdateAccount(ctx, created); err != nil {
			return core.Account{}, fmt.Errorf("link payment category: %w", err)
		}
	}

	if !opening.IsZero() {
		adj := reconcile.Reconcile(created, opening, s.now())
		tx := *adj.Transaction
		tx.Payee = startingBalance
		tx.Memo = ""
		if _, err := s.repo.InsertTransaction(ctx, tx); err != nil {
			return core.Account{}, fmt.Errorf("insert starting balance: %w", err)
		}
		created.Balance = opening
	}

	s.logger.InfoContext(ctx, "Account created",
		log.FieldOperation, log.OpCreate, log.FieldAccountID, created.ID, "type", created.Type)
	s.publish(ctx, amqp.ChangeAccount, created.ID, "")
	return created, nil
}

func (s *LedgerService) ensurePaymentCategory(ctx context.Context, card core.Account) (int64, error) {
	groups, err := s.repo.Groups(ctx)
	if err != nil {
		return 0, fmt.Errorf("load groups: %w", err)
	}
	var group core.Group
	for _, g := range groups {
		if g.Name == CardPaymentsGroup {
			group = g
			break
		}
	}
	if group.ID == 0 {
		group, err = s.repo.InsertGroup(ctx, core.Group{Name: CardPaymentsGroup, IsActive: true})
		if err != nil {
			return 0, fmt.Errorf("insert payments group: %w", err)
		}
	}
	c, err := s.repo.InsertCategory(ctx, core.Category{
		GroupID:             group.ID,
		Name:                cardPaymentsPrefix + card.Name,
		IsActive:            true,
		GoalType:            core.GoalTypeNone,
		PaymentForAccountID: card.ID,
	})
	if err != nil {
		return 0, fmt.Errorf("insert payment category: %w", err)
	}
	return c.ID, nil
}

// Reconcile books the adjustment that brings the account to target.
func (s *LedgerService) Reconcile(ctx context.Context, accountID int64, target core.Money) (ports.ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := s.accountWithBalance(ctx, accountID)
	if err != nil {
		return ports.ReconcileResult{}, err
	}
	adj := reconcile.Reconcile(acc, target, s.now())
	res := ports.ReconcileResult{Delta: adj.Delta, NewBalance: target, RTAImpact: adj.RTAImpact}
	if adj.Transaction == nil {
		return res, nil
	}
	tx, err := s.repo.InsertTransaction(ctx, *adj.Transaction)
	if err != nil {
		return ports.ReconcileResult{}, fmt.Errorf("insert adjustment: %w", err)
	}
	res.Adjusted = true

	s.logger.InfoContext(ctx, "Account reconciled",
		log.FieldOperation, log.OpReconcile,
		log.FieldAccountID, accountID,
		log.FieldTransactionID, tx.ID,
		log.FieldAmountCents, adj.Delta.Cents,
		"rta_impact_cents", adj.RTAImpact.Cents)
	s.publish(ctx, amqp.ChangeTransaction, tx.ID, "")
	return res, nil
}

func (s *LedgerService) accountWithBalance(ctx context.Context, id int64) (core.Account, error) {
	acc, err := s.repo.Account(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %d: %w", id, err)
	}
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return core.Account{}, fmt.Errorf("load transactions: %w", err)
	}
	acc.Balance = ledger.Balances(txs)[id]
	return acc, nil
}

// ListTransactions returns a page of transactions, newest first. Pages are
// 1-based; a page past the end is empty.
func (s *LedgerService) ListTransactions(ctx context.Context, page int) (core.TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	txs, count, err := s.repo.TransactionPage(ctx, (page-1)*s.pageSize, s.pageSize)
	if err != nil {
		return core.TransactionPage{}, err
	}
	if err := s.decorate(ctx, txs); err != nil {
		return core.TransactionPage{}, err
	}
	return core.TransactionPage{
		Results:  txs,
		Count:    count,
		Page:     page,
		HasNext:  page*s.pageSize < count,
		HasPrior: page > 1,
	}, nil
}

// ListPayees derives suggestions from the payees of stored transactions.
// Adjustments and transfer legs are skipped. Names match case-insensitively;
// the newest spelling and the newest category used with the payee win.
func (s *LedgerService) ListPayees(ctx context.Context) ([]core.Payee, error) {
	txs, err := s.repo.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	seen := make(map[string]int)
	var out []core.Payee
	for _, tx := range txs {
		name := strings.TrimSpace(tx.Payee)
		if name == "" || tx.IsAdjustment || tx.IsTransfer {
			continue
		}
		key := strings.ToLower(name)
		i, ok := seen[key]
		if !ok {
			seen[key] = len(out)
			out = append(out, core.Payee{Name: name, DefaultCategoryID: tx.CategoryID})
			continue
		}
		if out[i].DefaultCategoryID == 0 {
			out[i].DefaultCategoryID = tx.CategoryID
		}
	}
	slices.SortFunc(out, func(a, b core.Payee) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// decorate fills the display names the backend includes with a transaction.
func (s *LedgerService) decorate(ctx context.Context, txs []core.Transaction) error {
	accounts, err := s.repo.Accounts(ctx)
	if err != nil {
		return err
	}
	categories, err := s.repo.Categories(ctx)
	if err != nil {
		return err
	}
	accNames := make(map[int64]string, len(accounts))
	for _, a := range accounts {
		accNames[a.ID] = a.Name
	}
	catNames := make(map[int64]string, len(categories))
	for _, c := range categories {
		catNames[c.ID] = c.Name
	}
	for i := range txs {
		txs[i].AccountName = accNames[txs[i].AccountID]
		txs[i].CategoryName = catNames[txs[i].CategoryID]
		if txs[i].TransferAccountID != 0 {
			txs[i].TransferAccount = accNames[txs[i].TransferAccountID]
		}
	}
	return nil
}

// CreateTransaction stores a plain transaction. Transfer legs go through
// CreateTransfer or LinkTransfer instead.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	tx.ID = 0
	tx.Payee = sanitize.Text(tx.Payee)
	tx.Memo = sanitize.Text(tx.Memo)
	tx.IsTransfer = false
	tx.TransferPairID = 0
	tx.TransferAccountID = 0
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.Account(ctx, tx.AccountID); err != nil {
		return core.Transaction{}, fmt.Errorf("account %d: %w", tx.AccountID, err)
	}
	if tx.CategoryID != 0 {
		if _, err := s.repo.Category(ctx, tx.CategoryID); err != nil {
			return core.Transaction{}, fmt.Errorf("category %d: %w", tx.CategoryID, err)
		}
	}
	created, err := s.repo.InsertTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	s.logger.InfoContext(ctx, "Transaction created",
		log.FieldOperation, log.OpCreate, log.FieldTransactionID, created.ID, log.FieldAmountCents, created.Amount.Cents)
	s.publish(ctx, amqp.ChangeTransaction, created.ID, created.Date.Month().Key())
	return created, nil
}

// SetTransactionCategory recategorizes one transaction. Zero clears the
// category. Adjustments stay uncategorized.
func (s *LedgerService) SetTransactionCategory(ctx context.Context, id, categoryID int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.repo.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, err)
	}
	if categoryID != 0 {
		if _, err := s.repo.Category(ctx, categoryID); err != nil {
			return core.Transaction{}, fmt.Errorf("category %d: %w", categoryID, err)
		}
	}
	tx.CategoryID = categoryID
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.repo.UpdateTransactions(ctx, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.publish(ctx, amqp.ChangeTransaction, id, tx.Date.Month().Key())
	return tx, nil
}

// LinkTransfer pairs two existing transactions as the legs of one transfer.
func (s *LedgerService) LinkTransfer(ctx context.Context, id1, id2 int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, accA, err := s.transactionAndAccount(ctx, id1)
	if err != nil {
		return err
	}
	b, accB, err := s.transactionAndAccount(ctx, id2)
	if err != nil {
		return err
	}
	a, b, err = reconcile.LinkTransfer(a, b, accA, accB)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateTransactions(ctx, a, b); err != nil {
		return fmt.Errorf("save transfer: %w", err)
	}
	s.logger.InfoContext(ctx, "Transfer linked",
		log.FieldOperation, log.OpLink, "first_id", id1, "second_id", id2)
	s.publish(ctx, amqp.ChangeTransfer, id1, "")
	return nil
}

func (s *LedgerService) transactionAndAccount(ctx context.Context, id int64) (core.Transaction, core.Account, error) {
	tx, err := s.repo.Transaction(ctx, id)
	if err != nil {
		return core.Transaction{}, core.Account{}, fmt.Errorf("transaction %d: %w", id, err)
	}
	acc, err := s.repo.Account(ctx, tx.AccountID)
	if err != nil {
		return core.Transaction{}, core.Account{}, fmt.Errorf("account %d: %w", tx.AccountID, err)
	}
	return tx, acc, nil
}

// UnlinkTransfer splits a transfer pair back into two plain transactions.
func (s *LedgerService) UnlinkTransfer(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.repo.Transaction(ctx, id)
	if err != nil {
		return fmt.Errorf("transaction %d: %w", id, err)
	}
	if !a.Linked() {
		return &reconcile.RuleError{Reason: "transaction is not part of a transfer"}
	}
	b, err := s.repo.Transaction(ctx, a.TransferPairID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("transaction %d: %w", a.TransferPairID, err)
	}
	if errors.Is(err, core.ErrNotFound) {
		// Dangling leg: clear it alone.
		a.IsTransfer, a.TransferPairID, a.TransferAccountID = false, 0, 0
		return s.repo.UpdateTransactions(ctx, a)
	}
	a, b, err = reconcile.UnlinkTransfer(a, b)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateTransactions(ctx, a, b); err != nil {
		return fmt.Errorf("save transactions: %w", err)
	}
	s.logger.InfoContext(ctx, "Transfer unlinked", log.FieldOperation, log.OpUnlink, log.FieldTransactionID, id)
	s.publish(ctx, amqp.ChangeTransfer, id, "")
	return nil
}

// CreateTransfer books a new transfer as a linked pair of transactions.
func (s *LedgerService) CreateTransfer(ctx context.Context, req reconcile.TransferRequest) (ports.TransferIDs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.repo.Account(ctx, req.SourceAccountID)
	if err != nil {
		return ports.TransferIDs{}, fmt.Errorf("source account %d: %w", req.SourceAccountID, err)
	}
	dst, err := s.repo.Account(ctx, req.DestinationAccountID)
	if err != nil {
		return ports.TransferIDs{}, fmt.Errorf("destination account %d: %w", req.DestinationAccountID, err)
	}
	if req.CategoryID != 0 {
		if _, err := s.repo.Category(ctx, req.CategoryID); err != nil {
			return ports.TransferIDs{}, fmt.Errorf("category %d: %w", req.CategoryID, err)
		}
	}
	plan, err := reconcile.PlanTransfer(req, src, dst)
	if err != nil {
		return ports.TransferIDs{}, err
	}
	out, in, err := s.repo.InsertTransferPair(ctx, plan.Out, plan.In)
	if err != nil {
		return ports.TransferIDs{}, fmt.Errorf("insert transfer: %w", err)
	}
	s.logger.InfoContext(ctx, "Transfer created",
		log.FieldOperation, log.OpTransfer,
		"out_id", out.ID, "in_id", in.ID,
		log.FieldAmountCents, in.Amount.Cents)
	s.publish(ctx, amqp.ChangeTransfer, out.ID, out.Date.Month().Key())
	return ports.TransferIDs{Out: out.ID, In: in.ID}, nil
}

// publish announces a change. The change is already stored, so a failed
// publish is logged and swallowed.
func (s *LedgerService) publish(ctx context.Context, kind amqp.ChangeKind, id int64, month string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishLedgerChange(ctx, amqp.NewLedgerChangeMessage(kind, id, month)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger change",
			log.FieldError, err, "kind", kind, "entity_id", id)
	}
}
