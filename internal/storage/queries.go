package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sobres/internal/core"
	"sobres/internal/ledger"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL for one connection or transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const dateLayout = "2006-01-02"

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// Accounts

const accountColumns = `id, name, type, off_budget, payment_category_id`

func scanAccount(s scanner) (core.Account, error) {
	var a core.Account
	var typ string
	err := s.Scan(&a.ID, &a.Name, &typ, &a.OffBudget, &a.PaymentCategoryID)
	a.Type = core.AccountType(typ)
	return a, err
}

func (q *Queries) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAccount)
}

func (q *Queries) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	a, err := scanAccount(q.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	return a, notFound(err)
}

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (name, type, off_budget, payment_category_id) VALUES (?, ?, ?, ?)`,
		a.Name, string(a.Type), a.OffBudget, a.PaymentCategoryID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateAccount(ctx context.Context, a core.Account) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, off_budget = ?, payment_category_id = ? WHERE id = ?`,
		a.Name, string(a.Type), a.OffBudget, a.PaymentCategoryID, a.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Groups

func scanGroup(s scanner) (core.Group, error) {
	var g core.Group
	err := s.Scan(&g.ID, &g.Name, &g.Order, &g.IsActive)
	return g, err
}

func (q *Queries) ListGroups(ctx context.Context) ([]core.Group, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, sort_order, is_active FROM category_groups ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanGroup)
}

func (q *Queries) CreateGroup(ctx context.Context, g core.Group) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO category_groups (name, sort_order, is_active) VALUES (?, ?, ?)`,
		g.Name, g.Order, g.IsActive)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// UpsertGroup stores g under its own id.
func (q *Queries) UpsertGroup(ctx context.Context, g core.Group) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO category_groups (id, name, sort_order, is_active) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order, is_active = excluded.is_active`,
		g.ID, g.Name, g.Order, g.IsActive)
	return err
}

// Categories

const categoryColumns = `id, group_id, name, sort_order, is_active, goal_type, goal_amount_cents, goal_target_date, payment_for_account_id`

func scanCategory(s scanner) (core.Category, error) {
	var c core.Category
	var date string
	err := s.Scan(&c.ID, &c.GroupID, &c.Name, &c.Order, &c.IsActive,
		&c.GoalType, &c.GoalAmount.Cents, &date, &c.PaymentForAccountID)
	if err != nil {
		return c, err
	}
	if date != "" {
		if c.GoalTargetDate, err = core.ParseDate(date); err != nil {
			return c, fmt.Errorf("category %d goal date: %w", c.ID, err)
		}
	}
	return c, nil
}

func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (q *Queries) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanCategory)
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	return c, notFound(err)
}

func (q *Queries) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (group_id, name, sort_order, is_active, goal_type, goal_amount_cents, goal_target_date, payment_for_account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.GroupID, c.Name, c.Order, c.IsActive, goalType(c), c.GoalAmount.Cents, formatDate(c.GoalTargetDate), c.PaymentForAccountID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateCategory(ctx context.Context, c core.Category) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET group_id = ?, name = ?, sort_order = ?, is_active = ?, goal_type = ?,
		 goal_amount_cents = ?, goal_target_date = ?, payment_for_account_id = ? WHERE id = ?`,
		c.GroupID, c.Name, c.Order, c.IsActive, goalType(c), c.GoalAmount.Cents, formatDate(c.GoalTargetDate), c.PaymentForAccountID, c.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpsertCategory stores c under its own id, keeping the local goal fields
// when the row already exists.
func (q *Queries) UpsertCategory(ctx context.Context, c core.Category) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (id, group_id, name, sort_order, is_active, goal_type, goal_amount_cents, goal_target_date, payment_for_account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET group_id = excluded.group_id, name = excluded.name,
		 sort_order = excluded.sort_order, is_active = excluded.is_active`,
		c.ID, c.GroupID, c.Name, c.Order, c.IsActive, goalType(c), c.GoalAmount.Cents, formatDate(c.GoalTargetDate), c.PaymentForAccountID)
	return err
}

func goalType(c core.Category) string {
	if c.GoalType == "" {
		return core.GoalTypeNone
	}
	return c.GoalType
}

// Assignments

func (q *Queries) ListAssignments(ctx context.Context) ([]ledger.Assignment, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT category_id, month, amount_cents FROM assignments`)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(s scanner) (ledger.Assignment, error) {
		var a ledger.Assignment
		var month string
		if err := s.Scan(&a.CategoryID, &month, &a.Amount.Cents); err != nil {
			return a, err
		}
		m, err := core.ParseMonth(month)
		a.Month = m
		return a, err
	})
}

func (q *Queries) UpsertAssignment(ctx context.Context, a ledger.Assignment) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO assignments (category_id, month, amount_cents) VALUES (?, ?, ?)
		 ON CONFLICT(category_id, month) DO UPDATE SET amount_cents = excluded.amount_cents, updated_at = CURRENT_TIMESTAMP`,
		a.CategoryID, a.Month.Key(), a.Amount.Cents)
	return err
}

// Transactions

const transactionColumns = `id, date, amount_cents, account_id, category_id, payee, memo,
	is_transfer, is_adjustment, transfer_pair_id, transfer_account_id`

func scanTransaction(s scanner) (core.Transaction, error) {
	var tx core.Transaction
	var date string
	err := s.Scan(&tx.ID, &date, &tx.Amount.Cents, &tx.AccountID, &tx.CategoryID, &tx.Payee, &tx.Memo,
		&tx.IsTransfer, &tx.IsAdjustment, &tx.TransferPairID, &tx.TransferAccountID)
	if err != nil {
		return tx, err
	}
	tx.Date, err = core.ParseDate(date)
	return tx, err
}

func (q *Queries) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransaction)
}

func (q *Queries) ListTransactionsPage(ctx context.Context, offset, limit int) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanTransaction)
}

func (q *Queries) CountTransactions(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(q.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id))
	return tx, notFound(err)
}

func (q *Queries) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (date, amount_cents, account_id, category_id, payee, memo,
		 is_transfer, is_adjustment, transfer_pair_id, transfer_account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.Date.Format(dateLayout), tx.Amount.Cents, tx.AccountID, tx.CategoryID, tx.Payee, tx.Memo,
		tx.IsTransfer, tx.IsAdjustment, tx.TransferPairID, tx.TransferAccountID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET date = ?, amount_cents = ?, account_id = ?, category_id = ?, payee = ?, memo = ?,
		 is_transfer = ?, is_adjustment = ?, transfer_pair_id = ?, transfer_account_id = ? WHERE id = ?`,
		tx.Date.Format(dateLayout), tx.Amount.Cents, tx.AccountID, tx.CategoryID, tx.Payee, tx.Memo,
		tx.IsTransfer, tx.IsAdjustment, tx.TransferPairID, tx.TransferAccountID, tx.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
