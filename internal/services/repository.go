package services

import (
	"context"

	"sobres/internal/core"
	"sobres/internal/ledger"
)

// Repository is the storage a LedgerService runs on. The memory and sqlite
// backends implement it. Lookups of a missing id return core.ErrNotFound.
type Repository interface {
	Accounts(ctx context.Context) ([]core.Account, error)
	Account(ctx context.Context, id int64) (core.Account, error)
	InsertAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) error

	Groups(ctx context.Context) ([]core.Group, error)
	InsertGroup(ctx context.Context, g core.Group) (core.Group, error)

	Categories(ctx context.Context) ([]core.Category, error)
	Category(ctx context.Context, id int64) (core.Category, error)
	InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) error

	Assignments(ctx context.Context) ([]ledger.Assignment, error)
	UpsertAssignment(ctx context.Context, a ledger.Assignment) error

	// Transactions returns every transaction, newest first.
	Transactions(ctx context.Context) ([]core.Transaction, error)
	// TransactionPage returns limit transactions after skipping offset, newest
	// first, plus the total count.
	TransactionPage(ctx context.Context, offset, limit int) ([]core.Transaction, int, error)
	Transaction(ctx context.Context, id int64) (core.Transaction, error)
	InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	// UpdateTransactions stores all of txs or none of them.
	UpdateTransactions(ctx context.Context, txs ...core.Transaction) error
	// InsertTransferPair stores both legs and links them to each other.
	InsertTransferPair(ctx context.Context, out, in core.Transaction) (core.Transaction, core.Transaction, error)
}
