// Package ports declares the outbound interfaces the budget client needs from
// a ledger backend. The rest, memory and sqlite backends implement them.
package ports

import (
	"context"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/reconcile"
)

// Ports for outbound adapters.
type (
	// SummaryReader returns the authoritative month snapshot.
	SummaryReader interface {
		BudgetSummary(ctx context.Context, month core.Month) (ledger.Snapshot, error)
	}

	// AssignmentWriter persists the assigned amount of one category and month.
	// The last write for a category/month wins.
	AssignmentWriter interface {
		SetAssignment(ctx context.Context, categoryID int64, month core.Month, amount core.Money) error
	}

	CategoryStore interface {
		ListGroups(ctx context.Context) ([]core.Group, error)
		ListCategories(ctx context.Context) ([]core.Category, error)
		UpdateCategory(ctx context.Context, id int64, patch core.CategoryPatch) (core.Category, error)
	}

	AccountStore interface {
		ListAccounts(ctx context.Context) ([]core.Account, error)
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		// Reconcile brings the account to target with one adjustment transaction.
		Reconcile(ctx context.Context, accountID int64, target core.Money) (ReconcileResult, error)
	}

	TransactionStore interface {
		// ListTransactions returns one page (1-based), newest first.
		ListTransactions(ctx context.Context, page int) (core.TransactionPage, error)
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		SetTransactionCategory(ctx context.Context, id, categoryID int64) (core.Transaction, error)
	}

	// PayeeReader lists payee suggestions sorted by name.
	PayeeReader interface {
		ListPayees(ctx context.Context) ([]core.Payee, error)
	}

	TransferLinker interface {
		LinkTransfer(ctx context.Context, id1, id2 int64) error
		UnlinkTransfer(ctx context.Context, id int64) error
		CreateTransfer(ctx context.Context, req reconcile.TransferRequest) (TransferIDs, error)
	}

	// Ledger is the complete backend surface.
	Ledger interface {
		SummaryReader
		AssignmentWriter
		CategoryStore
		AccountStore
		TransactionStore
		PayeeReader
		TransferLinker
	}
)

// ReconcileResult reports what a reconciliation did.
type ReconcileResult struct {
	Adjusted   bool
	Delta      core.Money
	NewBalance core.Money
	// RTAImpact is the Ready to Assign change. Only the local backends
	// report it; it is zero from the REST backend.
	RTAImpact core.Money
}

// TransferIDs are the ids of a newly created transfer pair.
type TransferIDs struct {
	Out int64
	In  int64
}
