package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the local ledger database. Assignment and category
// changes are written together with a sync_queue row so the worker can push
// them upstream.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps sqlite free of SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if logger == nil {
		logger = log.Nop()
	}
	ver, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Debug("Schema ready", "schema_version", ver)
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	return tx.Commit()
}

func mustAffect(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Accounts(ctx context.Context) ([]core.Account, error) {
	return r.queries.ListAccounts(ctx)
}

func (r *SQLiteRepository) Account(ctx context.Context, id int64) (core.Account, error) {
	return r.queries.GetAccount(ctx, id)
}

func (r *SQLiteRepository) InsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	id, err := r.queries.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	a.ID = id
	return a, nil
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) error {
	return mustAffect(r.queries.UpdateAccount(ctx, a))
}

func (r *SQLiteRepository) Groups(ctx context.Context) ([]core.Group, error) {
	return r.queries.ListGroups(ctx)
}

func (r *SQLiteRepository) InsertGroup(ctx context.Context, g core.Group) (core.Group, error) {
	id, err := r.queries.CreateGroup(ctx, g)
	if err != nil {
		return core.Group{}, fmt.Errorf("create group: %w", err)
	}
	g.ID = id
	return g, nil
}

func (r *SQLiteRepository) Categories(ctx context.Context) ([]core.Category, error) {
	return r.queries.ListCategories(ctx)
}

func (r *SQLiteRepository) Category(ctx context.Context, id int64) (core.Category, error) {
	return r.queries.GetCategory(ctx, id)
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	id, err := r.queries.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

// UpdateCategory stores c and queues it for upstream sync.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := mustAffect(q.UpdateCategory(ctx, c)); err != nil {
			return err
		}
		return q.enqueue(ctx, r.timestamp(0), SyncCategory, c.ID, "", CategoryPayload{
			Name:            c.Name,
			IsActive:        c.IsActive,
			GoalType:        goalType(c),
			GoalAmountCents: c.GoalAmount.Cents,
			GoalTargetDate:  formatDate(c.GoalTargetDate),
		})
	})
}

func (r *SQLiteRepository) Assignments(ctx context.Context) ([]ledger.Assignment, error) {
	return r.queries.ListAssignments(ctx)
}

// UpsertAssignment stores a and queues it for upstream sync.
func (r *SQLiteRepository) UpsertAssignment(ctx context.Context, a ledger.Assignment) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.UpsertAssignment(ctx, a); err != nil {
			return err
		}
		return q.enqueue(ctx, r.timestamp(0), SyncAssignment, a.CategoryID, a.Month.Key(), AssignmentPayload{
			CategoryID:  a.CategoryID,
			Month:       a.Month.Key(),
			AmountCents: a.Amount.Cents,
		})
	})
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	r.logger.DebugContext(ctx, "Assignment stored",
		log.FieldCategoryID, a.CategoryID, log.FieldMonth, a.Month.Key(), log.FieldAmountCents, a.Amount.Cents)
	return nil
}

func (r *SQLiteRepository) Transactions(ctx context.Context) ([]core.Transaction, error) {
	return r.queries.ListTransactions(ctx)
}

func (r *SQLiteRepository) TransactionPage(ctx context.Context, offset, limit int) ([]core.Transaction, int, error) {
	count, err := r.queries.CountTransactions(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	txs, err := r.queries.ListTransactionsPage(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txs, count, nil
}

func (r *SQLiteRepository) Transaction(ctx context.Context, id int64) (core.Transaction, error) {
	return r.queries.GetTransaction(ctx, id)
}

func (r *SQLiteRepository) InsertTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	id, err := r.queries.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	tx.ID = id
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransactions(ctx context.Context, txs ...core.Transaction) error {
	return r.inTx(ctx, func(q *Queries) error {
		for _, tx := range txs {
			if err := mustAffect(q.UpdateTransaction(ctx, tx)); err != nil {
				return fmt.Errorf("transaction %d: %w", tx.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) InsertTransferPair(ctx context.Context, out, in core.Transaction) (core.Transaction, core.Transaction, error) {
	err := r.inTx(ctx, func(q *Queries) error {
		var err error
		if out.ID, err = q.CreateTransaction(ctx, out); err != nil {
			return err
		}
		in.TransferPairID = out.ID
		if in.ID, err = q.CreateTransaction(ctx, in); err != nil {
			return err
		}
		out.TransferPairID = in.ID
		return mustAffect(q.UpdateTransaction(ctx, out))
	})
	if err != nil {
		return core.Transaction{}, core.Transaction{}, fmt.Errorf("insert transfer pair: %w", err)
	}
	return out, in, nil
}

// MirrorTaxonomy copies the upstream groups and categories into the local
// database under their upstream ids, keeping local goal edits.
func (r *SQLiteRepository) MirrorTaxonomy(ctx context.Context, groups []core.Group, categories []core.Category) error {
	err := r.inTx(ctx, func(q *Queries) error {
		for _, g := range groups {
			if err := q.UpsertGroup(ctx, g); err != nil {
				return fmt.Errorf("group %d: %w", g.ID, err)
			}
		}
		for _, c := range categories {
			if err := q.UpsertCategory(ctx, c); err != nil {
				return fmt.Errorf("category %d: %w", c.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mirror taxonomy: %w", err)
	}
	r.logger.InfoContext(ctx, "Taxonomy mirrored", "groups", len(groups), "categories", len(categories))
	return nil
}
