package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/services"
)

var _ services.Repository = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedCategory(t *testing.T, repo *SQLiteRepository) core.Category {
	t.Helper()
	ctx := context.Background()
	g, err := repo.InsertGroup(ctx, core.Group{Name: "Bills", IsActive: true})
	require.NoError(t, err)
	c, err := repo.InsertCategory(ctx, core.Category{GroupID: g.ID, Name: "Rent", IsActive: true})
	require.NoError(t, err)
	return c
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	before, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), before)

	after, err := RunMigrations(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSchemaVersionOfFreshDatabase(t *testing.T) {
	v, err := SchemaVersion(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestCategoryRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCategory(t, repo)

	got, err := repo.Category(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.GoalTypeNone, got.GoalType)
	assert.True(t, got.GoalTargetDate.IsZero())

	got.GoalType = core.GoalTypeTargetDate
	got.GoalAmount = core.Units(1200)
	got.GoalTargetDate = core.NewDate(2024, 12, 31)
	require.NoError(t, repo.UpdateCategory(ctx, got))

	again, err := repo.Category(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", again.GoalTargetDate.String())
	assert.Equal(t, core.Units(1200), again.GoalAmount)

	_, err = repo.Category(ctx, 999)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateCategory(ctx, core.Category{ID: 999, Name: "x"}), core.ErrNotFound)
}

func TestUpsertAssignment_QueuesSync(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCategory(t, repo)
	march := core.NewMonth(2024, 3)

	require.NoError(t, repo.UpsertAssignment(ctx, ledger.Assignment{CategoryID: c.ID, Month: march, Amount: core.Units(100)}))
	require.NoError(t, repo.UpsertAssignment(ctx, ledger.Assignment{CategoryID: c.ID, Month: march, Amount: core.Units(150)}))

	all, err := repo.Assignments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, core.Units(150), all[0].Amount)
	assert.Equal(t, "2024-03", all[0].Month.Key())

	items, err := repo.DequeueSyncBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, SyncAssignment, items[1].Operation)

	var p AssignmentPayload
	require.NoError(t, json.Unmarshal(items[1].Payload, &p))
	assert.Equal(t, int64(15000), p.AmountCents)
	assert.Equal(t, "2024-03", p.Month)
}

func TestSyncQueueLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	c := seedCategory(t, repo)
	require.NoError(t, repo.UpsertAssignment(ctx, ledger.Assignment{CategoryID: c.ID, Month: core.NewMonth(2024, 1), Amount: core.Units(1)}))

	items, err := repo.DequeueSyncBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	item := items[0]

	require.NoError(t, repo.MarkSyncProcessing(ctx, item.ID))
	items, err = repo.DequeueSyncBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items, "processing items are not handed out twice")

	require.NoError(t, repo.IncrementSyncAttempt(ctx, item, "upstream down"))
	items, err = repo.DequeueSyncBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items, "retry waits for its backoff")

	repo.now = func() time.Time { return time.Now().Add(time.Hour) }
	items, err = repo.DequeueSyncBatch(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Attempts)
	assert.Equal(t, "upstream down", items[0].LastError)

	require.NoError(t, repo.MarkSyncFailed(ctx, item.ID, "gave up"))
	st, err := repo.SyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Failed: 1}, st)

	require.NoError(t, repo.RetryFailedSyncs(ctx))
	require.NoError(t, repo.MarkSyncComplete(ctx, item.ID))
	st, err = repo.SyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Completed: 1}, st)

	require.NoError(t, repo.CleanupCompletedSyncs(ctx, time.Now().Add(2*time.Hour)))
	st, err = repo.SyncStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{}, st)
}

func TestTransferPairAndPaging(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.InsertAccount(ctx, core.Account{Name: "Checking", Type: core.Checking})
	require.NoError(t, err)
	b, err := repo.InsertAccount(ctx, core.Account{Name: "Savings", Type: core.Savings})
	require.NoError(t, err)

	out, in, err := repo.InsertTransferPair(ctx,
		core.Transaction{Date: core.NewDate(2024, 2, 1), Amount: core.Units(-50), AccountID: a.ID, IsTransfer: true, TransferAccountID: b.ID},
		core.Transaction{Date: core.NewDate(2024, 2, 1), Amount: core.Units(50), AccountID: b.ID, IsTransfer: true, TransferAccountID: a.ID})
	require.NoError(t, err)

	gotOut, err := repo.Transaction(ctx, out.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, gotOut.TransferPairID)
	gotIn, err := repo.Transaction(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, out.ID, gotIn.TransferPairID)

	_, err = repo.InsertTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 3, 1), Amount: core.Units(-1), AccountID: a.ID})
	require.NoError(t, err)

	page, count, err := repo.TransactionPage(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.Len(t, page, 2)
	assert.Equal(t, "2024-03-01", page[0].Date.String())
	assert.Equal(t, in.ID, page[1].ID)

	bad := gotOut
	bad.IsAdjustment = true
	err = repo.UpdateTransactions(ctx, gotIn, bad)
	assert.Error(t, err, "transfer and adjustment flags are exclusive")

	err = repo.UpdateTransactions(ctx, gotIn, core.Transaction{ID: 999, Date: core.NewDate(2024, 1, 1), AccountID: a.ID})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestMirrorTaxonomy_KeepsLocalGoals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	groups := []core.Group{{ID: 10, Name: "Home", IsActive: true}}
	cats := []core.Category{{ID: 20, GroupID: 10, Name: "Rent", IsActive: true}}
	require.NoError(t, repo.MirrorTaxonomy(ctx, groups, cats))

	c, err := repo.Category(ctx, 20)
	require.NoError(t, err)
	c.GoalType = core.GoalTypeMonthly
	c.GoalAmount = core.Units(900)
	require.NoError(t, repo.UpdateCategory(ctx, c))

	cats[0].Name = "Housing"
	require.NoError(t, repo.MirrorTaxonomy(ctx, groups, cats))

	c, err = repo.Category(ctx, 20)
	require.NoError(t, err)
	assert.Equal(t, "Housing", c.Name)
	assert.Equal(t, core.GoalTypeMonthly, c.GoalType)
	assert.Equal(t, core.Units(900), c.GoalAmount)
}

func TestLedgerServiceOnSQLite(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	svc := services.NewLedgerService(repo, services.Options{})

	card, err := svc.CreateAccount(ctx, core.Account{Name: "Amex", Type: core.Credit, Balance: core.Units(-40)})
	require.NoError(t, err)
	require.NotZero(t, card.PaymentCategoryID)

	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, core.Units(-40), accounts[0].Balance)
	assert.Equal(t, card.PaymentCategoryID, accounts[0].PaymentCategoryID)
}
