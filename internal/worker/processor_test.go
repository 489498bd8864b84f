package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/amqp"
	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/storage"
)

type fakeUpstream struct {
	mu          sync.Mutex
	assignments []ledger.Assignment
	patches     map[int64]core.CategoryPatch
	err         error
	groups      []core.Group
	categories  []core.Category
}

func (f *fakeUpstream) SetAssignment(_ context.Context, categoryID int64, month core.Month, amount core.Money) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.assignments = append(f.assignments, ledger.Assignment{CategoryID: categoryID, Month: month, Amount: amount})
	return nil
}

func (f *fakeUpstream) UpdateCategory(_ context.Context, id int64, patch core.CategoryPatch) (core.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return core.Category{}, f.err
	}
	if f.patches == nil {
		f.patches = map[int64]core.CategoryPatch{}
	}
	f.patches[id] = patch
	return core.Category{ID: id}, nil
}

func (f *fakeUpstream) ListGroups(context.Context) ([]core.Group, error)        { return f.groups, nil }
func (f *fakeUpstream) ListCategories(context.Context) ([]core.Category, error) { return f.categories, nil }

func newRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seed(t *testing.T, repo *storage.SQLiteRepository) core.Category {
	t.Helper()
	ctx := context.Background()
	g, err := repo.InsertGroup(ctx, core.Group{Name: "Bills", IsActive: true})
	require.NoError(t, err)
	c, err := repo.InsertCategory(ctx, core.Category{GroupID: g.ID, Name: "Rent", IsActive: true})
	require.NoError(t, err)
	return c
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	assert.Equal(t, 10*time.Second, config.PollInterval)
	assert.Equal(t, 10, config.BatchSize)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Hour, config.CleanupInterval)
	assert.Equal(t, 24*time.Hour, config.CleanupAge)
}

func TestSyncProcessor_PushesQueuedChanges(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	c := seed(t, repo)

	require.NoError(t, repo.UpsertAssignment(ctx, ledger.Assignment{CategoryID: c.ID, Month: core.NewMonth(2024, 3), Amount: core.Units(120)}))
	c.GoalType = core.GoalTypeTargetDate
	c.GoalAmount = core.Units(600)
	c.GoalTargetDate = core.NewDate(2024, 9, 1)
	require.NoError(t, repo.UpdateCategory(ctx, c))

	up := &fakeUpstream{}
	p := NewSyncProcessor(repo, up, DefaultSyncProcessorConfig(), nil)
	assert.Equal(t, 2, p.ProcessBatch(ctx))

	require.Len(t, up.assignments, 1)
	assert.Equal(t, core.Units(120), up.assignments[0].Amount)
	assert.Equal(t, "2024-03", up.assignments[0].Month.Key())

	patch := up.patches[c.ID]
	require.NotNil(t, patch.GoalType)
	assert.Equal(t, core.GoalTypeTargetDate, *patch.GoalType)
	assert.Equal(t, "2024-09-01", patch.GoalTargetDate.String())

	st, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Completed)
	assert.Zero(t, p.ProcessBatch(ctx), "nothing left to push")
}

func TestSyncProcessor_FailuresRetryThenPark(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	c := seed(t, repo)
	require.NoError(t, repo.UpsertAssignment(ctx, ledger.Assignment{CategoryID: c.ID, Month: core.NewMonth(2024, 3), Amount: core.Units(1)}))

	up := &fakeUpstream{err: errors.New("backend down")}
	config := DefaultSyncProcessorConfig()
	config.MaxRetries = 1
	p := NewSyncProcessor(repo, up, config, nil)

	assert.Zero(t, p.ProcessBatch(ctx))
	st, err := p.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Failed)

	up.err = nil
	require.NoError(t, p.RetryFailed(ctx))
	assert.Equal(t, 1, p.ProcessBatch(ctx))
}

func TestSyncProcessor_StartStop(t *testing.T) {
	repo := newRepo(t)
	p := NewSyncProcessor(repo, &fakeUpstream{}, DefaultSyncProcessorConfig(), nil)
	ctx := context.Background()

	assert.False(t, p.IsRunning())
	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx), "second start fails")

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Stop(stopCtx), "stopping a stopped processor is a no-op")
}

func TestSyncWorker_HandleLedgerChangeKicks(t *testing.T) {
	p := NewSyncProcessor(nil, nil, DefaultSyncProcessorConfig(), nil)
	w := NewSyncWorker(p, nil, nil, nil)

	require.NoError(t, w.HandleLedgerChange(context.Background(), amqp.NewLedgerChangeMessage(amqp.ChangeTransaction, 1, "")))
	assert.Len(t, p.kick, 0, "local-only changes do not wake the processor")

	require.NoError(t, w.HandleLedgerChange(context.Background(), amqp.NewLedgerChangeMessage(amqp.ChangeAssignment, 1, "2024-01")))
	require.NoError(t, w.HandleLedgerChange(context.Background(), amqp.NewLedgerChangeMessage(amqp.ChangeCategory, 1, "")))
	assert.Len(t, p.kick, 1, "kicks coalesce")
}

func TestSyncWorker_MirrorTaxonomy(t *testing.T) {
	repo := newRepo(t)
	up := &fakeUpstream{
		groups:     []core.Group{{ID: 5, Name: "Home", IsActive: true}},
		categories: []core.Category{{ID: 50, GroupID: 5, Name: "Rent", IsActive: true}},
	}
	w := NewSyncWorker(NewSyncProcessor(repo, up, DefaultSyncProcessorConfig(), nil), up, repo, nil)

	require.NoError(t, w.MirrorTaxonomy(context.Background()))
	c, err := repo.Category(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, "Rent", c.Name)
}
