package memory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/ports/memory"
	"sobres/internal/services"
)

var _ services.Repository = (*memory.Store)(nil)

func TestNewFromFiles(t *testing.T) {
	dir := t.TempDir()
	seed := "# groups\nHome: Rent\nHome: Power\nFun\n\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte(seed), 0o644))

	s := memory.NewFromFiles(dir)
	ctx := context.Background()

	groups, err := s.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Home", groups[0].Name)
	assert.Equal(t, "General", groups[1].Name)

	cats, err := s.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Rent", cats[0].Name)
	assert.Equal(t, groups[0].ID, cats[0].GroupID)
}

func TestNewFromFiles_Defaults(t *testing.T) {
	s := memory.NewFromFiles(t.TempDir())
	cats, err := s.Categories(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestTransactionPage_NewestFirst(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	for _, d := range []int{3, 1, 2, 2} {
		_, err := s.InsertTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 1, d), AccountID: 1})
		require.NoError(t, err)
	}

	page, count, err := s.TransactionPage(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	require.Len(t, page, 3)
	assert.Equal(t, 3, page[0].Date.Day())
	// Same day: higher id first.
	assert.Greater(t, page[1].ID, page[2].ID)

	rest, _, err := s.TransactionPage(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 1)

	empty, _, err := s.TransactionPage(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdateTransactions_AllOrNothing(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	tx, err := s.InsertTransaction(ctx, core.Transaction{Date: core.NewDate(2024, 1, 1), AccountID: 1, Payee: "a"})
	require.NoError(t, err)

	changed := tx
	changed.Payee = "b"
	err = s.UpdateTransactions(ctx, changed, core.Transaction{ID: 999})
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := s.Transaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Payee)
}

func TestUpsertAssignment_LastWriteWins(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	jan := core.NewMonth(2024, 1)

	require.NoError(t, s.UpsertAssignment(ctx, ledger.Assignment{CategoryID: 1, Month: jan, Amount: core.Units(10)}))
	require.NoError(t, s.UpsertAssignment(ctx, ledger.Assignment{CategoryID: 1, Month: jan, Amount: core.Units(20)}))

	all, err := s.Assignments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, core.Units(20), all[0].Amount)
}

func TestInsertTransferPair_Links(t *testing.T) {
	s := memory.New()
	out, in, err := s.InsertTransferPair(context.Background(),
		core.Transaction{AccountID: 1, Amount: core.Units(-5), IsTransfer: true},
		core.Transaction{AccountID: 2, Amount: core.Units(5), IsTransfer: true})
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.TransferPairID)
	assert.Equal(t, out.ID, in.TransferPairID)
}

func TestLookups_NotFound(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	_, err := s.Account(ctx, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Category(ctx, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Transaction(ctx, 1)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.InsertCategory(ctx, core.Category{GroupID: 42, Name: "x"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}
