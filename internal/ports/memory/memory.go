// Package memory is an in-process ledger store for development and tests.
package memory

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"sobres/internal/core"
	"sobres/internal/ledger"
)

type assignmentKey struct {
	category int64
	month    string
}

// Store keeps the whole ledger in maps guarded by one mutex.
type Store struct {
	mu           sync.Mutex
	nextID       int64
	accounts     map[int64]core.Account
	groups       map[int64]core.Group
	categories   map[int64]core.Category
	assignments  map[assignmentKey]ledger.Assignment
	transactions map[int64]core.Transaction
}

func New() *Store {
	return &Store{
		accounts:     map[int64]core.Account{},
		groups:       map[int64]core.Group{},
		categories:   map[int64]core.Category{},
		assignments:  map[assignmentKey]ledger.Assignment{},
		transactions: map[int64]core.Transaction{},
	}
}

// NewFromFiles seeds groups and categories from base/seed_categories.txt,
// one "Group: Category" per line. A missing file yields a small default set.
func NewFromFiles(base string) *Store {
	s := New()
	lines := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(lines) == 0 {
		lines = []string{"Bills: Rent", "Bills: Utilities", "Everyday: Groceries", "Everyday: Transport", "Savings: Emergency fund"}
	}
	groupIDs := map[string]int64{}
	for _, line := range lines {
		group, name, ok := strings.Cut(line, ":")
		if !ok {
			group, name = "General", line
		}
		group, name = strings.TrimSpace(group), strings.TrimSpace(name)
		if name == "" {
			continue
		}
		gid, ok := groupIDs[group]
		if !ok {
			g, _ := s.InsertGroup(context.Background(), core.Group{Name: group, Order: len(groupIDs), IsActive: true})
			gid = g.ID
			groupIDs[group] = gid
		}
		_, _ = s.InsertCategory(context.Background(), core.Category{
			GroupID:  gid,
			Name:     name,
			Order:    len(s.categories),
			IsActive: true,
			GoalType: core.GoalTypeNone,
		})
	}
	return s
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Accounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.accounts)
	slices.SortFunc(out, func(a, b core.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) Account(_ context.Context, id int64) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) InsertAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return core.ErrNotFound
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) Groups(_ context.Context) ([]core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.groups)
	slices.SortFunc(out, func(a, b core.Group) int { return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}

func (s *Store) InsertGroup(_ context.Context, g core.Group) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	s.groups[g.ID] = g
	return g, nil
}

func (s *Store) Categories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := values(s.categories)
	slices.SortFunc(out, func(a, b core.Category) int { return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID)) })
	return out, nil
}

func (s *Store) Category(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.ErrNotFound
	}
	return c, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[c.GroupID]; !ok {
		return core.Category{}, fmt.Errorf("group %d: %w", c.GroupID, core.ErrNotFound)
	}
	c.ID = s.id()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[c.ID]; !ok {
		return core.ErrNotFound
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) Assignments(_ context.Context) ([]ledger.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return values(s.assignments), nil
}

func (s *Store) UpsertAssignment(_ context.Context, a ledger.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[assignmentKey{a.CategoryID, a.Month.Key()}] = a
	return nil
}

func (s *Store) Transactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTransactions(), nil
}

func (s *Store) TransactionPage(_ context.Context, offset, limit int) ([]core.Transaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedTransactions()
	if offset >= len(all) {
		return []core.Transaction{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (s *Store) sortedTransactions() []core.Transaction {
	out := values(s.transactions)
	slices.SortFunc(out, func(a, b core.Transaction) int {
		return cmp.Or(b.Date.Compare(a.Date.Time), cmp.Compare(b.ID, a.ID))
	})
	return out
}

func (s *Store) Transaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

func (s *Store) InsertTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = s.id()
	s.transactions[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransactions(_ context.Context, txs ...core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if _, ok := s.transactions[tx.ID]; !ok {
			return fmt.Errorf("transaction %d: %w", tx.ID, core.ErrNotFound)
		}
	}
	for _, tx := range txs {
		s.transactions[tx.ID] = tx
	}
	return nil
}

func (s *Store) InsertTransferPair(_ context.Context, out, in core.Transaction) (core.Transaction, core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out.ID, in.ID = s.id(), s.id()
	out.TransferPairID, in.TransferPairID = in.ID, out.ID
	s.transactions[out.ID] = out
	s.transactions[in.ID] = in
	return out, in, nil
}

func values[K comparable, V any](m map[K]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
