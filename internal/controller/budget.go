// Package controller owns client-side budget state. Views read snapshots from
// it and route every edit through it; nothing else mutates a held snapshot.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/ports"
)

// EditState tracks one category/month assignment edit.
type EditState int

const (
	// Clean means the held value is the backend's.
	Clean EditState = iota
	// OptimisticPending means the local value is shown and the write is in flight.
	OptimisticPending
	// Reconciling means the write settled and the authoritative refetch is running.
	Reconciling
)

func (s EditState) String() string {
	switch s {
	case Clean:
		return "clean"
	case OptimisticPending:
		return "optimistic_pending"
	case Reconciling:
		return "reconciling"
	default:
		return fmt.Sprintf("edit_state(%d)", int(s))
	}
}

// BudgetBackend is the ledger port surface the controller needs for month state.
type BudgetBackend interface {
	ports.SummaryReader
	ports.AssignmentWriter
}

type editKey struct {
	month      string
	categoryID int64
}

type edit struct {
	state  EditState
	amount core.Money
	seq    uint64
	done   chan struct{}
}

// heldMonth is one month's snapshot plus the sequencing data polls check.
type heldMonth struct {
	month core.Month
	snap  ledger.Snapshot
	// writes counts edits started for the month; a poll that began under an
	// older count is stale.
	writes  uint64
	pending int
	stale   bool
	// fetches numbers every refetch when it starts; installed is the number
	// of the one behind snap. A refetch older than installed is dropped.
	fetches   uint64
	installed uint64
}

// Budget holds one snapshot per viewed month and the edit state of every
// category/month being assigned.
type Budget struct {
	backend BudgetBackend
	logger  *log.Logger
	timeout time.Duration

	mu     sync.Mutex
	months map[string]*heldMonth
	edits  map[editKey]*edit
	seq    uint64

	inflight sync.WaitGroup
}

func NewBudget(backend BudgetBackend, logger *log.Logger) *Budget {
	if logger == nil {
		logger = log.Nop()
	}
	return &Budget{
		backend: backend,
		logger:  logger.WithComponent(log.ComponentBudget),
		timeout: 30 * time.Second,
		months:  make(map[string]*heldMonth),
		edits:   make(map[editKey]*edit),
	}
}

// Snapshot returns the held snapshot for month, fetching it when it is not
// held yet or was invalidated.
func (b *Budget) Snapshot(ctx context.Context, month core.Month) (ledger.Snapshot, error) {
	b.mu.Lock()
	h, ok := b.months[month.Key()]
	if ok && (!h.stale || h.pending > 0) {
		snap := h.snap.Clone()
		b.mu.Unlock()
		return snap, nil
	}
	b.mu.Unlock()
	return b.Refresh(ctx, month)
}

// Refresh replaces the held snapshot with the backend's, keeping any edits
// still in flight applied on top.
func (b *Budget) Refresh(ctx context.Context, month core.Month) (ledger.Snapshot, error) {
	b.mu.Lock()
	gen := b.begin(month)
	b.mu.Unlock()

	snap, err := b.backend.BudgetSummary(ctx, month)
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("budget summary %s: %w", month.Key(), err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.hold(month)
	b.install(h, gen, snap)
	return h.snap.Clone(), nil
}

// Held lists the months with a held snapshot.
func (b *Budget) Held() []core.Month {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]core.Month, 0, len(b.months))
	for _, h := range b.months {
		out = append(out, h.month)
	}
	return out
}

// Invalidate marks every held month for refetch on next read. Called after
// writes that move activity or Ready to Assign (transactions, reconciliation).
func (b *Budget) Invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.months {
		h.stale = true
	}
}

// EditState reports the state of the category/month edit.
func (b *Budget) EditState(month core.Month, categoryID int64) EditState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.edits[editKey{month.Key(), categoryID}]; ok {
		return e.state
	}
	return Clean
}

// PendingEdit is an assignment whose optimistic value is already applied.
type PendingEdit struct {
	Month      core.Month
	CategoryID int64
	Amount     core.Money
	// Optimistic is the held snapshot right after the local change.
	Optimistic ledger.Snapshot

	done  chan struct{}
	final ledger.Snapshot
	err   error
}

// Done is closed once the write and the reconciling refetch have finished.
func (p *PendingEdit) Done() <-chan struct{} { return p.done }

// Wait blocks until the edit settles and returns the authoritative snapshot.
// A failed write is reported after the refetch, which is the recovery.
func (p *PendingEdit) Wait(ctx context.Context) (ledger.Snapshot, error) {
	select {
	case <-p.done:
		return p.final, p.err
	case <-ctx.Done():
		return ledger.Snapshot{}, ctx.Err()
	}
}

// Assign applies an assignment locally and persists it in the background.
// The returned edit carries the optimistic snapshot; Wait for the outcome.
func (b *Budget) Assign(ctx context.Context, month core.Month, categoryID int64, amount core.Money) (*PendingEdit, error) {
	if _, err := b.Snapshot(ctx, month); err != nil {
		return nil, err
	}

	b.mu.Lock()
	h := b.hold(month)
	next, ok := ledger.ApplyAssignmentChange(h.snap, categoryID, amount)
	if !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("category %d: %w", categoryID, core.ErrNotFound)
	}
	h.snap = next
	h.writes++
	h.pending++
	b.seq++
	key := editKey{month.Key(), categoryID}
	p := &PendingEdit{
		Month:      month,
		CategoryID: categoryID,
		Amount:     amount,
		Optimistic: next.Clone(),
		done:       make(chan struct{}),
	}
	// Writes for one category/month go out in the order they were made.
	var prev <-chan struct{}
	if earlier, ok := b.edits[key]; ok {
		prev = earlier.done
	}
	e := &edit{state: OptimisticPending, amount: amount, seq: b.seq, done: p.done}
	b.edits[key] = e
	b.mu.Unlock()

	b.logger.DebugContext(ctx, "Assignment applied locally",
		log.Attrs().Op(log.OpAssign).Assignment(month.Key(), categoryID, amount.Cents).Args()...)

	b.inflight.Add(1)
	go b.persist(context.WithoutCancel(ctx), key, e.seq, prev, p)
	return p, nil
}

func (b *Budget) persist(ctx context.Context, key editKey, seq uint64, prev <-chan struct{}, p *PendingEdit) {
	defer b.inflight.Done()
	defer close(p.done)

	if prev != nil {
		<-prev
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	writeErr := b.backend.SetAssignment(ctx, p.CategoryID, p.Month, p.Amount)
	if writeErr != nil {
		b.logger.WarnContext(ctx, "Assignment write failed, refetching",
			log.FieldMonth, key.month, log.FieldCategoryID, key.categoryID, log.FieldError, writeErr)
	}
	gen := b.transition(key, seq, p.Month, Reconciling)

	snap, fetchErr := b.backend.BudgetSummary(ctx, p.Month)

	b.mu.Lock()
	h := b.hold(p.Month)
	h.pending--
	if e, ok := b.edits[key]; ok && e.seq == seq {
		delete(b.edits, key)
	}
	switch {
	case fetchErr != nil:
		h.stale = true
	case !b.install(h, gen, snap):
		b.logger.DebugContext(ctx, "Refetch superseded by a newer one", log.FieldMonth, key.month, log.FieldCategoryID, key.categoryID)
	}
	p.final = h.snap.Clone()
	b.mu.Unlock()

	switch {
	case writeErr != nil:
		p.err = fmt.Errorf("save assignment: %w", writeErr)
	case fetchErr != nil:
		p.err = fmt.Errorf("refresh after assignment: %w", fetchErr)
		b.logger.WarnContext(ctx, "Refetch after assignment failed", log.FieldMonth, key.month, log.FieldError, fetchErr)
	default:
		b.logger.InfoContext(ctx, "Assignment saved",
			log.Attrs().Op(log.OpAssign).Assignment(key.month, key.categoryID, p.Amount.Cents).Args()...)
	}
}

// transition moves the edit to its next state and numbers the refetch that
// follows.
func (b *Budget) transition(key editKey, seq uint64, month core.Month, to EditState) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.edits[key]; ok && e.seq == seq {
		e.state = to
	}
	return b.begin(month)
}

// PollResult summarizes one background refresh.
type PollResult struct {
	Applied   int
	Discarded int
	Failed    int
}

// Poll refreshes every held month. A result is dropped when a write for that
// month started or was still pending while the poll was in flight.
func (b *Budget) Poll(ctx context.Context) PollResult {
	type ticket struct {
		month  core.Month
		writes uint64
		gen    uint64
	}

	b.mu.Lock()
	tickets := make([]ticket, 0, len(b.months))
	var res PollResult
	for _, h := range b.months {
		if h.pending > 0 {
			res.Discarded++
			continue
		}
		tickets = append(tickets, ticket{h.month, h.writes, b.begin(h.month)})
	}
	b.mu.Unlock()

	for _, t := range tickets {
		snap, err := b.backend.BudgetSummary(ctx, t.month)
		if err != nil {
			res.Failed++
			b.logger.WarnContext(ctx, "Poll fetch failed", log.FieldOperation, log.OpPoll, log.FieldMonth, t.month.Key(), log.FieldError, err)
			continue
		}

		b.mu.Lock()
		h, ok := b.months[t.month.Key()]
		if !ok || h.writes != t.writes || h.pending > 0 || t.gen < h.installed {
			b.mu.Unlock()
			res.Discarded++
			b.logger.DebugContext(ctx, "Poll result discarded", log.FieldOperation, log.OpPoll, log.FieldMonth, t.month.Key())
			continue
		}
		b.install(h, t.gen, snap)
		b.mu.Unlock()
		res.Applied++
	}
	return res
}

// Wait blocks until every in-flight edit has settled or ctx is done.
func (b *Budget) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("edits still in flight"), ctx.Err())
	}
}

func (b *Budget) hold(month core.Month) *heldMonth {
	h, ok := b.months[month.Key()]
	if !ok {
		h = &heldMonth{month: month}
		b.months[month.Key()] = h
	}
	return h
}

// begin numbers a refetch of month. A month seen for the first time is held
// stale until a fetch lands. Caller holds b.mu.
func (b *Budget) begin(month core.Month) uint64 {
	h, ok := b.months[month.Key()]
	if !ok {
		h = &heldMonth{month: month, stale: true}
		b.months[month.Key()] = h
	}
	h.fetches++
	return h.fetches
}

// install replaces the held snapshot unless a refetch that started later has
// already been installed. Caller holds b.mu.
func (b *Budget) install(h *heldMonth, gen uint64, snap ledger.Snapshot) bool {
	if gen < h.installed {
		return false
	}
	h.snap = b.withPending(h.month, snap)
	h.installed = gen
	h.stale = false
	return true
}

// withPending re-applies edits still awaiting their write so a refetch
// triggered by one category does not flash another back to its old value.
// Caller holds b.mu.
func (b *Budget) withPending(month core.Month, snap ledger.Snapshot) ledger.Snapshot {
	for key, e := range b.edits {
		if key.month != month.Key() || e.state != OptimisticPending {
			continue
		}
		snap, _ = ledger.ApplyAssignmentChange(snap, key.categoryID, e.amount)
	}
	return snap
}
