package ledger

import (
	"cmp"
	"slices"

	"sobres/internal/core"
	"sobres/internal/goal"
)

// CarryPolicy decides what a category's available balance carries into the
// next month.
type CarryPolicy string

const (
	// CarryAll carries the full balance, overspending included.
	CarryAll CarryPolicy = "all"
	// CarryPositive carries surpluses only; a negative balance resets to zero
	// at month end.
	CarryPositive CarryPolicy = "positive"
)

func (p CarryPolicy) Valid() bool {
	return p == CarryAll || p == CarryPositive
}

// Assignment is the amount assigned to a category for one month.
type Assignment struct {
	CategoryID int64
	Month      core.Month
	Amount     core.Money
}

// Input is everything Build needs to recompute one month.
type Input struct {
	Month        core.Month
	Accounts     []core.Account
	Groups       []core.Group
	Categories   []core.Category
	Assignments  []Assignment
	Transactions []core.Transaction
	Carry        CarryPolicy
	Locale       core.Locale
}

// Build recomputes the month snapshot from stored data.
//
// Ready to Assign is the cash in on-budget liquid accounts minus everything
// ever assigned. Category activity skips transfers unless the other leg sits
// in an off-budget account. Credit card payment categories hold the card
// spending that was budgeted minus what has been paid.
func Build(in Input) Snapshot {
	if !in.Carry.Valid() {
		in.Carry = CarryAll
	}
	next := in.Month.Next()
	accounts := make(map[int64]core.Account, len(in.Accounts))
	for _, a := range in.Accounts {
		accounts[a.ID] = a
	}

	var cash, assignedAll core.Money
	for _, tx := range in.Transactions {
		if a, ok := accounts[tx.AccountID]; ok && a.OnBudget() && a.Type.Liquid() {
			cash = cash.Add(tx.Amount)
		}
	}
	for _, as := range in.Assignments {
		assignedAll = assignedAll.Add(as.Amount)
	}

	flows := categoryFlows(in, accounts, next)
	cards := cardFlows(in, accounts, next)

	groups := activeGroups(in.Groups)
	cats := activeCategories(in.Categories)

	snap := Snapshot{
		Month:         in.Month,
		ReadyToAssign: cash.Sub(assignedAll),
	}
	for _, g := range groups {
		gs := GroupSummary{GroupID: g.ID, Name: g.Name, Categories: []CategorySummary{}}
		for _, c := range cats {
			if c.GroupID != g.ID {
				continue
			}
			f := flows[c.ID]
			cs := CategorySummary{
				CategoryID: c.ID,
				Name:       c.Name,
				Assigned:   f.assigned[in.Month],
				Activity:   f.activity[in.Month],
				Available:  f.available(in.Month, in.Carry),
			}
			if c.PaymentForAccountID != 0 {
				card := cards[c.PaymentForAccountID]
				cs.Available = card.funded.Sub(card.paid)
				cs.Tracking = !accounts[c.PaymentForAccountID].OnBudget()
				if card.paidThisMonth.Cents > 0 {
					cs.Activity = card.paidThisMonth.Neg()
				}
			}
			cs.Goal = goal.Evaluate(goal.FromCategory(c), goal.State{Assigned: cs.Assigned, Available: cs.Available}, in.Month)
			cs.GoalMessage = cs.Goal.Message(in.Locale)
			gs.Categories = append(gs.Categories, cs)
		}
		snap.Groups = append(snap.Groups, gs)
	}
	snap.Totals = ComputeTotals(snap.Categories())
	return snap
}

// Balances sums transaction amounts per account.
func Balances(txs []core.Transaction) map[int64]core.Money {
	out := make(map[int64]core.Money)
	for _, tx := range txs {
		out[tx.AccountID] = out[tx.AccountID].Add(tx.Amount)
	}
	return out
}

// CountsAsActivity reports whether tx moves money in or out of its category.
// Transfers between on-budget accounts are not spending; a transfer to or from
// an off-budget account is.
func CountsAsActivity(tx core.Transaction, accounts map[int64]core.Account) bool {
	if tx.CategoryID == 0 {
		return false
	}
	if !tx.Linked() {
		return true
	}
	partner, ok := accounts[tx.TransferAccountID]
	return ok && !partner.OnBudget()
}

type flow struct {
	assigned map[core.Month]core.Money
	activity map[core.Month]core.Money
}

func (f flow) available(month core.Month, policy CarryPolicy) core.Money {
	if policy == CarryAll {
		var total core.Money
		for m, v := range f.assigned {
			if !m.After(month) {
				total = total.Add(v)
			}
		}
		for m, v := range f.activity {
			if !m.After(month) {
				total = total.Add(v)
			}
		}
		return total
	}

	first, ok := f.firstMonth()
	if !ok || first.After(month) {
		return core.Money{}
	}
	var bal core.Money
	for m := first; !m.After(month); m = m.Next() {
		if m != first && bal.IsNegative() {
			bal = core.Money{}
		}
		bal = bal.Add(f.assigned[m]).Add(f.activity[m])
	}
	return bal
}

func (f flow) firstMonth() (core.Month, bool) {
	var first core.Month
	found := false
	for _, src := range []map[core.Month]core.Money{f.assigned, f.activity} {
		for m := range src {
			if !found || m.Before(first) {
				first, found = m, true
			}
		}
	}
	return first, found
}

func categoryFlows(in Input, accounts map[int64]core.Account, next core.Month) map[int64]flow {
	flows := make(map[int64]flow)
	get := func(id int64) flow {
		f, ok := flows[id]
		if !ok {
			f = flow{assigned: map[core.Month]core.Money{}, activity: map[core.Month]core.Money{}}
			flows[id] = f
		}
		return f
	}
	for _, as := range in.Assignments {
		f := get(as.CategoryID)
		f.assigned[as.Month] = f.assigned[as.Month].Add(as.Amount)
	}
	for _, tx := range in.Transactions {
		if !tx.Date.Before(next.Start()) || !CountsAsActivity(tx, accounts) {
			continue
		}
		f := get(tx.CategoryID)
		m := tx.Date.Month()
		f.activity[m] = f.activity[m].Add(tx.Amount)
	}
	return flows
}

type cardFlow struct {
	funded        core.Money
	paid          core.Money
	paidThisMonth core.Money
}

func cardFlows(in Input, accounts map[int64]core.Account, next core.Month) map[int64]cardFlow {
	spent := make(map[int64]core.Money)
	out := make(map[int64]cardFlow)
	for _, tx := range in.Transactions {
		a, ok := accounts[tx.AccountID]
		if !ok || a.Type != core.Credit || !tx.Date.Before(next.Start()) {
			continue
		}
		cf := out[a.ID]
		switch {
		case !tx.Linked() && tx.CategoryID != 0:
			spent[a.ID] = spent[a.ID].Add(tx.Amount)
		case tx.Linked() && tx.Amount.Cents > 0:
			cf.paid = cf.paid.Add(tx.Amount)
			if in.Month.Contains(tx.Date) && tx.CategoryID == 0 {
				cf.paidThisMonth = cf.paidThisMonth.Add(tx.Amount)
			}
		}
		out[a.ID] = cf
	}
	for id, s := range spent {
		cf := out[id]
		cf.funded = s.Abs()
		out[id] = cf
	}
	return out
}

func activeGroups(groups []core.Group) []core.Group {
	out := make([]core.Group, 0, len(groups))
	for _, g := range groups {
		if g.IsActive {
			out = append(out, g)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Group) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Name, b.Name))
	})
	return out
}

func activeCategories(cats []core.Category) []core.Category {
	out := make([]core.Category, 0, len(cats))
	for _, c := range cats {
		if c.IsActive {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Category) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.Name, b.Name))
	})
	return out
}
