package reconcile

import (
	"time"

	"sobres/internal/core"
)

const (
	AdjustmentPayee = "Manual balance adjustment"
	AdjustmentMemo  = "Automatic reconciliation"
)

// Adjustment is the outcome of reconciling one account.
type Adjustment struct {
	Delta core.Money
	// RTAImpact is how much Ready to Assign moves: Delta for on-budget cash
	// accounts (checking, savings, cash), zero for cards and off-budget ones.
	RTAImpact core.Money
	// Transaction is nil when the balance already matched.
	Transaction *core.Transaction
}

// ParseTarget normalizes and parses a typed statement balance.
func ParseTarget(text string, loc core.Locale) (core.Money, error) {
	m, err := core.ParseAmount(text, loc)
	if err != nil {
		return core.Money{}, core.Invalid("target_balance", "is not a valid amount")
	}
	return m, nil
}

// Reconcile computes the adjustment that brings acc to target. The adjustment
// is uncategorized and dated on now's calendar day.
func Reconcile(acc core.Account, target core.Money, now time.Time) Adjustment {
	delta := target.Sub(acc.Balance)
	if delta.IsZero() {
		return Adjustment{}
	}
	adj := Adjustment{Delta: delta}
	if acc.OnBudget() && acc.Type.Liquid() {
		adj.RTAImpact = delta
	}
	adj.Transaction = &core.Transaction{
		Date:         core.DateOf(now),
		Amount:       delta,
		AccountID:    acc.ID,
		AccountName:  acc.Name,
		Payee:        AdjustmentPayee,
		Memo:         AdjustmentMemo,
		IsAdjustment: true,
	}
	return adj
}

// ReconcileText is Reconcile for user-typed input. Invalid input is rejected
// before anything is computed.
func ReconcileText(acc core.Account, text string, loc core.Locale, now time.Time) (Adjustment, error) {
	target, err := ParseTarget(text, loc)
	if err != nil {
		return Adjustment{}, err
	}
	return Reconcile(acc, target, now), nil
}
