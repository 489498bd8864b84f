// Package reconcile implements the rules for pairing transactions into
// transfers and for balancing an account against a statement.
package reconcile

import (
	"errors"
	"fmt"

	"sobres/internal/core"
)

// ErrRejected marks every RuleError.
var ErrRejected = errors.New("operation rejected")

// RuleError carries a human-readable reason for a rejected operation.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string        { return e.Reason }
func (e *RuleError) Is(target error) bool { return target == ErrRejected }

func reject(format string, args ...any) error {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}

// LinkTransfer pairs a and b into a transfer. accA and accB are the accounts
// the transactions belong to. Categories are cleared when both accounts are
// on-budget and preserved otherwise. The inputs are not modified.
func LinkTransfer(a, b core.Transaction, accA, accB core.Account) (core.Transaction, core.Transaction, error) {
	switch {
	case a.ID == b.ID:
		return a, b, reject("a transaction cannot be linked with itself")
	case a.AccountID == b.AccountID:
		return a, b, reject("both transactions belong to the same account")
	case a.Amount.IsZero() || a.Amount != b.Amount.Neg():
		return a, b, reject("amounts must be equal and opposite (%s vs %s)", a.Amount, b.Amount)
	case a.Linked() || a.IsTransfer:
		return a, b, reject("transaction %d is already part of a transfer", a.ID)
	case b.Linked() || b.IsTransfer:
		return a, b, reject("transaction %d is already part of a transfer", b.ID)
	case a.IsAdjustment || b.IsAdjustment:
		return a, b, reject("balance adjustments cannot be transfers")
	case accA.ID != a.AccountID || accB.ID != b.AccountID:
		return a, b, reject("account does not match transaction")
	}

	a.IsTransfer, b.IsTransfer = true, true
	a.TransferPairID, b.TransferPairID = b.ID, a.ID
	a.TransferAccountID, b.TransferAccountID = accB.ID, accA.ID
	a.TransferAccount, b.TransferAccount = accB.Name, accA.Name

	if accA.OnBudget() && accB.OnBudget() {
		a.CategoryID, a.CategoryName = 0, ""
		b.CategoryID, b.CategoryName = 0, ""
	}
	return a, b, nil
}

// UnlinkTransfer breaks the pair a/b; both become plain transactions again.
func UnlinkTransfer(a, b core.Transaction) (core.Transaction, core.Transaction, error) {
	if a.TransferPairID != b.ID || b.TransferPairID != a.ID {
		return a, b, reject("transactions %d and %d are not linked", a.ID, b.ID)
	}
	for _, tx := range []*core.Transaction{&a, &b} {
		tx.IsTransfer = false
		tx.TransferPairID = 0
		tx.TransferAccountID = 0
		tx.TransferAccount = ""
	}
	return a, b, nil
}

// TransferRequest describes a transfer to create from scratch.
type TransferRequest struct {
	SourceAccountID      int64
	DestinationAccountID int64
	Amount               core.Money
	Date                 core.Date
	Memo                 string
	CategoryID           int64
}

// TransferPlan holds the two legs to store. Ids are assigned by the store,
// which then links the legs to each other.
type TransferPlan struct {
	Out core.Transaction
	In  core.Transaction
}

// PlanTransfer builds both legs of a new transfer. The amount's sign is
// ignored: the source always loses |amount| and the destination gains it.
// The category is kept on the outgoing leg only when money leaves the budget,
// i.e. the source is on-budget and the destination is not.
func PlanTransfer(req TransferRequest, src, dst core.Account) (TransferPlan, error) {
	if req.SourceAccountID == req.DestinationAccountID || src.ID == dst.ID {
		return TransferPlan{}, reject("source and destination accounts must differ")
	}
	if src.ID != req.SourceAccountID || dst.ID != req.DestinationAccountID {
		return TransferPlan{}, reject("account does not match request")
	}
	amount := req.Amount.Abs()
	if amount.IsZero() {
		return TransferPlan{}, core.Invalid("amount", "must not be zero")
	}
	if err := req.Date.Validate(); err != nil {
		return TransferPlan{}, core.Invalid("date", err.Error())
	}

	var category int64
	if !dst.OnBudget() && src.OnBudget() {
		category = req.CategoryID
	}

	plan := TransferPlan{
		Out: core.Transaction{
			Date:              req.Date,
			Amount:            amount.Neg(),
			AccountID:         src.ID,
			AccountName:       src.Name,
			CategoryID:        category,
			Payee:             "Transfer to " + dst.Name,
			Memo:              req.Memo,
			IsTransfer:        true,
			TransferAccountID: dst.ID,
			TransferAccount:   dst.Name,
		},
		In: core.Transaction{
			Date:              req.Date,
			Amount:            amount,
			AccountID:         dst.ID,
			AccountName:       dst.Name,
			Payee:             "Transfer from " + src.Name,
			Memo:              req.Memo,
			IsTransfer:        true,
			TransferAccountID: src.ID,
			TransferAccount:   src.Name,
		},
	}
	return plan, nil
}
