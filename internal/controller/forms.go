package controller

import (
	"errors"

	"sobres/internal/core"
	"sobres/internal/sanitize"
	"sobres/internal/validate"
)

// AssignInput is the raw assignment form.
type AssignInput struct {
	Month      string `validate:"required,month"`
	CategoryID int64  `validate:"gt=0"`
	Amount     string `validate:"notblank"`
}

// ReconcileInput is the raw reconcile form.
type ReconcileInput struct {
	AccountID int64  `validate:"gt=0"`
	Target    string `validate:"notblank"`
}

// AccountInput is the raw new-account form.
type AccountInput struct {
	Name      string `validate:"notblank,max=200"`
	Type      string `validate:"required,oneof=CHECKING CREDIT SAVINGS CASH ASSET LOAN"`
	OffBudget bool
	Balance   string
}

// TransactionInput is the raw new-transaction form.
type TransactionInput struct {
	AccountID  int64  `validate:"gt=0"`
	Date       string `validate:"required,isodate"`
	Amount     string `validate:"notblank"`
	Payee      string `validate:"max=200"`
	Memo       string `validate:"max=500"`
	CategoryID int64  `validate:"gte=0"`
}

func parseAssign(in AssignInput, loc core.Locale) (core.Month, core.Money, error) {
	if err := validate.Struct(in); err != nil {
		return core.Month{}, core.Money{}, err
	}
	month, err := core.ParseMonth(in.Month)
	if err != nil {
		return core.Month{}, core.Money{}, core.Invalid("month", "must be a month (YYYY-MM)")
	}
	amount, err := core.ParseAmount(in.Amount, loc)
	if err != nil {
		return core.Month{}, core.Money{}, core.Invalid("amount", "is not a valid amount")
	}
	return month, amount, nil
}

func parseAccount(in AccountInput, loc core.Locale) (core.Account, error) {
	if err := validate.Struct(in); err != nil {
		return core.Account{}, err
	}
	a := core.Account{
		Name:      sanitize.Text(in.Name),
		Type:      core.AccountType(in.Type),
		OffBudget: in.OffBudget,
	}
	if in.Balance != "" {
		bal, err := core.ParseAmount(in.Balance, loc)
		if err != nil {
			return core.Account{}, core.Invalid("balance", "is not a valid amount")
		}
		a.Balance = bal
	}
	return a, invalid("account", a.Validate())
}

func parseTransaction(in TransactionInput, loc core.Locale) (core.Transaction, error) {
	if err := validate.Struct(in); err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(in.Amount, loc)
	if err != nil {
		return core.Transaction{}, core.Invalid("amount", "is not a valid amount")
	}
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Transaction{}, core.Invalid("date", "must be a date (YYYY-MM-DD)")
	}
	tx := core.Transaction{
		Date:       date,
		Amount:     amount,
		AccountID:  in.AccountID,
		CategoryID: in.CategoryID,
		Payee:      sanitize.Text(in.Payee),
		Memo:       sanitize.Text(in.Memo),
	}
	return tx, invalid("transaction", tx.Validate())
}

// invalid reports err as a validation error on field unless it already is one.
func invalid(field string, err error) error {
	if err == nil || errors.Is(err, core.ErrValidation) {
		return err
	}
	return core.Invalid(field, err.Error())
}
