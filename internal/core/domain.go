package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Checking AccountType = "CHECKING"
	Credit   AccountType = "CREDIT"
	Savings  AccountType = "SAVINGS"
	Cash     AccountType = "CASH"
	Asset    AccountType = "ASSET"
	Loan     AccountType = "LOAN"
)

// Goal type identifiers as they travel on the wire and in storage.
const (
	GoalTypeNone          = "NONE"
	GoalTypeMonthly       = "MONTHLY"
	GoalTypeTargetBalance = "TARGET_BALANCE"
	GoalTypeTargetDate    = "TARGET_DATE"
)

type (
	AccountType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Account struct {
		ID        int64
		Name      string
		Type      AccountType
		OffBudget bool
		Balance   Money
		// PaymentCategoryID is the category funding this card's payments (CREDIT only).
		PaymentCategoryID int64
	}

	Group struct {
		ID       int64
		Name     string
		Order    int
		IsActive bool
	}

	// Category is the stored form of an envelope. Goal fields are kept flat, the
	// way the backend exposes them; see package goal for the typed form.
	Category struct {
		ID             int64
		GroupID        int64
		Name           string
		Order          int
		IsActive       bool
		GoalType       string
		GoalAmount     Money
		GoalTargetDate Date
		// PaymentForAccountID links a credit card payment category to its card.
		PaymentForAccountID int64
	}

	// CategoryPatch carries the partial update accepted by PATCH /categories/{id}/.
	// Nil fields are left untouched.
	CategoryPatch struct {
		Name           *string
		IsActive       *bool
		GoalType       *string
		GoalAmount     *Money
		GoalTargetDate *Date
	}

	Transaction struct {
		ID           int64
		Date         Date
		Amount       Money // expenses are negative
		AccountID    int64
		AccountName  string
		CategoryID   int64 // 0 means uncategorized
		CategoryName string
		Payee        string
		Memo         string
		IsTransfer   bool
		IsAdjustment bool
		// TransferPairID and TransferAccountID describe the partner leg of a transfer.
		TransferPairID    int64
		TransferAccountID int64
		TransferAccount   string
	}

	// Payee is a name offered as a suggestion when entering a transaction.
	Payee struct {
		ID   int64 // 0 when the backend derives payees from transactions
		Name string
		// DefaultCategoryID is the category a new transaction for the payee
		// starts with; 0 means none.
		DefaultCategoryID int64
	}

	// TransactionPage is one page of the transaction list.
	TransactionPage struct {
		Results  []Transaction
		Count    int
		Page     int
		HasNext  bool
		HasPrior bool
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrEmptyName          = errors.New("empty name")
	ErrFlagConflict       = errors.New("transaction cannot be both a transfer and an adjustment")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
)

// ValidationError describes a rejected input field. errors.Is(err, ErrValidation)
// holds for every ValidationError.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses an ISO date (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// String formats the date as 2006-01-02; the zero date formats as "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Month returns the budget month containing the date.
func (d Date) Month() Month {
	return MonthOf(d.Time)
}

func (t AccountType) Valid() bool {
	switch t {
	case Checking, Credit, Savings, Cash, Asset, Loan:
		return true
	}
	return false
}

// Liquid reports whether balances of this type count as cash towards Ready to Assign.
func (t AccountType) Liquid() bool {
	return t == Checking || t == Savings || t == Cash
}

// Tracking reports whether the type is always off-budget.
func (t AccountType) Tracking() bool {
	return t == Asset || t == Loan
}

// OnBudget reports whether the account participates in the budget.
func (a Account) OnBudget() bool {
	return !a.OffBudget && !a.Type.Tracking()
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.Valid() {
		return ErrInvalidAccountType
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

// Validate checks the structural rules every stored transaction must satisfy.
func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if t.AccountID <= 0 {
		return Invalid("account", "required")
	}
	if t.IsTransfer && t.IsAdjustment {
		return ErrFlagConflict
	}
	if t.IsAdjustment && t.CategoryID != 0 {
		return Invalid("category", "adjustments are uncategorized")
	}
	if len(t.Memo) > 500 {
		return Invalid("memo", "too long (max 500 characters)")
	}
	return nil
}

// Linked reports whether the transaction is one leg of a transfer pair.
func (t Transaction) Linked() bool {
	return t.TransferPairID != 0
}
