package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"sobres/internal/core"
	"sobres/internal/ledger"
)

// Wire shapes of the backend. Ids of optional relations arrive as null.

type summaryDTO struct {
	Month         string        `json:"month"`
	ReadyToAssign core.Money    `json:"ready_to_assign"`
	Groups        []groupSumDTO `json:"groups"`
	Totals        struct {
		Assigned  core.Money `json:"assigned"`
		Activity  core.Money `json:"activity"`
		Available core.Money `json:"available"`
	} `json:"totals"`
}

type groupSumDTO struct {
	GroupID    int64       `json:"group_id"`
	GroupName  string      `json:"group_name"`
	Categories []catSumDTO `json:"categories"`
}

type catSumDTO struct {
	CategoryID   int64      `json:"category_id"`
	CategoryName string     `json:"category_name"`
	Assigned     core.Money `json:"assigned"`
	Activity     core.Money `json:"activity"`
	Available    core.Money `json:"available"`
	Goal         *goalDTO   `json:"goal"`
}

type goalDTO struct {
	Type       string     `json:"type"`
	IsMet      bool       `json:"is_met"`
	Percentage number     `json:"percentage"`
	Required   core.Money `json:"required"`
	Target     core.Money `json:"target"`
	Message    string     `json:"message"`
}

// number accepts a JSON number or numeric string.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q: %w", s, err)
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

// percent clamps to 0..100 before converting; out of range floats have no
// defined int conversion.
func (n number) percent() int {
	f := float64(n)
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Min(math.Max(f, 0), 100))
}

func (d summaryDTO) toSnapshot(fallback core.Month) (ledger.Snapshot, error) {
	month := fallback
	if d.Month != "" {
		m, err := core.ParseMonth(d.Month)
		if err != nil {
			return ledger.Snapshot{}, fmt.Errorf("summary month: %w", err)
		}
		month = m
	}
	snap := ledger.Snapshot{
		Month:         month,
		ReadyToAssign: d.ReadyToAssign,
		Totals: ledger.Totals{
			Assigned:  d.Totals.Assigned,
			Activity:  d.Totals.Activity,
			Available: d.Totals.Available,
		},
	}
	for _, g := range d.Groups {
		gs := ledger.GroupSummary{GroupID: g.GroupID, Name: g.GroupName, Categories: []ledger.CategorySummary{}}
		for _, c := range g.Categories {
			cs := ledger.CategorySummary{
				CategoryID: c.CategoryID,
				Name:       c.CategoryName,
				Assigned:   c.Assigned,
				Activity:   c.Activity,
				Available:  c.Available,
			}
			cs.Goal.Kind = core.GoalTypeNone
			cs.Goal.Overspent = c.Available.IsNegative()
			if c.Goal != nil {
				cs.Goal.Kind = c.Goal.Type
				if cs.Goal.Kind == "" {
					cs.Goal.Kind = core.GoalTypeNone
				}
				cs.Goal.IsMet = c.Goal.IsMet
				cs.Goal.Percentage = c.Goal.Percentage.percent()
				cs.Goal.Required = c.Goal.Required
				cs.Goal.Target = c.Goal.Target
				cs.GoalMessage = c.Goal.Message
			}
			gs.Categories = append(gs.Categories, cs)
		}
		snap.Groups = append(snap.Groups, gs)
	}
	return snap, nil
}

type accountDTO struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	AccountType     string     `json:"account_type"`
	OffBudget       bool       `json:"off_budget"`
	CurrentBalance  core.Money `json:"current_balance"`
	PaymentCategory *int64     `json:"payment_category"`
}

func (d accountDTO) toAccount() core.Account {
	return core.Account{
		ID:                d.ID,
		Name:              d.Name,
		Type:              core.AccountType(d.AccountType),
		OffBudget:         d.OffBudget,
		Balance:           d.CurrentBalance,
		PaymentCategoryID: deref(d.PaymentCategory),
	}
}

type groupDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
	IsActive *bool  `json:"is_active"`
}

func (d groupDTO) toGroup() core.Group {
	return core.Group{ID: d.ID, Name: d.Name, Order: d.Order, IsActive: d.IsActive == nil || *d.IsActive}
}

type categoryDTO struct {
	ID             int64      `json:"id"`
	Group          *int64     `json:"group"`
	Name           string     `json:"name"`
	Order          int        `json:"order"`
	IsActive       *bool      `json:"is_active"`
	GoalType       string     `json:"goal_type"`
	GoalAmount     core.Money `json:"goal_amount"`
	GoalTargetDate *string    `json:"goal_target_date"`
	PaymentFor     *int64     `json:"payment_for_account"`
}

func (d categoryDTO) toCategory() (core.Category, error) {
	c := core.Category{
		ID:                  d.ID,
		GroupID:             deref(d.Group),
		Name:                d.Name,
		Order:               d.Order,
		IsActive:            d.IsActive == nil || *d.IsActive,
		GoalType:            d.GoalType,
		GoalAmount:          d.GoalAmount,
		PaymentForAccountID: deref(d.PaymentFor),
	}
	if c.GoalType == "" {
		c.GoalType = core.GoalTypeNone
	}
	if d.GoalTargetDate != nil && *d.GoalTargetDate != "" {
		date, err := core.ParseDate(*d.GoalTargetDate)
		if err != nil {
			return core.Category{}, fmt.Errorf("category %d goal date: %w", d.ID, err)
		}
		c.GoalTargetDate = date
	}
	return c, nil
}

type payeeDTO struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DefaultCategory *int64 `json:"default_category"`
}

func (d payeeDTO) toPayee() core.Payee {
	return core.Payee{ID: d.ID, Name: d.Name, DefaultCategoryID: deref(d.DefaultCategory)}
}

// categoryPatchDTO omits nil fields so PATCH only touches what changed.
type categoryPatchDTO struct {
	Name           *string     `json:"name,omitempty"`
	IsActive       *bool       `json:"is_active,omitempty"`
	GoalType       *string     `json:"goal_type,omitempty"`
	GoalAmount     *core.Money `json:"goal_amount,omitempty"`
	GoalTargetDate *string     `json:"goal_target_date,omitempty"`
}

func patchDTO(p core.CategoryPatch) categoryPatchDTO {
	d := categoryPatchDTO{
		Name:       p.Name,
		IsActive:   p.IsActive,
		GoalType:   p.GoalType,
		GoalAmount: p.GoalAmount,
	}
	if p.GoalTargetDate != nil {
		s := ""
		if !p.GoalTargetDate.IsZero() {
			s = p.GoalTargetDate.String()
		}
		d.GoalTargetDate = &s
	}
	return d
}

type transactionDTO struct {
	ID              int64      `json:"id"`
	Date            string     `json:"date"`
	Payee           string     `json:"payee"`
	Amount          core.Money `json:"amount"`
	Memo            *string    `json:"memo"`
	Account         int64      `json:"account"`
	AccountName     string     `json:"account_name"`
	Category        *int64     `json:"category"`
	CategoryName    *string    `json:"category_name"`
	IsTransfer      bool       `json:"is_transfer"`
	IsAdjustment    bool       `json:"is_adjustment"`
	TransferPair    *int64     `json:"transfer_pair"`
	TransferAccount *int64     `json:"transfer_account"`
	TransferName    *string    `json:"transfer_account_name"`
}

func (d transactionDTO) toTransaction() (core.Transaction, error) {
	date, err := core.ParseDate(d.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date: %w", d.ID, err)
	}
	return core.Transaction{
		ID:                d.ID,
		Date:              date,
		Amount:            d.Amount,
		AccountID:         d.Account,
		AccountName:       d.AccountName,
		CategoryID:        deref(d.Category),
		CategoryName:      deref(d.CategoryName),
		Payee:             d.Payee,
		Memo:              deref(d.Memo),
		IsTransfer:        d.IsTransfer,
		IsAdjustment:      d.IsAdjustment,
		TransferPairID:    deref(d.TransferPair),
		TransferAccountID: deref(d.TransferAccount),
		TransferAccount:   deref(d.TransferName),
	}, nil
}

type newTransactionDTO struct {
	Date     string     `json:"date"`
	Payee    string     `json:"payee"`
	Amount   core.Money `json:"amount"`
	Memo     string     `json:"memo"`
	Account  int64      `json:"account"`
	Category *int64     `json:"category"`
}

func optionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// page is the paginated list envelope.
type page[T any] struct {
	Results  []T    `json:"results"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
	Count    int    `json:"count"`
}

// decodeList accepts either the envelope or a bare array.
func decodeList[T any](body []byte) (page[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var items []T
		if err := json.Unmarshal(body, &items); err != nil {
			return page[T]{}, err
		}
		return page[T]{Results: items, Count: len(items)}, nil
	}
	var p page[T]
	if err := json.Unmarshal(body, &p); err != nil {
		return page[T]{}, err
	}
	if p.Count == 0 {
		p.Count = len(p.Results)
	}
	return p, nil
}
