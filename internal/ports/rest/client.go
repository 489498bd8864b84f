// Package rest is the HTTP client of the remote ledger backend.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/ports"
	"sobres/internal/reconcile"
)

const (
	maxBodyBytes = 10 << 20
	maxListPages = 100
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Is maps HTTP statuses onto the core sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case core.ErrNotFound:
		return e.Status == http.StatusNotFound
	case core.ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	case core.ErrConflict:
		return e.Status == http.StatusConflict
	}
	return false
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retries    uint64
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client implements ports.Ledger over the backend's REST API.
type Client struct {
	base    *url.URL
	http    *http.Client
	retries uint64
	logger  *log.Logger
}

var _ ports.Ledger = (*Client)(nil)

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.BaseURL)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Client{
		base:    base,
		http:    hc,
		retries: cfg.Retries,
		logger:  logger.WithComponent(log.ComponentREST),
	}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get fetches rawURL, retrying transport failures and 5xx answers.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(200*time.Millisecond))
	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.send(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && !retryable(apiErr.Status) {
				return err
			}
			c.logger.DebugContext(ctx, "Retrying backend read", log.FieldPath, rawURL, log.FieldError, err)
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	return body, err
}

func (c *Client) send(ctx context.Context, method, rawURL string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	c.logger.DebugContext(ctx, "Backend call",
		log.FieldMethod, method,
		log.FieldPath, req.URL.Path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}
	return body, nil
}

// errorMessage pulls {"error": ...} or {"detail": ...} out of an error body.
func errorMessage(status int, body []byte) string {
	var e struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Detail != "" {
			return e.Detail
		}
	}
	return http.StatusText(status)
}

func (c *Client) write(ctx context.Context, method, path string, payload, out any) error {
	body, err := c.send(ctx, method, c.endpoint(path, nil), payload)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// listAll follows next links until the list is exhausted.
func listAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	next := c.endpoint(path, nil)
	var out []T
	for i := 0; next != "" && i < maxListPages; i++ {
		body, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		p, err := decodeList[T](body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		out = append(out, p.Results...)
		next = p.Next
	}
	return out, nil
}

func (c *Client) BudgetSummary(ctx context.Context, month core.Month) (ledger.Snapshot, error) {
	body, err := c.get(ctx, c.endpoint("/api/budget_summary/", url.Values{"month": {month.String()}}))
	if err != nil {
		return ledger.Snapshot{}, err
	}
	var dto summaryDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("decode budget summary: %w", err)
	}
	return dto.toSnapshot(month)
}

func (c *Client) SetAssignment(ctx context.Context, categoryID int64, month core.Month, amount core.Money) error {
	payload := map[string]any{
		"category_id": categoryID,
		"month":       month.String(),
		"amount":      amount,
	}
	return c.write(ctx, http.MethodPost, "/api/budget_assignment/", payload, nil)
}

func (c *Client) ListGroups(ctx context.Context) ([]core.Group, error) {
	dtos, err := listAll[groupDTO](ctx, c, "/api/groups/")
	if err != nil {
		return nil, err
	}
	out := make([]core.Group, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toGroup())
	}
	return out, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	dtos, err := listAll[categoryDTO](ctx, c, "/api/categories/")
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(dtos))
	for _, d := range dtos {
		cat, err := d.toCategory()
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

func (c *Client) ListPayees(ctx context.Context) ([]core.Payee, error) {
	dtos, err := listAll[payeeDTO](ctx, c, "/api/payees/")
	if err != nil {
		return nil, err
	}
	out := make([]core.Payee, 0, len(dtos))
	for _, d := range dtos {
		if d.Name == "" {
			continue
		}
		out = append(out, d.toPayee())
	}
	slices.SortStableFunc(out, func(a, b core.Payee) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int64, patch core.CategoryPatch) (core.Category, error) {
	var dto categoryDTO
	if err := c.write(ctx, http.MethodPatch, "/api/categories/"+strconv.FormatInt(id, 10)+"/", patchDTO(patch), &dto); err != nil {
		return core.Category{}, err
	}
	return dto.toCategory()
}

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	dtos, err := listAll[accountDTO](ctx, c, "/api/accounts/")
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, d.toAccount())
	}
	return out, nil
}

func (c *Client) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	payload := map[string]any{
		"name":         a.Name,
		"account_type": string(a.Type),
		"off_budget":   a.OffBudget,
		"balance":      a.Balance,
	}
	var dto accountDTO
	if err := c.write(ctx, http.MethodPost, "/api/accounts/", payload, &dto); err != nil {
		return core.Account{}, err
	}
	return dto.toAccount(), nil
}

func (c *Client) Reconcile(ctx context.Context, accountID int64, target core.Money) (ports.ReconcileResult, error) {
	var resp struct {
		Adjustment core.Money `json:"adjustment"`
		NewBalance core.Money `json:"new_balance"`
		Balance    core.Money `json:"balance"`
	}
	payload := map[string]string{"target_balance": target.Decimal().String()}
	path := "/api/accounts/" + strconv.FormatInt(accountID, 10) + "/reconcile/"
	if err := c.write(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return ports.ReconcileResult{}, err
	}
	res := ports.ReconcileResult{
		Adjusted:   !resp.Adjustment.IsZero(),
		Delta:      resp.Adjustment,
		NewBalance: resp.NewBalance,
	}
	if !res.Adjusted {
		res.NewBalance = resp.Balance
	}
	return res, nil
}

func (c *Client) ListTransactions(ctx context.Context, pageNum int) (core.TransactionPage, error) {
	if pageNum < 1 {
		pageNum = 1
	}
	body, err := c.get(ctx, c.endpoint("/api/transactions/", url.Values{"page": {strconv.Itoa(pageNum)}}))
	if err != nil {
		return core.TransactionPage{}, err
	}
	trimmed := bytes.TrimSpace(body)
	bare := len(trimmed) > 0 && trimmed[0] == '['
	p, err := decodeList[transactionDTO](body)
	if err != nil {
		return core.TransactionPage{}, fmt.Errorf("decode transactions: %w", err)
	}

	out := core.TransactionPage{Page: pageNum, Count: p.Count, Results: make([]core.Transaction, 0, len(p.Results))}
	if bare && pageNum > 1 {
		// An unpaginated backend has everything on page 1.
		return out, nil
	}
	for _, d := range p.Results {
		tx, err := d.toTransaction()
		if err != nil {
			return core.TransactionPage{}, err
		}
		out.Results = append(out.Results, tx)
	}
	out.HasNext = p.Next != ""
	out.HasPrior = p.Previous != "" || (!bare && pageNum > 1)
	return out, nil
}

func (c *Client) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	payload := newTransactionDTO{
		Date:     tx.Date.String(),
		Payee:    tx.Payee,
		Amount:   tx.Amount,
		Memo:     tx.Memo,
		Account:  tx.AccountID,
		Category: optionalID(tx.CategoryID),
	}
	var dto transactionDTO
	if err := c.write(ctx, http.MethodPost, "/api/transactions/", payload, &dto); err != nil {
		return core.Transaction{}, err
	}
	return dto.toTransaction()
}

func (c *Client) SetTransactionCategory(ctx context.Context, id, categoryID int64) (core.Transaction, error) {
	payload := map[string]*int64{"category": optionalID(categoryID)}
	var dto transactionDTO
	if err := c.write(ctx, http.MethodPatch, "/api/transactions/"+strconv.FormatInt(id, 10)+"/", payload, &dto); err != nil {
		return core.Transaction{}, err
	}
	return dto.toTransaction()
}

// LinkTransfer reports backend rule rejections as reconcile.RuleError.
func (c *Client) LinkTransfer(ctx context.Context, id1, id2 int64) error {
	err := c.write(ctx, http.MethodPost, "/api/transactions/link_transfer/", map[string]int64{"id_1": id1, "id_2": id2}, nil)
	return asRule(err)
}

func (c *Client) UnlinkTransfer(ctx context.Context, id int64) error {
	err := c.write(ctx, http.MethodPost, "/api/transactions/"+strconv.FormatInt(id, 10)+"/unlink_transfer/", struct{}{}, nil)
	return asRule(err)
}

func (c *Client) CreateTransfer(ctx context.Context, req reconcile.TransferRequest) (ports.TransferIDs, error) {
	payload := map[string]any{
		"source_account":      req.SourceAccountID,
		"destination_account": req.DestinationAccountID,
		"amount":              req.Amount.Abs(),
		"date":                req.Date.String(),
		"memo":                req.Memo,
		"category":            optionalID(req.CategoryID),
	}
	var resp struct {
		IDs []int64 `json:"ids"`
	}
	if err := c.write(ctx, http.MethodPost, "/api/transactions/create_transfer/", payload, &resp); err != nil {
		return ports.TransferIDs{}, asRule(err)
	}
	if len(resp.IDs) != 2 {
		return ports.TransferIDs{}, fmt.Errorf("create transfer: expected 2 ids, got %d", len(resp.IDs))
	}
	return ports.TransferIDs{Out: resp.IDs[0], In: resp.IDs[1]}, nil
}

func asRule(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
		return &reconcile.RuleError{Reason: apiErr.Message}
	}
	return err
}
