// Package sheets writes a month of the budget to a Google Sheets tab, one tab
// per month, replacing whatever the tab held before.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"sobres/internal/core"
	"sobres/internal/ledger"
	"sobres/internal/log"
	"sobres/internal/sanitize"
)

// DefaultTabBase is the tab name suffix used when none is configured.
const DefaultTabBase = "Budget"

type Config struct {
	SpreadsheetID string
	// CredentialsJSON wins over CredentialsFile when both are set.
	CredentialsJSON string
	CredentialsFile string
	// TabBase names the tabs: "<yyyy-mm> <TabBase>".
	TabBase string
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	tabBase       string
	logger        *log.Logger
}

// New builds an exporter authenticated with a service account. Extra client
// options are appended after the credentials (tests pass an endpoint).
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Exporter, error) {
	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Nop()
	}

	var all []goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		all = append(all, goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		raw, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		all = append(all, goption.WithCredentialsJSON(raw))
	case len(opts) == 0:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}
	all = append(all, goption.WithScopes(gsheet.SpreadsheetsScope))
	all = append(all, opts...)

	svc, err := gsheet.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	base := strings.TrimSpace(cfg.TabBase)
	if base == "" {
		base = DefaultTabBase
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: id,
		tabBase:       base,
		logger:        logger.WithComponent(log.ComponentExport),
	}, nil
}

// TabName is the tab a month is exported to.
func (e *Exporter) TabName(month core.Month) string {
	return month.Key() + " " + e.tabBase
}

// ExportMonth writes snap to its month tab, creating the tab when missing.
// It returns the range that was written.
func (e *Exporter) ExportMonth(ctx context.Context, snap ledger.Snapshot, loc core.Locale) (string, error) {
	if snap.Month.IsZero() {
		return "", core.Invalid("month", "is required")
	}
	tab := e.TabName(snap.Month)

	if err := e.ensureTab(ctx, tab); err != nil {
		return "", err
	}

	all := quoteTab(tab)
	if _, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", tab, err)
	}

	rows := Rows(snap, loc)
	rng := fmt.Sprintf("%s!A1:G%d", quoteTab(tab), len(rows))
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", rng, err)
	}

	written := rng
	if resp != nil && resp.UpdatedRange != "" {
		written = resp.UpdatedRange
	}
	e.logger.InfoContext(ctx, "Month exported",
		log.FieldOperation, log.OpExport, log.FieldMonth, snap.Month.Key(), "range", written, "rows", len(rows))
	return written, nil
}

func (e *Exporter) ensureTab(ctx context.Context, tab string) error {
	ss, err := e.svc.Spreadsheets.Get(e.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == tab {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
	}}}
	if _, err := e.svc.Spreadsheets.BatchUpdate(e.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %s: %w", tab, err)
	}
	e.logger.DebugContext(ctx, "Tab created", log.FieldOperation, log.OpExport, "tab", tab)
	return nil
}

// Rows lays the month out as sheet rows: a heading block, one row per
// category grouped by category group, then totals. Amounts are numbers so the
// sheet can sum them; text cells are guarded against formula injection.
func Rows(snap ledger.Snapshot, loc core.Locale) [][]any {
	rows := [][]any{
		{"Month", snap.Month.Key()},
		{"Ready to Assign", amount(snap.ReadyToAssign)},
		{},
		{"Group", "Category", "Assigned", "Activity", "Available", "Goal", "Goal status"},
	}
	for _, g := range snap.Groups {
		for _, c := range g.Categories {
			goalKind, status := "", ""
			if c.Goal.Active() {
				goalKind = c.Goal.Kind
				status = c.GoalMessage
				if status == "" {
					status = c.Goal.Message(loc)
				}
			}
			rows = append(rows, []any{
				sanitize.Cell(g.Name),
				sanitize.Cell(c.Name),
				amount(c.Assigned),
				amount(c.Activity),
				amount(c.Available),
				goalKind,
				sanitize.Cell(status),
			})
		}
	}
	rows = append(rows, []any{}, []any{
		"Total", "",
		amount(snap.Totals.Assigned),
		amount(snap.Totals.Activity),
		amount(snap.Totals.Available),
	})
	return rows
}

func amount(m core.Money) float64 {
	f, _ := strconv.ParseFloat(m.Decimal().StringFixed(2), 64)
	return f
}

// quoteTab quotes a tab name for A1 notation.
func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
