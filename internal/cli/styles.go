package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"sobres/internal/core"
)

var (
	PositiveColor = lipgloss.Color("#4ECDC4")
	NegativeColor = lipgloss.Color("#FF6B6B")
	SubtleColor   = lipgloss.Color("#666666")
	AccentColor   = lipgloss.Color("86")

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(AccentColor)
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(AccentColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(PositiveColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(NegativeColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)

	// BoxStyle frames the Ready to Assign figure.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SubtleColor).
			Padding(0, 1)
)

// Money renders m with loc, red when negative and dimmed when zero.
func Money(loc core.Locale, m core.Money) string {
	s := loc.Format(m)
	switch {
	case m.IsNegative():
		return ErrorStyle.Render(s)
	case m.IsZero():
		return SubtleStyle.Render(s)
	}
	return s
}

// Table writes aligned rows under a styled header.
type Table struct {
	w    *tabwriter.Writer
	cols int
}

func NewTable(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0), cols: len(headers)}
	styled := make([]string, len(headers))
	rule := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = HeaderStyle.Render(h)
		rule[i] = strings.Repeat("─", max(len(h), 4))
	}
	fmt.Fprintln(t.w, strings.Join(styled, "\t"))
	fmt.Fprintln(t.w, strings.Join(rule, "\t"))
	return t
}

// Row adds one row; missing cells are left blank.
func (t *Table) Row(cells ...any) {
	out := make([]string, t.cols)
	for i := range out {
		if i < len(cells) {
			out[i] = fmt.Sprint(cells[i])
		}
	}
	fmt.Fprintln(t.w, strings.Join(out, "\t"))
}

func (t *Table) Flush() error { return t.w.Flush() }
