package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "ID", "Name", "Balance")
	tbl.Row(1, "Checking", "$ 10.00")
	tbl.Row(2, "Cash")
	require.NoError(t, tbl.Flush())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Name")
	assert.Contains(t, lines[1], "────")
	assert.Contains(t, lines[2], "Checking")
	assert.Contains(t, lines[2], "$ 10.00")
	assert.Contains(t, lines[3], "Cash")
}

func TestMoneyKeepsFormattedText(t *testing.T) {
	loc := core.Locale{Symbol: "$", ThousandsSep: ",", DecimalSep: ".", Decimals: 2}
	assert.Contains(t, Money(loc, core.Money{Cents: -123456}), "$ -1,234.56")
	assert.Contains(t, Money(loc, core.Money{}), "$ 0.00")
	assert.Contains(t, Money(loc, core.Units(5)), "$ 5.00")
}
