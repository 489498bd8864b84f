package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
)

func TestResolveMonth(t *testing.T) {
	m, err := resolveMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", m.Key())

	m, err = resolveMonth("")
	require.NoError(t, err)
	assert.Equal(t, core.CurrentMonth(time.Now()).Key(), m.Key())

	_, err = resolveMonth("March")
	assert.Error(t, err)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42", "category_id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"0", "-3", "abc", ""} {
		_, err := parseID(raw, "category_id")
		assert.ErrorIs(t, err, core.ErrValidation, raw)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"budget", "assign", "goal", "accounts", "reconcile", "transactions", "link", "unlink", "transfer", "prefs", "export"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}
