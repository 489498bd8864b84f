package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sobres/internal/core"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultLocale(), p.Locale)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	euro := core.Locale{Symbol: "€", ThousandsSep: ".", DecimalSep: ",", Decimals: 2}

	require.NoError(t, Save(path, Prefs{Locale: euro}))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, euro, p.Locale)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("[locale]\nsymbol = \"£\"\n"), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "£", p.Locale.Symbol)
	assert.Equal(t, ",", p.Locale.DecimalSep)
}

func TestLoadRejectsInvalidLocale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	require.NoError(t, os.WriteFile(path, []byte("[locale]\ndecimals = 7\n"), 0o600))

	p, err := Load(path)
	assert.True(t, errors.Is(err, core.ErrInvalidLocale))
	assert.Equal(t, core.DefaultLocale(), p.Locale)
}

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultLocale(), s.Locale())

	bad := core.Locale{Symbol: "$", ThousandsSep: ",", DecimalSep: ",", Decimals: 2}
	assert.Error(t, s.SetLocale(bad))
	assert.Equal(t, core.DefaultLocale(), s.Locale(), "rejected locale is not applied")

	us := core.Locale{Symbol: "$", ThousandsSep: ",", DecimalSep: ".", Decimals: 2}
	require.NoError(t, s.SetLocale(us))
	assert.Equal(t, us, s.Locale())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, us, reopened.Locale())
}
