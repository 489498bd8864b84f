// Package prefs persists user display preferences in a TOML file.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"sobres/internal/core"
)

// Prefs is the on-disk preferences document.
type Prefs struct {
	Locale core.Locale `toml:"locale"`
}

func Default() Prefs {
	return Prefs{Locale: core.DefaultLocale()}
}

// Load reads the file at path, returning defaults if it doesn't exist.
func Load(path string) (Prefs, error) {
	p := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("reading preferences: %w", err)
	}
	if _, err := toml.Decode(string(data), &p); err != nil {
		return Default(), fmt.Errorf("parsing preferences: %w", err)
	}
	if err := p.Locale.Validate(); err != nil {
		return Default(), fmt.Errorf("preferences: %w", err)
	}
	return p, nil
}

// Save writes p to path, creating the directory if needed.
func Save(path string, p Prefs) error {
	if err := p.Locale.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating preferences dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating preferences file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(p)
}

// Store keeps the current locale in memory and writes changes through to disk.
type Store struct {
	path string

	mu     sync.RWMutex
	locale core.Locale
}

// Open loads the preferences at path. A corrupt file yields defaults and the
// parse error, so callers can log it and carry on.
func Open(path string) (*Store, error) {
	p, err := Load(path)
	return &Store{path: path, locale: p.Locale}, err
}

func (s *Store) Locale() core.Locale {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.locale
}

func (s *Store) SetLocale(l core.Locale) error {
	if err := Save(s.path, Prefs{Locale: l}); err != nil {
		return err
	}
	s.mu.Lock()
	s.locale = l
	s.mu.Unlock()
	return nil
}

func (s *Store) Path() string { return s.path }
