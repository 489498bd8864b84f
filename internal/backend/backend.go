// Package backend picks and builds the ports.Ledger sobres runs against.
package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"sobres/internal/ports"
)

type BackendType string

const (
	RESTBackend   BackendType = "rest"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

var backendTypes = []BackendType{RESTBackend, SQLiteBackend, MemoryBackend}

func (bt BackendType) String() string { return string(bt) }

func (bt BackendType) IsValid() bool {
	for _, known := range backendTypes {
		if bt == known {
			return true
		}
	}
	return false
}

// typeNames lists the accepted DATA_BACKEND values for error messages.
func typeNames() string {
	names := make([]string, len(backendTypes))
	for i, bt := range backendTypes {
		names[i] = bt.String()
	}
	return strings.Join(names, ", ")
}

// Config is the subset of the application config a backend needs.
type Config struct {
	Type BackendType

	APIURL     string
	APITimeout time.Duration
	APIRetries int

	SQLiteDBPath string
	AMQPURL      string // optional change notifications for the sqlite backend
	AMQPExchange string
	AMQPQueue    string

	DataDirectory string // memory backend seed files
	CarryPolicy   string
}

// BackendResult owns the ledger and whatever it holds open.
type BackendResult struct {
	Ledger  ports.Ledger
	closers []func() error
}

func (r *BackendResult) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (r *BackendResult) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}
