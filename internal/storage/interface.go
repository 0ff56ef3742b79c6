package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned by readers for an unknown run ID
var ErrRunNotFound = errors.New("run not found")

// ResultStore persists completed runs. StoreRun returns a backend-specific
// location for the stored run (a path, a key or the run ID).
type ResultStore interface {
	Name() string
	StoreRun(ctx context.Context, r *Run) (string, error)
	Close() error
}

// RunReader is implemented by stores that can load runs back
type RunReader interface {
	LoadRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]RunInfo, error)
}

// RunInfo summarises a stored run without its snapshots
type RunInfo struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	Algorithm string `json:"algorithm"`
	Interval  int    `json:"interval"`
	Steps     int    `json:"steps"`
}

// Multi stores a run in every wrapped store
type Multi struct {
	stores []ResultStore
}

// NewMulti wraps stores. Nil entries are skipped.
func NewMulti(stores ...ResultStore) *Multi {
	m := &Multi{}
	for _, s := range stores {
		if s != nil {
			m.stores = append(m.stores, s)
		}
	}
	return m
}

func (m *Multi) Name() string { return "multi" }

// Len is the number of wrapped stores
func (m *Multi) Len() int { return len(m.stores) }

// Stores returns the wrapped stores
func (m *Multi) Stores() []ResultStore { return m.stores }

// StoreRun writes to every store, continuing past failures. The returned
// location is the first successful one; errors from all failing stores are
// joined.
func (m *Multi) StoreRun(ctx context.Context, r *Run) (string, error) {
	var (
		first string
		errs  []error
	)
	for _, s := range m.stores {
		loc, err := s.StoreRun(ctx, r)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		if first == "" {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}

// Close closes every store and joins the errors
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Reader returns the first wrapped store that can load runs back
func (m *Multi) Reader() (RunReader, bool) {
	for _, s := range m.stores {
		if r, ok := s.(RunReader); ok {
			return r, true
		}
	}
	return nil, false
}
