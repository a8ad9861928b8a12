// Package store persists submission histories. A Port is a minimal keyed
// byte store; backends cover process memory, a directory of JSON files and
// SQLite. Histories are encoded as JSON arrays of a form's record type.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Port is the storage capability the form controller depends on.
type Port interface {
	// Get returns the payload stored under key. ok is false when nothing is
	// stored.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Set overwrites the payload stored under key.
	Set(ctx context.Context, key string, payload []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Scope decides how long a form's history lives.
type Scope string

const (
	// ScopeSession keeps history for the lifetime of a browsing or terminal
	// session.
	ScopeSession Scope = "session"
	// ScopePersistent keeps history until it is explicitly cleared.
	ScopePersistent Scope = "persistent"
)

// ParseScope validates raw. An empty value maps to ScopePersistent.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeSession:
		return ScopeSession, nil
	case ScopePersistent, "":
		return ScopePersistent, nil
	default:
		return "", fmt.Errorf("store: unknown scope %q", raw)
	}
}

// ErrInvalidKey is returned for blank keys.
var ErrInvalidKey = errors.New("store: key is required")

// StorageError reports a failed read or write against a backend.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// Open returns the persistent backend named by kind: "memory", "file" (path
// is a directory) or "sqlite" (path is a database file). The returned close
// function releases backend resources.
func Open(kind, path string) (Port, func() error, error) {
	noop := func() error { return nil }
	switch kind {
	case "", "memory":
		return NewMemory(), noop, nil
	case "file":
		f, err := NewFile(path)
		if err != nil {
			return nil, nil, err
		}
		return f, noop, nil
	case "sqlite":
		s, err := OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("store: unknown backend %q", kind)
	}
}
