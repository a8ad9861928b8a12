package store

import (
	"context"
	"sync"
	"time"
)

// Memory keeps payloads in process memory. It backs session-scoped history.
// With an idle TTL, keys untouched for longer than the TTL are dropped.
type Memory struct {
	mu        sync.RWMutex
	items     map[string][]byte
	touched   map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithIdleTTL expires keys that were neither read nor written for ttl.
// Zero keeps keys for the life of the process.
func WithIdleTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMemoryClock replaces time.Now for expiry decisions.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory returns an empty Memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:   make(map[string][]byte),
		touched: make(map[string]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	payload, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	m.touched[key] = now
	return append([]byte(nil), payload...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.sweep(now)
	m.items[key] = append([]byte(nil), payload...)
	m.touched[key] = now
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.items, key)
	delete(m.touched, key)
	m.mu.Unlock()
	return nil
}

// Keys returns the stored keys. Intended for tests and diagnostics.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		keys = append(keys, key)
	}
	return keys
}

// sweep drops idle keys, at most once per tenth of the TTL. Callers hold mu.
func (m *Memory) sweep(now time.Time) {
	if m.ttl <= 0 || now.Sub(m.lastSweep) < m.ttl/10 {
		return
	}
	m.lastSweep = now
	for key, at := range m.touched {
		if now.Sub(at) > m.ttl {
			delete(m.items, key)
			delete(m.touched, key)
		}
	}
}
