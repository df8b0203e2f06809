// Package memory is an in-process token store backend.
package memory

import (
	"context"
	"sync"
)

// Backend keeps values in a mutex-guarded map.
type Backend struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{values: make(map[string]string)}
}

func (b *Backend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.values[key]
	return v, ok, nil
}

func (b *Backend) SetAll(_ context.Context, values map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range values {
		b.values[k] = v
	}
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.values, k)
	}
	return nil
}

// Len returns the number of stored keys.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}
