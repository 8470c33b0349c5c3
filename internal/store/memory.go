package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]byte

	// WriteErr, when set, is returned by every Write.
	WriteErr error
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[string][]byte)}
}

// Read implements Backend.
func (b *MemoryBackend) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, ok := b.docs[name]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// Write implements Backend.
func (b *MemoryBackend) Write(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.WriteErr != nil {
		return b.WriteErr
	}
	b.docs[name] = append([]byte(nil), data...)
	return nil
}

// Ping implements Backend.
func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error {
	return nil
}
