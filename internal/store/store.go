// Package store persists the bot's JSON state documents.
//
// Two documents exist: the settings document (access policy and domains) and
// the ledger document (records created through the bot). Each is read and
// written as a whole; callers serialise their own read-modify-write cycles.
package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known document names.
const (
	SettingsDocument = "settings"
	LedgerDocument   = "ledger"
)

// Backend stores opaque documents by name.
type Backend interface {
	// Read returns the document bytes, or nil if the document does not exist.
	Read(ctx context.Context, name string) ([]byte, error)

	// Write replaces the document atomically.
	Write(ctx context.Context, name string, data []byte) error

	// Ping checks the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// JSON is a typed view of one document in a Backend.
type JSON[T any] struct {
	backend Backend
	name    string
}

// NewJSON returns a typed document handle.
func NewJSON[T any](backend Backend, name string) *JSON[T] {
	return &JSON[T]{backend: backend, name: name}
}

// Name returns the document name.
func (d *JSON[T]) Name() string {
	return d.name
}

// Load reads the document. A missing document yields the zero value.
func (d *JSON[T]) Load(ctx context.Context) (T, error) {
	var v T
	data, err := d.backend.Read(ctx, d.name)
	if err != nil {
		return v, fmt.Errorf("reading %s: %w", d.name, err)
	}
	if len(data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decoding %s: %w", d.name, err)
	}
	return v, nil
}

// Save writes the whole document.
func (d *JSON[T]) Save(ctx context.Context, v T) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", d.name, err)
	}
	if err := d.backend.Write(ctx, d.name, data); err != nil {
		return fmt.Errorf("writing %s: %w", d.name, err)
	}
	return nil
}
