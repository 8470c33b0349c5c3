// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Call records one mutation made against a Fake.
type Call struct {
	Op   string // "create" or "delete"
	Spec provider.RecordSpec
	ID   string
}

// Fake is a thread-safe in-memory zone. Hooks run without the lock held, so
// they may inspect the zone.
type Fake struct {
	mu      sync.Mutex
	records []provider.Record
	calls   []Call
	nextID  int

	// CreateErr returns an error for a create of the given record spec, or nil.
	CreateErr func(spec provider.RecordSpec) error
	// DeleteErr returns an error for a delete of the given id, or nil.
	DeleteErr func(id string) error
	// ListErr, when set, is returned by ListRecords.
	ListErr error
	// PingErr, when set, is returned by Ping.
	PingErr error
}

// New returns an empty zone.
func New() *Fake {
	return &Fake{}
}

// Factory returns a provider.Factory handing out fakes keyed by zone id.
// Unknown zones get a fresh Fake which is stored in zones.
func Factory(zones map[string]*Fake) provider.Factory {
	var mu sync.Mutex
	return func(zoneID, _ string) (provider.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		f, ok := zones[zoneID]
		if !ok {
			f = New()
			zones[zoneID] = f
		}
		return f, nil
	}
}

// Seed adds records directly, bypassing hooks and call tracking.
func (f *Fake) Seed(records ...provider.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			f.nextID++
			r.ID = fmt.Sprintf("seed-%d", f.nextID)
		}
		f.records = append(f.records, r)
	}
}

// Records returns a copy of the current zone contents.
func (f *Fake) Records() []provider.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.records)
}

// Calls returns a copy of the recorded mutations.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// Ping implements provider.Client.
func (f *Fake) Ping(context.Context) error {
	return f.PingErr
}

// ListRecords implements provider.Client.
func (f *Fake) ListRecords(_ context.Context, filter provider.Filter) ([]provider.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []provider.Record
	for _, r := range f.records {
		if filter.Name != "" && r.Name != filter.Name {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CreateRecord implements provider.Client. The stored record reflects the
// record spec exactly as received.
func (f *Fake) CreateRecord(_ context.Context, spec provider.RecordSpec) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: "create", Spec: spec})
	hook := f.CreateErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(spec); err != nil {
			return "", err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("rec-%d", f.nextID)
	f.records = append(f.records, provider.Record{
		ID:      id,
		Type:    spec.Type,
		Name:    spec.Name,
		Content: spec.Content,
		Data:    spec.Data,
		Proxied: spec.Proxied,
		TTL:     spec.TTL,
	})
	return id, nil
}

// DeleteRecord implements provider.Client. Unknown ids are rejected with a
// not-found error like the real API.
func (f *Fake) DeleteRecord(_ context.Context, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: "delete", ID: id})
	hook := f.DeleteErr
	f.mu.Unlock()

	if hook != nil {
		if err := hook(id); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := slices.IndexFunc(f.records, func(r provider.Record) bool { return r.ID == id })
	if i < 0 {
		return &provider.RejectedError{
			Operation: "delete record",
			Status:    http.StatusNotFound,
			Codes:     []int{81044},
			Messages:  []string{"Record does not exist."},
		}
	}
	f.records = slices.Delete(f.records, i, i+1)
	return nil
}
