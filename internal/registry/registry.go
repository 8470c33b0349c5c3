// Package registry holds the configured domains and the access policy.
//
// Both live in the settings document. Every mutation reads, modifies and
// writes the whole document under one process-wide mutex, and the document is
// re-read on each call so edits made by another process are picked up on the
// next command.
package registry

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync"

	"gitlab.bluewillows.net/root/dnsbot/internal/store"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Registry errors.
var (
	ErrUnknownDomain   = errors.New("unknown domain")
	ErrDuplicateDomain = errors.New("domain already registered")
	ErrInvalidDomain   = errors.New("invalid domain name")
)

// Domain is a configured zone. Credential never leaves this package.
type Domain struct {
	Name       string `json:"name"`
	ZoneID     string `json:"zoneId"`
	Credential string `json:"token"`
}

// Settings is the persisted settings document.
type Settings struct {
	Owners         []string `json:"owners"`
	RequiredRoleID string   `json:"requiredRoleId,omitempty"`
	DNSLocked      bool     `json:"dnsLocked"`
	Domains        []Domain `json:"domains"`
}

// DomainInfo is the public view of a Domain.
type DomainInfo struct {
	Name string
}

// Registry manages the settings document.
type Registry struct {
	mu      sync.Mutex
	doc     *store.JSON[Settings]
	factory provider.Factory
	logger  *slog.Logger
}

// Option is a functional option for configuring the Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Registry backed by the given settings document.
func New(doc *store.JSON[Settings], factory provider.Factory, opts ...Option) *Registry {
	r := &Registry{
		doc:     doc,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// update runs fn on a fresh copy of the settings and saves the result if fn
// succeeds.
func (r *Registry) update(ctx context.Context, fn func(*Settings) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.doc.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}
	return r.doc.Save(ctx, s)
}

func (r *Registry) load(ctx context.Context) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Load(ctx)
}

func findDomain(s *Settings, name string) int {
	return slices.IndexFunc(s.Domains, func(d Domain) bool { return d.Name == name })
}

// AddDomain registers a zone under name.
func (r *Registry) AddDomain(ctx context.Context, name, zoneID, credential string) (DomainInfo, error) {
	canonical, err := NormalizeDomain(name)
	if err != nil {
		return DomainInfo{}, err
	}
	if zoneID == "" || credential == "" {
		return DomainInfo{}, fmt.Errorf("%w: zone id and token are required", ErrInvalidDomain)
	}

	err = r.update(ctx, func(s *Settings) error {
		if findDomain(s, canonical) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateDomain, canonical)
		}
		s.Domains = append(s.Domains, Domain{Name: canonical, ZoneID: zoneID, Credential: credential})
		return nil
	})
	if err != nil {
		return DomainInfo{}, err
	}

	r.logger.Info("domain added", slog.String("domain", canonical))
	return DomainInfo{Name: canonical}, nil
}

// RemoveDomain unregisters a domain. Records under it are left alone.
func (r *Registry) RemoveDomain(ctx context.Context, name string) error {
	canonical, err := NormalizeDomain(name)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}

	err = r.update(ctx, func(s *Settings) error {
		i := findDomain(s, canonical)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownDomain, canonical)
		}
		s.Domains = slices.Delete(s.Domains, i, i+1)
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("domain removed", slog.String("domain", canonical))
	return nil
}

// Lookup returns the domain registered under name.
func (r *Registry) Lookup(ctx context.Context, name string) (DomainInfo, error) {
	canonical, err := NormalizeDomain(name)
	if err != nil {
		return DomainInfo{}, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	s, err := r.load(ctx)
	if err != nil {
		return DomainInfo{}, err
	}
	if findDomain(&s, canonical) < 0 {
		return DomainInfo{}, fmt.Errorf("%w: %s", ErrUnknownDomain, canonical)
	}
	return DomainInfo{Name: canonical}, nil
}

// Domains yields the registered domains in registration order. The settings
// are read when iteration starts, so the sequence can be ranged over again to
// see later changes. A read failure is logged and yields nothing.
func (r *Registry) Domains(ctx context.Context) iter.Seq[DomainInfo] {
	return func(yield func(DomainInfo) bool) {
		s, err := r.load(ctx)
		if err != nil {
			r.logger.Error("failed to read domains", slog.String("error", err.Error()))
			return
		}
		for _, d := range s.Domains {
			if !yield(DomainInfo{Name: d.Name}) {
				return
			}
		}
	}
}

// Client returns a provider client scoped to the domain's zone.
func (r *Registry) Client(ctx context.Context, name string) (provider.Client, error) {
	canonical, err := NormalizeDomain(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, name)
	}
	s, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	i := findDomain(&s, canonical)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, canonical)
	}
	d := s.Domains[i]

	client, err := r.factory(d.ZoneID, d.Credential)
	if err != nil {
		return nil, fmt.Errorf("building client for %s: %w", canonical, err)
	}
	return client, nil
}

// Policy returns the current access policy.
func (r *Registry) Policy(ctx context.Context) (Policy, error) {
	s, err := r.load(ctx)
	if err != nil {
		return Policy{}, err
	}
	return newPolicy(s), nil
}

// SetLocked persists the creation lock.
func (r *Registry) SetLocked(ctx context.Context, locked bool) error {
	err := r.update(ctx, func(s *Settings) error {
		s.DNSLocked = locked
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("dns creation lock changed", slog.Bool("locked", locked))
	return nil
}

// Seed fills owners and the required role from configuration when the stored
// settings have none. Stored values always win.
func (r *Registry) Seed(ctx context.Context, owners []string, roleID string) error {
	return r.update(ctx, func(s *Settings) error {
		if len(s.Owners) == 0 && len(owners) > 0 {
			s.Owners = slices.Clone(owners)
		}
		if s.RequiredRoleID == "" {
			s.RequiredRoleID = roleID
		}
		if s.Domains == nil {
			s.Domains = []Domain{}
		}
		return nil
	})
}

// Ping checks that the settings document can be read.
func (r *Registry) Ping(ctx context.Context) error {
	_, err := r.load(ctx)
	return err
}
