// Package ledger tracks which user created which DNS record through the bot.
//
// The ledger is the source of truth for ownership and quotas. Remote record
// ids are kept for reference only: removals always look records up again by
// name because the zone can change outside the bot.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/store"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// DefaultQuota is the per-user record limit.
const DefaultQuota = 5

// TypeMinecraft is the composite kind backed by an A and an SRV record.
const TypeMinecraft = "MINECRAFT"

// Ledger errors.
var (
	ErrQuotaExceeded   = errors.New("record quota exceeded")
	ErrNameClaimed     = errors.New("name already claimed")
	ErrNotOwned        = errors.New("record not owned by user")
	ErrIndexOutOfRange = errors.New("record index out of range")
)

// Part is one remote record created for a ManagedRecord.
type Part struct {
	Type     provider.RecordType `json:"type"`
	Name     string              `json:"name"`
	Content  string              `json:"content,omitempty"`
	RemoteID string              `json:"remoteId,omitempty"`
}

// ManagedRecord is a record created by a user through the bot.
type ManagedRecord struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Owner      string    `json:"owner"`
	Domain     string    `json:"domain"`
	CreatedAt  time.Time `json:"createdAt"`
	Parts      []Part    `json:"parts,omitempty"`
	Incomplete bool      `json:"incomplete,omitempty"`
}

// Composite reports whether the record spans more than one remote record.
func (r ManagedRecord) Composite() bool {
	return r.Type == TypeMinecraft
}

// Document is the persisted ledger: user id to records in creation order.
type Document map[string][]ManagedRecord

// Ledger manages the ledger document.
type Ledger struct {
	mu     sync.Mutex
	doc    *store.JSON[Document]
	quota  int
	logger *slog.Logger
}

// Option is a functional option for configuring the Ledger.
type Option func(*Ledger)

// WithQuota sets the per-user limit. Non-positive values keep the default.
func WithQuota(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.quota = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a Ledger backed by doc.
func New(doc *store.JSON[Document], opts ...Option) *Ledger {
	l := &Ledger{
		doc:    doc,
		quota:  DefaultQuota,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Quota returns the per-user limit.
func (l *Ledger) Quota() int {
	return l.quota
}

func (l *Ledger) load(ctx context.Context) (Document, error) {
	d, err := l.doc.Load(ctx)
	if err != nil {
		return nil, err
	}
	if d == nil {
		d = Document{}
	}
	return d, nil
}

func (l *Ledger) update(ctx context.Context, fn func(Document) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, err := l.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return l.doc.Save(ctx, d)
}

func (l *Ledger) read(ctx context.Context) (Document, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

// CanCreate reports whether user is below the quota.
func (l *Ledger) CanCreate(ctx context.Context, user string) (bool, error) {
	d, err := l.read(ctx)
	if err != nil {
		return false, err
	}
	return len(d[user]) < l.quota, nil
}

// RecordCreated appends rec to user's records. The quota and name checks are
// repeated inside the critical section.
func (l *Ledger) RecordCreated(ctx context.Context, user string, rec ManagedRecord) error {
	rec.Owner = user
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	err := l.update(ctx, func(d Document) error {
		if len(d[user]) >= l.quota {
			return fmt.Errorf("%w: %d of %d used", ErrQuotaExceeded, len(d[user]), l.quota)
		}
		if owner, ok := claimant(d, rec.Domain, rec.Name); ok {
			return fmt.Errorf("%w: %s is held by %s", ErrNameClaimed, rec.Name, owner)
		}
		d[user] = append(d[user], rec)
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("ledger record added",
		slog.String("user", user),
		slog.String("name", rec.Name),
		slog.String("type", rec.Type),
		slog.Bool("incomplete", rec.Incomplete),
	)
	return nil
}

// RecordRemoved deletes user's record named fqdn.
func (l *Ledger) RecordRemoved(ctx context.Context, user, fqdn string) error {
	err := l.update(ctx, func(d Document) error {
		recs := d[user]
		i := slices.IndexFunc(recs, func(r ManagedRecord) bool { return r.Name == fqdn })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotOwned, fqdn)
		}
		recs = slices.Delete(recs, i, i+1)
		if len(recs) == 0 {
			delete(d, user)
		} else {
			d[user] = recs
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("ledger record removed", slog.String("user", user), slog.String("name", fqdn))
	return nil
}

// ListFor returns user's records in creation order.
func (l *Ledger) ListFor(ctx context.Context, user string) ([]ManagedRecord, error) {
	d, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(d[user]), nil
}

// Lookup returns user's record named fqdn.
func (l *Ledger) Lookup(ctx context.Context, user, fqdn string) (ManagedRecord, error) {
	recs, err := l.ListFor(ctx, user)
	if err != nil {
		return ManagedRecord{}, err
	}
	i := slices.IndexFunc(recs, func(r ManagedRecord) bool { return r.Name == fqdn })
	if i < 0 {
		return ManagedRecord{}, fmt.Errorf("%w: %s", ErrNotOwned, fqdn)
	}
	return recs[i], nil
}

// At returns user's index-th record, counting from 1 in creation order.
func (l *Ledger) At(ctx context.Context, user string, index int) (ManagedRecord, error) {
	recs, err := l.ListFor(ctx, user)
	if err != nil {
		return ManagedRecord{}, err
	}
	if index < 1 || index > len(recs) {
		return ManagedRecord{}, fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(recs))
	}
	return recs[index-1], nil
}

// Claimant returns the user holding fqdn under domain, if any.
func (l *Ledger) Claimant(ctx context.Context, domain, fqdn string) (string, bool, error) {
	d, err := l.read(ctx)
	if err != nil {
		return "", false, err
	}
	owner, ok := claimant(d, domain, fqdn)
	return owner, ok, nil
}

// Count returns the number of records across all users.
func (l *Ledger) Count(ctx context.Context) (int, error) {
	d, err := l.read(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, recs := range d {
		n += len(recs)
	}
	return n, nil
}

// All returns a copy of the whole ledger.
func (l *Ledger) All(ctx context.Context) (Document, error) {
	d, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	out := make(Document, len(d))
	for user, recs := range d {
		out[user] = slices.Clone(recs)
	}
	return out, nil
}

func claimant(d Document, domain, fqdn string) (string, bool) {
	for user, recs := range d {
		for _, r := range recs {
			if r.Domain == domain && r.Name == fqdn {
				return user, true
			}
		}
	}
	return "", false
}
