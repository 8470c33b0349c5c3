// Package lifecycle creates and removes DNS records on behalf of chat users.
//
// The Manager applies the access gates, talks to the provider through the
// registry and keeps the ledger in step with what was actually created.
// Nothing here retries: a failed remote call is reported as-is.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/hashicorp/go-multierror"

	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
	"gitlab.bluewillows.net/root/dnsbot/internal/registry"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Actor identifies the user invoking an operation.
type Actor struct {
	UserID  string
	Tag     string
	RoleIDs []string
}

// Manager orchestrates record lifecycle operations.
type Manager struct {
	registry *registry.Registry
	ledger   *ledger.Ledger
	logger   *slog.Logger
}

// Option is a functional option for configuring the Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New creates a Manager.
func New(reg *registry.Registry, led *ledger.Ledger, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		ledger:   led,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Quota returns the per-user record limit.
func (m *Manager) Quota() int {
	return m.ledger.Quota()
}

func (m *Manager) requireOwner(ctx context.Context, actor Actor) (registry.Policy, error) {
	policy, err := m.registry.Policy(ctx)
	if err != nil {
		return registry.Policy{}, fmt.Errorf("reading access policy: %w", err)
	}
	if !policy.IsOwner(actor.UserID) {
		return policy, fmt.Errorf("%w: owner only", ErrForbidden)
	}
	return policy, nil
}

// IsOwner reports whether actor is a bot owner.
func (m *Manager) IsOwner(ctx context.Context, actor Actor) (bool, error) {
	policy, err := m.registry.Policy(ctx)
	if err != nil {
		return false, fmt.Errorf("reading access policy: %w", err)
	}
	return policy.IsOwner(actor.UserID), nil
}

// Create creates a record, or the A and SRV pair of a Minecraft record, and
// records it in the ledger. All gates are checked before the first remote
// call. When the SRV half of a composite fails after the A record was created,
// the record is kept with its surviving part, marked incomplete, and a
// *PartialFailure is returned alongside the result.
func (m *Manager) Create(ctx context.Context, actor Actor, req CreateRequest) (*Result, error) {
	policy, err := m.registry.Policy(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading access policy: %w", err)
	}
	domain, err := m.registry.Lookup(ctx, req.Domain)
	if err != nil {
		return nil, err
	}

	if policy.Locked {
		return nil, ErrLocked
	}
	if !policy.IsOwner(actor.UserID) && !policy.HasRole(actor.RoleIDs) {
		return nil, fmt.Errorf("%w: missing required role", ErrForbidden)
	}
	ok, err := m.ledger.CanCreate(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: limit is %d", ErrQuotaExceeded, m.ledger.Quota())
	}

	p, err := buildPlan(req, domain.Name)
	if err != nil {
		return nil, err
	}

	if owner, claimed, err := m.ledger.Claimant(ctx, domain.Name, p.fqdn); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	} else if claimed {
		if owner == actor.UserID {
			return nil, fmt.Errorf("%w: you already own %s", ErrNameClaimed, p.fqdn)
		}
		return nil, fmt.Errorf("%w: %s", ErrNameClaimed, p.fqdn)
	}

	client, err := m.registry.Client(ctx, domain.Name)
	if err != nil {
		return nil, err
	}

	res := newResult()
	rec := ledger.ManagedRecord{
		Name:   p.fqdn,
		Type:   p.kind,
		Domain: domain.Name,
	}

	var partErr error
	for i, spec := range p.specs {
		id, err := client.CreateRecord(ctx, spec)
		action := Action{
			Type:       ActionCreate,
			Domain:     domain.Name,
			Name:       spec.Name,
			RecordType: spec.Type,
			RecordID:   id,
			Content:    spec.Content,
		}
		if err != nil {
			action.Status = StatusFailed
			action.Err = err
			res.AddAction(action)
			recordMutation(action)
			if i == 0 {
				// Nothing exists remotely yet.
				res.complete()
				return res, err
			}
			rec.Incomplete = true
			partErr = err
			break
		}
		action.Status = StatusSuccess
		res.AddAction(action)
		recordMutation(action)
		rec.Parts = append(rec.Parts, ledger.Part{
			Type:     spec.Type,
			Name:     spec.Name,
			Content:  spec.Content,
			RemoteID: id,
		})
	}

	if err := m.ledger.RecordCreated(ctx, actor.UserID, rec); err != nil {
		m.rollback(ctx, client, res)
		res.Outcome = OutcomeFailed
		res.complete()
		return res, fmt.Errorf("recording %s: %w", rec.Name, err)
	}
	m.refreshGauge(ctx)

	stored, err := m.ledger.Lookup(ctx, actor.UserID, rec.Name)
	if err == nil {
		rec = stored
	}
	res.Record = rec
	res.complete()

	m.logger.Info("record created",
		slog.String("user", actor.UserID),
		slog.String("name", rec.Name),
		slog.String("type", rec.Type),
		slog.String("outcome", string(res.Outcome)),
	)

	if partErr != nil {
		return res, res.partialFailure(partErr)
	}
	return res, nil
}

// rollback deletes what Create made when the ledger refused the record, so a
// lost quota or name race leaves nothing behind.
func (m *Manager) rollback(ctx context.Context, client provider.Client, res *Result) {
	for _, a := range res.Succeeded() {
		if err := client.DeleteRecord(ctx, a.RecordID); err != nil && !provider.IsNotFound(err) {
			m.logger.Error("failed to roll back created record",
				slog.String("name", a.Name),
				slog.String("record_id", a.RecordID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// RemoveRequest selects a record to remove, by subdomain or by 1-based index
// into the caller's records.
type RemoveRequest struct {
	Domain    string
	Subdomain string
	Index     int
}

// Remove deletes one of the actor's records. Remote targets are looked up by
// the ledger's name: every record with that name plus, for composites, the
// SRV record. If any delete fails the ledger entry is kept so the removal can
// be retried, and a *PartialFailure is returned alongside the result.
func (m *Manager) Remove(ctx context.Context, actor Actor, req RemoveRequest) (*Result, error) {
	switch {
	case req.Subdomain != "":
		domain, err := m.registry.Lookup(ctx, req.Domain)
		if err != nil {
			return nil, err
		}
		sub, err := registry.NormalizeSubdomain(req.Subdomain)
		if err != nil {
			return nil, invalidInput("subdomain: %v", err)
		}
		rec, err := m.ledger.Lookup(ctx, actor.UserID, registry.JoinFQDN(sub, domain.Name))
		if err != nil {
			return nil, err
		}
		return m.remove(ctx, actor, rec)

	case req.Index != 0:
		rec, err := m.ledger.At(ctx, actor.UserID, req.Index)
		if err != nil {
			return nil, err
		}
		// A removed domain is no longer offered as a choice, so its records
		// are reachable by index alone.
		if _, err := m.registry.Lookup(ctx, rec.Domain); errors.Is(err, registry.ErrUnknownDomain) {
			return m.dropOrphan(ctx, actor, rec)
		}
		if req.Domain != "" {
			domain, err := registry.NormalizeDomain(req.Domain)
			if err != nil || domain != rec.Domain {
				return nil, invalidInput("record %d is %s, which is not under %s", req.Index, rec.Name, req.Domain)
			}
		}
		return m.remove(ctx, actor, rec)

	default:
		return nil, invalidInput("a subdomain or an index is required")
	}
}

// dropOrphan forgets a record whose domain was removed from the registry.
// Its remote records can no longer be reached, so only the ledger changes.
func (m *Manager) dropOrphan(ctx context.Context, actor Actor, rec ledger.ManagedRecord) (*Result, error) {
	if err := m.ledger.RecordRemoved(ctx, actor.UserID, rec.Name); err != nil {
		return nil, fmt.Errorf("updating ledger: %w", err)
	}
	m.refreshGauge(ctx)

	res := newResult()
	res.Record = rec
	res.Outcome = OutcomeDomainGone
	res.complete()
	m.logger.Warn("domain no longer registered, ledger entry dropped",
		slog.String("user", actor.UserID),
		slog.String("name", rec.Name),
		slog.String("domain", rec.Domain),
	)
	return res, nil
}

// RemoveByName removes the actor's record named fqdn.
func (m *Manager) RemoveByName(ctx context.Context, actor Actor, fqdn string) (*Result, error) {
	rec, err := m.ledger.Lookup(ctx, actor.UserID, fqdn)
	if err != nil {
		return nil, err
	}
	return m.remove(ctx, actor, rec)
}

func (m *Manager) remove(ctx context.Context, actor Actor, rec ledger.ManagedRecord) (*Result, error) {
	client, err := m.registry.Client(ctx, rec.Domain)
	if errors.Is(err, registry.ErrUnknownDomain) {
		return m.dropOrphan(ctx, actor, rec)
	}
	if err != nil {
		return nil, err
	}

	targets, err := client.ListRecords(ctx, provider.Filter{Name: rec.Name})
	if err != nil {
		return nil, err
	}
	if rec.Composite() {
		srv, err := client.ListRecords(ctx, provider.Filter{
			Name: MinecraftSRVName(rec.Name),
			Type: provider.RecordTypeSRV,
		})
		if err != nil {
			return nil, err
		}
		targets = append(targets, srv...)
	}

	res := newResult()
	res.Record = rec

	if len(targets) == 0 {
		if err := m.ledger.RecordRemoved(ctx, actor.UserID, rec.Name); err != nil {
			return nil, fmt.Errorf("updating ledger: %w", err)
		}
		m.refreshGauge(ctx)
		res.Outcome = OutcomeAlreadyClean
		res.complete()
		m.logger.Warn("no remote records found, ledger entry dropped",
			slog.String("user", actor.UserID),
			slog.String("name", rec.Name),
		)
		return res, nil
	}

	merr := m.deleteAll(ctx, client, rec.Domain, targets, res)
	if merr.ErrorOrNil() != nil {
		res.complete()
		m.logger.Warn("record removal incomplete",
			slog.String("user", actor.UserID),
			slog.String("name", rec.Name),
			slog.Int("failed", len(res.Failed())),
		)
		return res, res.partialFailure(merr.ErrorOrNil())
	}

	if err := m.ledger.RecordRemoved(ctx, actor.UserID, rec.Name); err != nil {
		return res, fmt.Errorf("updating ledger: %w", err)
	}
	m.refreshGauge(ctx)
	res.complete()

	m.logger.Info("record removed",
		slog.String("user", actor.UserID),
		slog.String("name", rec.Name),
		slog.Int("deleted", len(res.Actions)),
	)
	return res, nil
}

// deleteAll deletes every target, continuing past failures. A record that is
// already gone counts as deleted.
func (m *Manager) deleteAll(ctx context.Context, client provider.Client, domain string, targets []provider.Record, res *Result) *multierror.Error {
	var merr *multierror.Error
	for _, t := range targets {
		action := Action{
			Type:       ActionDelete,
			Domain:     domain,
			Name:       t.Name,
			RecordType: t.Type,
			RecordID:   t.ID,
			Content:    t.Content,
		}
		err := client.DeleteRecord(ctx, t.ID)
		switch {
		case err == nil:
			action.Status = StatusSuccess
		case provider.IsNotFound(err):
			action.Status = StatusGone
		default:
			action.Status = StatusFailed
			action.Err = err
			merr = multierror.Append(merr, fmt.Errorf("%s %s: %w", t.Type, t.Name, err))
		}
		res.AddAction(action)
		recordMutation(action)
	}
	return merr
}

// ClearAll deletes every record in a domain's zone. Owner only. The ledger is
// not touched.
func (m *Manager) ClearAll(ctx context.Context, actor Actor, domainName string) (*Result, error) {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return nil, err
	}
	domain, err := m.registry.Lookup(ctx, domainName)
	if err != nil {
		return nil, err
	}
	client, err := m.registry.Client(ctx, domain.Name)
	if err != nil {
		return nil, err
	}

	records, err := client.ListRecords(ctx, provider.Filter{})
	if err != nil {
		return nil, err
	}

	res := newResult()
	if len(records) == 0 {
		res.Outcome = OutcomeAlreadyClean
		res.complete()
		return res, nil
	}

	merr := m.deleteAll(ctx, client, domain.Name, records, res)
	res.complete()

	m.logger.Info("zone cleared",
		slog.String("user", actor.UserID),
		slog.String("domain", domain.Name),
		slog.Int("deleted", len(res.Succeeded())),
		slog.Int("failed", len(res.Failed())),
	)

	if err := merr.ErrorOrNil(); err != nil {
		return res, res.partialFailure(err)
	}
	return res, nil
}

// SetLocked locks or unlocks record creation. Owner only.
func (m *Manager) SetLocked(ctx context.Context, actor Actor, locked bool) error {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return err
	}
	return m.registry.SetLocked(ctx, locked)
}

// AddDomain registers a zone. Owner only.
func (m *Manager) AddDomain(ctx context.Context, actor Actor, name, zoneID, token string) (registry.DomainInfo, error) {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return registry.DomainInfo{}, err
	}
	if zoneID == "" || token == "" {
		return registry.DomainInfo{}, invalidInput("zone id and token are required")
	}
	info, err := m.registry.AddDomain(ctx, name, zoneID, token)
	if errors.Is(err, registry.ErrInvalidDomain) {
		return registry.DomainInfo{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return info, err
}

// CheckRemoveDomain performs the owner and existence checks for RemoveDomain
// without changing anything, so a confirmation can be asked first.
func (m *Manager) CheckRemoveDomain(ctx context.Context, actor Actor, name string) (registry.DomainInfo, error) {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return registry.DomainInfo{}, err
	}
	return m.registry.Lookup(ctx, name)
}

// RemoveDomain unregisters a domain. Owner only.
func (m *Manager) RemoveDomain(ctx context.Context, actor Actor, name string) error {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return err
	}
	return m.registry.RemoveDomain(ctx, name)
}

// ListRemote returns every record in a domain's zone as the provider reports
// it. Owner only.
func (m *Manager) ListRemote(ctx context.Context, actor Actor, domainName string) ([]provider.Record, error) {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return nil, err
	}
	client, err := m.registry.Client(ctx, domainName)
	if err != nil {
		return nil, err
	}
	return client.ListRecords(ctx, provider.Filter{})
}

// DeleteRemote deletes one zone record by id. Owner only. The ledger is not
// touched; a later removal of a matching ledger entry finds nothing and
// drops it.
func (m *Manager) DeleteRemote(ctx context.Context, actor Actor, domainName string, rec provider.Record) (*Result, error) {
	if _, err := m.requireOwner(ctx, actor); err != nil {
		return nil, err
	}
	domain, err := m.registry.Lookup(ctx, domainName)
	if err != nil {
		return nil, err
	}
	client, err := m.registry.Client(ctx, domain.Name)
	if err != nil {
		return nil, err
	}

	res := newResult()
	merr := m.deleteAll(ctx, client, domain.Name, []provider.Record{rec}, res)
	res.complete()
	if err := merr.ErrorOrNil(); err != nil {
		return res, res.Failed()[0].Err
	}
	return res, nil
}

// ListMine returns the actor's records in creation order.
func (m *Manager) ListMine(ctx context.Context, actor Actor) ([]ledger.ManagedRecord, error) {
	return m.ledger.ListFor(ctx, actor.UserID)
}

// ListMineIn returns the actor's records under one domain.
func (m *Manager) ListMineIn(ctx context.Context, actor Actor, domainName string) ([]ledger.ManagedRecord, error) {
	domain, err := m.registry.Lookup(ctx, domainName)
	if err != nil {
		return nil, err
	}
	recs, err := m.ledger.ListFor(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(recs, func(r ledger.ManagedRecord) bool { return r.Domain != domain.Name }), nil
}

// Domains returns the registered domains in registration order.
func (m *Manager) Domains(ctx context.Context) []registry.DomainInfo {
	return slices.Collect(m.registry.Domains(ctx))
}

// VerifyDomains checks every domain's credential against the provider.
// The returned map holds the failures by domain name.
func (m *Manager) VerifyDomains(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	for d := range m.registry.Domains(ctx) {
		client, err := m.registry.Client(ctx, d.Name)
		if err == nil {
			err = client.Ping(ctx)
		}
		if err != nil {
			failures[d.Name] = err
		}
	}
	return failures
}

// refreshGauge updates the managed records gauge from the ledger.
func (m *Manager) refreshGauge(ctx context.Context) {
	n, err := m.ledger.Count(ctx)
	if err != nil {
		m.logger.Debug("could not count ledger records", slog.String("error", err.Error()))
		return
	}
	metrics.RecordsManaged.Set(float64(n))
}

// RefreshMetrics sets gauges derived from persisted state.
func (m *Manager) RefreshMetrics(ctx context.Context) {
	m.refreshGauge(ctx)
}

func recordMutation(a Action) {
	metrics.RecordMutationsTotal.WithLabelValues(string(a.Type), string(a.Status)).Inc()
}
