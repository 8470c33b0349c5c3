package registry

import (
	"context"
	"errors"
	"slices"
	"testing"

	"gitlab.bluewillows.net/root/dnsbot/internal/store"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider/providertest"
)

func newTestRegistry(t *testing.T) (*Registry, map[string]*providertest.Fake, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	zones := map[string]*providertest.Fake{}
	r := New(store.NewJSON[Settings](backend, store.SettingsDocument), providertest.Factory(zones))
	return r, zones, backend
}

func domainNames(r *Registry, ctx context.Context) []string {
	var names []string
	for d := range r.Domains(ctx) {
		names = append(names, d.Name)
	}
	return names
}

func TestAddDomain(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	info, err := r.AddDomain(ctx, "Example.COM.", "zone-1", "token-1")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if info.Name != "example.com" {
		t.Errorf("expected normalized name example.com, got %s", info.Name)
	}

	if got := domainNames(r, ctx); !slices.Equal(got, []string{"example.com"}) {
		t.Errorf("unexpected domains %v", got)
	}
}

func TestAddDomain_Duplicate(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	if _, err := r.AddDomain(ctx, "example.com", "zone-1", "token-1"); err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	_, err := r.AddDomain(ctx, "EXAMPLE.com", "zone-2", "token-2")
	if !errors.Is(err, ErrDuplicateDomain) {
		t.Errorf("expected ErrDuplicateDomain, got %v", err)
	}
}

func TestAddDomain_Invalid(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	for _, name := range []string{"", "localhost", "bad domain.com", "-bad.com", "a..b"} {
		if _, err := r.AddDomain(ctx, name, "zone", "token"); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("%q: expected ErrInvalidDomain, got %v", name, err)
		}
	}
	if _, err := r.AddDomain(ctx, "example.com", "", "token"); !errors.Is(err, ErrInvalidDomain) {
		t.Errorf("missing zone id: expected ErrInvalidDomain, got %v", err)
	}
}

func TestAddDomain_IDN(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	info, err := r.AddDomain(ctx, "bücher.example", "zone", "token")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if info.Name != "xn--bcher-kva.example" {
		t.Errorf("expected punycode name, got %s", info.Name)
	}
	if _, err := r.Lookup(ctx, "BÜCHER.example"); err != nil {
		t.Errorf("expected lookup by unicode name to succeed: %v", err)
	}
}

func TestAddDomain_PersistFailure(t *testing.T) {
	ctx := context.Background()
	r, _, backend := newTestRegistry(t)
	backend.WriteErr = errors.New("read-only")

	if _, err := r.AddDomain(ctx, "example.com", "zone", "token"); err == nil {
		t.Fatal("expected persist error")
	}
	backend.WriteErr = nil
	if got := domainNames(r, ctx); len(got) != 0 {
		t.Errorf("expected no domains after failed persist, got %v", got)
	}
}

func TestRemoveDomain(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	_, _ = r.AddDomain(ctx, "a.com", "z1", "t1")
	_, _ = r.AddDomain(ctx, "b.com", "z2", "t2")

	if err := r.RemoveDomain(ctx, "a.com"); err != nil {
		t.Fatalf("RemoveDomain: %v", err)
	}
	if got := domainNames(r, ctx); !slices.Equal(got, []string{"b.com"}) {
		t.Errorf("unexpected domains %v", got)
	}

	if err := r.RemoveDomain(ctx, "a.com"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestDomains_RestartableAndLazy(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)
	_, _ = r.AddDomain(ctx, "a.com", "z1", "t1")

	seq := r.Domains(ctx)
	if n := len(slices.Collect(seq)); n != 1 {
		t.Fatalf("expected 1 domain, got %d", n)
	}

	_, _ = r.AddDomain(ctx, "b.com", "z2", "t2")
	if got := slices.Collect(seq); len(got) != 2 {
		t.Errorf("expected re-ranged sequence to see 2 domains, got %v", got)
	}

	for d := range seq {
		if d.Name != "a.com" {
			t.Errorf("expected registration order, first was %s", d.Name)
		}
		break
	}
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	r, zones, _ := newTestRegistry(t)
	_, _ = r.AddDomain(ctx, "example.com", "zone-9", "token")

	client, err := r.Client(ctx, "example.com")
	if err != nil {
		t.Fatalf("Client: %v", err)
	}
	if client != provider.Client(zones["zone-9"]) {
		t.Error("expected client for zone-9")
	}

	if _, err := r.Client(ctx, "other.com"); !errors.Is(err, ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestPolicyAndLock(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	if err := r.Seed(ctx, []string{"owner-1"}, "role-1"); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := r.SetLocked(ctx, true); err != nil {
		t.Fatalf("SetLocked: %v", err)
	}

	p, err := r.Policy(ctx)
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if !p.Locked {
		t.Error("expected locked policy")
	}
	if !p.IsOwner("owner-1") || p.IsOwner("someone") {
		t.Error("unexpected owner check")
	}
	if !p.HasRole([]string{"x", "role-1"}) || p.HasRole([]string{"x"}) {
		t.Error("unexpected role check")
	}
}

func TestSeed_StoredValuesWin(t *testing.T) {
	ctx := context.Background()
	r, _, _ := newTestRegistry(t)

	_ = r.Seed(ctx, []string{"first"}, "role-a")
	_ = r.Seed(ctx, []string{"second"}, "role-b")

	p, _ := r.Policy(ctx)
	if !slices.Equal(p.Owners, []string{"first"}) || p.RequiredRoleID != "role-a" {
		t.Errorf("expected stored settings to win, got %+v", p)
	}
}

func TestPolicy_NoRoleConfigured(t *testing.T) {
	p := Policy{}
	if !p.HasRole(nil) {
		t.Error("expected open role gate without a configured role")
	}
}
