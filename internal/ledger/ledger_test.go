package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"gitlab.bluewillows.net/root/dnsbot/internal/store"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *store.MemoryBackend) {
	t.Helper()
	backend := store.NewMemoryBackend()
	return New(store.NewJSON[Document](backend, store.LedgerDocument), opts...), backend
}

func record(name string) ManagedRecord {
	return ManagedRecord{
		Name:   name,
		Type:   string(provider.RecordTypeA),
		Domain: "example.com",
		Parts:  []Part{{Type: provider.RecordTypeA, Name: name, Content: "192.0.2.1"}},
	}
}

func TestRecordCreated_QuotaInvariant(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	for i := 1; i <= DefaultQuota; i++ {
		ok, err := l.CanCreate(ctx, "u1")
		if err != nil || !ok {
			t.Fatalf("CanCreate before record %d: %v, %v", i, ok, err)
		}
		if err := l.RecordCreated(ctx, "u1", record(fmt.Sprintf("r%d.example.com", i))); err != nil {
			t.Fatalf("RecordCreated %d: %v", i, err)
		}
	}

	ok, err := l.CanCreate(ctx, "u1")
	if err != nil || ok {
		t.Errorf("expected CanCreate=false at quota, got %v, %v", ok, err)
	}
	if err := l.RecordCreated(ctx, "u1", record("r6.example.com")); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("expected ErrQuotaExceeded, got %v", err)
	}

	if n, _ := l.Count(ctx); n != DefaultQuota {
		t.Errorf("expected %d records, got %d", DefaultQuota, n)
	}
}

func TestRecordCreated_ConcurrentStaysWithinQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t, WithQuota(3))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.RecordCreated(ctx, "u1", record(fmt.Sprintf("c%d.example.com", i)))
		}(i)
	}
	wg.Wait()

	recs, _ := l.ListFor(ctx, "u1")
	if len(recs) != 3 {
		t.Errorf("expected exactly 3 records, got %d", len(recs))
	}
}

func TestRecordCreated_NameClaimedAcrossUsers(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	if err := l.RecordCreated(ctx, "u1", record("www.example.com")); err != nil {
		t.Fatalf("RecordCreated: %v", err)
	}
	err := l.RecordCreated(ctx, "u2", record("www.example.com"))
	if !errors.Is(err, ErrNameClaimed) {
		t.Errorf("expected ErrNameClaimed, got %v", err)
	}

	owner, ok, err := l.Claimant(ctx, "example.com", "www.example.com")
	if err != nil || !ok || owner != "u1" {
		t.Errorf("expected claimant u1, got %q %v %v", owner, ok, err)
	}
}

func TestRecordCreated_SetsOwnerAndTime(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)

	rec := record("www.example.com")
	rec.Owner = "spoofed"
	_ = l.RecordCreated(ctx, "u1", rec)

	got, err := l.Lookup(ctx, "u1", "www.example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Owner != "u1" {
		t.Errorf("expected owner u1, got %s", got.Owner)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestRecordRemoved(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_ = l.RecordCreated(ctx, "u1", record("a.example.com"))

	if err := l.RecordRemoved(ctx, "u2", "a.example.com"); !errors.Is(err, ErrNotOwned) {
		t.Errorf("expected ErrNotOwned for other user, got %v", err)
	}
	if err := l.RecordRemoved(ctx, "u1", "a.example.com"); err != nil {
		t.Fatalf("RecordRemoved: %v", err)
	}
	if _, ok, _ := l.Claimant(ctx, "example.com", "a.example.com"); ok {
		t.Error("expected name to be free after removal")
	}
	if n, _ := l.Count(ctx); n != 0 {
		t.Errorf("expected empty ledger, got %d", n)
	}
}

func TestAt(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_ = l.RecordCreated(ctx, "u1", record("first.example.com"))
	_ = l.RecordCreated(ctx, "u1", record("second.example.com"))

	got, err := l.At(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("At: %v", err)
	}
	if got.Name != "second.example.com" {
		t.Errorf("expected second record, got %s", got.Name)
	}

	for _, idx := range []int{0, 3, -1} {
		if _, err := l.At(ctx, "u1", idx); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("At(%d): expected ErrIndexOutOfRange, got %v", idx, err)
		}
	}
}

func TestPersistFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	l, backend := newTestLedger(t)
	_ = l.RecordCreated(ctx, "u1", record("a.example.com"))

	backend.WriteErr = errors.New("disk full")
	if err := l.RecordCreated(ctx, "u1", record("b.example.com")); err == nil {
		t.Fatal("expected persist error")
	}
	backend.WriteErr = nil

	recs, _ := l.ListFor(ctx, "u1")
	if len(recs) != 1 {
		t.Errorf("expected 1 persisted record, got %d", len(recs))
	}
}

func TestLedgerSurvivesReload(t *testing.T) {
	ctx := context.Background()
	backend := store.NewMemoryBackend()
	doc := store.NewJSON[Document](backend, store.LedgerDocument)

	first := New(doc)
	rec := ManagedRecord{
		Name:       "mc.example.com",
		Type:       TypeMinecraft,
		Domain:     "example.com",
		Parts:      []Part{{Type: provider.RecordTypeA, Name: "mc.example.com", RemoteID: "rec-1"}},
		Incomplete: true,
	}
	_ = first.RecordCreated(ctx, "u1", rec)

	second := New(doc)
	got, err := second.Lookup(ctx, "u1", "mc.example.com")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !got.Composite() || !got.Incomplete || len(got.Parts) != 1 || got.Parts[0].RemoteID != "rec-1" {
		t.Errorf("record not preserved: %+v", got)
	}
}

func TestAll(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	_ = l.RecordCreated(ctx, "u1", record("a.example.com"))
	_ = l.RecordCreated(ctx, "u2", record("b.example.com"))

	all, err := l.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || len(all["u1"]) != 1 || len(all["u2"]) != 1 {
		t.Errorf("unexpected ledger %+v", all)
	}
}
