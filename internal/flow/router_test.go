package flow

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
)

func TestRouter_StartGetEnd(t *testing.T) {
	r := NewRouter(WithClock(func() time.Time { return t0 }))

	s := r.Start("removedomain", "alice", time.Minute, nil)
	if s.ID == "" {
		t.Fatal("session has no id")
	}
	if !s.Deadline().Equal(t0.Add(time.Minute)) {
		t.Errorf("Deadline() = %v", s.Deadline())
	}

	got, ok := r.Get(s.ID)
	if !ok || got != s {
		t.Fatalf("Get() = %v, %v", got, ok)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d", r.Len())
	}

	before := testutil.ToFloat64(metrics.FlowOutcomesTotal.WithLabelValues("removedomain", OutcomeCompleted))
	if !s.End(OutcomeCompleted) {
		t.Fatal("End() = false")
	}
	if s.End(OutcomeCancelled) {
		t.Error("second End() = true")
	}
	if _, ok := r.Get(s.ID); ok {
		t.Error("Get() found ended session")
	}
	after := testutil.ToFloat64(metrics.FlowOutcomesTotal.WithLabelValues("removedomain", OutcomeCompleted))
	if after-before != 1 {
		t.Errorf("completed outcomes delta = %v, want 1", after-before)
	}
}

func TestRouter_Timeout(t *testing.T) {
	r := NewRouter()
	fired := make(chan string, 1)

	s := r.Start("removerecord", "alice", 20*time.Millisecond, func(s *Session) {
		fired <- s.ID
	})

	select {
	case id := <-fired:
		if id != s.ID {
			t.Errorf("timeout for %q, want %q", id, s.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never ran")
	}
	if !s.Ended() {
		t.Error("session not ended after timeout")
	}
	if _, ok := r.Get(s.ID); ok {
		t.Error("timed out session still routable")
	}
}

func TestRouter_ExtendAndEndCancelTimer(t *testing.T) {
	r := NewRouter()
	fired := make(chan struct{}, 1)

	s := r.Start("removedns", "alice", 30*time.Millisecond, func(*Session) {
		fired <- struct{}{}
	})
	s.Extend(time.Hour)

	select {
	case <-fired:
		t.Fatal("extended session timed out")
	case <-time.After(100 * time.Millisecond):
	}

	s.End(OutcomeCompleted)
	select {
	case <-fired:
		t.Fatal("ended session ran its timeout callback")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRouter_Shutdown(t *testing.T) {
	r := NewRouter()
	var stripped []string
	for _, owner := range []string{"alice", "bob"} {
		r.Start("viewdns", owner, time.Hour, func(s *Session) {
			stripped = append(stripped, s.Owner)
		})
	}

	r.Shutdown()

	if len(stripped) != 2 {
		t.Errorf("callbacks ran for %v", stripped)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after shutdown", r.Len())
	}
}

func TestCustomID(t *testing.T) {
	r := NewRouter()
	s := r.Start("removerecord", "alice", time.Hour, nil)
	defer s.End(OutcomeCancelled)

	id := s.CustomID("choose", "a:b")
	if !strings.HasPrefix(id, s.ID+":") {
		t.Errorf("CustomID() = %q", id)
	}
	sid, action, value, ok := ParseCustomID(id)
	if !ok || sid != s.ID || action != "choose" || value != "a:b" {
		t.Errorf("ParseCustomID() = %q, %q, %q, %v", sid, action, value, ok)
	}

	for _, bad := range []string{"", "abc", "abc:choose", ":choose:1", "abc::1"} {
		if _, _, _, ok := ParseCustomID(bad); ok {
			t.Errorf("ParseCustomID(%q) ok", bad)
		}
	}
}
