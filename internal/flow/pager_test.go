package flow

import (
	"errors"
	"testing"
	"time"
)

func TestPager_Pages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 3, 1},
		{1, 3, 1},
		{3, 3, 1},
		{4, 3, 2},
		{7, 3, 3},
		{5, 0, 5},
	}
	for _, tt := range tests {
		p := NewPager("alice", tt.total, tt.size, t0, time.Minute)
		if got := p.Pages(); got != tt.want {
			t.Errorf("Pages(total=%d, size=%d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}

func TestPager_Navigation(t *testing.T) {
	p := NewPager("alice", 7, 3, t0, time.Minute)

	if c := p.Controls(); c.Back || !c.Next || !c.Home {
		t.Errorf("controls on first page = %+v", c)
	}
	if start, end := p.Bounds(); start != 0 || end != 3 {
		t.Errorf("Bounds() = %d, %d", start, end)
	}

	// Back on the first page is a no-op.
	if page, err := p.Apply("alice", NavBack, t0); err != nil || page != 0 {
		t.Errorf("back = %d, %v", page, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := p.Apply("alice", NavNext, t0); err != nil {
			t.Fatal(err)
		}
	}
	if p.Page() != 2 {
		t.Errorf("Page() = %d, want 2", p.Page())
	}
	if c := p.Controls(); !c.Back || c.Next {
		t.Errorf("controls on last page = %+v", c)
	}
	if start, end := p.Bounds(); start != 6 || end != 7 {
		t.Errorf("Bounds() on last page = %d, %d", start, end)
	}

	if page, err := p.Apply("alice", NavHome, t0); err != nil || page != 0 {
		t.Errorf("home = %d, %v", page, err)
	}
}

func TestPager_OwnerAndDeadline(t *testing.T) {
	p := NewPager("alice", 10, 3, t0, time.Minute)

	if _, err := p.Apply("bob", NavNext, t0); !errors.Is(err, ErrNotOwner) {
		t.Errorf("error = %v, want ErrNotOwner", err)
	}
	if p.Page() != 0 {
		t.Errorf("page moved for non-owner")
	}

	// Navigation does not extend the window.
	if _, err := p.Apply("alice", NavNext, t0.Add(59*time.Second)); err != nil {
		t.Fatal(err)
	}
	if !p.Deadline().Equal(t0.Add(time.Minute)) {
		t.Errorf("Deadline() = %v", p.Deadline())
	}

	if _, err := p.Apply("alice", NavNext, t0.Add(time.Minute)); !errors.Is(err, ErrExpired) {
		t.Errorf("error = %v, want ErrExpired", err)
	}
	if !p.Ended() {
		t.Error("pager not ended after deadline")
	}
	if c := p.Controls(); c != (Controls{}) {
		t.Errorf("controls after end = %+v", c)
	}
	if _, err := p.Apply("alice", NavBack, t0); !errors.Is(err, ErrFinished) {
		t.Errorf("error = %v, want ErrFinished", err)
	}
}

func TestPager_Empty(t *testing.T) {
	p := NewPager("alice", 0, 3, t0, time.Minute)
	if start, end := p.Bounds(); start != 0 || end != 0 {
		t.Errorf("Bounds() = %d, %d", start, end)
	}
	if c := p.Controls(); c.Back || c.Next {
		t.Errorf("controls = %+v", c)
	}
	p.End()
	if !p.Ended() {
		t.Error("End() did not end the pager")
	}
}
