package flow

import "time"

// Nav is a pager control.
type Nav string

const (
	NavBack Nav = "back"
	NavNext Nav = "next"
	NavHome Nav = "home"
)

// Controls reports which pager buttons are enabled.
type Controls struct {
	Back bool
	Next bool
	Home bool
}

// Pager is a read-only paged view over total items. The whole viewing window
// shares one deadline.
type Pager struct {
	owner    string
	total    int
	size     int
	page     int
	deadline time.Time
	ended    bool
}

// NewPager creates a pager on page 0.
func NewPager(owner string, total, size int, now time.Time, window time.Duration) *Pager {
	if size < 1 {
		size = 1
	}
	if total < 0 {
		total = 0
	}
	return &Pager{
		owner:    owner,
		total:    total,
		size:     size,
		deadline: now.Add(window),
	}
}

// Page returns the current 0-based page.
func (p *Pager) Page() int {
	return p.page
}

// Pages returns the number of pages; an empty list still has one page.
func (p *Pager) Pages() int {
	if p.total == 0 {
		return 1
	}
	return (p.total + p.size - 1) / p.size
}

// Bounds returns the [start, end) item indices of the current page.
func (p *Pager) Bounds() (int, int) {
	start := p.page * p.size
	end := min(start+p.size, p.total)
	return start, end
}

// Deadline returns when the viewing window closes.
func (p *Pager) Deadline() time.Time {
	return p.deadline
}

// Ended reports whether the pager accepts no more input.
func (p *Pager) Ended() bool {
	return p.ended
}

// Controls returns the enabled state of each button. Moves past either end
// are disabled and everything is disabled once the pager has ended.
func (p *Pager) Controls() Controls {
	if p.ended {
		return Controls{}
	}
	return Controls{
		Back: p.page > 0,
		Next: p.page < p.Pages()-1,
		Home: true,
	}
}

// Apply handles one navigation press and returns the resulting page. Moves
// past either end leave the page unchanged.
func (p *Pager) Apply(userID string, nav Nav, now time.Time) (int, error) {
	if p.ended {
		return p.page, ErrFinished
	}
	if userID != p.owner {
		return p.page, ErrNotOwner
	}
	if !now.Before(p.deadline) {
		p.ended = true
		return p.page, ErrExpired
	}

	switch nav {
	case NavBack:
		if p.page > 0 {
			p.page--
		}
	case NavNext:
		if p.page < p.Pages()-1 {
			p.page++
		}
	case NavHome:
		p.page = 0
	default:
		return p.page, ErrInvalidAction
	}
	return p.page, nil
}

// End stops the pager.
func (p *Pager) End() {
	p.ended = true
}
