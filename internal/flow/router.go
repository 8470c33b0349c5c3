package flow

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/xid"

	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
)

// Session outcomes reported to FlowOutcomesTotal.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeShutdown  = "shutdown"
)

// customIDSep joins the parts of a component custom id.
const customIDSep = ":"

// evictionGrace keeps a session in the cache a little past its deadline so
// the timer, not the janitor, normally ends it.
const evictionGrace = 30 * time.Second

// Router tracks live sessions by id. Each session owns one timer that ends it
// at its deadline and runs its timeout callback.
type Router struct {
	sessions *cache.Cache
	clock    func() time.Time
	logger   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithClock overrides the time source used for deadlines.
func WithClock(clock func() time.Time) RouterOption {
	return func(r *Router) {
		r.clock = clock
	}
}

// WithLogger sets the router's logger.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates an empty router.
func NewRouter(opts ...RouterOption) *Router {
	r := &Router{
		sessions: cache.New(cache.NoExpiration, time.Minute),
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sessions.OnEvicted(func(id string, v any) {
		s, ok := v.(*Session)
		if !ok || s.Ended() {
			return
		}
		r.logger.Debug("flow evicted before its timer fired", slog.String("flow_id", id), slog.String("flow", s.Kind))
		go s.expire(s.generation())
	})
	return r
}

// Now returns the router's current time.
func (r *Router) Now() time.Time {
	return r.clock()
}

// Start registers a new session that times out after timeout unless extended.
// onTimeout runs once, with the session locked, if the deadline passes.
func (r *Router) Start(kind, owner string, timeout time.Duration, onTimeout func(*Session)) *Session {
	s := &Session{
		ID:        xid.New().String(),
		Kind:      kind,
		Owner:     owner,
		router:    r,
		onTimeout: onTimeout,
	}
	s.mu.Lock()
	s.arm(timeout)
	s.mu.Unlock()

	metrics.FlowsActive.Inc()
	r.logger.Debug("flow started",
		slog.String("flow_id", s.ID),
		slog.String("flow", kind),
		slog.String("owner", owner),
		slog.Duration("timeout", timeout),
	)
	return s
}

// Get returns a live session.
func (r *Router) Get(id string) (*Session, bool) {
	v, ok := r.sessions.Get(id)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	if !ok || s.Ended() {
		return nil, false
	}
	return s, true
}

// Len returns the number of live sessions.
func (r *Router) Len() int {
	return r.sessions.ItemCount()
}

// Shutdown ends every live session, running timeout callbacks so menus are
// left without active controls.
func (r *Router) Shutdown() {
	for id, item := range r.sessions.Items() {
		s, ok := item.Object.(*Session)
		if !ok {
			r.sessions.Delete(id)
			continue
		}
		s.Lock()
		if s.End(OutcomeShutdown) && s.onTimeout != nil {
			s.onTimeout(s)
		}
		s.Unlock()
	}
}

// Session is one live interactive flow. Callers hold Lock while applying an
// interaction so input and expiry are serialised.
type Session struct {
	ID    string
	Kind  string
	Owner string

	// State is the flow's machine and any context the handler needs.
	State any

	turn sync.Mutex

	mu        sync.Mutex
	router    *Router
	onTimeout func(*Session)
	timer     *time.Timer
	deadline  time.Time
	gen       uint64
	ended     bool
}

// Lock serialises work on the session.
func (s *Session) Lock() {
	s.turn.Lock()
}

// Unlock releases Lock.
func (s *Session) Unlock() {
	s.turn.Unlock()
}

// Ended reports whether the session is finished.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Deadline returns when the session times out.
func (s *Session) Deadline() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Extend moves the deadline to now+timeout.
func (s *Session) Extend(timeout time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.arm(timeout)
}

// End finishes the session with outcome. It reports false if the session had
// already ended.
func (s *Session) End(outcome string) bool {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return false
	}
	s.ended = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.router.sessions.Delete(s.ID)
	metrics.FlowsActive.Dec()
	metrics.FlowOutcomesTotal.WithLabelValues(s.Kind, outcome).Inc()
	s.router.logger.Debug("flow ended",
		slog.String("flow_id", s.ID),
		slog.String("flow", s.Kind),
		slog.String("outcome", outcome),
	)
	return true
}

// CustomID builds a component id routed back to this session.
func (s *Session) CustomID(action, value string) string {
	return s.ID + customIDSep + action + customIDSep + value
}

// arm (re)starts the timer; s.mu must be held.
func (s *Session) arm(timeout time.Duration) {
	s.gen++
	gen := s.gen
	s.deadline = s.router.clock().Add(timeout)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(timeout, func() { s.expire(gen) })
	s.router.sessions.Set(s.ID, s, timeout+evictionGrace)
}

func (s *Session) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// expire ends the session if no interaction re-armed it since gen.
func (s *Session) expire(gen uint64) {
	s.Lock()
	defer s.Unlock()

	s.mu.Lock()
	stale := s.ended || s.gen != gen
	s.mu.Unlock()
	if stale {
		return
	}
	if s.End(OutcomeTimedOut) && s.onTimeout != nil {
		s.onTimeout(s)
	}
}

// ParseCustomID splits a component id built by Session.CustomID.
func ParseCustomID(id string) (sessionID, action, value string, ok bool) {
	parts := strings.SplitN(id, customIDSep, 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
