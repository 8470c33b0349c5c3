// Package flow implements the short-lived interactive menus used by commands:
// multi-step selections ending in a confirmation, and paged listings.
//
// The state machines here are pure: they take the current time as an argument
// and never start timers. Router owns the wall-clock side.
package flow

import (
	"errors"
	"fmt"
	"time"
)

// Flow errors.
var (
	ErrNotOwner      = errors.New("this menu belongs to someone else")
	ErrInvalidAction = errors.New("action not allowed in this state")
	ErrFinished      = errors.New("flow already finished")
	ErrExpired       = errors.New("flow timed out")
)

// State is a Selection state.
type State int

const (
	AwaitingDomainChoice State = iota + 1
	AwaitingRecordChoice
	AwaitingConfirmation
	Completed
	Cancelled
	TimedOut
)

var stateNames = map[State]string{
	AwaitingDomainChoice: "awaiting-domain",
	AwaitingRecordChoice: "awaiting-record",
	AwaitingConfirmation: "awaiting-confirmation",
	Completed:            "completed",
	Cancelled:            "cancelled",
	TimedOut:             "timed-out",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further interaction is accepted.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == TimedOut
}

// Step is one awaiting state and how long the user has to answer it.
type Step struct {
	State   State
	Timeout time.Duration
}

// Action is what a user did on a menu.
type Action string

const (
	ActionChoose  Action = "choose"
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

// Interaction is one user input.
type Interaction struct {
	UserID string
	Action Action
	Value  string
}

// Transition describes an accepted interaction.
type Transition struct {
	From  State
	To    State
	Value string
}

// Selection walks a user through an ordered subset of the awaiting states.
// Only the invoking user may drive it.
type Selection struct {
	owner    string
	steps    []Step
	idx      int
	state    State
	deadline time.Time
	choices  map[State]string
}

// NewSelection starts a selection at its first step. Steps must be awaiting
// states in increasing order.
func NewSelection(owner string, now time.Time, steps ...Step) (*Selection, error) {
	if len(steps) == 0 {
		return nil, errors.New("selection needs at least one step")
	}
	for i, st := range steps {
		if st.State < AwaitingDomainChoice || st.State > AwaitingConfirmation {
			return nil, fmt.Errorf("step %d: %s is not an awaiting state", i, st.State)
		}
		if i > 0 && st.State <= steps[i-1].State {
			return nil, fmt.Errorf("step %d: %s must come after %s", i, st.State, steps[i-1].State)
		}
		if st.Timeout <= 0 {
			return nil, fmt.Errorf("step %d: timeout must be positive", i)
		}
	}
	return &Selection{
		owner:    owner,
		steps:    append([]Step(nil), steps...),
		state:    steps[0].State,
		deadline: now.Add(steps[0].Timeout),
		choices:  make(map[State]string),
	}, nil
}

// State returns the current state.
func (s *Selection) State() State {
	return s.state
}

// Owner returns the user who started the flow.
func (s *Selection) Owner() string {
	return s.owner
}

// Deadline returns when the current step times out.
func (s *Selection) Deadline() time.Time {
	return s.deadline
}

// Timeout returns the current step's timeout, or zero when finished.
func (s *Selection) Timeout() time.Duration {
	if s.state.Terminal() {
		return 0
	}
	return s.steps[s.idx].Timeout
}

// Choice returns the value chosen while in state st.
func (s *Selection) Choice(st State) string {
	return s.choices[st]
}

// Apply feeds one interaction to the machine.
func (s *Selection) Apply(in Interaction, now time.Time) (Transition, error) {
	if s.state.Terminal() {
		return Transition{}, ErrFinished
	}
	if in.UserID != s.owner {
		return Transition{}, ErrNotOwner
	}
	if !now.Before(s.deadline) {
		s.Expire()
		return Transition{From: s.steps[s.idx].State, To: TimedOut}, ErrExpired
	}

	from := s.state
	switch in.Action {
	case ActionChoose:
		if from != AwaitingDomainChoice && from != AwaitingRecordChoice {
			return Transition{}, ErrInvalidAction
		}
		if in.Value == "" {
			return Transition{}, fmt.Errorf("%w: empty choice", ErrInvalidAction)
		}
		s.choices[from] = in.Value
		s.advance(now)
	case ActionConfirm:
		if from != AwaitingConfirmation {
			return Transition{}, ErrInvalidAction
		}
		s.advance(now)
	case ActionCancel:
		if from != AwaitingConfirmation {
			return Transition{}, ErrInvalidAction
		}
		s.state = Cancelled
	default:
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidAction, in.Action)
	}

	return Transition{From: from, To: s.state, Value: in.Value}, nil
}

func (s *Selection) advance(now time.Time) {
	if s.idx == len(s.steps)-1 {
		s.state = Completed
		return
	}
	s.idx++
	s.state = s.steps[s.idx].State
	s.deadline = now.Add(s.steps[s.idx].Timeout)
}

// Expire moves an unfinished selection to TimedOut.
func (s *Selection) Expire() bool {
	if s.state.Terminal() {
		return false
	}
	s.state = TimedOut
	return true
}
