package lifecycle

import (
	"fmt"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// ActionType represents the type of remote mutation.
type ActionType string

const (
	// ActionCreate indicates a record was created.
	ActionCreate ActionType = "create"
	// ActionDelete indicates a record was deleted.
	ActionDelete ActionType = "delete"
)

// ActionStatus represents the outcome of an action.
type ActionStatus string

const (
	// StatusSuccess indicates the action completed successfully.
	StatusSuccess ActionStatus = "success"
	// StatusFailed indicates the action failed.
	StatusFailed ActionStatus = "failed"
	// StatusGone indicates a delete found the record already removed.
	StatusGone ActionStatus = "gone"
)

// Action is a single remote mutation.
type Action struct {
	Type       ActionType
	Status     ActionStatus
	Domain     string
	Name       string
	RecordType provider.RecordType
	RecordID   string
	Content    string

	// Err is set if Status is StatusFailed.
	Err error
}

// String returns a human-readable representation of the action.
func (a Action) String() string {
	if a.Err != nil {
		return fmt.Sprintf("[%s] %s %s %s: %v", a.Status, a.Type, a.RecordType, a.Name, a.Err)
	}
	return fmt.Sprintf("[%s] %s %s %s", a.Status, a.Type, a.RecordType, a.Name)
}

// Outcome summarises a lifecycle operation.
type Outcome string

const (
	// OutcomeSuccess means every remote step and the ledger update succeeded.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means some remote steps failed.
	OutcomePartial Outcome = "partial"
	// OutcomeAlreadyClean means there was nothing left on the provider.
	OutcomeAlreadyClean Outcome = "already-clean"
	// OutcomeDomainGone means the record's domain is no longer registered;
	// only the ledger entry was dropped.
	OutcomeDomainGone Outcome = "domain-gone"
	// OutcomeFailed means no remote step succeeded.
	OutcomeFailed Outcome = "failed"
)

// Result holds the outcome of one lifecycle operation.
type Result struct {
	StartTime time.Time
	EndTime   time.Time

	Outcome Outcome

	// Record is the ledger entry that was created or removed, if any.
	Record ledger.ManagedRecord

	Actions []Action
}

func newResult() *Result {
	return &Result{StartTime: time.Now()}
}

// complete sets the end time and derives the outcome from the actions
// unless it was already set.
func (r *Result) complete() {
	r.EndTime = time.Now()
	if r.Outcome != "" {
		return
	}
	failed := len(r.Failed())
	switch {
	case failed == 0:
		r.Outcome = OutcomeSuccess
	case failed == len(r.Actions):
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomePartial
	}
}

// Duration returns the operation duration.
func (r *Result) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// AddAction adds an action to the result.
func (r *Result) AddAction(a Action) {
	r.Actions = append(r.Actions, a)
}

// Succeeded returns actions that succeeded or found the record already gone.
func (r *Result) Succeeded() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Status != StatusFailed {
			out = append(out, a)
		}
	}
	return out
}

// Failed returns all failed actions.
func (r *Result) Failed() []Action {
	var out []Action
	for _, a := range r.Actions {
		if a.Status == StatusFailed {
			out = append(out, a)
		}
	}
	return out
}

// partialFailure builds the error for a result with failed actions.
func (r *Result) partialFailure(err error) *PartialFailure {
	return &PartialFailure{
		Succeeded: r.Succeeded(),
		Failed:    r.Failed(),
		Err:       err,
	}
}
