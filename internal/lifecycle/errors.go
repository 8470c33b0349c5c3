package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/registry"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Gate and input errors. Registry, ledger and provider errors are re-exported
// so callers can classify every failure against this package.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrLocked       = errors.New("dns creation is locked")
	ErrInvalidInput = errors.New("invalid input")

	ErrUnknownDomain     = registry.ErrUnknownDomain
	ErrDuplicateDomain   = registry.ErrDuplicateDomain
	ErrQuotaExceeded     = ledger.ErrQuotaExceeded
	ErrNameClaimed       = ledger.ErrNameClaimed
	ErrNotOwned          = ledger.ErrNotOwned
	ErrIndexOutOfRange   = ledger.ErrIndexOutOfRange
	ErrRemoteRejected    = provider.ErrRemoteRejected
	ErrRemoteUnavailable = provider.ErrRemoteUnavailable
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// PartialFailure reports a multi-record operation where some remote calls
// failed. Err aggregates the individual failures.
type PartialFailure struct {
	Succeeded []Action
	Failed    []Action
	Err       error
}

func (e *PartialFailure) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, a := range e.Failed {
		names = append(names, fmt.Sprintf("%s %s", a.RecordType, a.Name))
	}
	return fmt.Sprintf("%d of %d record operations failed (%s)",
		len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(names, ", "))
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}

// IsPartial reports whether err is a *PartialFailure.
func IsPartial(err error) bool {
	var pf *PartialFailure
	return errors.As(err, &pf)
}
