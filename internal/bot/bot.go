// Package bot implements the slash command surface on top of the lifecycle
// manager. It is independent of any chat platform: adapters translate
// gateway events into Invocations and ComponentEvents and render Messages.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/flow"
	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
	"gitlab.bluewillows.net/root/dnsbot/internal/metrics"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// Generic failure text for errors that are not classified.
const msgGenericFailure = "❌ There was an error executing that command."

// Timeouts bounds each interactive step.
type Timeouts struct {
	// Confirm is the time to press a confirmation button.
	Confirm time.Duration
	// Select is the time to pick a record to remove.
	Select time.Duration
	// Browse is the time to pick a domain to view.
	Browse time.Duration
	// List is the viewing window of listdomains.
	List time.Duration
	// View is the viewing window of viewdns.
	View time.Duration
}

// DefaultTimeouts returns the standard step timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Confirm: 15 * time.Second,
		Select:  20 * time.Second,
		Browse:  60 * time.Second,
		List:    60 * time.Second,
		View:    120 * time.Second,
	}
}

// DefaultPageSize is the number of entries per page in paged listings.
const DefaultPageSize = 3

// Auditor records executed commands.
type Auditor interface {
	Audit(ctx context.Context, entry AuditEntry) error
}

// Registrar publishes command definitions to the chat platform.
type Registrar interface {
	SyncCommands(ctx context.Context, commands []CommandSpec) error
}

// handlerFunc handles one command.
type handlerFunc func(ctx context.Context, inv Invocation, out *sender) error

// Bot dispatches commands and component events.
type Bot struct {
	manager   *lifecycle.Manager
	router    *flow.Router
	auditor   Auditor
	registrar Registrar
	logger    *slog.Logger
	timeouts  Timeouts
	pageSize  int
	started   time.Time
	now       func() time.Time

	handlers map[string]handlerFunc
}

// Option is a functional option for configuring the Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithAuditor sets where command usage is reported.
func WithAuditor(a Auditor) Option {
	return func(b *Bot) {
		b.auditor = a
	}
}

// WithRegistrar sets where command definitions are published.
func WithRegistrar(r Registrar) Option {
	return func(b *Bot) {
		b.registrar = r
	}
}

// WithTimeouts overrides the interactive step timeouts. Zero fields keep
// their defaults.
func WithTimeouts(t Timeouts) Option {
	return func(b *Bot) {
		if t.Confirm > 0 {
			b.timeouts.Confirm = t.Confirm
		}
		if t.Select > 0 {
			b.timeouts.Select = t.Select
		}
		if t.Browse > 0 {
			b.timeouts.Browse = t.Browse
		}
		if t.List > 0 {
			b.timeouts.List = t.List
		}
		if t.View > 0 {
			b.timeouts.View = t.View
		}
	}
}

// WithPageSize sets the number of entries per page.
func WithPageSize(n int) Option {
	return func(b *Bot) {
		if n > 0 {
			b.pageSize = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) {
		b.now = now
	}
}

// New creates a Bot.
func New(manager *lifecycle.Manager, router *flow.Router, opts ...Option) *Bot {
	b := &Bot{
		manager:  manager,
		router:   router,
		logger:   slog.Default(),
		timeouts: DefaultTimeouts(),
		pageSize: DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.started = b.now()
	b.handlers = map[string]handlerFunc{
		CmdCreateDNS:    b.createDNS,
		CmdRemoveDNS:    b.removeDNS,
		CmdListDNS:      b.listDNS,
		CmdListDomains:  b.listDomains,
		CmdViewDNS:      b.viewDNS,
		CmdRemoveRecord: b.removeRecord,
		CmdAddDomain:    b.addDomain,
		CmdRemoveDomain: b.removeDomain,
		CmdClearDNS:     b.clearDNS,
		CmdLockDNS:      b.lockDNS,
		CmdUnlockDNS:    b.unlockDNS,
		CmdPing:         b.ping,
		CmdUptime:       b.uptime,
	}
	return b
}

// Started returns when the bot was created.
func (b *Bot) Started() time.Time {
	return b.started
}

// Handle runs one command. Failures and panics are turned into replies here;
// nothing propagates to the caller.
func (b *Bot) Handle(ctx context.Context, inv Invocation, r Responder) {
	start := time.Now()
	out := &sender{r: r}
	outcome := "ok"

	logger := b.logger.With(
		slog.String("command", inv.Command),
		slog.String("user", inv.Actor.UserID),
	)

	defer func() {
		if p := recover(); p != nil {
			outcome = "panic"
			logger.Error("panic handling command",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			if err := out.Send(ctx, ephemeral(msgGenericFailure)); err != nil {
				logger.Warn("failed to send failure reply", slog.String("error", err.Error()))
			}
		}
		metrics.CommandsTotal.WithLabelValues(inv.Command, outcome).Inc()
		metrics.CommandDuration.WithLabelValues(inv.Command).Observe(time.Since(start).Seconds())
	}()

	h, ok := b.handlers[inv.Command]
	if !ok {
		outcome = "unknown"
		logger.Warn("unknown command")
		_ = out.Send(ctx, ephemeral("❌ Unknown command."))
		return
	}

	if err := h(ctx, inv, out); err != nil {
		outcome = outcomeOf(err)
		if outcome == "error" {
			logger.Error("command failed", slog.String("error", err.Error()))
		} else {
			logger.Info("command refused", slog.String("outcome", outcome), slog.String("error", err.Error()))
		}
		if sendErr := out.Send(ctx, ephemeral(b.errorMessage(err))); sendErr != nil {
			logger.Warn("failed to send error reply", slog.String("error", sendErr.Error()))
		}
	}

	b.audit(ctx, inv, outcome)
}

// HandleComponent routes a component event to its flow session.
func (b *Bot) HandleComponent(ctx context.Context, ev ComponentEvent, r ComponentResponder) {
	logger := b.logger.With(
		slog.String("custom_id", ev.CustomID),
		slog.String("user", ev.Actor.UserID),
	)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("panic handling component",
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			_ = r.Reply(ctx, ephemeral(msgGenericFailure))
		}
	}()

	id, action, value, ok := flow.ParseCustomID(ev.CustomID)
	if !ok {
		logger.Debug("ignoring component with foreign custom id")
		return
	}
	if len(ev.Values) > 0 {
		value = ev.Values[0]
	}

	s, ok := b.router.Get(id)
	if !ok {
		_ = r.Reply(ctx, ephemeral("⏱️ This menu has expired."))
		return
	}

	s.Lock()
	defer s.Unlock()

	if s.Ended() {
		_ = r.Reply(ctx, ephemeral("⏱️ This menu has expired."))
		return
	}
	if ev.Actor.UserID != s.Owner {
		_ = r.Reply(ctx, ephemeral("❌ You can't interact with this menu."))
		return
	}

	st, ok := s.State.(flowState)
	if !ok {
		logger.Error("session has no flow state", slog.String("flow", s.Kind))
		s.End(flow.OutcomeFailed)
		_ = r.Reply(ctx, ephemeral(msgGenericFailure))
		return
	}

	in := componentInput{actor: ev.Actor, action: action, value: value}
	if err := st.handle(ctx, b, s, in, r); err != nil {
		switch {
		case errors.Is(err, flow.ErrNotOwner):
			_ = r.Reply(ctx, ephemeral("❌ You can't interact with this menu."))
		case errors.Is(err, flow.ErrExpired), errors.Is(err, flow.ErrFinished):
			s.End(flow.OutcomeTimedOut)
			_ = r.Update(ctx, st.expired())
		case errors.Is(err, flow.ErrInvalidAction):
			_ = r.Reply(ctx, ephemeral("❌ That option is no longer available."))
		default:
			logger.Info("flow action failed", slog.String("flow", s.Kind), slog.String("error", err.Error()))
			s.End(flow.OutcomeFailed)
			_ = r.Update(ctx, Message{Content: b.errorMessage(err)})
		}
	}
}

// Shutdown ends all live menus.
func (b *Bot) Shutdown() {
	b.router.Shutdown()
}

// syncCommands republishes command definitions after the domain list changed.
func (b *Bot) syncCommands(ctx context.Context) {
	if b.registrar == nil {
		return
	}
	if err := b.registrar.SyncCommands(ctx, b.Commands(ctx)); err != nil {
		b.logger.Warn("failed to sync commands", slog.String("error", err.Error()))
	}
}

// errorMessage renders err for the user.
func (b *Bot) errorMessage(err error) string {
	var (
		re       *replyError
		pf       *lifecycle.PartialFailure
		rejected *provider.RejectedError
	)
	switch {
	case errors.As(err, &re):
		return re.msg
	case errors.As(err, &pf):
		return fmt.Sprintf("⚠️ %s:\n```\n%s\n```\n%s", pf.Error(), remoteDetail(err), strings.TrimSuffix(deletedParts(pf.Succeeded), "\n"))
	case errors.Is(err, lifecycle.ErrForbidden):
		return "❌ You are not authorized to use this command."
	case errors.Is(err, lifecycle.ErrLocked):
		return "🔒 DNS creation is currently locked."
	case errors.Is(err, lifecycle.ErrQuotaExceeded):
		return fmt.Sprintf("❌ You can only have up to %d DNS records. Please delete one before creating a new one.", b.manager.Quota())
	case errors.Is(err, lifecycle.ErrUnknownDomain):
		return "❌ Invalid domain."
	case errors.Is(err, lifecycle.ErrDuplicateDomain):
		return "❌ That domain is already configured."
	case errors.Is(err, lifecycle.ErrNameClaimed):
		return "❌ That name is already taken."
	case errors.Is(err, lifecycle.ErrNotOwned):
		return "❌ You don't own that record."
	case errors.Is(err, lifecycle.ErrIndexOutOfRange):
		return "❌ There is no record with that number. Use /listdns to see your records."
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return "❌ " + inputProblem(err)
	case errors.As(err, &rejected):
		return "❌ Cloudflare rejected the request:\n```\n" + rejected.Detail() + "\n```"
	case errors.Is(err, lifecycle.ErrRemoteUnavailable):
		return "❌ Cloudflare could not be reached. Try again later."
	default:
		return msgGenericFailure
	}
}

// inputProblem strips the sentinel prefix from an invalid input error.
func inputProblem(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, lifecycle.ErrInvalidInput.Error()+": "); i >= 0 {
		return msg[i+len(lifecycle.ErrInvalidInput.Error())+2:]
	}
	return msg
}

// outcomeOf labels err for CommandsTotal.
func outcomeOf(err error) string {
	switch {
	case lifecycle.IsPartial(err):
		return "partial"
	case errors.Is(err, lifecycle.ErrForbidden),
		errors.Is(err, lifecycle.ErrLocked),
		errors.Is(err, lifecycle.ErrQuotaExceeded):
		return "denied"
	case errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, lifecycle.ErrUnknownDomain),
		errors.Is(err, lifecycle.ErrDuplicateDomain),
		errors.Is(err, lifecycle.ErrNameClaimed),
		errors.Is(err, lifecycle.ErrNotOwned),
		errors.Is(err, lifecycle.ErrIndexOutOfRange):
		return "invalid"
	case errors.Is(err, lifecycle.ErrRemoteRejected),
		errors.Is(err, lifecycle.ErrRemoteUnavailable):
		return "remote_error"
	default:
		return "error"
	}
}
