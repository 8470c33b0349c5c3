package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/flow"
	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
	"gitlab.bluewillows.net/root/dnsbot/internal/registry"
	"gitlab.bluewillows.net/root/dnsbot/pkg/provider"
)

// maxSelectOptions is the most entries a select menu can show.
const maxSelectOptions = 25

// timeoutEditDeadline bounds the edit made when a menu times out.
const timeoutEditDeadline = 10 * time.Second

// componentInput is a routed component event.
type componentInput struct {
	actor  lifecycle.Actor
	action string
	value  string
}

// flowState is the per-session state of an interactive command. handle runs
// with the session locked.
type flowState interface {
	handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error
	// expired is the message left in place once the flow times out.
	expired() Message
}

// startFlow opens a session whose timeout edits the original reply.
func (b *Bot) startFlow(kind, owner string, timeout time.Duration, st flowState, r Responder) *flow.Session {
	s := b.router.Start(kind, owner, timeout, func(s *flow.Session) {
		ctx, cancel := context.WithTimeout(context.Background(), timeoutEditDeadline)
		defer cancel()
		if err := r.Edit(ctx, st.expired()); err != nil {
			b.logger.Warn("failed to strip expired menu",
				slog.String("flow", s.Kind),
				slog.String("flow_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	})
	s.Lock()
	s.State = st
	s.Unlock()
	return s
}

func confirmRow(s *flow.Session, confirmLabel string) ActionRow {
	return ActionRow{Buttons: []Button{
		{CustomID: s.CustomID(string(flow.ActionConfirm), ""), Label: confirmLabel, Style: ButtonDanger},
		{CustomID: s.CustomID(string(flow.ActionCancel), ""), Label: "Cancel", Style: ButtonSecondary},
	}}
}

func interaction(in componentInput) flow.Interaction {
	return flow.Interaction{UserID: in.actor.UserID, Action: flow.Action(in.action), Value: in.value}
}

// removeDomainFlow confirms a domain removal.
type removeDomainFlow struct {
	sel    *flow.Selection
	domain string
}

func (f *removeDomainFlow) handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error {
	tr, err := f.sel.Apply(interaction(in), b.router.Now())
	if err != nil {
		return err
	}
	switch tr.To {
	case flow.Cancelled:
		s.End(flow.OutcomeCancelled)
		return r.Update(ctx, Message{Content: "❌ Domain removal cancelled."})
	case flow.Completed:
		if err := b.manager.RemoveDomain(ctx, in.actor, f.domain); err != nil {
			return err
		}
		s.End(flow.OutcomeCompleted)
		if err := r.Update(ctx, Message{Content: fmt.Sprintf("✅ Domain `%s` has been removed.", f.domain)}); err != nil {
			return err
		}
		b.syncCommands(ctx)
	}
	return nil
}

func (f *removeDomainFlow) expired() Message {
	return Message{Content: "⏱️ Confirmation timed out."}
}

// removeRecordFlow picks a zone record, confirms and deletes it.
type removeRecordFlow struct {
	sel     *flow.Selection
	domain  string
	records []provider.Record
	chosen  provider.Record
}

func (f *removeRecordFlow) pickMessage(s *flow.Session) Message {
	shown := f.records[:min(len(f.records), maxSelectOptions)]
	opts := make([]SelectOption, 0, len(shown))
	for _, rec := range shown {
		opts = append(opts, SelectOption{
			Label:       truncate(fmt.Sprintf("%s - %s", rec.Type, rec.Name), 100),
			Value:       rec.ID,
			Description: truncate(rec.Content, 100),
		})
	}
	content := fmt.Sprintf("📄 Choose a record to remove from `%s`:", f.domain)
	if len(f.records) > len(shown) {
		content += fmt.Sprintf("\nShowing the first %d of %d records.", len(shown), len(f.records))
	}
	return Message{
		Content: content,
		Components: []ActionRow{{Select: &Select{
			CustomID:    s.CustomID(string(flow.ActionChoose), ""),
			Placeholder: "Select a record to remove",
			Options:     opts,
		}}},
		Ephemeral: true,
	}
}

func (f *removeRecordFlow) handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error {
	if in.action == string(flow.ActionChoose) && f.sel.State() == flow.AwaitingRecordChoice {
		i := slices.IndexFunc(f.records, func(rec provider.Record) bool { return rec.ID == in.value })
		if i < 0 {
			return flow.ErrInvalidAction
		}
		f.chosen = f.records[i]
	}

	tr, err := f.sel.Apply(interaction(in), b.router.Now())
	if err != nil {
		return err
	}
	switch tr.To {
	case flow.AwaitingConfirmation:
		s.Extend(f.sel.Timeout())
		return r.Update(ctx, Message{
			Content: fmt.Sprintf("⚠️ Remove `%s` (%s) from `%s`?\n→ `%s`",
				f.chosen.Name, f.chosen.Type, f.domain, f.chosen.Content),
			Components: []ActionRow{confirmRow(s, "Yes, remove it")},
		})
	case flow.Cancelled:
		s.End(flow.OutcomeCancelled)
		return r.Update(ctx, Message{Content: "❌ Record removal cancelled."})
	case flow.Completed:
		res, err := b.manager.DeleteRemote(ctx, in.actor, f.domain, f.chosen)
		if err != nil {
			return err
		}
		s.End(flow.OutcomeCompleted)
		msg := fmt.Sprintf("✅ Removed record `%s` (%s) from `%s`.", f.chosen.Name, f.chosen.Type, f.domain)
		if len(res.Actions) > 0 && res.Actions[0].Status == lifecycle.StatusGone {
			msg = fmt.Sprintf("⚠️ Record `%s` (%s) was already gone from `%s`.", f.chosen.Name, f.chosen.Type, f.domain)
		}
		return r.Update(ctx, Message{Content: msg})
	}
	return nil
}

func (f *removeRecordFlow) expired() Message {
	return Message{Content: "⏱️ Timed out. No record removed."}
}

// removeDNSFlow picks one of the caller's records, confirms and removes it.
type removeDNSFlow struct {
	sel     *flow.Selection
	domain  string
	records []ledger.ManagedRecord
}

func (f *removeDNSFlow) pickMessage(s *flow.Session) Message {
	shown := f.records[:min(len(f.records), maxSelectOptions)]
	opts := make([]SelectOption, 0, len(shown))
	for _, rec := range shown {
		opts = append(opts, SelectOption{
			Label: truncate(fmt.Sprintf("%s (%s)", rec.Name, rec.Type), 100),
			Value: rec.Name,
		})
	}
	return Message{
		Content: fmt.Sprintf("Choose one of your records under `%s` to remove:", f.domain),
		Components: []ActionRow{{Select: &Select{
			CustomID:    s.CustomID(string(flow.ActionChoose), ""),
			Placeholder: "Select a record to remove",
			Options:     opts,
		}}},
		Ephemeral: true,
	}
}

func (f *removeDNSFlow) handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error {
	if in.action == string(flow.ActionChoose) &&
		!slices.ContainsFunc(f.records, func(rec ledger.ManagedRecord) bool { return rec.Name == in.value }) {
		return flow.ErrInvalidAction
	}

	tr, err := f.sel.Apply(interaction(in), b.router.Now())
	if err != nil {
		return err
	}
	switch tr.To {
	case flow.AwaitingConfirmation:
		s.Extend(f.sel.Timeout())
		return r.Update(ctx, Message{
			Content:    fmt.Sprintf("⚠️ Remove `%s` and its DNS records from Cloudflare?", in.value),
			Components: []ActionRow{confirmRow(s, "Yes, remove it")},
		})
	case flow.Cancelled:
		s.End(flow.OutcomeCancelled)
		return r.Update(ctx, Message{Content: "❌ Removal cancelled."})
	case flow.Completed:
		res, err := b.manager.RemoveByName(ctx, in.actor, f.sel.Choice(flow.AwaitingRecordChoice))
		if err != nil {
			return removalFailure(res, err)
		}
		s.End(flow.OutcomeCompleted)
		return r.Update(ctx, Message{Content: removalMessage(res)})
	}
	return nil
}

func (f *removeDNSFlow) expired() Message {
	return Message{Content: "⏱️ Timed out. Nothing was removed."}
}

// listDomainsFlow pages through the registered domains.
type listDomainsFlow struct {
	pager   *flow.Pager
	domains []registry.DomainInfo
	session *flow.Session
}

func (f *listDomainsFlow) render(s *flow.Session) Message {
	f.session = s
	start, end := f.pager.Bounds()
	lines := make([]string, 0, end-start)
	for i, d := range f.domains[start:end] {
		lines = append(lines, fmt.Sprintf("**%d.** `%s`", start+i+1, d.Name))
	}
	msg := Message{Embeds: []Embed{{
		Title:       "Configured Domains",
		Description: strings.Join(lines, "\n"),
		Footer:      fmt.Sprintf("Page %d of %d", f.pager.Page()+1, f.pager.Pages()),
		Color:       ColorDomains,
	}}}
	if c := f.pager.Controls(); !f.pager.Ended() {
		msg.Components = []ActionRow{{Buttons: []Button{
			{CustomID: s.CustomID(string(flow.NavBack), ""), Label: "Back", Style: ButtonSecondary, Disabled: !c.Back},
			{CustomID: s.CustomID(string(flow.NavNext), ""), Label: "Next", Style: ButtonPrimary, Disabled: !c.Next},
		}}}
	}
	return msg
}

func (f *listDomainsFlow) handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error {
	if _, err := f.pager.Apply(in.actor.UserID, flow.Nav(in.action), b.router.Now()); err != nil {
		return err
	}
	return r.Update(ctx, f.render(s))
}

func (f *listDomainsFlow) expired() Message {
	f.pager.End()
	return f.render(f.session)
}

// viewDNSFlow picks a domain and pages through its zone records. Home
// returns to the domain pick.
type viewDNSFlow struct {
	owner   string
	sel     *flow.Selection
	pager   *flow.Pager
	domains []registry.DomainInfo
	domain  string
	records []provider.Record
	session *flow.Session
}

// pick (re)starts the domain selection step.
func (f *viewDNSFlow) pick(b *Bot) error {
	sel, err := flow.NewSelection(f.owner, b.router.Now(),
		flow.Step{State: flow.AwaitingDomainChoice, Timeout: b.timeouts.Browse},
	)
	if err != nil {
		return err
	}
	f.sel = sel
	f.pager = nil
	f.records = nil
	return nil
}

func (f *viewDNSFlow) pickMessage(s *flow.Session, note string) Message {
	f.session = s
	shown := f.domains[:min(len(f.domains), maxSelectOptions)]
	opts := make([]SelectOption, 0, len(shown))
	for _, d := range shown {
		opts = append(opts, SelectOption{Label: d.Name, Value: d.Name})
	}
	content := "Please choose a domain to view DNS records:"
	if note != "" {
		content = note + "\n" + content
	}
	return Message{
		Content: content,
		Components: []ActionRow{{Select: &Select{
			CustomID:    s.CustomID(string(flow.ActionChoose), ""),
			Placeholder: "Choose a domain",
			Options:     opts,
		}}},
		Ephemeral: true,
	}
}

func (f *viewDNSFlow) render(s *flow.Session) Message {
	f.session = s
	start, end := f.pager.Bounds()
	lines := make([]string, 0, end-start)
	for i, rec := range f.records[start:end] {
		lines = append(lines, fmt.Sprintf("**%d. %s**: %s → %s", start+i+1, rec.Type, rec.Name, recordValue(rec)))
	}
	msg := Message{
		Embeds: []Embed{{
			Title:       "DNS Records for " + f.domain,
			Description: fmt.Sprintf("Page %d/%d\n\n%s", f.pager.Page()+1, f.pager.Pages(), strings.Join(lines, "\n")),
			Color:       ColorInfo,
		}},
		Ephemeral: true,
	}
	if c := f.pager.Controls(); !f.pager.Ended() {
		msg.Components = []ActionRow{{Buttons: []Button{
			{CustomID: s.CustomID(string(flow.NavBack), ""), Label: "Back", Style: ButtonPrimary, Disabled: !c.Back},
			{CustomID: s.CustomID(string(flow.NavNext), ""), Label: "Next", Style: ButtonPrimary, Disabled: !c.Next},
			{CustomID: s.CustomID(string(flow.NavHome), ""), Label: "Go Home", Style: ButtonSecondary, Disabled: !c.Home},
		}}}
	}
	return msg
}

func (f *viewDNSFlow) handle(ctx context.Context, b *Bot, s *flow.Session, in componentInput, r ComponentResponder) error {
	if f.pager == nil {
		if in.action == string(flow.ActionChoose) &&
			!slices.ContainsFunc(f.domains, func(d registry.DomainInfo) bool { return d.Name == in.value }) {
			return flow.ErrInvalidAction
		}
		if _, err := f.sel.Apply(interaction(in), b.router.Now()); err != nil {
			return err
		}
		records, err := b.manager.ListRemote(ctx, in.actor, in.value)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			if err := f.pick(b); err != nil {
				return err
			}
			s.Extend(b.timeouts.Browse)
			return r.Update(ctx, f.pickMessage(s, fmt.Sprintf("No DNS records found for `%s`.", in.value)))
		}
		f.domain = in.value
		f.records = records
		f.pager = flow.NewPager(f.owner, len(records), b.pageSize, b.router.Now(), b.timeouts.View)
		s.Extend(b.timeouts.View)
		return r.Update(ctx, f.render(s))
	}

	nav := flow.Nav(in.action)
	if nav == flow.NavHome {
		if _, err := f.pager.Apply(in.actor.UserID, nav, b.router.Now()); err != nil {
			return err
		}
		if err := f.pick(b); err != nil {
			return err
		}
		s.Extend(b.timeouts.Browse)
		return r.Update(ctx, f.pickMessage(s, ""))
	}
	if _, err := f.pager.Apply(in.actor.UserID, nav, b.router.Now()); err != nil {
		return err
	}
	return r.Update(ctx, f.render(s))
}

func (f *viewDNSFlow) expired() Message {
	if f.pager == nil {
		return Message{Content: "⏱️ Domain selection timed out."}
	}
	f.pager.End()
	return f.render(f.session)
}

func recordValue(rec provider.Record) string {
	if rec.Content != "" {
		return rec.Content
	}
	if rec.Type == provider.RecordTypeSRV && rec.Data != nil {
		return fmt.Sprintf("%v:%v", rec.Data["target"], rec.Data["port"])
	}
	return "-"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
