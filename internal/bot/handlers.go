package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/flow"
	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
)

// replyError carries a prepared user message for an error.
type replyError struct {
	msg string
	err error
}

func (e *replyError) Error() string { return e.err.Error() }
func (e *replyError) Unwrap() error { return e.err }

func (b *Bot) createDNS(ctx context.Context, inv Invocation, out *sender) error {
	req := lifecycle.CreateRequest{
		Domain:    inv.String("domain"),
		Type:      inv.String("type"),
		Subdomain: inv.String("subdomain"),
		Content:   inv.String("content"),
		Port:      inv.Int("port"),
		Proxied:   inv.Bool("proxied"),
	}
	display := strings.TrimSpace(req.Subdomain) + "." + req.Domain
	if err := out.Send(ctx, ephemeral(fmt.Sprintf("⏳ Creating DNS record for `%s`...", display))); err != nil {
		return err
	}

	res, err := b.manager.Create(ctx, inv.Actor, req)
	if err != nil {
		if lifecycle.IsPartial(err) && res != nil {
			return &replyError{
				msg: fmt.Sprintf("⚠️ A record created, but failed to create SRV record for `%s`:\n```\n%s\n```\n"+
					"The record is saved as incomplete. Remove it with /removedns and try again.",
					res.Record.Name, remoteDetail(err)),
				err: err,
			}
		}
		return err
	}

	rec := res.Record
	if rec.Type == ledger.TypeMinecraft {
		ip := ""
		if len(rec.Parts) > 0 {
			ip = rec.Parts[0].Content
		}
		return out.Send(ctx, ephemeral(fmt.Sprintf(
			"✅ Subdomain `%s` created!\n\n🔹 **A Record** → `%s`\n🔹 **SRV Record** → `%s:%d`",
			rec.Name, ip, lifecycle.MinecraftSRVName(rec.Name), req.Port)))
	}
	content := ""
	if len(rec.Parts) > 0 {
		content = rec.Parts[0].Content
	}
	return out.Send(ctx, ephemeral(fmt.Sprintf("✅ %s record created: `%s` → `%s`", rec.Type, rec.Name, content)))
}

func (b *Bot) removeDNS(ctx context.Context, inv Invocation, out *sender) error {
	req := lifecycle.RemoveRequest{
		Domain:    inv.String("domain"),
		Subdomain: inv.String("subdomain"),
		Index:     inv.Int("index"),
	}
	if req.Subdomain != "" || req.Index != 0 {
		res, err := b.manager.Remove(ctx, inv.Actor, req)
		if err != nil {
			return removalFailure(res, err)
		}
		return out.Send(ctx, ephemeral(removalMessage(res)))
	}

	recs, err := b.manager.ListMineIn(ctx, inv.Actor, req.Domain)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return out.Send(ctx, ephemeral(fmt.Sprintf("⚠️ You have no DNS records under the domain `%s`.", req.Domain)))
	}

	sel, err := flow.NewSelection(inv.Actor.UserID, b.router.Now(),
		flow.Step{State: flow.AwaitingRecordChoice, Timeout: b.timeouts.Select},
		flow.Step{State: flow.AwaitingConfirmation, Timeout: b.timeouts.Confirm},
	)
	if err != nil {
		return err
	}
	st := &removeDNSFlow{sel: sel, domain: req.Domain, records: recs}
	s := b.startFlow(CmdRemoveDNS, inv.Actor.UserID, b.timeouts.Select, st, out.r)
	return out.Send(ctx, st.pickMessage(s))
}

func (b *Bot) listDNS(ctx context.Context, inv Invocation, out *sender) error {
	recs, err := b.manager.ListMine(ctx, inv.Actor)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return out.Send(ctx, ephemeral("❌ You don't have any saved DNS records yet."))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ **Your DNS Records** (%d/%d):", len(recs), b.manager.Quota())
	for i, r := range recs {
		fmt.Fprintf(&sb, "\n`%d.` %s (%s)", i+1, r.Name, r.Type)
		if r.Incomplete {
			sb.WriteString(" ⚠️ incomplete")
		}
	}
	return out.Send(ctx, ephemeral(sb.String()))
}

func (b *Bot) listDomains(ctx context.Context, inv Invocation, out *sender) error {
	domains := b.manager.Domains(ctx)
	if len(domains) == 0 {
		return out.Send(ctx, ephemeral("❌ No domains are configured."))
	}

	st := &listDomainsFlow{
		pager:   flow.NewPager(inv.Actor.UserID, len(domains), b.pageSize, b.router.Now(), b.timeouts.List),
		domains: domains,
	}
	s := b.startFlow(CmdListDomains, inv.Actor.UserID, b.timeouts.List, st, out.r)
	return out.Send(ctx, st.render(s))
}

func (b *Bot) viewDNS(ctx context.Context, inv Invocation, out *sender) error {
	owner, err := b.manager.IsOwner(ctx, inv.Actor)
	if err != nil {
		return err
	}
	if !owner {
		return fmt.Errorf("%w: owner only", lifecycle.ErrForbidden)
	}
	domains := b.manager.Domains(ctx)
	if len(domains) == 0 {
		return out.Send(ctx, ephemeral("❌ No domains are configured."))
	}

	st := &viewDNSFlow{owner: inv.Actor.UserID, domains: domains}
	if err := st.pick(b); err != nil {
		return err
	}
	s := b.startFlow(CmdViewDNS, inv.Actor.UserID, b.timeouts.Browse, st, out.r)
	return out.Send(ctx, st.pickMessage(s, ""))
}

func (b *Bot) removeRecord(ctx context.Context, inv Invocation, out *sender) error {
	domain := inv.String("domain")
	records, err := b.manager.ListRemote(ctx, inv.Actor, domain)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return out.Send(ctx, ephemeral(fmt.Sprintf("❌ No records found for `%s`.", domain)))
	}

	sel, err := flow.NewSelection(inv.Actor.UserID, b.router.Now(),
		flow.Step{State: flow.AwaitingRecordChoice, Timeout: b.timeouts.Select},
		flow.Step{State: flow.AwaitingConfirmation, Timeout: b.timeouts.Confirm},
	)
	if err != nil {
		return err
	}
	st := &removeRecordFlow{sel: sel, domain: domain, records: records}
	s := b.startFlow(CmdRemoveRecord, inv.Actor.UserID, b.timeouts.Select, st, out.r)
	return out.Send(ctx, st.pickMessage(s))
}

func (b *Bot) addDomain(ctx context.Context, inv Invocation, out *sender) error {
	info, err := b.manager.AddDomain(ctx, inv.Actor, inv.String("name"), inv.String("zoneid"), inv.String("token"))
	if err != nil {
		return err
	}
	if err := out.Send(ctx, ephemeral(fmt.Sprintf("✅ Added domain: `%s`", info.Name))); err != nil {
		return err
	}
	b.syncCommands(ctx)
	return nil
}

func (b *Bot) removeDomain(ctx context.Context, inv Invocation, out *sender) error {
	info, err := b.manager.CheckRemoveDomain(ctx, inv.Actor, inv.String("domain"))
	if err != nil {
		return err
	}
	sel, err := flow.NewSelection(inv.Actor.UserID, b.router.Now(),
		flow.Step{State: flow.AwaitingConfirmation, Timeout: b.timeouts.Confirm},
	)
	if err != nil {
		return err
	}
	st := &removeDomainFlow{sel: sel, domain: info.Name}
	s := b.startFlow(CmdRemoveDomain, inv.Actor.UserID, b.timeouts.Confirm, st, out.r)
	return out.Send(ctx, Message{
		Content:    fmt.Sprintf("⚠️ Are you sure you want to remove `%s` from the domain list?", info.Name),
		Components: []ActionRow{confirmRow(s, "Yes, remove it")},
		Ephemeral:  true,
	})
}

func (b *Bot) clearDNS(ctx context.Context, inv Invocation, out *sender) error {
	domain := inv.String("domain")
	if err := out.Send(ctx, ephemeral(fmt.Sprintf("⏳ Clearing DNS records for **%s**...", domain))); err != nil {
		return err
	}

	res, err := b.manager.ClearAll(ctx, inv.Actor, domain)
	if err != nil {
		if lifecycle.IsPartial(err) && res != nil {
			return &replyError{
				msg: fmt.Sprintf("⚠️ Deleted **%d** of **%d** DNS record(s) on **%s**:\n```\n%s\n```",
					len(res.Succeeded()), len(res.Actions), domain, remoteDetail(err)),
				err: err,
			}
		}
		return err
	}
	if res.Outcome == lifecycle.OutcomeAlreadyClean {
		return out.Send(ctx, ephemeral(fmt.Sprintf("✅ No DNS records to delete for **%s**.", domain)))
	}
	return out.Send(ctx, ephemeral(fmt.Sprintf("✅ Successfully deleted **%d** DNS record(s) on **%s**.", len(res.Succeeded()), domain)))
}

func (b *Bot) lockDNS(ctx context.Context, inv Invocation, out *sender) error {
	if err := b.manager.SetLocked(ctx, inv.Actor, true); err != nil {
		return err
	}
	return out.Send(ctx, ephemeral("🔒 DNS creation has been locked."))
}

func (b *Bot) unlockDNS(ctx context.Context, inv Invocation, out *sender) error {
	if err := b.manager.SetLocked(ctx, inv.Actor, false); err != nil {
		return err
	}
	return out.Send(ctx, ephemeral("🔓 DNS creation has been unlocked."))
}

func (b *Bot) ping(ctx context.Context, inv Invocation, out *sender) error {
	if err := out.Send(ctx, ephemeral("Pinging...")); err != nil {
		return err
	}
	latency := b.now().Sub(inv.CreatedAt)
	if inv.CreatedAt.IsZero() || latency < 0 {
		latency = 0
	}
	return out.Send(ctx, ephemeral(fmt.Sprintf("🏓 Pong! Latency is %dms.", latency.Milliseconds())))
}

func (b *Bot) uptime(ctx context.Context, _ Invocation, out *sender) error {
	return out.Send(ctx, ephemeral("🕒 Bot uptime: "+formatUptime(b.now().Sub(b.started))))
}

func formatUptime(d time.Duration) string {
	total := int(d.Seconds())
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
}

// removalMessage describes a successful Remove.
func removalMessage(res *lifecycle.Result) string {
	switch res.Outcome {
	case lifecycle.OutcomeAlreadyClean:
		return fmt.Sprintf("⚠️ No DNS records found for `%s` on Cloudflare. It was removed from your records.", res.Record.Name)
	case lifecycle.OutcomeDomainGone:
		return fmt.Sprintf("⚠️ `%s` is no longer a managed domain, so nothing was deleted on Cloudflare. `%s` was removed from your records.",
			res.Record.Domain, res.Record.Name)
	}
	return fmt.Sprintf("✅ Successfully removed `%s` from Cloudflare and your records.", res.Record.Name)
}

// removalFailure turns a partial Remove into a reply naming what was deleted
// and what failed. Other errors pass through.
func removalFailure(res *lifecycle.Result, err error) error {
	var pf *lifecycle.PartialFailure
	if !errors.As(err, &pf) || res == nil {
		return err
	}
	return &replyError{
		msg: fmt.Sprintf("⚠️ Failed to fully remove `%s`:\n```\n%s\n```\n%s"+
			"The record stays in your list. Run /removedns again to retry.",
			res.Record.Name, remoteDetail(err), deletedParts(pf.Succeeded)),
		err: err,
	}
}

// deletedParts lists the records a partial operation did delete.
func deletedParts(actions []lifecycle.Action) string {
	if len(actions) == 0 {
		return "Nothing was deleted.\n"
	}
	var sb strings.Builder
	sb.WriteString("Deleted:\n")
	for _, a := range actions {
		fmt.Fprintf(&sb, "🔹 %s `%s`\n", a.RecordType, a.Name)
	}
	return sb.String()
}

// remoteDetail returns the provider's messages from a partial failure.
func remoteDetail(err error) string {
	var pf *lifecycle.PartialFailure
	if !errors.As(err, &pf) {
		return err.Error()
	}
	lines := make([]string, 0, len(pf.Failed))
	for _, a := range pf.Failed {
		lines = append(lines, fmt.Sprintf("%s %s: %v", a.RecordType, a.Name, a.Err))
	}
	return strings.Join(lines, "\n")
}
