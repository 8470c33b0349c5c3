package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// secretOptions are never echoed to the audit log.
var secretOptions = []string{"token"}

const redacted = "[redacted]"

// AuditEntry describes one executed command.
type AuditEntry struct {
	Command   string
	UserID    string
	UserTag   string
	ChannelID string
	Outcome   string
	Inputs    []Field
	Time      time.Time
}

// Embed renders the entry for a log channel.
func (e AuditEntry) Embed() Embed {
	inputs := "No options"
	if len(e.Inputs) > 0 {
		lines := make([]string, 0, len(e.Inputs))
		for _, f := range e.Inputs {
			lines = append(lines, fmt.Sprintf("**%s**: %s", f.Name, f.Value))
		}
		inputs = strings.Join(lines, "\n")
	}
	user := e.UserID
	if e.UserTag != "" {
		user = fmt.Sprintf("%s (%s)", e.UserTag, e.UserID)
	}
	return Embed{
		Title: fmt.Sprintf("🧩 Command Used: </%s:0>", e.Command),
		Color: ColorAudit,
		Fields: []Field{
			{Name: "User", Value: user, Inline: true},
			{Name: "Channel", Value: fmt.Sprintf("<#%s>", e.ChannelID), Inline: true},
			{Name: "Inputs", Value: inputs},
		},
		Timestamp: e.Time,
	}
}

// auditInputs lists the invocation options in name order with secrets
// redacted.
func auditInputs(options map[string]any) []Field {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	slices.Sort(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		value := fmt.Sprint(options[name])
		if slices.Contains(secretOptions, name) {
			value = redacted
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return fields
}

func (b *Bot) audit(ctx context.Context, inv Invocation, outcome string) {
	entry := AuditEntry{
		Command:   inv.Command,
		UserID:    inv.Actor.UserID,
		UserTag:   inv.Actor.Tag,
		ChannelID: inv.ChannelID,
		Outcome:   outcome,
		Inputs:    auditInputs(inv.Options),
		Time:      b.now(),
	}

	attrs := []any{
		slog.String("command", entry.Command),
		slog.String("user", entry.UserID),
		slog.String("channel", entry.ChannelID),
		slog.String("outcome", outcome),
	}
	for _, f := range entry.Inputs {
		attrs = append(attrs, slog.String("input."+f.Name, f.Value))
	}
	b.logger.Info("audit", attrs...)

	if b.auditor == nil {
		return
	}
	if err := b.auditor.Audit(ctx, entry); err != nil {
		b.logger.Warn("failed to post audit entry", slog.String("error", err.Error()))
	}
}
