package bot

import (
	"context"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
)

// Embed colours.
const (
	ColorInfo    = 0x00A8E8
	ColorDomains = 0x5865F2
	ColorAudit   = 0x00B0F4
)

// Message is a platform-neutral reply.
type Message struct {
	Content    string
	Embeds     []Embed
	Components []ActionRow
	Ephemeral  bool
}

// Embed is a rich message block.
type Embed struct {
	Title       string
	Description string
	Footer      string
	Color       int
	Fields      []Field
	Timestamp   time.Time
}

// Field is one embed field.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle selects a button's look.
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonDanger
)

// ActionRow holds either buttons or one select menu.
type ActionRow struct {
	Buttons []Button
	Select  *Select
}

// Button is a clickable control.
type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

// Select is a single-choice dropdown.
type Select struct {
	CustomID    string
	Placeholder string
	Options     []SelectOption
}

// SelectOption is one dropdown entry.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Invocation is one slash command call.
type Invocation struct {
	Command   string
	Options   map[string]any
	Actor     lifecycle.Actor
	ChannelID string
	CreatedAt time.Time
}

// String returns a string option.
func (inv Invocation) String(name string) string {
	v, _ := inv.Options[name].(string)
	return v
}

// Int returns an integer option.
func (inv Invocation) Int(name string) int {
	switch v := inv.Options[name].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Bool returns a boolean option.
func (inv Invocation) Bool(name string) bool {
	v, _ := inv.Options[name].(bool)
	return v
}

// ComponentEvent is a button press or select choice on a bot message.
type ComponentEvent struct {
	CustomID string
	Values   []string
	Actor    lifecycle.Actor
}

// Responder answers a command invocation. Edit changes the first reply and
// stays valid after the invocation handler returns.
type Responder interface {
	Reply(ctx context.Context, msg Message) error
	Edit(ctx context.Context, msg Message) error
}

// ComponentResponder answers a component event. Update replaces the message
// carrying the component; Reply sends a separate message.
type ComponentResponder interface {
	Update(ctx context.Context, msg Message) error
	Reply(ctx context.Context, msg Message) error
}

// sender sends the first message as a reply and every later one as an edit.
type sender struct {
	r       Responder
	replied bool
}

func (s *sender) Send(ctx context.Context, msg Message) error {
	if s.replied {
		return s.r.Edit(ctx, msg)
	}
	s.replied = true
	return s.r.Reply(ctx, msg)
}

func ephemeral(content string) Message {
	return Message{Content: content, Ephemeral: true}
}
