// Package discord connects the bot to the Discord gateway.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"gitlab.bluewillows.net/root/dnsbot/internal/bot"
	"gitlab.bluewillows.net/root/dnsbot/internal/lifecycle"
)

// DefaultHandlerTimeout bounds the work done for one interaction.
const DefaultHandlerTimeout = 30 * time.Second

// ErrNotConnected is reported by Ready while the gateway is down.
var ErrNotConnected = errors.New("discord gateway not connected")

// Config holds the Discord settings.
type Config struct {
	Token          string
	ApplicationID  string
	GuildID        string
	LogChannelID   string
	HandlerTimeout time.Duration
}

// api is the subset of *discordgo.Session used to answer interactions.
type api interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway owns the Discord session and feeds events to a Bot.
type Gateway struct {
	cfg       Config
	session   *discordgo.Session
	api       api
	logger    *slog.Logger
	connected atomic.Bool

	mu  sync.RWMutex
	bot *bot.Bot
}

// Option is a functional option for configuring the Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Gateway. The connection is opened by Open.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is required")
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultHandlerTimeout
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	g := &Gateway{
		cfg:     cfg,
		session: session,
		api:     session,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Open attaches b and connects to the gateway.
func (g *Gateway) Open(b *bot.Bot) error {
	g.mu.Lock()
	g.bot = b
	g.mu.Unlock()

	routeLibraryLogs(g.logger)

	g.session.AddHandler(g.onReady)
	g.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Connect) {
		g.connected.Store(true)
	})
	g.session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) {
		g.connected.Store(false)
		g.logger.Warn("discord gateway disconnected")
	})
	g.session.AddHandler(g.onInteraction)

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (g *Gateway) Close() error {
	g.connected.Store(false)
	return g.session.Close()
}

// Ready reports whether the gateway connection is up.
func (g *Gateway) Ready(context.Context) error {
	if !g.connected.Load() {
		return ErrNotConnected
	}
	return nil
}

// Latency returns the last heartbeat round trip.
func (g *Gateway) Latency() time.Duration {
	return g.session.HeartbeatLatency()
}

func (g *Gateway) attached() *bot.Bot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.bot
}

func (g *Gateway) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	g.connected.Store(true)
	g.logger.Info("connected to discord",
		slog.String("user", r.User.String()),
		slog.Int("guilds", len(r.Guilds)),
	)

	b := g.attached()
	if b == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.HandlerTimeout)
	defer cancel()
	if err := g.SyncCommands(ctx, b.Commands(ctx)); err != nil {
		g.logger.Error("failed to register commands", slog.String("error", err.Error()))
	}
}

func (g *Gateway) onInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	b := g.attached()
	if b == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.HandlerTimeout)
	defer cancel()

	i := ic.Interaction
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.Handle(ctx, invocation(i), &commandResponder{api: g.api, i: i})
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		b.HandleComponent(ctx, bot.ComponentEvent{
			CustomID: data.CustomID,
			Values:   data.Values,
			Actor:    actor(i),
		}, &componentResponder{api: g.api, i: i})
	default:
		g.logger.Debug("ignoring interaction", slog.String("type", i.Type.String()))
	}
}

// SyncCommands implements bot.Registrar. Commands are registered on the
// configured guild, or globally when none is set.
func (g *Gateway) SyncCommands(ctx context.Context, commands []bot.CommandSpec) error {
	appID := g.cfg.ApplicationID
	if appID == "" && g.session.State != nil && g.session.State.User != nil {
		appID = g.session.State.User.ID
	}
	if appID == "" {
		return errors.New("application id unknown")
	}
	registered, err := g.api.ApplicationCommandBulkOverwrite(appID, g.cfg.GuildID, applicationCommands(commands), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("registering commands: %w", err)
	}
	g.logger.Info("commands registered",
		slog.Int("count", len(registered)),
		slog.String("guild", g.cfg.GuildID),
	)
	return nil
}

// Audit implements bot.Auditor by posting the entry to the log channel.
func (g *Gateway) Audit(ctx context.Context, entry bot.AuditEntry) error {
	if g.cfg.LogChannelID == "" {
		return nil
	}
	_, err := g.api.ChannelMessageSendEmbed(g.cfg.LogChannelID, embed(entry.Embed()), discordgo.WithContext(ctx))
	return err
}

func actor(i *discordgo.Interaction) lifecycle.Actor {
	var (
		user  *discordgo.User
		roles []string
	)
	if i.Member != nil {
		user = i.Member.User
		roles = i.Member.Roles
	} else {
		user = i.User
	}
	if user == nil {
		return lifecycle.Actor{RoleIDs: roles}
	}
	return lifecycle.Actor{UserID: user.ID, Tag: user.String(), RoleIDs: roles}
}

func invocation(i *discordgo.Interaction) bot.Invocation {
	data := i.ApplicationCommandData()
	options := make(map[string]any, len(data.Options))
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			options[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionInteger:
			options[opt.Name] = opt.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			options[opt.Name] = opt.BoolValue()
		default:
			options[opt.Name] = opt.Value
		}
	}
	created, err := discordgo.SnowflakeTimestamp(i.ID)
	if err != nil {
		created = time.Now()
	}
	return bot.Invocation{
		Command:   data.Name,
		Options:   options,
		Actor:     actor(i),
		ChannelID: i.ChannelID,
		CreatedAt: created,
	}
}

type commandResponder struct {
	api api
	i   *discordgo.Interaction
}

func (r *commandResponder) Reply(ctx context.Context, m bot.Message) error {
	return r.api.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(m),
	}, discordgo.WithContext(ctx))
}

func (r *commandResponder) Edit(ctx context.Context, m bot.Message) error {
	_, err := r.api.InteractionResponseEdit(r.i, webhookEdit(m), discordgo.WithContext(ctx))
	return err
}

type componentResponder struct {
	api api
	i   *discordgo.Interaction
}

func (r *componentResponder) Update(ctx context.Context, m bot.Message) error {
	return r.api.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: responseData(m),
	}, discordgo.WithContext(ctx))
}

func (r *componentResponder) Reply(ctx context.Context, m bot.Message) error {
	return r.api.InteractionRespond(r.i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: responseData(m),
	}, discordgo.WithContext(ctx))
}

var routeOnce sync.Once

// routeLibraryLogs sends discordgo's own log output through logger.
func routeLibraryLogs(logger *slog.Logger) {
	routeOnce.Do(func() {
		discordgo.Logger = func(msgL, _ int, format string, a ...any) {
			level := slog.LevelDebug
			switch msgL {
			case discordgo.LogError:
				level = slog.LevelError
			case discordgo.LogWarning:
				level = slog.LevelWarn
			case discordgo.LogInformational:
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, fmt.Sprintf(format, a...), slog.String("component", "discordgo"))
		}
	})
}
