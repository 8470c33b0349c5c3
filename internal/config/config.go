// Package config handles loading and validation of dnsbot configuration.
//
// Settings come from three layers, later layers winning: built-in defaults,
// an optional YAML or TOML file, and DNSBOT_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete runtime configuration.
type Config struct {
	Logging    LoggingConfig
	Discord    DiscordConfig
	Access     AccessConfig
	Records    RecordsConfig
	State      StateConfig
	Cloudflare CloudflareConfig
	Flows      FlowsConfig
	Server     ServerConfig
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text

	// File enables a rotated log file in addition to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DiscordConfig holds the gateway credentials and target channels.
type DiscordConfig struct {
	Token         string
	ApplicationID string
	GuildID       string // empty registers commands globally
	LogChannelID  string // empty disables the audit embed
}

// AccessConfig seeds the access policy when the settings store has none.
type AccessConfig struct {
	Owners         []string
	RequiredRoleID string
}

// RecordsConfig holds record limits.
type RecordsConfig struct {
	Quota int
}

// StateConfig selects where settings and the ledger are kept.
type StateConfig struct {
	Backend      string // file, redis
	Dir          string
	SettingsPath string
	LedgerPath   string
	Redis        RedisConfig
}

// RedisConfig configures the Redis state backend.
type RedisConfig struct {
	Address   string
	DB        int
	Password  string
	KeyPrefix string
}

// CloudflareConfig holds settings shared by every zone client.
type CloudflareConfig struct {
	APIEndpoint string
	Timeout     time.Duration
	RateLimit   float64
}

// FlowsConfig tunes the interactive menus.
type FlowsConfig struct {
	PageSize       int
	ConfirmTimeout time.Duration
	SelectTimeout  time.Duration
	BrowseTimeout  time.Duration
	ListTimeout    time.Duration
	ViewTimeout    time.Duration
}

// ServerConfig controls the health and metrics listener.
type ServerConfig struct {
	Port int
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "logging: level=%s format=%s file=%q\n", c.Logging.Level, c.Logging.Format, c.Logging.File)
	fmt.Fprintf(&b, "discord: token=%s application=%s guild=%s log_channel=%s\n",
		mask(c.Discord.Token), c.Discord.ApplicationID, c.Discord.GuildID, c.Discord.LogChannelID)
	fmt.Fprintf(&b, "access: owners=%d required_role=%s\n", len(c.Access.Owners), c.Access.RequiredRoleID)
	fmt.Fprintf(&b, "records: quota=%d\n", c.Records.Quota)
	switch c.State.Backend {
	case BackendRedis:
		fmt.Fprintf(&b, "state: backend=redis address=%s db=%d password=%s prefix=%s\n",
			c.State.Redis.Address, c.State.Redis.DB, mask(c.State.Redis.Password), c.State.Redis.KeyPrefix)
	default:
		fmt.Fprintf(&b, "state: backend=file dir=%s\n", c.State.Dir)
	}
	fmt.Fprintf(&b, "cloudflare: endpoint=%s timeout=%s rate_limit=%g\n",
		c.Cloudflare.APIEndpoint, c.Cloudflare.Timeout, c.Cloudflare.RateLimit)
	fmt.Fprintf(&b, "flows: page_size=%d confirm=%s select=%s browse=%s list=%s view=%s\n",
		c.Flows.PageSize, c.Flows.ConfirmTimeout, c.Flows.SelectTimeout,
		c.Flows.BrowseTimeout, c.Flows.ListTimeout, c.Flows.ViewTimeout)
	fmt.Fprintf(&b, "server: port=%d", c.Server.Port)
	return b.String()
}

func mask(secret string) string {
	if secret == "" {
		return "<unset>"
	}
	return "<redacted>"
}
