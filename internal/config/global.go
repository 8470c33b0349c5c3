package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Configuration defaults.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultLogMaxSizeMB   = 50
	DefaultLogMaxBackups  = 3
	DefaultLogMaxAgeDays  = 28
	DefaultQuota          = 5
	DefaultStateDir       = "data"
	DefaultRedisKeyPrefix = "dnsbot:"
	DefaultHealthPort     = 8080
	DefaultPageSize       = 3
	DefaultConfirmTimeout = 15 * time.Second
	DefaultSelectTimeout  = 20 * time.Second
	DefaultBrowseTimeout  = 60 * time.Second
	DefaultListTimeout    = 60 * time.Second
	DefaultViewTimeout    = 120 * time.Second
)

// State backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// envPrefix is the prefix of every environment variable read by Load.
const envPrefix = "DNSBOT_"

// Defaults returns a Config holding every default value.
func Defaults() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:      DefaultLogLevel,
			Format:     DefaultLogFormat,
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
		},
		Records: RecordsConfig{Quota: DefaultQuota},
		State: StateConfig{
			Backend: BackendFile,
			Dir:     DefaultStateDir,
			Redis:   RedisConfig{KeyPrefix: DefaultRedisKeyPrefix},
		},
		Flows: FlowsConfig{
			PageSize:       DefaultPageSize,
			ConfirmTimeout: DefaultConfirmTimeout,
			SelectTimeout:  DefaultSelectTimeout,
			BrowseTimeout:  DefaultBrowseTimeout,
			ListTimeout:    DefaultListTimeout,
			ViewTimeout:    DefaultViewTimeout,
		},
		Server: ServerConfig{Port: DefaultHealthPort},
	}
}

// applyEnv overrides cfg with DNSBOT_* environment variables that are set.
// Values that fail to parse are reported and leave the field unchanged.
func applyEnv(cfg *Config) []string {
	var errs []string

	str := func(key string, dst *string) {
		if v := getEnv(envPrefix + key); v != "" {
			*dst = v
		}
	}
	secret := func(key string, dst *string) {
		if v := getEnvWithFileFallback(envPrefix, key); v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		v := getEnv(envPrefix + key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: invalid integer %q", envPrefix, key, v))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v := getEnv(envPrefix + key)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: invalid duration %q (use format like 15s, 2m)", envPrefix, key, v))
			return
		}
		*dst = d
	}

	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("LOG_FILE", &cfg.Logging.File)
	integer("LOG_MAX_SIZE_MB", &cfg.Logging.MaxSizeMB)
	integer("LOG_MAX_BACKUPS", &cfg.Logging.MaxBackups)
	integer("LOG_MAX_AGE_DAYS", &cfg.Logging.MaxAgeDays)

	secret("DISCORD_TOKEN", &cfg.Discord.Token)
	str("DISCORD_APPLICATION_ID", &cfg.Discord.ApplicationID)
	str("DISCORD_GUILD_ID", &cfg.Discord.GuildID)
	str("DISCORD_LOG_CHANNEL_ID", &cfg.Discord.LogChannelID)

	if v := getEnv(envPrefix + "OWNERS"); v != "" {
		cfg.Access.Owners = splitList(v)
	}
	str("REQUIRED_ROLE_ID", &cfg.Access.RequiredRoleID)
	integer("QUOTA", &cfg.Records.Quota)

	str("STATE_BACKEND", &cfg.State.Backend)
	str("STATE_DIR", &cfg.State.Dir)
	str("STATE_SETTINGS_PATH", &cfg.State.SettingsPath)
	str("STATE_LEDGER_PATH", &cfg.State.LedgerPath)
	str("REDIS_ADDRESS", &cfg.State.Redis.Address)
	integer("REDIS_DB", &cfg.State.Redis.DB)
	secret("REDIS_PASSWORD", &cfg.State.Redis.Password)
	str("REDIS_KEY_PREFIX", &cfg.State.Redis.KeyPrefix)

	str("CLOUDFLARE_API_ENDPOINT", &cfg.Cloudflare.APIEndpoint)
	duration("CLOUDFLARE_TIMEOUT", &cfg.Cloudflare.Timeout)
	if v := getEnv(envPrefix + "CLOUDFLARE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cloudflare.RateLimit = f
		} else {
			errs = append(errs, fmt.Sprintf("%sCLOUDFLARE_RATE_LIMIT: invalid number %q", envPrefix, v))
		}
	}

	integer("PAGE_SIZE", &cfg.Flows.PageSize)
	duration("CONFIRM_TIMEOUT", &cfg.Flows.ConfirmTimeout)
	duration("SELECT_TIMEOUT", &cfg.Flows.SelectTimeout)
	duration("BROWSE_TIMEOUT", &cfg.Flows.BrowseTimeout)
	duration("LIST_TIMEOUT", &cfg.Flows.ListTimeout)
	duration("VIEW_TIMEOUT", &cfg.Flows.ViewTimeout)

	integer("HEALTH_PORT", &cfg.Server.Port)

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	cfg.State.Backend = strings.ToLower(cfg.State.Backend)
	return errs
}
