package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ValidationError lists every configuration problem found by Load.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration error: %s", e.Errors[0])
	}
	return fmt.Sprintf("configuration errors:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// validateConfig performs field and cross-field validation on the complete
// configuration.
func validateConfig(cfg *Config) error {
	var result *multierror.Error
	add := func(format string, args ...any) {
		result = multierror.Append(result, fmt.Errorf(format, args...))
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level: invalid value %q (must be debug, info, warn, or error)", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		add("logging.format: invalid value %q (must be json or text)", cfg.Logging.Format)
	}
	if cfg.Logging.File != "" && (cfg.Logging.MaxSizeMB < 1 || cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0) {
		add("logging: max_size_mb must be at least 1 and max_backups/max_age_days cannot be negative")
	}

	if cfg.Records.Quota < 1 {
		add("records.quota: must be at least 1, got %d", cfg.Records.Quota)
	}

	switch cfg.State.Backend {
	case BackendFile:
		if cfg.State.Dir == "" && (cfg.State.SettingsPath == "" || cfg.State.LedgerPath == "") {
			add("state.dir: required unless both settings_path and ledger_path are set")
		}
	case BackendRedis:
		if cfg.State.Redis.Address == "" {
			add("state.redis.address: required for the redis backend")
		}
		if cfg.State.Redis.DB < 0 {
			add("state.redis.db: cannot be negative")
		}
	default:
		add("state.backend: invalid value %q (must be file or redis)", cfg.State.Backend)
	}

	if cfg.Cloudflare.Timeout < 0 {
		add("cloudflare.timeout: cannot be negative")
	}
	if cfg.Cloudflare.RateLimit < 0 {
		add("cloudflare.rate_limit: cannot be negative")
	}

	if cfg.Flows.PageSize < 1 || cfg.Flows.PageSize > 25 {
		add("flows.page_size: must be between 1 and 25, got %d", cfg.Flows.PageSize)
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"confirm_timeout", cfg.Flows.ConfirmTimeout},
		{"select_timeout", cfg.Flows.SelectTimeout},
		{"browse_timeout", cfg.Flows.BrowseTimeout},
		{"list_timeout", cfg.Flows.ListTimeout},
		{"view_timeout", cfg.Flows.ViewTimeout},
	} {
		if t.d <= 0 {
			add("flows.%s: must be positive", t.name)
		}
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		add("server.port: must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	return result.ErrorOrNil()
}

// validateDiscord checks the settings needed to connect to Discord.
func validateDiscord(cfg *Config) error {
	if cfg.Discord.Token == "" {
		return errors.New("discord.token: required (set DNSBOT_DISCORD_TOKEN or DNSBOT_DISCORD_TOKEN_FILE)")
	}
	return nil
}

// problems flattens err into messages, unpacking multierror aggregates.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		out := make([]string, 0, len(merr.Errors))
		for _, e := range merr.Errors {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
