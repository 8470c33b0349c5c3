package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Discord.Token = "token"
	return cfg
}

func TestValidateConfig_Valid(t *testing.T) {
	if err := validateConfig(validConfig()); err != nil {
		t.Errorf("validateConfig() = %v", err)
	}
}

func TestValidateConfig_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log rotation", func(c *Config) { c.Logging.File = "bot.log"; c.Logging.MaxSizeMB = 0 }, "max_size_mb"},
		{"quota", func(c *Config) { c.Records.Quota = 0 }, "records.quota"},
		{"backend", func(c *Config) { c.State.Backend = "etcd" }, "state.backend"},
		{"redis address", func(c *Config) { c.State.Backend = BackendRedis }, "state.redis.address"},
		{"state dir", func(c *Config) { c.State.Dir = "" }, "state.dir"},
		{"page size", func(c *Config) { c.Flows.PageSize = 26 }, "flows.page_size"},
		{"timeout", func(c *Config) { c.Flows.ViewTimeout = 0 }, "flows.view_timeout"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"rate limit", func(c *Config) { c.Cloudflare.RateLimit = -1 }, "cloudflare.rate_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			got := problems(validateConfig(cfg))
			if len(got) != 1 || !strings.Contains(got[0], tt.want) {
				t.Errorf("problems = %v, want one mentioning %q", got, tt.want)
			}
		})
	}
}

func TestValidateConfig_StatePathsWithoutDir(t *testing.T) {
	cfg := validConfig()
	cfg.State.Dir = ""
	cfg.State.SettingsPath = "/var/lib/dnsbot/settings.json"
	cfg.State.LedgerPath = "/var/lib/dnsbot/ledger.json"

	if err := validateConfig(cfg); err != nil {
		t.Errorf("validateConfig() = %v", err)
	}
}

func TestValidateConfig_CollectsAll(t *testing.T) {
	cfg := validConfig()
	cfg.Records.Quota = -1
	cfg.Logging.Level = "loud"
	cfg.Flows.PageSize = 0

	if got := problems(validateConfig(cfg)); len(got) != 3 {
		t.Errorf("expected 3 problems, got %v", got)
	}
}

func TestValidateDiscord(t *testing.T) {
	cfg := Defaults()
	if err := validateDiscord(cfg); err == nil || !strings.Contains(err.Error(), "discord.token") {
		t.Errorf("validateDiscord() = %v, want token error", err)
	}
	cfg.Discord.Token = "token"
	if err := validateDiscord(cfg); err != nil {
		t.Errorf("validateDiscord() = %v", err)
	}
}

func TestValidationError_SingleError(t *testing.T) {
	err := &ValidationError{Errors: []string{"single error message"}}
	want := "configuration error: single error message"

	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidationError_MultipleErrors(t *testing.T) {
	err := &ValidationError{Errors: []string{"error 1", "error 2", "error 3"}}
	got := err.Error()

	for _, want := range []string{"error 1", "error 2", "error 3"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() should contain %q, got %q", want, got)
		}
	}
}
