package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// FileConfig represents the configuration file structure. The same layout is
// accepted as YAML and TOML.
type FileConfig struct {
	Logging    *FileLoggingConfig    `yaml:"logging,omitempty" toml:"logging"`
	Discord    *FileDiscordConfig    `yaml:"discord,omitempty" toml:"discord"`
	Access     *FileAccessConfig     `yaml:"access,omitempty" toml:"access"`
	Records    *FileRecordsConfig    `yaml:"records,omitempty" toml:"records"`
	State      *FileStateConfig      `yaml:"state,omitempty" toml:"state"`
	Cloudflare *FileCloudflareConfig `yaml:"cloudflare,omitempty" toml:"cloudflare"`
	Flows      *FileFlowsConfig      `yaml:"flows,omitempty" toml:"flows"`
	Server     *FileServerConfig     `yaml:"server,omitempty" toml:"server"`
}

// FileLoggingConfig holds logging settings.
type FileLoggingConfig struct {
	Level      string `yaml:"level,omitempty" toml:"level"`   // debug, info, warn, error
	Format     string `yaml:"format,omitempty" toml:"format"` // json, text
	File       string `yaml:"file,omitempty" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups,omitempty" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" toml:"max_age_days"`
}

// FileDiscordConfig holds Discord settings.
type FileDiscordConfig struct {
	Token         string `yaml:"token,omitempty" toml:"token"`
	TokenFile     string `yaml:"token_file,omitempty" toml:"token_file"`
	ApplicationID string `yaml:"application_id,omitempty" toml:"application_id"`
	GuildID       string `yaml:"guild_id,omitempty" toml:"guild_id"`
	LogChannelID  string `yaml:"log_channel_id,omitempty" toml:"log_channel_id"`
}

// FileAccessConfig holds the initial access policy.
type FileAccessConfig struct {
	Owners         []string `yaml:"owners,omitempty" toml:"owners"`
	RequiredRoleID string   `yaml:"required_role_id,omitempty" toml:"required_role_id"`
}

// FileRecordsConfig holds record limits.
type FileRecordsConfig struct {
	Quota int `yaml:"quota,omitempty" toml:"quota"`
}

// FileStateConfig holds state store settings.
type FileStateConfig struct {
	Backend      string           `yaml:"backend,omitempty" toml:"backend"` // file, redis
	Dir          string           `yaml:"dir,omitempty" toml:"dir"`
	SettingsPath string           `yaml:"settings_path,omitempty" toml:"settings_path"`
	LedgerPath   string           `yaml:"ledger_path,omitempty" toml:"ledger_path"`
	Redis        *FileRedisConfig `yaml:"redis,omitempty" toml:"redis"`
}

// FileRedisConfig holds Redis connection settings.
type FileRedisConfig struct {
	Address      string `yaml:"address,omitempty" toml:"address"`
	DB           int    `yaml:"db,omitempty" toml:"db"`
	Password     string `yaml:"password,omitempty" toml:"password"`
	PasswordFile string `yaml:"password_file,omitempty" toml:"password_file"`
	KeyPrefix    string `yaml:"key_prefix,omitempty" toml:"key_prefix"`
}

// FileCloudflareConfig holds API client settings.
type FileCloudflareConfig struct {
	APIEndpoint string  `yaml:"api_endpoint,omitempty" toml:"api_endpoint"`
	Timeout     string  `yaml:"timeout,omitempty" toml:"timeout"` // Go duration format
	RateLimit   float64 `yaml:"rate_limit,omitempty" toml:"rate_limit"`
}

// FileFlowsConfig holds interactive menu settings. Timeouts use Go duration
// format (e.g., "15s", "2m").
type FileFlowsConfig struct {
	PageSize       int    `yaml:"page_size,omitempty" toml:"page_size"`
	ConfirmTimeout string `yaml:"confirm_timeout,omitempty" toml:"confirm_timeout"`
	SelectTimeout  string `yaml:"select_timeout,omitempty" toml:"select_timeout"`
	BrowseTimeout  string `yaml:"browse_timeout,omitempty" toml:"browse_timeout"`
	ListTimeout    string `yaml:"list_timeout,omitempty" toml:"list_timeout"`
	ViewTimeout    string `yaml:"view_timeout,omitempty" toml:"view_timeout"`
}

// FileServerConfig holds health/metrics server settings.
type FileServerConfig struct {
	Port int `yaml:"port,omitempty" toml:"port"`
}

// envVarPattern matches ${VAR} or ${VAR:-default} syntax.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// InterpolateEnvVars replaces ${VAR} patterns with environment variable values.
// Supports ${VAR:-default} syntax for default values.
func InterpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 3 {
			defaultValue = groups[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadFile reads and parses a configuration file. The format follows the
// extension: .yaml and .yml for YAML, .toml for TOML. Environment variables
// in ${VAR} format are interpolated before parsing.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	text := InterpolateEnvVars(string(data))

	var cfg FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(text), &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(text, &cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (use .yaml, .yml or .toml)", ext)
	}
	return &cfg, nil
}

// apply copies every value set in the file onto cfg. Values that fail to
// parse are reported and leave the field unchanged.
func (c *FileConfig) apply(cfg *Config) []string {
	var errs []string
	duration := func(field, v string, dst *time.Duration) {
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", field, v))
			return
		}
		*dst = d
	}
	secretFile := func(field, path string, dst *string) {
		if path == "" {
			return
		}
		v, err := readSecretFile(path)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", field, err))
			return
		}
		*dst = v
	}

	if l := c.Logging; l != nil {
		setString(&cfg.Logging.Level, strings.ToLower(l.Level))
		setString(&cfg.Logging.Format, strings.ToLower(l.Format))
		setString(&cfg.Logging.File, l.File)
		setInt(&cfg.Logging.MaxSizeMB, l.MaxSizeMB)
		setInt(&cfg.Logging.MaxBackups, l.MaxBackups)
		setInt(&cfg.Logging.MaxAgeDays, l.MaxAgeDays)
	}

	if d := c.Discord; d != nil {
		setString(&cfg.Discord.Token, d.Token)
		secretFile("discord.token_file", d.TokenFile, &cfg.Discord.Token)
		setString(&cfg.Discord.ApplicationID, d.ApplicationID)
		setString(&cfg.Discord.GuildID, d.GuildID)
		setString(&cfg.Discord.LogChannelID, d.LogChannelID)
	}

	if a := c.Access; a != nil {
		if len(a.Owners) > 0 {
			cfg.Access.Owners = a.Owners
		}
		setString(&cfg.Access.RequiredRoleID, a.RequiredRoleID)
	}

	if r := c.Records; r != nil {
		setInt(&cfg.Records.Quota, r.Quota)
	}

	if s := c.State; s != nil {
		setString(&cfg.State.Backend, strings.ToLower(s.Backend))
		setString(&cfg.State.Dir, s.Dir)
		setString(&cfg.State.SettingsPath, s.SettingsPath)
		setString(&cfg.State.LedgerPath, s.LedgerPath)
		if r := s.Redis; r != nil {
			setString(&cfg.State.Redis.Address, r.Address)
			setInt(&cfg.State.Redis.DB, r.DB)
			setString(&cfg.State.Redis.Password, r.Password)
			secretFile("state.redis.password_file", r.PasswordFile, &cfg.State.Redis.Password)
			setString(&cfg.State.Redis.KeyPrefix, r.KeyPrefix)
		}
	}

	if cf := c.Cloudflare; cf != nil {
		setString(&cfg.Cloudflare.APIEndpoint, cf.APIEndpoint)
		duration("cloudflare.timeout", cf.Timeout, &cfg.Cloudflare.Timeout)
		if cf.RateLimit != 0 {
			cfg.Cloudflare.RateLimit = cf.RateLimit
		}
	}

	if f := c.Flows; f != nil {
		setInt(&cfg.Flows.PageSize, f.PageSize)
		duration("flows.confirm_timeout", f.ConfirmTimeout, &cfg.Flows.ConfirmTimeout)
		duration("flows.select_timeout", f.SelectTimeout, &cfg.Flows.SelectTimeout)
		duration("flows.browse_timeout", f.BrowseTimeout, &cfg.Flows.BrowseTimeout)
		duration("flows.list_timeout", f.ListTimeout, &cfg.Flows.ListTimeout)
		duration("flows.view_timeout", f.ViewTimeout, &cfg.Flows.ViewTimeout)
	}

	if s := c.Server; s != nil {
		setInt(&cfg.Server.Port, s.Port)
	}

	return errs
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// FilePath returns the config file path: the flag value when set, otherwise
// DNSBOT_CONFIG. Empty means no file.
func FilePath(flag string) string {
	if flag != "" {
		return flag
	}
	return getEnv(envPrefix + "CONFIG")
}
