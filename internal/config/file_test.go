package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestInterpolateEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")
	t.Setenv("API_TOKEN", "secret123")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "simple variable", input: "${TEST_VAR}", expected: "test-value"},
		{name: "variable in string", input: "prefix-${TEST_VAR}-suffix", expected: "prefix-test-value-suffix"},
		{name: "multiple variables", input: "${TEST_VAR}:${API_TOKEN}", expected: "test-value:secret123"},
		{name: "unset variable", input: "${NONEXISTENT_VAR}", expected: ""},
		{name: "default value", input: "${NONEXISTENT_VAR:-default}", expected: "default"},
		{name: "default value not used when set", input: "${TEST_VAR:-default}", expected: "test-value"},
		{name: "no variables", input: "plain string", expected: "plain string"},
		{name: "empty default", input: "${NONEXISTENT:-}", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := InterpolateEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("InterpolateEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	t.Setenv("TEST_DISCORD_TOKEN", "secret-from-env")

	path := writeConfig(t, "dnsbot.yaml", `
logging:
  level: DEBUG
  format: text
discord:
  token: ${TEST_DISCORD_TOKEN}
  guild_id: "111"
access:
  owners: ["1", "2"]
  required_role_id: "42"
records:
  quota: 7
state:
  backend: redis
  redis:
    address: ${REDIS_HOST:-localhost:6379}
    db: 2
flows:
  confirm_timeout: 30s
server:
  port: 9090
`)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if fc.Discord.Token != "secret-from-env" {
		t.Errorf("Discord.Token = %q, want interpolated value", fc.Discord.Token)
	}
	if fc.State.Redis.Address != "localhost:6379" {
		t.Errorf("Redis.Address = %q, want default", fc.State.Redis.Address)
	}

	cfg := Defaults()
	if errs := fc.apply(cfg); len(errs) != 0 {
		t.Fatalf("apply() errors = %v", errs)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if len(cfg.Access.Owners) != 2 || cfg.Access.RequiredRoleID != "42" {
		t.Errorf("access = %+v", cfg.Access)
	}
	if cfg.Records.Quota != 7 || cfg.State.Backend != BackendRedis || cfg.State.Redis.DB != 2 {
		t.Errorf("unexpected records/state %+v %+v", cfg.Records, cfg.State)
	}
	if cfg.Flows.ConfirmTimeout != 30*time.Second || cfg.Flows.SelectTimeout != DefaultSelectTimeout {
		t.Errorf("flows = %+v", cfg.Flows)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
}

func TestLoadFile_TOML(t *testing.T) {
	path := writeConfig(t, "dnsbot.toml", `
[discord]
token = "toml-token"
log_channel_id = "999"

[records]
quota = 3

[cloudflare]
api_endpoint = "http://localhost:8787/client/v4"
timeout = "5s"
rate_limit = 2.5
`)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	cfg := Defaults()
	if errs := fc.apply(cfg); len(errs) != 0 {
		t.Fatalf("apply() errors = %v", errs)
	}
	if cfg.Discord.Token != "toml-token" || cfg.Discord.LogChannelID != "999" {
		t.Errorf("discord = %+v", cfg.Discord)
	}
	if cfg.Records.Quota != 3 {
		t.Errorf("Quota = %d", cfg.Records.Quota)
	}
	if cfg.Cloudflare.Timeout != 5*time.Second || cfg.Cloudflare.RateLimit != 2.5 {
		t.Errorf("cloudflare = %+v", cfg.Cloudflare)
	}
}

func TestLoadFile_SecretFiles(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenFile, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, "dnsbot.yml", `
discord:
  token: inline
  token_file: `+tokenFile+`
state:
  redis:
    password_file: `+filepath.Join(dir, "missing")+`
`)

	fc, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	cfg := Defaults()
	errs := fc.apply(cfg)
	if cfg.Discord.Token != "from-file" {
		t.Errorf("Token = %q, want file contents", cfg.Discord.Token)
	}
	if len(errs) != 1 {
		t.Errorf("expected one error for the missing password file, got %v", errs)
	}
}

func TestApply_InvalidDuration(t *testing.T) {
	fc := &FileConfig{Flows: &FileFlowsConfig{ViewTimeout: "forever"}}
	cfg := Defaults()

	errs := fc.apply(cfg)

	if len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
	if cfg.Flows.ViewTimeout != DefaultViewTimeout {
		t.Errorf("ViewTimeout changed to %v", cfg.Flows.ViewTimeout)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	if _, err := LoadFile("/nonexistent/dnsbot.yaml"); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	path := writeConfig(t, "bad.yaml", "discord: [unclosed")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() expected error for invalid YAML")
	}
}

func TestLoadFileInvalidTOML(t *testing.T) {
	path := writeConfig(t, "bad.toml", "[discord\ntoken =")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() expected error for invalid TOML")
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := writeConfig(t, "dnsbot.json", "{}")
	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() expected error for .json")
	}
}

func TestFilePath(t *testing.T) {
	t.Setenv("DNSBOT_CONFIG", "/etc/dnsbot/env.yaml")

	if got := FilePath("/flag.yaml"); got != "/flag.yaml" {
		t.Errorf("FilePath(flag) = %q", got)
	}
	if got := FilePath(""); got != "/etc/dnsbot/env.yaml" {
		t.Errorf("FilePath(\"\") = %q", got)
	}
}
