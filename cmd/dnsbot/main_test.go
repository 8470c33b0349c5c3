package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/dnsbot/internal/config"
	"gitlab.bluewillows.net/root/dnsbot/internal/ledger"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func stateDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	t.Setenv("DNSBOT_CONFIG", "")
	t.Setenv("DNSBOT_STATE_BACKEND", "file")
	t.Setenv("DNSBOT_STATE_DIR", dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "dnsbot "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestDomainsCommand(t *testing.T) {
	stateDir(t, map[string]string{
		"settings.json": `{"owners":["1"],"domains":[{"name":"example.com","zoneId":"z1","token":"t"},{"name":"example.org","zoneId":"z2","token":"t"}]}`,
	})

	out, err := runCommand(t, "domains")
	if err != nil {
		t.Fatalf("domains: %v", err)
	}
	if !strings.Contains(out, "example.com") || !strings.Contains(out, "example.org") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "\"t\"") || strings.Contains(out, "z1") {
		t.Errorf("output leaks zone details: %q", out)
	}
}

func TestDomainsCommand_Empty(t *testing.T) {
	stateDir(t, nil)

	out, err := runCommand(t, "domains")
	if err != nil {
		t.Fatalf("domains: %v", err)
	}
	if !strings.Contains(out, "no domains registered") {
		t.Errorf("output = %q", out)
	}
}

func TestLedgerCommand(t *testing.T) {
	stateDir(t, map[string]string{
		"ledger.json": `{
  "2": [{"name":"mc.example.com","type":"MINECRAFT","owner":"2","domain":"example.com","createdAt":"2026-01-02T00:00:00Z","incomplete":true}],
  "1": [{"name":"www.example.com","type":"A","owner":"1","domain":"example.com","createdAt":"2026-01-01T00:00:00Z"}]
}`,
	})

	out, err := runCommand(t, "ledger")
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	if strings.Index(out, "www.example.com") > strings.Index(out, "mc.example.com") {
		t.Errorf("users should be sorted: %q", out)
	}
	if !strings.Contains(out, "incomplete") {
		t.Errorf("output should flag incomplete records: %q", out)
	}

	out, err = runCommand(t, "ledger", "1")
	if err != nil {
		t.Fatalf("ledger 1: %v", err)
	}
	if strings.Contains(out, "mc.example.com") {
		t.Errorf("ledger 1 shows other users: %q", out)
	}
}

func TestPrintLedger_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := printLedger(&out, ledger.Document{"1": nil}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "no records" {
		t.Errorf("output = %q", out.String())
	}
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dnsbot.log")
	logger, closer := setupLogger(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	logger.Debug("written to file", slog.Time("at", time.Now()))
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file = %q", data)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
