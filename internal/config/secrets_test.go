package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestGetEnvOrFile_DirectValue(t *testing.T) {
	const directKey = "TEST_DNSBOT_TOKEN"
	const fileKey = "TEST_DNSBOT_TOKEN_FILE"

	t.Setenv(directKey, "direct-token")
	t.Setenv(fileKey, "")

	if got := getEnvOrFile(directKey, fileKey); got != "direct-token" {
		t.Errorf("getEnvOrFile() = %q, want %q", got, "direct-token")
	}
}

func TestGetEnvOrFile_FileTakesPrecedence(t *testing.T) {
	const directKey = "TEST_DNSBOT_TOKEN"
	const fileKey = "TEST_DNSBOT_TOKEN_FILE"

	secretFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(secretFile, []byte("file-secret-value\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(directKey, "direct-value")
	t.Setenv(fileKey, secretFile)

	if got := getEnvOrFile(directKey, fileKey); got != "file-secret-value" {
		t.Errorf("getEnvOrFile() = %q, want file contents", got)
	}
}

func TestGetEnvOrFile_NonexistentFile(t *testing.T) {
	const directKey = "TEST_DNSBOT_TOKEN"
	const fileKey = "TEST_DNSBOT_TOKEN_FILE"

	t.Setenv(directKey, "fallback-value")
	t.Setenv(fileKey, "/nonexistent/path/to/secret")

	if got := getEnvOrFile(directKey, fileKey); got != "fallback-value" {
		t.Errorf("getEnvOrFile() = %q, want fallback to direct value", got)
	}
}

func TestGetEnvWithFileFallback(t *testing.T) {
	t.Setenv("DNSBOT_DISCORD_TOKEN", "abc")
	t.Setenv("DNSBOT_DISCORD_TOKEN_FILE", "")

	if got := getEnvWithFileFallback("DNSBOT_", "DISCORD_TOKEN"); got != "abc" {
		t.Errorf("getEnvWithFileFallback() = %q", got)
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"1", []string{"1"}},
		{" 1 , 2 ", []string{"1", "2"}},
		{"1,,2,", []string{"1", "2"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
