package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_MinimalConfig(t *testing.T) {
	yaml := `
token: abc123
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// check defaults applied
	if cfg.Server != DefaultServer {
		t.Errorf("Server = %q, want %q", cfg.Server, DefaultServer)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval.Duration())
	}
	if cfg.Timeout.Duration() != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout.Duration())
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Title != "" {
		t.Errorf("Title = %q, want empty string", cfg.Title)
	}
}

func TestParse_FullConfig(t *testing.T) {
	yaml := `
title: Backyard Pool
server: http://127.0.0.1:9999
token: abc123
poll_interval: 1m
timeout: 5s
port: 9090
log_level: DEBUG
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Backyard Pool" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Backyard Pool")
	}
	if cfg.Server != "http://127.0.0.1:9999" {
		t.Errorf("Server = %q, want %q", cfg.Server, "http://127.0.0.1:9999")
	}
	if cfg.Token != "abc123" {
		t.Errorf("Token = %q, want %q", cfg.Token, "abc123")
	}
	if cfg.PollInterval.Duration() != time.Minute {
		t.Errorf("PollInterval = %v, want 1m", cfg.PollInterval.Duration())
	}
	if cfg.Timeout.Duration() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout.Duration())
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want %v", cfg.Level(), slog.LevelDebug)
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	// t.Setenv auto-restores after test
	t.Setenv("TEST_RAYPAK_TOKEN", "secret123")
	t.Setenv("TEST_RAYPAK_HOST", "device.test")

	yaml := `
server: ${TEST_RAYPAK_HOST}
token: ${TEST_RAYPAK_TOKEN}
title: "Pool (${UNSET_POOL_NAME:-main})"
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Token != "secret123" {
		t.Errorf("Token = %q, want secret123", cfg.Token)
	}
	if cfg.Server != "device.test" {
		t.Errorf("Server = %q, want device.test", cfg.Server)
	}
	if cfg.Title != "Pool (main)" {
		t.Errorf("Title = %q, want %q", cfg.Title, "Pool (main)")
	}
}

func TestParse_EnvVarMissing(t *testing.T) {
	// MISSING_RAYPAK_TOKEN is expected to not exist in the environment
	yaml := `
token: ${MISSING_RAYPAK_TOKEN}
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for missing env var, got nil")
	}
	if !strings.Contains(err.Error(), "MISSING_RAYPAK_TOKEN") {
		t.Errorf("error should mention MISSING_RAYPAK_TOKEN: %v", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing token",
			yaml:    `server: raymote.raypak.com`,
			wantErr: "token is required",
		},
		{
			name:    "blank token",
			yaml:    `token: "   "`,
			wantErr: "token is required",
		},
		{
			name:    "empty default token",
			yaml:    `token: ${UNSET_RAYPAK_TOKEN:-}`,
			wantErr: "token is required",
		},
		{
			name: "timeout too short",
			yaml: `
token: abc
timeout: 500ms`,
			wantErr: "timeout must be at least 1s",
		},
		{
			name: "negative timeout",
			yaml: `
token: abc
timeout: -5s`,
			wantErr: "timeout must be at least 1s",
		},
		{
			name: "port out of range",
			yaml: `
token: abc
port: 70000`,
			wantErr: "port must be between 1 and 65535",
		},
		{
			name: "unknown log level",
			yaml: `
token: abc
log_level: verbose`,
			wantErr: "log_level must be",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestParse_PollIntervalBounds(t *testing.T) {
	tests := []struct {
		name     string
		interval string
		wantErr  bool
	}{
		{"below minimum", "9s", true},
		{"minimum", "10s", false},
		{"typical", "45s", false},
		{"maximum", "5m", false},
		{"above maximum", "301s", true},
		{"negative", "-30s", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaml := "token: abc\npoll_interval: " + tt.interval
			_, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				if !strings.Contains(err.Error(), "poll_interval must be between") {
					t.Errorf("error = %q, want poll_interval bounds", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	yaml := `
this is not: valid: yaml: at all
  - broken
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML, got nil")
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"seconds", "15s", 15 * time.Second, false},
		{"milliseconds", "1500ms", 1500 * time.Millisecond, false},
		{"minutes", "2m", 2 * time.Minute, false},
		{"combined", "1m30s", 90 * time.Second, false},
		{"invalid", "not-a-duration", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// timeout has only a lower bound, so it accepts every valid input here
			yaml := "token: abc\ntimeout: " + tt.input

			cfg, err := Parse([]byte(yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Parse() expected error, got nil")
				}
				if !strings.Contains(err.Error(), "invalid duration") {
					t.Errorf("error = %q, want to contain 'invalid duration'", err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if cfg.Timeout.Duration() != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout.Duration(), tt.want)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "") // set but empty

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false}, // set var takes precedence
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// UNSET and MISSING are expected to not exist in environment
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Level(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level() for %q = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raypak.yaml")
	if err := os.WriteFile(path, []byte("token: abc\nport: 9191\n"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q, want read failure", err.Error())
	}
}
