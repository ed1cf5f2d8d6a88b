package config

import (
	"testing"
	"time"

	"github.com/jpalmerr/raypak"
)

func TestBuildOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
title: Backyard Pool
token: abc123
poll_interval: 45s
timeout: 3s
port: 9292
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := raypak.New(opts...)
	if err != nil {
		t.Fatalf("raypak.New() error = %v", err)
	}

	if m.Port() != 9292 {
		t.Errorf("Port() = %d, want 9292", m.Port())
	}
	if m.PollingInterval() != 45*time.Second {
		t.Errorf("PollingInterval() = %v, want 45s", m.PollingInterval())
	}
}

func TestBuildOptions_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`token: abc123`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	m, err := raypak.New(opts...)
	if err != nil {
		t.Fatalf("raypak.New() error = %v", err)
	}
	if m.PollingInterval() != 30*time.Second {
		t.Errorf("PollingInterval() = %v, want 30s", m.PollingInterval())
	}
	if m.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", m.Port())
	}
}

func TestBuildOptions_UnvalidatedConfig(t *testing.T) {
	// a hand-built Config skips Parse; the SDK still rejects it
	opts, err := BuildOptions(&Config{Server: DefaultServer})
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}
	if _, err := raypak.New(opts...); err == nil {
		t.Error("raypak.New() expected error for empty token, got nil")
	}
}

func TestBuildOptions_Nil(t *testing.T) {
	if _, err := BuildOptions(nil); err == nil {
		t.Error("BuildOptions(nil) expected error, got nil")
	}
}
