package main

import (
	"strings"
	"testing"
)

func TestRunValidate_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
token: abcdef123456
port: 9090
poll_interval: 45s
`)

	output, err := executeCmd(t, "validate", "-c", configPath)
	if err != nil {
		t.Fatalf("validate command error = %v", err)
	}

	expectedPhrases := []string{
		"Config is valid!",
		"Server:        raymote.raypak.com",
		"Token:         ********3456",
		"Port:          9090",
		"Poll interval: 45s",
		"Timeout:       10s",
		"Log level:     info",
	}

	for _, phrase := range expectedPhrases {
		if !strings.Contains(output, phrase) {
			t.Errorf("output missing %q\nGot: %s", phrase, output)
		}
	}
	if strings.Contains(output, "abcdef123456") {
		t.Error("output must not contain the full token")
	}
}

func TestRunValidate_InvalidConfig(t *testing.T) {
	configPath := writeConfig(t, `
port: 8080
poll_interval: 5s
`)

	_, err := executeCmd(t, "validate", "-c", configPath)
	if err == nil {
		t.Fatal("validate command expected error for invalid config, got nil")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %q, want to contain 'invalid config'", err.Error())
	}
}

func TestRunValidate_MissingFile(t *testing.T) {
	_, err := executeCmd(t, "validate", "-c", "/nonexistent/raypak.yaml")
	if err == nil {
		t.Fatal("validate command expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("error = %q, want to contain 'failed to read config file'", err.Error())
	}
}

func TestRunValidate_MissingFlag(t *testing.T) {
	_, err := executeCmd(t, "validate")
	if err == nil {
		t.Fatal("validate command expected error without --config, got nil")
	}
}
