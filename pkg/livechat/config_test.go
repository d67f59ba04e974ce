// Copyright 2024-2026 Aiku AI

package livechat

import (
	"errors"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// TestConfig_UnmarshalDefaults verifies poll_interval defaults when the
// YAML leaves it unset.
func TestConfig_UnmarshalDefaults(t *testing.T) {
	t.Parallel()
	var cfg Config
	data := `
account_key: acc-1
server_url: wss://chat.example.com/socket
`
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.PollInterval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want default %v", cfg.PollInterval, DefaultPollInterval)
	}
	if cfg.AccountKey != "acc-1" {
		t.Errorf("account key = %q", cfg.AccountKey)
	}
}

// TestConfig_UnmarshalExplicitInterval verifies an explicit interval is
// kept as-is.
func TestConfig_UnmarshalExplicitInterval(t *testing.T) {
	t.Parallel()
	var cfg Config
	data := `
account_key: acc-1
server_url: wss://chat.example.com/socket
poll_interval: 30s
`
	if err := yaml.Unmarshal([]byte(data), &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", cfg.PollInterval)
	}
}

// TestConfig_ValidateMissingAccountKey verifies a config without an
// account key is rejected with *ValidationError.
func TestConfig_ValidateMissingAccountKey(t *testing.T) {
	t.Parallel()
	cfg := Config{ServerURL: "wss://chat.example.com/socket"}
	err := cfg.Validate()
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("err type %T, want *ValidationError", err)
	}
	if valErr.Field != "AccountKey" {
		t.Errorf("field = %q, want AccountKey", valErr.Field)
	}
}

// TestConfig_ValidateBadServerURL verifies a non-URL server_url fails
// validation.
func TestConfig_ValidateBadServerURL(t *testing.T) {
	t.Parallel()
	cfg := Config{AccountKey: "acc-1", ServerURL: "not a url"}
	var valErr *ValidationError
	if err := cfg.Validate(); !errors.As(err, &valErr) {
		t.Fatalf("err type %T, want *ValidationError", err)
	}
}

// TestExampleConfig_Parses verifies the embedded example config stays in
// sync with the Config struct.
func TestExampleConfig_Parses(t *testing.T) {
	t.Parallel()
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExampleConfig), &cfg); err != nil {
		t.Fatalf("example config does not parse: %v", err)
	}
	if cfg.ServerURL == "" {
		t.Error("example config should ship a server_url")
	}
}
