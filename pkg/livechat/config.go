// Copyright 2024-2026 Aiku AI

package livechat

import (
	_ "embed"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed example-config.yaml
var ExampleConfig string

// DefaultPollInterval is used when the config leaves poll_interval unset.
const DefaultPollInterval = 5 * time.Second

// Config holds the live chat client configuration.
type Config struct {
	// AccountKey identifies the chat account on the backend.
	AccountKey string `yaml:"account_key" mapstructure:"account_key" validate:"required"`
	// ServerURL is the backend WebSocket endpoint (ws:// or wss://).
	ServerURL string `yaml:"server_url" mapstructure:"server_url" validate:"required,url"`
	// UploadURL is the HTTPS endpoint for attachment uploads. Leave empty
	// to derive it from ServerURL.
	UploadURL string `yaml:"upload_url" mapstructure:"upload_url" validate:"omitempty,url"`
	// Department preselects the department for new sessions.
	Department string `yaml:"department" mapstructure:"department"`
	// PollInterval is the state poll cadence. Zero disables polling and
	// relies on backend pushes only.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	// LogLevel is a zerolog level string (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// UnmarshalYAML decodes the config, parsing poll_interval from a Go
// duration string and filling defaults for unset fields.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig struct {
		AccountKey   string `yaml:"account_key"`
		ServerURL    string `yaml:"server_url"`
		UploadURL    string `yaml:"upload_url"`
		Department   string `yaml:"department"`
		PollInterval string `yaml:"poll_interval"`
		LogLevel     string `yaml:"log_level"`
	}
	var raw rawConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.AccountKey = raw.AccountKey
	c.ServerURL = raw.ServerURL
	c.UploadURL = raw.UploadURL
	c.Department = raw.Department
	c.LogLevel = raw.LogLevel
	if raw.PollInterval == "" {
		c.PollInterval = DefaultPollInterval
		return nil
	}
	interval, err := time.ParseDuration(raw.PollInterval)
	if err != nil {
		return &ValidationError{Field: "poll_interval", Reason: err.Error()}
	}
	c.PollInterval = interval
	return nil
}

// Validate checks the config against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &ValidationError{Field: verrs[0].Field(), Reason: verrs[0].Tag()}
		}
		return &ValidationError{Field: "config", Reason: err.Error()}
	}
	return nil
}
