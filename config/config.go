// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads agent and adapter definitions from YAML documents.
//
// Documents may reference environment variables with $VAR or ${VAR}
// syntax; references are expanded before parsing, after an optional .env
// file has been loaded.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/go-a2a/adapter"
	"github.com/go-a2a/adapter/auth"
	"github.com/go-a2a/adapter/cli"
	"github.com/go-a2a/adapter/webhook"
)

// Adapter kinds.
const (
	// KindWebhook selects the webhook adapter.
	KindWebhook = "webhook"

	// KindN8n is an alias of [KindWebhook], kept for configs written
	// against the n8n integration name.
	KindN8n = "n8n"

	// KindCLI selects the command-line adapter.
	KindCLI = "cli"
)

// Config is the root configuration document.
type Config struct {
	// Agent describes the published agent card.
	Agent AgentConfig `yaml:"agent"`

	// Server configures the listening endpoint.
	Server ServerConfig `yaml:"server"`

	// Adapter selects and configures the backend adapter.
	Adapter AdapterConfig `yaml:"adapter"`
}

// AgentConfig describes the agent card to publish.
type AgentConfig struct {
	Name               string        `yaml:"name"`
	Description        string        `yaml:"description"`
	URL                string        `yaml:"url"`
	Version            string        `yaml:"version"`
	DefaultInputModes  []string      `yaml:"default_input_modes"`
	DefaultOutputModes []string      `yaml:"default_output_modes"`
	Skills             []SkillConfig `yaml:"skills"`
}

// SkillConfig describes one advertised skill.
type SkillConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags"`
	Examples    []string `yaml:"examples"`
}

// ServerConfig configures the listening endpoint.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// AdapterConfig selects and configures the backend adapter. Duration
// fields use Go duration syntax, such as "30s" or "250ms".
type AdapterConfig struct {
	// Kind selects the adapter: "webhook", "n8n" or "cli".
	Kind string `yaml:"kind"`

	// Endpoint is the webhook URL. Webhook adapters only.
	Endpoint string `yaml:"endpoint"`

	// PayloadTemplate holds static fields merged into every payload.
	PayloadTemplate map[string]any `yaml:"payload_template"`

	// MessageField overrides the payload key carrying the message text.
	MessageField string `yaml:"message_field"`

	// Headers are custom headers added to every request.
	Headers map[string]string `yaml:"headers"`

	// BearerToken is presented as a bearer credential when set.
	BearerToken string `yaml:"bearer_token"`

	// Command is the agent binary. CLI adapters only.
	Command string `yaml:"command"`

	// Args are fixed arguments passed before the message text.
	Args []string `yaml:"args"`

	// WorkingDirectory is the directory the agent runs in.
	WorkingDirectory string `yaml:"working_directory"`

	// EnvVars are extra environment variables for the agent.
	EnvVars map[string]string `yaml:"env_vars"`

	// Stdin delivers the message text on stdin instead of as an argument.
	Stdin bool `yaml:"stdin"`

	// AsyncMode tracks invocations as long-running tasks.
	AsyncMode bool `yaml:"async_mode"`

	// Timeout is the per-attempt time budget.
	Timeout string `yaml:"timeout"`

	// MaxRetries is the retry budget after the first attempt. Explicit
	// zero disables retrying; leaving it unset keeps the adapter default.
	MaxRetries *int `yaml:"max_retries"`

	// Backoff is the base delay before the first retry.
	Backoff string `yaml:"backoff"`
}

// Load reads and parses the config document at the given path. An optional
// .env file in the working directory is loaded first, so documents can
// reference its variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a config document from raw YAML, expanding environment
// variable references first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the document for structural problems.
func (c *Config) Validate() error {
	switch c.Adapter.Kind {
	case KindWebhook, KindN8n:
		if c.Adapter.Endpoint == "" {
			return &adapter.ValidationError{Field: "adapter.endpoint", Message: "endpoint is required for webhook adapters"}
		}
	case KindCLI:
		if c.Adapter.Command == "" {
			return &adapter.ValidationError{Field: "adapter.command", Message: "command is required for cli adapters"}
		}
	case "":
		return &adapter.ValidationError{Field: "adapter.kind", Message: "kind is required"}
	default:
		return &adapter.ValidationError{
			Field:   "adapter.kind",
			Message: fmt.Sprintf("unknown kind %q, want %q, %q or %q", c.Adapter.Kind, KindWebhook, KindN8n, KindCLI),
		}
	}

	if _, err := parseDuration("adapter.timeout", c.Adapter.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("adapter.backoff", c.Adapter.Backoff); err != nil {
		return err
	}

	return nil
}

// BuildAdapter constructs the adapter the document describes.
func (c *Config) BuildAdapter() (adapter.Adapter, error) {
	timeout, err := parseDuration("adapter.timeout", c.Adapter.Timeout)
	if err != nil {
		return nil, err
	}
	backoff, err := parseDuration("adapter.backoff", c.Adapter.Backoff)
	if err != nil {
		return nil, err
	}

	switch c.Adapter.Kind {
	case KindWebhook, KindN8n:
		opts := []webhook.Option{webhook.WithEndpoint(c.Adapter.Endpoint)}
		if c.Adapter.PayloadTemplate != nil {
			opts = append(opts, webhook.WithPayloadTemplate(c.Adapter.PayloadTemplate))
		}
		if c.Adapter.MessageField != "" {
			opts = append(opts, webhook.WithMessageField(c.Adapter.MessageField))
		}
		if c.Adapter.Headers != nil {
			opts = append(opts, webhook.WithHeaders(c.Adapter.Headers))
		}
		if c.Adapter.BearerToken != "" {
			opts = append(opts, webhook.WithCredentials(auth.NewBearer(c.Adapter.BearerToken, nil)))
		}
		if timeout > 0 {
			opts = append(opts, webhook.WithTimeout(timeout))
		}
		if c.Adapter.MaxRetries != nil {
			opts = append(opts, webhook.WithMaxRetries(*c.Adapter.MaxRetries))
		}
		if backoff > 0 {
			opts = append(opts, webhook.WithBackoff(backoff))
		}
		return webhook.New(opts...)

	case KindCLI:
		opts := []cli.Option{cli.WithCommand(c.Adapter.Command)}
		if len(c.Adapter.Args) > 0 {
			opts = append(opts, cli.WithArgs(c.Adapter.Args...))
		}
		if c.Adapter.WorkingDirectory != "" {
			opts = append(opts, cli.WithDir(c.Adapter.WorkingDirectory))
		}
		if c.Adapter.EnvVars != nil {
			opts = append(opts, cli.WithEnv(c.Adapter.EnvVars))
		}
		if c.Adapter.Stdin {
			opts = append(opts, cli.WithStdin(true))
		}
		if c.Adapter.AsyncMode {
			opts = append(opts, cli.WithAsyncMode(true))
		}
		if timeout > 0 {
			opts = append(opts, cli.WithTimeout(timeout))
		}
		if c.Adapter.MaxRetries != nil {
			opts = append(opts, cli.WithMaxRetries(*c.Adapter.MaxRetries))
		}
		if backoff > 0 {
			opts = append(opts, cli.WithBackoff(backoff))
		}
		return cli.New(opts...)

	default:
		return nil, &adapter.ValidationError{Field: "adapter.kind", Message: fmt.Sprintf("unknown kind %q", c.Adapter.Kind)}
	}
}

// BuildCard returns the agent card the document describes.
func (c *Config) BuildCard() *adapter.AgentCard {
	card := adapter.NewAgentCard(c.Agent.Name, c.Agent.Description, c.Agent.URL, c.Agent.Version)
	if len(c.Agent.DefaultInputModes) > 0 {
		card.DefaultInputModes = c.Agent.DefaultInputModes
	}
	if len(c.Agent.DefaultOutputModes) > 0 {
		card.DefaultOutputModes = c.Agent.DefaultOutputModes
	}
	for _, skill := range c.Agent.Skills {
		card.Skills = append(card.Skills, adapter.AgentSkill{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Tags:        skill.Tags,
			Examples:    skill.Examples,
		})
	}
	return card
}

// parseDuration parses an optional duration field; empty means unset.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &adapter.ValidationError{Field: field, Message: fmt.Sprintf("invalid duration %q", value)}
	}
	if d < 0 {
		return 0, &adapter.ValidationError{Field: field, Message: "duration cannot be negative"}
	}
	return d, nil
}
