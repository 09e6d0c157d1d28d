// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the bridge process.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	Database DatabaseConfig `yaml:"database"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Admin    AdminConfig    `yaml:"admin"`
	Chat     ChatConfig     `yaml:"chat"`
	SMS      SMSConfig      `yaml:"sms"`
	Prompts  PromptsConfig  `yaml:"prompts"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path to the database file. Required.
	Path string `yaml:"path"`

	// PoolSize is the SQLite connection pool size. Defaults to 4.
	PoolSize int `yaml:"pool_size"`
}

// WebhookConfig configures the inbound SMS HTTP listener.
type WebhookConfig struct {
	// ListenAddr is the TCP address for the provider webhook.
	// Defaults to :8089.
	ListenAddr string `yaml:"listen_addr"`
}

// AdminConfig configures the local status socket.
type AdminConfig struct {
	// SocketPath is where the admin Unix socket is created.
	// Defaults to /run/gsms/admin.sock.
	SocketPath string `yaml:"socket_path"`
}

// ChatConfig points at the chat service.
type ChatConfig struct {
	// APIURL is the REST endpoint. Defaults to the public Gitter API.
	APIURL string `yaml:"api_url"`

	// StreamURL is the streaming endpoint. Defaults to the public
	// Gitter stream host.
	StreamURL string `yaml:"stream_url"`
}

// SMSConfig holds the SMS provider credentials.
type SMSConfig struct {
	// AccountSID and AuthToken are the provider API credentials.
	// Required.
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`

	// FromNumber is the bridge's own 10-digit number. Required.
	FromNumber string `yaml:"from_number"`
}

// PromptsConfig overrides the replies for inbound SMS that cannot be
// forwarded. Empty fields keep the built-in prompts.
type PromptsConfig struct {
	Register     string `yaml:"register"`
	NoActiveRoom string `yaml:"no_active_room"`
}

// Default returns a configuration with every optional field filled
// in. Required fields (database path, SMS credentials) stay empty.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Database: DatabaseConfig{PoolSize: 4},
		Webhook:  WebhookConfig{ListenAddr: ":8089"},
		Admin:    AdminConfig{SocketPath: "/run/gsms/admin.sock"},
		Chat: ChatConfig{
			APIURL:    "https://api.gitter.im",
			StreamURL: "https://stream.gitter.im",
		},
	}
}

// LoadFile reads a YAML configuration file, applying defaults for
// fields the file leaves unset.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	config.applyDefaults()
	return config, nil
}

// applyDefaults refills optional fields a config file set to empty.
func (c *Config) applyDefaults() {
	defaults := Default()
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Database.PoolSize == 0 {
		c.Database.PoolSize = defaults.Database.PoolSize
	}
	if c.Webhook.ListenAddr == "" {
		c.Webhook.ListenAddr = defaults.Webhook.ListenAddr
	}
	if c.Admin.SocketPath == "" {
		c.Admin.SocketPath = defaults.Admin.SocketPath
	}
	if c.Chat.APIURL == "" {
		c.Chat.APIURL = defaults.Chat.APIURL
	}
	if c.Chat.StreamURL == "" {
		c.Chat.StreamURL = defaults.Chat.StreamURL
	}
}

// Validate checks that the configuration can actually run a bridge.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q (supported: debug, info, warn, error)", c.LogLevel)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required")
	}
	if c.SMS.AccountSID == "" {
		return fmt.Errorf("config: sms.account_sid is required")
	}
	if c.SMS.AuthToken == "" {
		return fmt.Errorf("config: sms.auth_token is required")
	}
	if c.SMS.FromNumber == "" {
		return fmt.Errorf("config: sms.from_number is required")
	}
	return nil
}
