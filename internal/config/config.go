// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package config loads the runtime's configuration. Priority: CLI flags >
// env vars > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration runtime.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	LLM          LLMConfig          `mapstructure:"llm"`
	TokenEconomy TokenEconomyConfig `mapstructure:"token_economy"`

	// WorkingDir is the orchestrator's working directory. Overridden by
	// --cwd, else by the ORCHESTRATOR_CWD env var, else the process cwd.
	WorkingDir string `mapstructure:"-"`

	// ResumeSession is the --session flag: a session token to resolve an
	// existing orchestrator from instead of creating a new one.
	ResumeSession string `mapstructure:"-"`
}

// ServerConfig holds HTTP/WS listener configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// PingIntervalSeconds / ConnectionTimeoutSeconds configure the
	// WebSocket hub's keepalive (§4.2).
	PingIntervalSeconds      int `mapstructure:"ping_interval_seconds"`
	ConnectionTimeoutSeconds int `mapstructure:"connection_timeout_seconds"`
}

// DatabaseConfig holds PostgreSQL pool configuration.
type DatabaseConfig struct {
	DSN                      string `mapstructure:"dsn"`
	Host                     string `mapstructure:"host"`
	Port                     int    `mapstructure:"port"`
	Name                     string `mapstructure:"name"`
	User                     string `mapstructure:"user"`
	Password                 string `mapstructure:"password"`
	SSLMode                  string `mapstructure:"ssl_mode"`
	Schema                   string `mapstructure:"schema"`
	MaxConns                 int32  `mapstructure:"max_conns"`
	MinConns                 int32  `mapstructure:"min_conns"`
	CommandTimeoutSeconds    int    `mapstructure:"command_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// LLMConfig holds the LLM SDK adapter's configuration.
type LLMConfig struct {
	APIKey            string `mapstructure:"api_key"`
	PrimaryModel      string `mapstructure:"primary_model"`
	PremiumModel      string `mapstructure:"premium_model"` // highest-capacity tier (§4.4.5)
	FastModel         string `mapstructure:"fast_model"`    // cheap tier; also used by the summarizer client
	APITimeoutSeconds int    `mapstructure:"api_timeout_seconds"`
}

// TokenEconomyConfig holds the feature flag and parameters for §4.4.
type TokenEconomyConfig struct {
	Enabled bool `mapstructure:"enabled"`

	MaxContextTokens int `mapstructure:"max_context_tokens"` // Open Question 3 — single source of truth
	MaxMessages      int `mapstructure:"max_messages"`

	TokensPerMinute   int     `mapstructure:"tokens_per_minute"`
	BackoffThreshold  float64 `mapstructure:"backoff_threshold"`

	CacheMaxEntries int `mapstructure:"cache_max_entries"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`

	CostAlertThreshold    float64 `mapstructure:"cost_alert_threshold"`
	CostCriticalThreshold float64 `mapstructure:"cost_critical_threshold"`

	SessionBudgetTokens int `mapstructure:"session_budget_tokens"`
}

// Default returns the built-in defaults, applied before file/env/flag
// overrides in Load.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                     "0.0.0.0",
			Port:                     8000,
			PingIntervalSeconds:      30,
			ConnectionTimeoutSeconds: 60,
		},
		Database: DatabaseConfig{
			SSLMode:               "require",
			Schema:                "public",
			MaxConns:              20,
			MinConns:              5,
			CommandTimeoutSeconds: 180,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		LLM: LLMConfig{
			PrimaryModel:      "claude-sonnet-4-5-20250929",
			PremiumModel:      "claude-opus-4-5-20250929",
			FastModel:         "claude-haiku-4-5-20251001",
			APITimeoutSeconds: 300,
		},
		TokenEconomy: TokenEconomyConfig{
			Enabled:               true,
			MaxContextTokens:      200_000,
			MaxMessages:           50,
			TokensPerMinute:       100_000,
			BackoffThreshold:      0.8,
			CacheMaxEntries:       500,
			CacheTTLSeconds:       300,
			CostAlertThreshold:    10.0,
			CostCriticalThreshold: 50.0,
			SessionBudgetTokens:   50_000,
		},
	}
}

// Load reads configuration from (in increasing priority) built-in
// defaults, an optional config file, environment variables prefixed
// ORCHESTRATOR_, and the supplied viper instance (into which callers bind
// CLI flags before calling Load, matching cmd/looms/config.go's layering).
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("orchestrator")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.orchestrator")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Register every key as a default so that AutomaticEnv overrides are
	// seen by Unmarshal, which only decodes keys viper already knows.
	var defaults map[string]any
	if err := mapstructure.Decode(cfg, &defaults); err != nil {
		return cfg, fmt.Errorf("failed to register config defaults: %w", err)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(nil)); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

// CommandTimeout returns the store adapter's per-statement timeout.
func (d DatabaseConfig) CommandTimeout() time.Duration {
	if d.CommandTimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(d.CommandTimeoutSeconds) * time.Second
}

// APITimeout returns the LLM SDK's per-call timeout.
func (l LLMConfig) APITimeout() time.Duration {
	if l.APITimeoutSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(l.APITimeoutSeconds) * time.Second
}
