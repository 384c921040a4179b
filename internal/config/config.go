// Package config loads and validates the daemon configuration.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the main zana configuration.
type Config struct {
	// Telegram
	Telegram TelegramConfig `json:"telegram" mapstructure:"telegram"`

	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// Agent loop
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Inbound coordination
	Coordinator CoordinatorConfig `json:"coordinator" mapstructure:"coordinator"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Admin HTTP surface
	Admin AdminConfig `json:"admin" mapstructure:"admin"`

	// AI credentials
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Database path, defaults to <data_dir>/zana.db
	DatabasePath string `json:"database_path" mapstructure:"database_path"`
}

// TelegramConfig holds Telegram bot configuration.
type TelegramConfig struct {
	BotToken  string  `json:"bot_token" mapstructure:"bot_token"`
	Allowlist []int64 `json:"allowlist" mapstructure:"allowlist"`
}

// ModelsConfig holds model selection configuration. Fallback is the ordered
// candidate list tried when earlier models are rate limited.
type ModelsConfig struct {
	Provider string   `json:"provider" mapstructure:"provider"` // anthropic or openai
	Primary  string   `json:"primary" mapstructure:"primary"`
	Fallback []string `json:"fallback" mapstructure:"fallback"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	MaxIterations  int     `json:"max_iterations" mapstructure:"max_iterations"`
	Temperature    float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt   string  `json:"system_prompt" mapstructure:"system_prompt"`
	StrictMutation bool    `json:"strict_mutation" mapstructure:"strict_mutation"`
	HistoryTurns   int     `json:"history_turns" mapstructure:"history_turns"`
}

// CoordinatorConfig tunes inbound message coordination.
type CoordinatorConfig struct {
	DebounceMs int    `json:"debounce_ms" mapstructure:"debounce_ms"`
	QueueCap   int    `json:"queue_cap" mapstructure:"queue_cap"`
	DropPolicy string `json:"drop_policy" mapstructure:"drop_policy"` // summarize or oldest
}

// Debounce returns the debounce window as a duration.
func (c CoordinatorConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// AdminConfig holds the admin HTTP server configuration.
type AdminConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// AIConfig holds AI provider credentials.
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile is one provider credential.
type AIProfile struct {
	Provider string `json:"provider" mapstructure:"provider"` // anthropic or openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Provider: "anthropic",
			Primary:  "claude-sonnet-4",
			Fallback: []string{"claude-sonnet-4", "claude-haiku-3-5"},
		},
		Agent: AgentConfig{
			MaxIterations:  6,
			Temperature:    0.7,
			MaxTokens:      4096,
			StrictMutation: true,
			HistoryTurns:   20,
		},
		Coordinator: CoordinatorConfig{
			DebounceMs: 1500,
			QueueCap:   20,
			DropPolicy: "summarize",
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
		},
	}
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// CandidateModels returns the fallback list with the primary model
// guaranteed to be first.
func (c *Config) CandidateModels() []string {
	models := make([]string, 0, len(c.Models.Fallback)+1)
	if c.Models.Primary != "" {
		models = append(models, c.Models.Primary)
	}
	for _, m := range c.Models.Fallback {
		if m != c.Models.Primary {
			models = append(models, m)
		}
	}
	return models
}

// APIKeyFor returns the API key configured for a provider.
func (c *Config) APIKeyFor(provider string) string {
	for _, profile := range c.AI.Profiles {
		if profile.Provider == provider {
			return profile.APIKey
		}
	}
	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}
	for i, profile := range c.AI.Profiles {
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %d: invalid provider %q (must be anthropic or openai)", i, profile.Provider)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %d: api_key is required", i)
		}
	}

	if c.Models.Provider != "anthropic" && c.Models.Provider != "openai" {
		return fmt.Errorf("invalid model provider %q", c.Models.Provider)
	}
	if c.APIKeyFor(c.Models.Provider) == "" {
		return fmt.Errorf("no AI profile configured for provider %q", c.Models.Provider)
	}
	if len(c.CandidateModels()) == 0 {
		return fmt.Errorf("at least one model is required")
	}

	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent max_iterations must be positive")
	}

	if c.Coordinator.QueueCap <= 0 {
		return fmt.Errorf("coordinator queue_cap must be positive")
	}
	if p := c.Coordinator.DropPolicy; p != "summarize" && p != "oldest" {
		return fmt.Errorf("invalid coordinator drop_policy %q (must be summarize or oldest)", p)
	}

	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram bot token is required")
	}

	if c.Admin.Enabled && (c.Admin.Port <= 0 || c.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port %d", c.Admin.Port)
	}

	return nil
}
