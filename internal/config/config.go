// Package config provides YAML-based configuration loading for Kriya.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds understood by the relay.
const (
	ProviderKindOpenAI    = "openai"
	ProviderKindAnthropic = "anthropic"
)

// Config is the top-level Kriya configuration, loaded from kriya.yaml.
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Database      DatabaseConfig            `yaml:"database"`
	Providers     map[string]ProviderConfig `yaml:"providers"`
	AgentsFile    string                    `yaml:"agents_file"`
	Agents        []AgentConfig             `yaml:"agents"`
	OverviewAgent string                    `yaml:"overview_agent"`
	Bridge        BridgeConfig              `yaml:"bridge"`
	Notify        NotifyConfig              `yaml:"notify"`
	Digest        DigestConfig              `yaml:"digest"`
	Log           LogConfig                 `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	UserHeader      string        `yaml:"user_header"`
	DefaultUser     string        `yaml:"default_user"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig selects and addresses the durable store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ProviderConfig describes one upstream completion API.
type ProviderConfig struct {
	Kind         string            `yaml:"kind"`
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	Headers      map[string]string `yaml:"headers"`
	ModelAliases map[string]string `yaml:"model_aliases"`
}

// AgentConfig is one entry of the agent catalog.
type AgentConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Icon         string   `yaml:"icon"`
	Color        string   `yaml:"color"`
	Group        string   `yaml:"group"`
	Model        string   `yaml:"model"`
	Provider     string   `yaml:"provider"`
	SystemPrompt string   `yaml:"system_prompt"`
	Temperature  *float64 `yaml:"temperature"` // nil means the default; 0 is honored
	MaxTokens    int      `yaml:"max_tokens"`
	DisplayOrder int      `yaml:"display_order"`
}

// BridgeConfig controls the external participant queue.
type BridgeConfig struct {
	Secret         string        `yaml:"secret"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	Timeout        time.Duration `yaml:"timeout"`
	ReplayDelay    time.Duration `yaml:"replay_delay"`
	PendingMessage string        `yaml:"pending_message"`
}

// NotifyConfig controls operator notifications.
type NotifyConfig struct {
	Command           string `yaml:"command"`
	SlackWebhookURL   string `yaml:"slack_webhook_url"`
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
}

// DigestConfig schedules the backlog digest.
type DigestConfig struct {
	Schedule   string        `yaml:"schedule"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, unmarshals YAML bytes, and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3001
	}
	if c.Server.UserHeader == "" {
		c.Server.UserHeader = "X-User"
	}
	if c.Server.DefaultUser == "" {
		c.Server.DefaultUser = "default"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "data/kriya.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "kriya"
		}
	}

	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	if _, ok := c.Providers["openrouter"]; !ok {
		c.Providers["openrouter"] = ProviderConfig{
			Kind:    ProviderKindOpenAI,
			BaseURL: "https://openrouter.ai/api/v1",
			APIKey:  os.Getenv("OPENROUTER_API_KEY"),
			Headers: map[string]string{
				"HTTP-Referer": "https://agent-workspace.local",
				"X-Title":      "Agent Workspace",
			},
		}
	}
	if _, ok := c.Providers["dashscope"]; !ok {
		c.Providers["dashscope"] = ProviderConfig{
			Kind:    ProviderKindOpenAI,
			BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
			APIKey:  os.Getenv("DASHSCOPE_API_KEY"),
			ModelAliases: map[string]string{
				"qwen-max":          "qwen-max-latest",
				"qwen-max-thinking": "qwen-max-latest",
				"qwen-plus":         "qwen-plus-latest",
				"qwen-turbo":        "qwen-turbo-latest",
				"qwen-coder":        "qwen-coder-plus-latest",
				"qwen-vl":           "qwen-vl-max-latest",
				"qwq":               "qwq-plus-latest",
			},
		}
	}
	for name, p := range c.Providers {
		if p.Kind == "" {
			p.Kind = ProviderKindOpenAI
			c.Providers[name] = p
		}
	}

	if c.AgentsFile == "" && len(c.Agents) == 0 {
		c.AgentsFile = "agents.yaml"
	}
	if c.OverviewAgent == "" {
		c.OverviewAgent = "overview"
	}

	if c.Bridge.PollInterval == 0 {
		c.Bridge.PollInterval = 500 * time.Millisecond
	}
	if c.Bridge.Timeout == 0 {
		c.Bridge.Timeout = 2 * time.Minute
	}
	if c.Bridge.ReplayDelay == 0 {
		c.Bridge.ReplayDelay = 20 * time.Millisecond
	}
	if c.Bridge.PendingMessage == "" {
		c.Bridge.PendingMessage = "*still thinking...*\n\n(Response pending: the bridge participant is processing this request. Check back or refresh.)"
	}

	if c.Digest.StaleAfter == 0 {
		c.Digest.StaleAfter = 10 * time.Minute
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	for name, p := range c.Providers {
		switch p.Kind {
		case ProviderKindOpenAI, ProviderKindAnthropic:
		default:
			errs = append(errs, fmt.Sprintf("providers.%s.kind %q must be openai or anthropic", name, p.Kind))
		}
		if p.BaseURL == "" {
			errs = append(errs, fmt.Sprintf("providers.%s.base_url is required", name))
		}
	}
	for i, a := range c.Agents {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("agents[%d].id is required", i))
		}
	}
	if c.Bridge.PollInterval < 0 {
		errs = append(errs, "bridge.poll_interval must not be negative")
	}
	if c.Bridge.Timeout < 0 {
		errs = append(errs, "bridge.timeout must not be negative")
	}
	if c.Bridge.ReplayDelay < 0 {
		errs = append(errs, "bridge.replay_delay must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("log.level %q must be debug, info, warn, or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q must be json or console", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
