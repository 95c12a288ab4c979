// Package config loads and validates the animus YAML configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/animus-ai/animus/internal/observability"
)

// Config is the root configuration for the cognitive core. Every timing
// constant of the loop is a field here; Default supplies the canonical
// values.
type Config struct {
	Agent        AgentConfig              `yaml:"agent"`
	LLM          LLMConfig                `yaml:"llm"`
	Embeddings   EmbeddingsConfig         `yaml:"embeddings"`
	Memory       MemoryConfig             `yaml:"memory"`
	Tools        ToolsConfig              `yaml:"tools"`
	Loop         LoopConfig               `yaml:"loop"`
	Reminders    RemindersConfig          `yaml:"reminders"`
	Instructions InstructionsConfig       `yaml:"instructions"`
	Log          observability.LogConfig  `yaml:"log"`
	Metrics      MetricsConfig            `yaml:"metrics"`
	Discord      DiscordConfig            `yaml:"discord"`
	TTS          TTSConfig                `yaml:"tts"`
}

// AgentConfig describes the agent identity.
type AgentConfig struct {
	// Name is the agent's spoken name; recent-thought scans look for it
	// upper-cased.
	Name string `yaml:"name"`

	// KillCommand is a literal substring in incoming text that triggers
	// immediate shutdown before any processing.
	KillCommand string `yaml:"kill_command"`

	// PersonalityThought and PersonalityResponse are the fixed persona
	// strings injected into cognitive and spoken prompts respectively.
	PersonalityThought  string `yaml:"personality_thought"`
	PersonalityResponse string `yaml:"personality_response"`
}

// LLMConfig configures the language-model endpoint.
type LLMConfig struct {
	// Provider selects the client: "ollama" (default) or "openai".
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`

	// Model drives cognitive-mode prompts; ResponseModel, when set,
	// drives spoken responses (falls back to Model).
	Model         string `yaml:"model"`
	ResponseModel string `yaml:"response_model"`

	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
	TopP           float64 `yaml:"top_p"`
	TopK           int     `yaml:"top_k"`
	RepeatPenalty  float64 `yaml:"repeat_penalty"`
	NumPredict     int     `yaml:"num_predict"`
	NumCtx         int     `yaml:"num_ctx"`
	KeepAlive      string  `yaml:"keep_alive"`
	Seed           *int    `yaml:"seed"`
}

// EmbeddingsConfig configures the embedding endpoint.
type EmbeddingsConfig struct {
	Provider       string `yaml:"provider"` // "ollama" or "openai"
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MemoryConfig configures the four-tier memory subsystem.
type MemoryConfig struct {
	// Dir holds short_memory.json, medium_memory.json, long_memory.json.
	Dir string `yaml:"dir"`

	// BaseDir holds the read-only base-knowledge JSON files loaded at
	// startup.
	BaseDir string `yaml:"base_dir"`

	ShortCapacity int `yaml:"short_capacity"`

	// UserWeight and ThoughtsWeight steer combined-query retrieval.
	UserWeight     float64 `yaml:"user_weight"`
	ThoughtsWeight float64 `yaml:"thoughts_weight"`
}

// ToolsConfig configures tool discovery and execution.
type ToolsConfig struct {
	// Dir is the installed-tools directory scanned for manifests.
	Dir string `yaml:"dir"`

	DefaultTimeoutSeconds int `yaml:"default_timeout_seconds"`

	// Watch enables fsnotify hot-reload of manifests in Dir.
	Watch bool `yaml:"watch"`
}

// LoopConfig configures cognitive loop pacing.
type LoopConfig struct {
	MinProactiveIntervalSeconds      int `yaml:"min_proactive_interval_seconds"`
	MaxProactiveIntervalSeconds      int `yaml:"max_proactive_interval_seconds"`
	PlanningWindowSeconds            int `yaml:"planning_window_seconds"`
	ChatBatchWindowSeconds           int `yaml:"chat_batch_window_seconds"`
	ChatBatchMax                     int `yaml:"chat_batch_max"`
	MemoryIntegrationIntervalSeconds int `yaml:"memory_integration_interval_seconds"`
	ThoughtBufferCapacity            int `yaml:"thought_buffer_capacity"`
	ActionCleanupSeconds             int `yaml:"action_cleanup_seconds"`
	StartupThoughtThreshold          int `yaml:"startup_thought_threshold"`
}

// RemindersConfig configures the reminder store.
type RemindersConfig struct {
	Path                 string `yaml:"path"`
	CheckIntervalSeconds int    `yaml:"check_interval_seconds"`
}

// InstructionsConfig configures the instruction persistence tracker.
type InstructionsConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// MetricsConfig configures the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// DiscordConfig configures the optional Discord chat adapter.
type DiscordConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Token    string   `yaml:"token"`
	Channels []string `yaml:"channels"`
}

// TTSConfig configures spoken output.
type TTSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Default returns the configuration with every constant at its canonical
// value.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "animus",
			KillCommand: "animus shutdown now",
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "llama3.1",
			TimeoutSeconds: 90,
			Temperature:    0.8,
			TopP:           0.9,
			TopK:           40,
			RepeatPenalty:  1.1,
			NumPredict:     512,
			NumCtx:         8192,
			KeepAlive:      "10m",
		},
		Embeddings: EmbeddingsConfig{
			Provider:       "ollama",
			BaseURL:        "http://localhost:11434",
			Model:          "nomic-embed-text",
			TimeoutSeconds: 30,
		},
		Memory: MemoryConfig{
			Dir:            "data/memory",
			BaseDir:        "data/base_memory",
			ShortCapacity:  25,
			UserWeight:     0.6,
			ThoughtsWeight: 0.4,
		},
		Tools: ToolsConfig{
			Dir:                   "tools",
			DefaultTimeoutSeconds: 30,
		},
		Loop: LoopConfig{
			MinProactiveIntervalSeconds:      5,
			MaxProactiveIntervalSeconds:      30,
			PlanningWindowSeconds:            360,
			ChatBatchWindowSeconds:           2,
			ChatBatchMax:                     10,
			MemoryIntegrationIntervalSeconds: 120,
			ThoughtBufferCapacity:            25,
			ActionCleanupSeconds:             300,
			StartupThoughtThreshold:          3,
		},
		Reminders: RemindersConfig{
			Path:                 "data/reminders.json",
			CheckIntervalSeconds: 30,
		},
		Instructions: InstructionsConfig{
			TTLSeconds: 360,
		},
		Log: observability.LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Load reads a YAML config file, expands ${ENV_VAR} references, applies
// defaults for unset fields, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults restores zero-valued numeric fields that yaml decoding may
// have cleared.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Memory.ShortCapacity <= 0 {
		cfg.Memory.ShortCapacity = def.Memory.ShortCapacity
	}
	if cfg.Memory.UserWeight <= 0 && cfg.Memory.ThoughtsWeight <= 0 {
		cfg.Memory.UserWeight = def.Memory.UserWeight
		cfg.Memory.ThoughtsWeight = def.Memory.ThoughtsWeight
	}
	if cfg.Tools.DefaultTimeoutSeconds <= 0 {
		cfg.Tools.DefaultTimeoutSeconds = def.Tools.DefaultTimeoutSeconds
	}
	if cfg.Loop.MinProactiveIntervalSeconds <= 0 {
		cfg.Loop.MinProactiveIntervalSeconds = def.Loop.MinProactiveIntervalSeconds
	}
	if cfg.Loop.MaxProactiveIntervalSeconds <= 0 {
		cfg.Loop.MaxProactiveIntervalSeconds = def.Loop.MaxProactiveIntervalSeconds
	}
	if cfg.Loop.PlanningWindowSeconds <= 0 {
		cfg.Loop.PlanningWindowSeconds = def.Loop.PlanningWindowSeconds
	}
	if cfg.Loop.ChatBatchWindowSeconds <= 0 {
		cfg.Loop.ChatBatchWindowSeconds = def.Loop.ChatBatchWindowSeconds
	}
	if cfg.Loop.ChatBatchMax <= 0 {
		cfg.Loop.ChatBatchMax = def.Loop.ChatBatchMax
	}
	if cfg.Loop.MemoryIntegrationIntervalSeconds <= 0 {
		cfg.Loop.MemoryIntegrationIntervalSeconds = def.Loop.MemoryIntegrationIntervalSeconds
	}
	if cfg.Loop.ThoughtBufferCapacity <= 0 {
		cfg.Loop.ThoughtBufferCapacity = def.Loop.ThoughtBufferCapacity
	}
	if cfg.Loop.ActionCleanupSeconds <= 0 {
		cfg.Loop.ActionCleanupSeconds = def.Loop.ActionCleanupSeconds
	}
	if cfg.Loop.StartupThoughtThreshold <= 0 {
		cfg.Loop.StartupThoughtThreshold = def.Loop.StartupThoughtThreshold
	}
	if cfg.Reminders.CheckIntervalSeconds <= 0 {
		cfg.Reminders.CheckIntervalSeconds = def.Reminders.CheckIntervalSeconds
	}
	if cfg.Instructions.TTLSeconds <= 0 {
		cfg.Instructions.TTLSeconds = def.Instructions.TTLSeconds
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		cfg.LLM.TimeoutSeconds = def.LLM.TimeoutSeconds
	}
	if cfg.Embeddings.TimeoutSeconds <= 0 {
		cfg.Embeddings.TimeoutSeconds = def.Embeddings.TimeoutSeconds
	}
}

// Validate rejects configurations the core cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Agent.Name) == "" {
		return fmt.Errorf("agent.name is required")
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("llm.provider must be \"ollama\" or \"openai\", got %q", c.LLM.Provider)
	}
	switch c.Embeddings.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("embeddings.provider must be \"ollama\" or \"openai\", got %q", c.Embeddings.Provider)
	}
	if c.LLM.Provider == "openai" && strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required for the openai provider")
	}
	if c.Loop.MaxProactiveIntervalSeconds < c.Loop.MinProactiveIntervalSeconds {
		return fmt.Errorf("loop.max_proactive_interval_seconds (%d) below min (%d)",
			c.Loop.MaxProactiveIntervalSeconds, c.Loop.MinProactiveIntervalSeconds)
	}
	if c.Discord.Enabled && strings.TrimSpace(c.Discord.Token) == "" {
		return fmt.Errorf("discord.token is required when discord.enabled")
	}
	return nil
}
