// Package config handles loading and validating Mwito configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

func init() {
	// Load .env file if it exists
	_ = godotenv.Load()
}

// Config is the root configuration for Mwito.
//
// AWS credential strategy selection is deliberately NOT part of this
// file: it is environment-only (AWS_LOGIN_STRATEGY and friends) and
// handled by the awsauth package at boot.
type Config struct {
	Server        ServerConfig         `json:"server" yaml:"server"`
	Bedrock       BedrockConfig        `json:"bedrock" yaml:"bedrock"`
	History       HistoryConfig        `json:"history" yaml:"history"`
	Observability *ObservabilityConfig `json:"observability,omitempty" yaml:"observability,omitempty"` // nil = observability disabled
}

// ServerConfig configures the HTTP serving surface.
type ServerConfig struct {
	ListenAddr string            `json:"listen_addr" yaml:"listen_addr"` // Default: ":8080".
	APIKeys    map[string]string `json:"api_keys" yaml:"api_keys"`       // API key → user ID mapping.
	EnableDocs bool              `json:"enable_docs" yaml:"enable_docs"` // Serve OpenAPI docs.
	EnableSSE  bool              `json:"enable_sse" yaml:"enable_sse"`   // Streaming chat endpoint.
	WebSocket  *WebSocketConfig  `json:"websocket,omitempty" yaml:"websocket,omitempty"`   // nil = WS chat disabled
	RateLimit  *RateLimitConfig  `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"` // nil = unlimited
}

// RateLimitConfig configures the per-user token bucket limiter.
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int `json:"burst" yaml:"burst"` // 0 = defaults to requests_per_minute
}

// WebSocketConfig configures the browser WebSocket chat endpoint.
type WebSocketConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`   // Default: "/ws/chat".
	Token   string `json:"token" yaml:"token"` // Empty = unauthenticated.
}

// WSPath returns the WebSocket path with its default.
func (w *WebSocketConfig) WSPath() string {
	if w != nil && w.Path != "" {
		return w.Path
	}
	return "/ws/chat"
}

// BedrockConfig configures the Bedrock model backend.
type BedrockConfig struct {
	ModelID      string           `json:"model_id" yaml:"model_id"`
	CrossRegion  bool             `json:"cross_region" yaml:"cross_region"` // Prefix the model ID for cross-region inference.
	SystemPrompt string           `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Inference    *InferenceConfig `json:"inference,omitempty" yaml:"inference,omitempty"` // nil = model defaults
	Thinking     *ThinkingConfig  `json:"thinking,omitempty" yaml:"thinking,omitempty"`   // nil = thinking disabled
}

// InferenceConfig tunes sampling for the Converse call.
type InferenceConfig struct {
	Temperature float64 `json:"temperature" yaml:"temperature"` // 0.0–1.0.
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`   // Default: 4096.
}

// ThinkingConfig enables extended thinking on models that support it.
type ThinkingConfig struct {
	BudgetTokens int `json:"budget_tokens" yaml:"budget_tokens"`
}

// HistoryConfig bounds the in-memory conversation history.
type HistoryConfig struct {
	MaxMessages int `json:"max_messages" yaml:"max_messages"` // Context window per conversation. Default: 40.
}

// WindowSize returns the history window with its default.
func (h *HistoryConfig) WindowSize() int {
	if h != nil && h.MaxMessages > 0 {
		return h.MaxMessages
	}
	return 40
}

// ObservabilityConfig configures metrics and tracing.
// When nil, all observability features are disabled with zero overhead.
type ObservabilityConfig struct {
	Metrics *MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Tracing *TracingConfig `json:"tracing,omitempty" yaml:"tracing,omitempty"`
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"` // Default: "/metrics"
}

// TracingConfig configures OpenTelemetry distributed tracing.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`         // OTLP endpoint, e.g. "localhost:4317"
	Protocol    string  `json:"protocol" yaml:"protocol"`         // "grpc" or "http". Default: "grpc"
	ServiceName string  `json:"service_name" yaml:"service_name"` // Default: "mwito"
	SampleRate  float64 `json:"sample_rate" yaml:"sample_rate"`   // 0.0–1.0. Default: 1.0
	Insecure    bool    `json:"insecure" yaml:"insecure"`         // Skip TLS for dev
}

// DefaultConfigPath returns the default config file path (~/.mwito/config.json).
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "configs/mwito.json" // fallback for environments without a home dir
	}
	return filepath.Join(home, ".mwito", "config.json")
}

// Load reads a JSON or YAML config file and returns a validated Config.
// The format is detected by file extension: .yml/.yaml for YAML,
// everything else for JSON. An empty path skips the file entirely and
// builds the config from defaults plus environment overrides — the
// usual mode for container deployments. Environment variables take
// precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		resolved, err := resolvePath(path)
		if err != nil {
			return nil, fmt.Errorf("resolving config path %s: %w", path, err)
		}

		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", resolved, err)
		}

		switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
		case ".yml", ".yaml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides layers environment variables over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MWITO_LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MWITO_API_KEY"); v != "" {
		if cfg.Server.APIKeys == nil {
			cfg.Server.APIKeys = make(map[string]string)
		}
		cfg.Server.APIKeys[v] = "default"
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_SYSTEM_PROMPT"); v != "" {
		cfg.Bedrock.SystemPrompt = v
	}
	if v := os.Getenv("MWITO_WS_TOKEN"); v != "" {
		if cfg.Server.WebSocket == nil {
			cfg.Server.WebSocket = &WebSocketConfig{Enabled: true}
		}
		cfg.Server.WebSocket.Token = v
	}
}

// resolvePath expands ~ to the user home directory and returns an absolute path.
func resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

func (c *Config) validate() error {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Bedrock.ModelID == "" {
		return fmt.Errorf("bedrock.model_id is required (set BEDROCK_MODEL_ID env var)")
	}
	if inf := c.Bedrock.Inference; inf != nil {
		if inf.Temperature < 0 || inf.Temperature > 1 {
			return fmt.Errorf("bedrock.inference.temperature must be between 0 and 1")
		}
		if inf.MaxTokens < 0 {
			return fmt.Errorf("bedrock.inference.max_tokens must not be negative")
		}
	}
	if t := c.Bedrock.Thinking; t != nil && t.BudgetTokens <= 0 {
		return fmt.Errorf("bedrock.thinking.budget_tokens must be positive when thinking is configured")
	}
	if c.History.MaxMessages < 0 {
		return fmt.Errorf("history.max_messages must not be negative")
	}
	return nil
}
