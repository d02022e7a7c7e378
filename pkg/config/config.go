// Package config provides unified configuration for the streamrelay server
// and chat client.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (STREAMRELAY_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for streamrelay.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Heartbeat     HeartbeatConfig     `yaml:"heartbeat"`
	Reveal        RevealConfig        `yaml:"reveal"`
	Session       SessionConfig       `yaml:"session"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Debug         DebugConfig         `yaml:"debug"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 15s
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`   // default: 10 MiB
}

// UpstreamConfig describes the provider the relay forwards to.
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url"`       // required
	APIKeyHeader string        `yaml:"api_key_header"` // default: "Authorization"
	APIKey       string        `yaml:"api_key"`        // optional server-side fallback key
	APIKeyFile   string        `yaml:"api_key_file"`   // _file variant for api_key
	RoutePrefix  string        `yaml:"route_prefix"`   // default: "/v1"
	Timeout      time.Duration `yaml:"timeout"`        // non-streaming calls, default: 120s
}

// HeartbeatConfig controls keep-alive frames sent while the upstream is silent.
type HeartbeatConfig struct {
	Interval time.Duration `yaml:"interval"`  // default: 5s
	MaxCount int           `yaml:"max_count"` // default: 120
	Text     string        `yaml:"text"`      // default: "思考中..."
	Format   string        `yaml:"format"`    // "openai" or "gemini", default: "openai"
}

// RevealConfig controls client-side reveal pacing.
type RevealConfig struct {
	Interval time.Duration `yaml:"interval"` // default: 16ms
	Divisor  int           `yaml:"divisor"`  // default: 60
}

// SessionConfig holds chat client settings.
type SessionConfig struct {
	// Endpoint is the chat completions URL the client posts to.
	Endpoint      string         `yaml:"endpoint"`
	APIKey        string         `yaml:"api_key"`
	APIKeyFile    string         `yaml:"api_key_file"`
	Stream        bool           `yaml:"stream"`          // default: true
	MaxToolRounds int            `yaml:"max_tool_rounds"` // default: 8
	Model         ModelConfig    `yaml:"model"`
	Timeouts      TimeoutsConfig `yaml:"timeouts"`
}

// ModelConfig holds sampling defaults applied to every exchange.
type ModelConfig struct {
	Model            string  `yaml:"model"`
	Temperature      float64 `yaml:"temperature"`       // default: 0.5
	TopP             float64 `yaml:"top_p"`             // default: 1
	PresencePenalty  float64 `yaml:"presence_penalty"`  // default: 0
	FrequencyPenalty float64 `yaml:"frequency_penalty"` // default: 0
	MaxTokens        int     `yaml:"max_tokens"`        // 0 means unset
}

// TimeoutsConfig selects the request timeout by model name.
type TimeoutsConfig struct {
	Default        time.Duration `yaml:"default"`         // default: 60s
	Thinking       time.Duration `yaml:"thinking"`        // default: 300s
	ThinkingModels []string      `yaml:"thinking_models"` // glob patterns
}

// MCPConfig holds MCP (Model Context Protocol) server settings.
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig describes a single MCP server connection.
type MCPServerConfig struct {
	Name      string            `yaml:"name" json:"name"`
	Transport string            `yaml:"transport" json:"transport"` // "sse" or "streamable-http"
	URL       string            `yaml:"url" json:"url"`
	Headers   map[string]string `yaml:"headers" json:"headers,omitempty"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// DebugConfig holds category logging settings. STREAMRELAY_DEBUG and
// STREAMRELAY_LOG_LEVEL still win over these at runtime.
type DebugConfig struct {
	Categories string `yaml:"categories"`
	Level      string `yaml:"level"`  // default: "INFO"
	Format     string `yaml:"format"` // "text" or "json", default: "text"
}

// DefaultThinkingModels lists the model patterns that get the longer
// thinking timeout.
var DefaultThinkingModels = []string{"dall-e*", "dalle*", "o1*", "o3*", "*deepseek-r*", "*-thinking*"}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    10 << 20,
		},
		Upstream: UpstreamConfig{
			APIKeyHeader: "Authorization",
			RoutePrefix:  "/v1",
			Timeout:      120 * time.Second,
		},
		Heartbeat: HeartbeatConfig{
			Interval: 5 * time.Second,
			MaxCount: 120,
			Text:     "思考中...",
			Format:   "openai",
		},
		Reveal: RevealConfig{
			Interval: 16 * time.Millisecond,
			Divisor:  60,
		},
		Session: SessionConfig{
			Endpoint:      "http://localhost:8080/v1/chat/completions",
			Stream:        true,
			MaxToolRounds: 8,
			Model: ModelConfig{
				Model:       "gpt-4o-mini",
				Temperature: 0.5,
				TopP:        1,
			},
			Timeouts: TimeoutsConfig{
				Default:        60 * time.Second,
				Thinking:       300 * time.Second,
				ThinkingModels: append([]string(nil), DefaultThinkingModels...),
			},
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Debug: DebugConfig{
			Level:  "INFO",
			Format: "text",
		},
	}
}
