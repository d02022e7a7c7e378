package session

import (
	"path"
	"strings"
	"time"

	"github.com/rhuss/streamrelay/pkg/reveal"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultPath            = "/v1/chat/completions"
	DefaultMaxToolRounds   = 8
	DefaultTimeout         = 60 * time.Second
	DefaultThinkingTimeout = 300 * time.Second
)

// ModelConfig holds the sampling parameters sent with every exchange
// unless a ChatRequest overrides them.
type ModelConfig struct {
	Model            string
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	// MaxTokens of zero leaves max_tokens out of the payload.
	MaxTokens int
}

// Timeouts selects the request timeout for a model. Models matching one of
// ThinkingModels (path.Match patterns, case-insensitive) get Thinking,
// everything else gets Default.
type Timeouts struct {
	Default        time.Duration
	Thinking       time.Duration
	ThinkingModels []string
}

// For returns the timeout for model.
func (t Timeouts) For(model string) time.Duration {
	name := strings.ToLower(model)
	for _, pattern := range t.ThinkingModels {
		if ok, _ := path.Match(strings.ToLower(pattern), name); ok {
			return t.Thinking
		}
	}
	return t.Default
}

// Config holds controller settings.
type Config struct {
	// Path is the upstream request path, e.g. "/v1/chat/completions".
	Path string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// Stream selects event-stream responses unless a request overrides it.
	Stream bool
	Model  ModelConfig
	// MaxToolRounds bounds the follow-up exchanges issued for tool calls.
	MaxToolRounds int
	// AllowedTools restricts which requested tools are executed. Empty
	// allows every tool the executor knows.
	AllowedTools []string
	Timeouts     Timeouts
	Reveal       reveal.Config
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.MaxToolRounds <= 0 {
		c.MaxToolRounds = DefaultMaxToolRounds
	}
	if c.Timeouts.Default <= 0 {
		c.Timeouts.Default = DefaultTimeout
	}
	if c.Timeouts.Thinking <= 0 {
		c.Timeouts.Thinking = DefaultThinkingTimeout
	}
	return c
}
