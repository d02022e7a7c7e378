package relay

import (
	"fmt"
	"strings"
	"time"
)

// Format selects the shape of heartbeat frames.
type Format string

const (
	// FormatOpenAI emits chat.completion.chunk frames whose delta carries
	// the placeholder as reasoning_content.
	FormatOpenAI Format = "openai"
	// FormatGemini emits generateContent candidate frames.
	FormatGemini Format = "gemini"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultMaxHeartbeats     = 120
	DefaultHeartbeatText     = "思考中..."
	DefaultAPIKeyHeader      = "Authorization"
)

// HeartbeatConfig controls synthetic keep-alive frames.
type HeartbeatConfig struct {
	Interval time.Duration
	// MaxCount bounds the number of heartbeats sent before the relay gives
	// up on a silent upstream.
	MaxCount int
	Text     string
	Format   Format
}

// Config holds relay settings.
type Config struct {
	// BaseURL of the upstream provider. A missing scheme defaults to
	// https and a trailing slash is removed.
	BaseURL string
	// APIKeyHeader names the header that carries the upstream credential,
	// e.g. "Authorization" or "x-goog-api-key".
	APIKeyHeader string
	// Timeout bounds non-streaming upstream calls. Streaming calls are
	// bounded by their context only.
	Timeout   time.Duration
	Heartbeat HeartbeatConfig
}

func (c Config) withDefaults() Config {
	c.BaseURL = NormalizeBaseURL(c.BaseURL)
	if c.APIKeyHeader == "" {
		c.APIKeyHeader = DefaultAPIKeyHeader
	}
	if c.Heartbeat.Interval <= 0 {
		c.Heartbeat.Interval = DefaultHeartbeatInterval
	}
	if c.Heartbeat.MaxCount <= 0 {
		c.Heartbeat.MaxCount = DefaultMaxHeartbeats
	}
	if c.Heartbeat.Text == "" {
		c.Heartbeat.Text = DefaultHeartbeatText
	}
	if c.Heartbeat.Format == "" {
		c.Heartbeat.Format = FormatOpenAI
	}
	return c
}

// ParseFormat validates a heartbeat format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatOpenAI, nil
	case FormatOpenAI, FormatGemini:
		return f, nil
	default:
		return "", fmt.Errorf("unknown heartbeat format %q (supported: openai, gemini)", s)
	}
}

// NormalizeBaseURL prefixes https:// when base has no scheme and trims a
// trailing slash.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/")
}
