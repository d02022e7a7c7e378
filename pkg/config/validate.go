package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if c.Upstream.RoutePrefix != "" && !strings.HasPrefix(c.Upstream.RoutePrefix, "/") {
		errs = append(errs, fmt.Errorf("upstream.route_prefix must start with \"/\", got %q", c.Upstream.RoutePrefix))
	}
	if c.Upstream.Timeout < 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must not be negative, got %v", c.Upstream.Timeout))
	}

	if c.Heartbeat.Interval <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.interval must be > 0, got %v", c.Heartbeat.Interval))
	}
	if c.Heartbeat.MaxCount <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat.max_count must be > 0, got %d", c.Heartbeat.MaxCount))
	}
	switch strings.ToLower(c.Heartbeat.Format) {
	case "openai", "gemini", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("heartbeat.format must be \"openai\" or \"gemini\", got %q", c.Heartbeat.Format))
	}

	if c.Reveal.Interval <= 0 {
		errs = append(errs, fmt.Errorf("reveal.interval must be > 0, got %v", c.Reveal.Interval))
	}
	if c.Reveal.Divisor <= 0 {
		errs = append(errs, fmt.Errorf("reveal.divisor must be > 0, got %d", c.Reveal.Divisor))
	}

	if c.Session.MaxToolRounds < 0 {
		errs = append(errs, fmt.Errorf("session.max_tool_rounds must not be negative, got %d", c.Session.MaxToolRounds))
	}
	if c.Session.Timeouts.Default <= 0 {
		errs = append(errs, fmt.Errorf("session.timeouts.default must be > 0, got %v", c.Session.Timeouts.Default))
	}
	if c.Session.Timeouts.Thinking <= 0 {
		errs = append(errs, fmt.Errorf("session.timeouts.thinking must be > 0, got %v", c.Session.Timeouts.Thinking))
	}
	for i, p := range c.Session.Timeouts.ThinkingModels {
		if _, err := path.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("session.timeouts.thinking_models[%d]: bad pattern %q", i, p))
		}
	}

	for i, s := range c.MCP.Servers {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].name is required", i))
		}
		if s.URL == "" {
			errs = append(errs, fmt.Errorf("mcp.servers[%d].url is required", i))
		}
		switch s.Transport {
		case "sse", "streamable-http", "":
			// valid
		default:
			errs = append(errs, fmt.Errorf("mcp.servers[%d].transport must be \"sse\" or \"streamable-http\", got %q", i, s.Transport))
		}
	}

	switch strings.ToLower(c.Debug.Format) {
	case "text", "json", "":
		// valid
	default:
		errs = append(errs, fmt.Errorf("debug.format must be \"text\" or \"json\", got %q", c.Debug.Format))
	}

	return errors.Join(errs...)
}

// ValidateRelay checks the settings only the relay server needs.
func (c *Config) ValidateRelay() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required")
	}
	return nil
}
