package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "STREAMRELAY_"

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, STREAMRELAY_CONFIG env, ./config.yaml, /etc/streamrelay/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. STREAMRELAY_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/streamrelay/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/streamrelay/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// envSetter applies one environment value to the config.
type envSetter func(cfg *Config, v string) error

var envOverrides = []struct {
	name string
	set  envSetter
}{
	{"PORT", func(c *Config, v string) error { return setInt(&c.Server.Port, v) }},
	{"UPSTREAM_URL", func(c *Config, v string) error { c.Upstream.BaseURL = v; return nil }},
	{"API_KEY_HEADER", func(c *Config, v string) error { c.Upstream.APIKeyHeader = v; return nil }},
	{"API_KEY", func(c *Config, v string) error { c.Upstream.APIKey = v; return nil }},
	{"ROUTE_PREFIX", func(c *Config, v string) error { c.Upstream.RoutePrefix = v; return nil }},
	{"UPSTREAM_TIMEOUT", func(c *Config, v string) error { return setDuration(&c.Upstream.Timeout, v) }},
	{"HEARTBEAT_INTERVAL", func(c *Config, v string) error { return setDuration(&c.Heartbeat.Interval, v) }},
	{"MAX_HEARTBEATS", func(c *Config, v string) error { return setInt(&c.Heartbeat.MaxCount, v) }},
	{"HEARTBEAT_TEXT", func(c *Config, v string) error { c.Heartbeat.Text = v; return nil }},
	{"HEARTBEAT_FORMAT", func(c *Config, v string) error { c.Heartbeat.Format = v; return nil }},
	{"ENDPOINT", func(c *Config, v string) error { c.Session.Endpoint = v; return nil }},
	{"CLIENT_API_KEY", func(c *Config, v string) error { c.Session.APIKey = v; return nil }},
	{"MODEL", func(c *Config, v string) error { c.Session.Model.Model = v; return nil }},
	{"MAX_TOOL_ROUNDS", func(c *Config, v string) error { return setInt(&c.Session.MaxToolRounds, v) }},
	{"MCP_SERVERS", func(c *Config, v string) error {
		servers, err := parseMCPServersJSON(v)
		if err != nil {
			return err
		}
		c.MCP.Servers = servers
		return nil
	}},
}

// applyEnvOverrides maps STREAMRELAY_* environment variables to config
// fields. Unset or empty variables leave the field untouched.
func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		v := os.Getenv(EnvPrefix + o.name)
		if v == "" {
			continue
		}
		if err := o.set(cfg, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.name, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// parseMCPServersJSON parses a JSON array of MCP server configurations.
func parseMCPServersJSON(jsonStr string) ([]MCPServerConfig, error) {
	var servers []MCPServerConfig
	if err := json.Unmarshal([]byte(jsonStr), &servers); err != nil {
		return nil, fmt.Errorf("parsing MCP servers JSON: %w", err)
	}
	return servers, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	if cfg.Upstream.APIKeyFile != "" && cfg.Upstream.APIKey == "" {
		val, err := readSecretFile(cfg.Upstream.APIKeyFile)
		if err != nil {
			return fmt.Errorf("upstream.api_key_file: %w", err)
		}
		cfg.Upstream.APIKey = val
	}

	if cfg.Session.APIKeyFile != "" && cfg.Session.APIKey == "" {
		val, err := readSecretFile(cfg.Session.APIKeyFile)
		if err != nil {
			return fmt.Errorf("session.api_key_file: %w", err)
		}
		cfg.Session.APIKey = val
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
