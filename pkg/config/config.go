// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads conductor settings from defaults, a YAML file, an
// optional profile overlay, CONDUCTOR_ environment variables and --set
// command line overrides, in that order.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/conductor/pkg/errors"
)

// EnvPrefix marks environment variables read by Load.
// CONDUCTOR_EXECUTOR_TIMEOUT maps to executor.timeout.
const EnvPrefix = "CONDUCTOR_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Executor   ExecutorConfig   `koanf:"executor"`
	Memory     MemoryConfig     `koanf:"memory"`
	Tools      ToolsConfig      `koanf:"tools"`
	Audit      AuditConfig      `koanf:"audit"`
	Planner    PlannerConfig    `koanf:"planner"`
	MCP        MCPConfig        `koanf:"mcp"`
	Connectors ConnectorsConfig `koanf:"connectors"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter           string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

// ExecutorConfig bounds primitive invocations.
type ExecutorConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	Backoff    time.Duration `koanf:"backoff"`
	// BreakerThreshold opens a per-target circuit after that many
	// consecutive transient failures. Zero disables it.
	BreakerThreshold int           `koanf:"breaker_threshold"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown"`
}

type MemoryConfig struct {
	Provider   string `koanf:"provider"` // inmemory, file, sqlite, qdrant
	Path       string `koanf:"path"`
	QdrantAddr string `koanf:"qdrant_addr"`
	Collection string `koanf:"collection"`
	// Redact lists the value types masked before an entry is written
	// (email, ip_address, credit_card, secret, phone or all). Empty
	// disables redaction.
	Redact     []string `koanf:"redact"`
	RedactMode string   `koanf:"redact_mode"` // mask, redact, hash
}

type ToolsConfig struct {
	Root         string `koanf:"root"`
	SummaryLines int    `koanf:"summary_lines"`
	SummaryChars int    `koanf:"summary_chars"`
	AllowShell   bool   `koanf:"allow_shell"`
}

type AuditConfig struct {
	Provider string `koanf:"provider"` // none, memory, sqlite
	Path     string `koanf:"path"`
}

type PlannerConfig struct {
	// RulesFile replaces the built-in keyword rules.
	RulesFile string `koanf:"rules_file"`
}

type MCPConfig struct {
	Servers map[string]MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes a remote tool server. Its tools are registered
// as Prefix + remote name.
type MCPServerConfig struct {
	Transport string   `koanf:"transport"` // stdio, http
	Command   string   `koanf:"command"`
	Args      []string `koanf:"args"`
	URL       string   `koanf:"url"`
	Prefix    string   `koanf:"prefix"`
}

type ConnectorsConfig struct {
	OpenAPI map[string]OpenAPIConfig `koanf:"openapi"`
}

// OpenAPIConfig turns the operations of an OpenAPI document into tools
// named Prefix + operationId.
type OpenAPIConfig struct {
	Spec    string `koanf:"spec"`
	BaseURL string `koanf:"base_url"`
	Prefix  string `koanf:"prefix"`
}

var defaults = map[string]any{
	"log.level":                      "info",
	"log.format":                     "text",
	"telemetry.exporter":             "none",
	"telemetry.otlp_endpoint":        "localhost:4317",
	"telemetry.otlp_insecure":        true,
	"telemetry.otlp_timeout_seconds": 10,
	"executor.timeout":               "5s",
	"executor.max_retries":           3,
	"executor.backoff":               "1s",
	"executor.breaker_threshold":     0,
	"executor.breaker_cooldown":      "30s",
	"memory.provider":                "inmemory",
	"memory.path":                    "conductor-memory.json",
	"memory.qdrant_addr":             "localhost:6334",
	"memory.collection":              "conductor_memory",
	"tools.root":                     ".",
	"tools.summary_lines":            5,
	"tools.summary_chars":            500,
	"tools.allow_shell":              false,
	"audit.provider":                 "none",
	"audit.path":                     "conductor-audit.db",
}

// Load reads defaults, the file at path (if any) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile is Load plus the overlay file next to path named
// <name>.<profile><ext>, when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI understands --config, --profile (alias --env) and repeated
// --set key=value, each in "--flag value" or "--flag=value" form. Unknown
// arguments are ignored so the caller can share os.Args with its own flags.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, sets)
}

func load(path, profile string, sets map[string]any) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, errors.New(errors.CodeInternal, "set default "+key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.CodeInvalidArguments, "load config file", err).WithContext("path", path)
		}
		if overlay := profileConfigPath(path, profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, errors.New(errors.CodeInvalidArguments, "load profile config", err).WithContext("path", overlay)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, errors.New(errors.CodeInternal, "load environment", err)
	}

	for key, val := range sets {
		if err := k.Set(key, val); err != nil {
			return nil, errors.New(errors.CodeInvalidArguments, "apply --set "+key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.New(errors.CodeInvalidArguments, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown providers and negative limits.
func (c *Config) Validate() error {
	invalid := func(msg string) error {
		return errors.New(errors.CodeInvalidArguments, msg, nil)
	}
	switch c.Memory.Provider {
	case "inmemory", "file", "sqlite", "qdrant":
	default:
		return invalid("unknown memory provider: " + c.Memory.Provider)
	}
	switch c.Memory.RedactMode {
	case "", "mask", "redact", "hash":
	default:
		return invalid("unknown redact mode: " + c.Memory.RedactMode)
	}
	switch c.Audit.Provider {
	case "", "none", "memory", "sqlite":
	default:
		return invalid("unknown audit provider: " + c.Audit.Provider)
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return invalid("unknown telemetry exporter: " + c.Telemetry.Exporter)
	}
	if c.Executor.Timeout < 0 || c.Executor.MaxRetries < 0 || c.Executor.Backoff < 0 {
		return invalid("executor limits must not be negative")
	}
	for name, srv := range c.MCP.Servers {
		switch srv.Transport {
		case "stdio":
			if srv.Command == "" {
				return invalid("mcp server " + name + ": command is required")
			}
		case "http":
			if srv.URL == "" {
				return invalid("mcp server " + name + ": url is required")
			}
		default:
			return invalid("mcp server " + name + ": unknown transport " + srv.Transport)
		}
	}
	for name, oc := range c.Connectors.OpenAPI {
		if oc.Spec == "" {
			return invalid("openapi connector " + name + ": spec is required")
		}
	}
	return nil
}

// profileConfigPath returns the overlay path for profile, or "" when there
// is no profile or no such file.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, map[string]any, error) {
	var opts cliOptions
	sets := map[string]any{}
	for i := 0; i < len(args); i++ {
		name, val, hasVal := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--env", "-env", "--set", "-set":
		default:
			continue
		}
		if !hasVal {
			if i+1 >= len(args) {
				return opts, nil, errors.New(errors.CodeInvalidArguments, "missing value for "+name, nil)
			}
			i++
			val = args[i]
		}
		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = val
		case "profile", "env":
			opts.profile = val
		case "set":
			key, raw, ok := strings.Cut(val, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return opts, nil, errors.New(errors.CodeInvalidArguments, "--set expects key=value, got "+val, nil)
			}
			sets[strings.TrimSpace(key)] = parseSetValue(raw)
		}
	}
	return opts, sets, nil
}

// parseSetValue decodes JSON objects and arrays; everything else stays a
// string and is converted when the config is decoded.
func parseSetValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}
