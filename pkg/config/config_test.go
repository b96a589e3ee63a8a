package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/conductor/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.Timeout != 5*time.Second || cfg.Executor.MaxRetries != 3 || cfg.Executor.Backoff != time.Second {
		t.Errorf("unexpected executor defaults: %+v", cfg.Executor)
	}
	if cfg.Memory.Provider != "inmemory" || cfg.Audit.Provider != "none" || cfg.Telemetry.Exporter != "none" {
		t.Errorf("unexpected provider defaults: %+v %+v %+v", cfg.Memory, cfg.Audit, cfg.Telemetry)
	}
	if cfg.Tools.SummaryLines != 5 || cfg.Tools.AllowShell {
		t.Errorf("unexpected tools defaults: %+v", cfg.Tools)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.yaml")
	writeFile(t, path, `
executor:
  timeout: 2s
  max_retries: 1
memory:
  provider: sqlite
  path: /tmp/mem.db
mcp:
  servers:
    files:
      transport: stdio
      command: fs-server
      args: [--root, /srv]
      prefix: fs.
`)
	t.Setenv("CONDUCTOR_EXECUTOR_MAX_RETRIES", "7")
	t.Setenv("CONDUCTOR_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Executor.Timeout != 2*time.Second {
		t.Errorf("timeout = %v", cfg.Executor.Timeout)
	}
	if cfg.Executor.MaxRetries != 7 {
		t.Errorf("env must override file, got max_retries %d", cfg.Executor.MaxRetries)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Memory.Provider != "sqlite" || cfg.Memory.Path != "/tmp/mem.db" {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	srv, ok := cfg.MCP.Servers["files"]
	if !ok || srv.Command != "fs-server" || len(srv.Args) != 2 || srv.Prefix != "fs." {
		t.Errorf("mcp servers = %+v", cfg.MCP.Servers)
	}
}

func TestLoadWithProfile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.yaml")
	writeFile(t, base, "log:\n  level: info\ntools:\n  summary_lines: 4\n")
	writeFile(t, filepath.Join(dir, "config.dev.yaml"), "log:\n  level: debug\n")

	tests := []struct {
		name      string
		profile   string
		wantLevel string
	}{
		{"no profile", "", "info"},
		{"dev profile", "dev", "debug"},
		{"missing profile falls back", "staging", "info"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithProfile(base, tc.profile)
			if err != nil {
				t.Fatalf("LoadWithProfile failed: %v", err)
			}
			if cfg.Log.Level != tc.wantLevel {
				t.Errorf("level = %q, want %q", cfg.Log.Level, tc.wantLevel)
			}
			if cfg.Tools.SummaryLines != 4 {
				t.Errorf("base values must be inherited, got %d", cfg.Tools.SummaryLines)
			}
		})
	}
}

func TestLoadWithCLIOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "memory:\n  provider: file\n")
	writeFile(t, filepath.Join(dir, "config.ci.yaml"), "audit:\n  provider: memory\n")

	cfg, err := LoadWithCLI([]string{
		"run", "-plan", "plan.yaml",
		"--config=" + path,
		"--env", "ci",
		"--set", "executor.timeout=250ms",
		"--set", "tools.allow_shell=true",
		"--set", "telemetry.otlp_timeout_seconds=12",
		`--set`, `mcp.servers={"demo":{"transport":"http","url":"http://localhost:8080/mcp"}}`,
	})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}
	if cfg.Memory.Provider != "file" || cfg.Audit.Provider != "memory" {
		t.Errorf("file/profile not applied: %+v %+v", cfg.Memory, cfg.Audit)
	}
	if cfg.Executor.Timeout != 250*time.Millisecond || !cfg.Tools.AllowShell || cfg.Telemetry.OTLPTimeoutSeconds != 12 {
		t.Errorf("--set not applied: %+v %+v %+v", cfg.Executor, cfg.Tools, cfg.Telemetry)
	}
	if srv := cfg.MCP.Servers["demo"]; srv.URL != "http://localhost:8080/mcp" {
		t.Errorf("unexpected mcp server: %+v", srv)
	}
}

func TestParseCLIOverridesErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--config"},
		{"--set"},
		{"--set", "invalid"},
		{"--set", "=value"},
	} {
		if _, _, err := parseCLIOverrides(args); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"memory provider", []string{"--set", "memory.provider=redis"}},
		{"audit provider", []string{"--set", "audit.provider=kafka"}},
		{"exporter", []string{"--set", "telemetry.exporter=zipkin"}},
		{"negative retries", []string{"--set", "executor.max_retries=-1"}},
		{"stdio without command", []string{"--set", `mcp.servers={"x":{"transport":"stdio"}}`}},
		{"unknown transport", []string{"--set", `mcp.servers={"x":{"transport":"sse","url":"http://h"}}`}},
		{"redact mode", []string{"--set", "memory.redact_mode=shred"}},
		{"openapi without spec", []string{"--set", `connectors.openapi={"inv":{"prefix":"inv."}}`}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadWithCLI(tc.args)
			if errors.CodeOf(err) != errors.CodeInvalidArguments {
				t.Fatalf("expected INVALID_ARGUMENTS, got %v", err)
			}
		})
	}
}

func TestLoadConnectorsAndRedactionFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
connectors:
  openapi:
    inventory:
      spec: specs/inventory.yaml
      prefix: inv.
memory:
  redact: [email, secret]
  redact_mode: hash
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	inv, ok := cfg.Connectors.OpenAPI["inventory"]
	if !ok || inv.Spec != "specs/inventory.yaml" || inv.Prefix != "inv." {
		t.Fatalf("unexpected connectors: %+v", cfg.Connectors)
	}
	if len(cfg.Memory.Redact) != 2 || cfg.Memory.RedactMode != "hash" {
		t.Fatalf("unexpected redaction: %+v", cfg.Memory)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if errors.CodeOf(err) != errors.CodeInvalidArguments {
		t.Fatalf("expected INVALID_ARGUMENTS, got %v", err)
	}
}

func TestProfileConfigPath(t *testing.T) {
	dir := t.TempDir()
	devPath := filepath.Join(dir, "config.dev.yaml")
	writeFile(t, devPath, "log: {}\n")
	basePath := filepath.Join(dir, "config.yaml")

	tests := []struct {
		base, profile, want string
	}{
		{basePath, "dev", devPath},
		{basePath, "prod", ""},
		{basePath, "", ""},
		{"", "dev", ""},
	}
	for _, tc := range tests {
		if got := profileConfigPath(tc.base, tc.profile); got != tc.want {
			t.Errorf("profileConfigPath(%q, %q) = %q, want %q", tc.base, tc.profile, got, tc.want)
		}
	}
}
