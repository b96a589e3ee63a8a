// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command conductor runs plans, goals and tool servers from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/conductor/pkg/config"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/telemetry"
)

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

// command is one subcommand. It writes results to out and returns errors
// for main to print.
type command func(ctx context.Context, env *cliEnv, args []string) error

// cliEnv carries what every command receives.
type cliEnv struct {
	global globalFlags
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer
	in     io.Reader
}

var commands = map[string]command{
	"run":       runPlanCommand,
	"goal":      runGoalCommand,
	"agent":     runAgentCommand,
	"tools":     runToolsCommand,
	"explain":   runExplainCommand,
	"memory":    runMemoryCommand,
	"audit":     runAuditCommand,
	"mcp-serve": runMCPServeCommand,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		exit(NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}
	switch args[0] {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		fmt.Println("conductor", task.Version)
		return
	}

	cmd, ok := commands[args[0]]
	if !ok {
		exit(NewInvalidArgumentError("command", fmt.Sprintf("unknown command %q", args[0])), global.JSON)
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		exit(NewConfigError(err, global.ConfigPath), global.JSON)
	}
	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	shutdown, err := telemetry.InitWithConfig("conductor", task.Version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPTimeout:  time.Duration(cfg.Telemetry.OTLPTimeoutSeconds) * time.Second,
	})
	if err != nil {
		exit(NewConfigError(err, global.ConfigPath), global.JSON)
	}

	env := &cliEnv{global: global, cfg: cfg, logger: logger, out: os.Stdout, in: os.Stdin}
	runErr := cmd(ctx, env, args[1:])

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := shutdown(flushCtx); err != nil {
		logger.Warn("telemetry shutdown failed", slog.Any("error", err))
	}
	cancel()

	if runErr != nil {
		exit(runErr, global.JSON)
	}
}

// parseGlobalFlags consumes the flags before the command name. Flags take
// one or two leading dashes.
func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, val, hasVal := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		needValue := func() (string, error) {
			if hasVal {
				return val, nil
			}
			if i+1 >= len(args) {
				return "", fmt.Errorf("missing value for -%s", name)
			}
			i++
			return args[i], nil
		}
		switch name {
		case "h", "help":
			flags.Help = true
			return flags, nil, nil
		case "json":
			flags.JSON = true
		case "config":
			v, err := needValue()
			if err != nil {
				return flags, nil, err
			}
			flags.ConfigPath = v
			flags.ConfigArgs = append(flags.ConfigArgs, "--config", v)
		case "profile", "env":
			v, err := needValue()
			if err != nil {
				return flags, nil, err
			}
			flags.Profile = v
			flags.ConfigArgs = append(flags.ConfigArgs, "--profile", v)
		case "set":
			v, err := needValue()
			if err != nil {
				return flags, nil, err
			}
			flags.ConfigArgs = append(flags.ConfigArgs, "--set", v)
		case "timeout":
			v, err := needValue()
			if err != nil {
				return flags, nil, err
			}
			d, err := time.ParseDuration(v)
			if err != nil {
				return flags, nil, fmt.Errorf("invalid -timeout: %w", err)
			}
			flags.Timeout = d
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// withTimeout applies the global -timeout to a whole command.
func (e *cliEnv) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.global.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.global.Timeout)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Conductor: plan-driven tool orchestration

Usage:
  conductor [global flags] <command> [args]

Global flags:
  -config <path>      YAML config file
  -profile <name>     Overlay <config>.<name>.yaml (alias -env)
  -set key=value      Override config (repeatable)
  -timeout <dur>      Bound the whole command
  -json               JSON output

Commands:
  run -plan <file>                 Execute a YAML or JSON plan
  goal <text>                      Plan and execute a goal through the agent loop
  agent                            Read goals from stdin, one per line
  tools                            List registered tools
  explain -plan <file>             Validate a plan and show how it resolves
  memory recent [-limit N] [-all]  Show recent memory entries
  memory tag <tag>                 Show entries carrying a tag
  memory get <key>                 Show one entry
  audit [-run ID] [-plan ID]       Show recorded step audit events
  mcp-serve                        Expose the registered tools over MCP stdio
  version
  help`)
}

func printJSON(w io.Writer, value any) error {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(payload))
	return err
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateMessage(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
