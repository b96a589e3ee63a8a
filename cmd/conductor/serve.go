package main

import (
	"context"
	"log/slog"

	"github.com/jllopis/conductor/pkg/mcp"
	"github.com/jllopis/conductor/pkg/task"
)

// runMCPServeCommand serves the registry over stdio until the client
// disconnects. Logs go to stderr so they never mix with the protocol.
func runMCPServeCommand(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("mcp-serve", "mcp-serve takes no arguments")
	}
	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := mcp.NewServer("conductor", task.Version, mcp.WithRunner(a.runner), mcp.WithLogger(env.logger))
	srv.RegisterTools(a.registry)
	env.logger.Info("serving tools over mcp stdio", slog.Int("tools", a.registry.Len()))
	return srv.ServeStdio()
}
