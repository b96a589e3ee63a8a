package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

// objectSchema accepts any argument object; conductor tools validate their
// own arguments.
var objectSchema = json.RawMessage(`{"type":"object","additionalProperties":true}`)

// ToolSource lists the tools to expose. *registry.Registry implements it.
type ToolSource interface {
	Tools() []core.Tool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRunner sets the runner used for primitive tools.
func WithRunner(r task.Runner) ServerOption {
	return func(s *Server) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server exposes conductor tools over MCP.
type Server struct {
	mcpServer *server.MCPServer
	runner    task.Runner
	logger    *slog.Logger
}

// NewServer creates a new MCP server.
func NewServer(name, version string, opts ...ServerOption) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = task.NewExecutor(task.WithLogger(s.logger))
	}
	return s
}

// RegisterTool exposes tool under its own name.
func (s *Server) RegisterTool(tool core.Tool) {
	def := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), objectSchema)
	s.mcpServer.AddTool(def, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := value.FromAny(request.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultErrorf("invalid arguments: %v", err), nil
		}
		out := task.Dispatch(ctx, s.runner, tool, args)
		s.logger.DebugContext(ctx, "mcp tool call",
			slog.String("tool", tool.Name()),
			slog.Bool("success", out.Success),
		)
		return outputToResult(out), nil
	})
}

// RegisterTools exposes every tool of src.
func (s *Server) RegisterTools(src ToolSource) {
	for _, tool := range src.Tools() {
		s.RegisterTool(tool)
	}
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func outputToResult(out core.ToolOutput) *mcp.CallToolResult {
	if !out.Success {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", out.Code, out.Message))
	}
	switch out.Result.Kind() {
	case value.KindObject:
		return mcp.NewToolResultStructured(out.Result.Any(), out.Result.Text())
	default:
		return mcp.NewToolResultText(out.Result.Text())
	}
}
