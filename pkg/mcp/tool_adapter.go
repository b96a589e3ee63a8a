package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolLister is a ToolCaller that can also enumerate its tools.
type ToolLister interface {
	ToolCaller
	ListTools(ctx context.Context) ([]mcp.Tool, error)
}

// Registrar receives adapted tools. *registry.Registry implements it.
type Registrar interface {
	Register(tool core.Tool)
}

// ToolAdapter wraps a remote MCP tool as a core.Tool.
type ToolAdapter struct {
	tool   mcp.Tool
	name   string
	caller ToolCaller
}

// NewToolAdapter builds a core.Tool backed by an MCP tool definition and caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New(errors.CodeInvalidArguments, "mcp tool name is required", nil)
	}
	if caller == nil {
		return nil, errors.New(errors.CodeInvalidArguments, "tool caller is required", nil)
	}
	return &ToolAdapter{tool: tool, name: tool.Name, caller: caller}, nil
}

// Name returns the registered tool name.
func (t *ToolAdapter) Name() string { return t.name }

// Description returns the MCP tool description.
func (t *ToolAdapter) Description() string { return t.tool.Description }

// Execute calls the remote tool. Arguments must be an object or null.
func (t *ToolAdapter) Execute(ctx context.Context, args value.Value) core.ToolOutput {
	var payload map[string]any
	switch args.Kind() {
	case value.KindNull:
		payload = map[string]any{}
	case value.KindObject:
		payload = args.Any().(map[string]any)
	default:
		return core.Failedf(errors.CodeInvalidArguments, "mcp tool %s: arguments must be an object, got %s", t.tool.Name, args.Kind())
	}
	if missing := missingRequired(t.tool, payload); missing != "" {
		return core.Failedf(errors.CodeInvalidArguments, "mcp tool %s: missing required field %q", t.tool.Name, missing)
	}

	result, err := t.caller.CallTool(ctx, t.tool.Name, payload)
	if err != nil {
		return core.FromError(err)
	}
	return resultToOutput(result)
}

// RegisterRemoteTools adapts every tool of lister and registers it. A
// non-empty prefix is prepended to each tool name.
func RegisterRemoteTools(ctx context.Context, reg Registrar, lister ToolLister, prefix string) ([]string, error) {
	tools, err := lister.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		adapter, err := NewToolAdapter(tool, lister)
		if err != nil {
			return names, err
		}
		adapter.name = prefix + tool.Name
		reg.Register(adapter)
		names = append(names, adapter.name)
	}
	return names, nil
}

func missingRequired(tool mcp.Tool, args map[string]any) string {
	schema := tool.InputSchema
	if schema.Type != "" && schema.Type != "object" {
		return ""
	}
	for _, key := range schema.Required {
		if _, ok := args[key]; !ok {
			return key
		}
	}
	return ""
}

func resultToOutput(result *mcp.CallToolResult) core.ToolOutput {
	if result == nil {
		return core.Failed(errors.CodeTransportError, "mcp tool returned no result")
	}
	text := extractTextContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "mcp tool reported an error"
		}
		return core.Failed(errors.CodeExecutionFailure, text)
	}
	if result.StructuredContent != nil {
		v, err := value.FromAny(result.StructuredContent)
		if err != nil {
			return core.Failed(errors.CodeExecutionFailure, fmt.Sprintf("mcp tool structured content: %v", err))
		}
		return core.Succeeded(v)
	}
	return core.Succeeded(value.String(text))
}

func extractTextContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ core.Tool = (*ToolAdapter)(nil)
