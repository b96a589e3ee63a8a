package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/registry"
	"github.com/jllopis/conductor/pkg/value"
)

type stubCaller struct {
	tools    []mcp.Tool
	lastName string
	lastArgs map[string]any
	result   *mcp.CallToolResult
	err      error
}

func (s *stubCaller) CallTool(_ context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.lastName = name
	s.lastArgs = args
	return s.result, s.err
}

func (s *stubCaller) ListTools(context.Context) ([]mcp.Tool, error) {
	return s.tools, s.err
}

func echoTool() mcp.Tool {
	return mcp.Tool{
		Name:        "echo",
		Description: "echoes input",
		InputSchema: mcp.ToolInputSchema{Type: "object", Required: []string{"input"}},
	}
}

func TestToolAdapterExecute(t *testing.T) {
	tests := []struct {
		name     string
		args     value.Value
		result   *mcp.CallToolResult
		err      error
		wantOK   bool
		wantCode errors.Code
		want     value.Value
	}{
		{
			name:   "text content",
			args:   value.MustFromAny(map[string]any{"input": "hello"}),
			result: mcp.NewToolResultText("ok"),
			wantOK: true,
			want:   value.String("ok"),
		},
		{
			name:   "structured content",
			args:   value.MustFromAny(map[string]any{"input": "hello"}),
			result: mcp.NewToolResultStructured(map[string]any{"n": 2}, "n=2"),
			wantOK: true,
			want:   value.MustFromAny(map[string]any{"n": 2}),
		},
		{
			name:     "error result",
			args:     value.MustFromAny(map[string]any{"input": "hello"}),
			result:   mcp.NewToolResultError("denied"),
			wantCode: errors.CodeExecutionFailure,
		},
		{
			name:     "transport error",
			args:     value.MustFromAny(map[string]any{"input": "hello"}),
			err:      errors.New(errors.CodeTransportError, "call mcp tool echo", nil),
			wantCode: errors.CodeTransportError,
		},
		{
			name:     "non-object arguments",
			args:     value.String("hello"),
			wantCode: errors.CodeInvalidArguments,
		},
		{
			name:     "missing required field",
			args:     value.Null(),
			wantCode: errors.CodeInvalidArguments,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &stubCaller{result: tt.result, err: tt.err}
			adapter, err := NewToolAdapter(echoTool(), caller)
			if err != nil {
				t.Fatalf("NewToolAdapter: %v", err)
			}
			out := adapter.Execute(context.Background(), tt.args)
			if out.Success != tt.wantOK {
				t.Fatalf("success = %v (%s: %s)", out.Success, out.Code, out.Message)
			}
			if !tt.wantOK {
				if out.Code != tt.wantCode {
					t.Fatalf("code = %s, want %s", out.Code, tt.wantCode)
				}
				return
			}
			if !value.Equal(out.Result, tt.want) {
				t.Fatalf("result = %s, want %s", out.Result, tt.want)
			}
			if caller.lastName != "echo" || caller.lastArgs["input"] != "hello" {
				t.Fatalf("unexpected call %s(%v)", caller.lastName, caller.lastArgs)
			}
		})
	}
}

func TestNewToolAdapterValidation(t *testing.T) {
	if _, err := NewToolAdapter(mcp.Tool{}, &stubCaller{}); err == nil {
		t.Fatal("expected error for unnamed tool")
	}
	if _, err := NewToolAdapter(echoTool(), nil); err == nil {
		t.Fatal("expected error for nil caller")
	}
}

func TestRegisterRemoteToolsPrefix(t *testing.T) {
	caller := &stubCaller{tools: []mcp.Tool{echoTool(), {Name: "ping"}}}
	reg := registry.New()
	names, err := RegisterRemoteTools(context.Background(), reg, caller, "remote.")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(names) != 2 || reg.Len() != 2 {
		t.Fatalf("unexpected registration: %v", names)
	}
	tool, ok := reg.Lookup("remote.ping")
	if !ok {
		t.Fatal("remote.ping not registered")
	}
	caller.result = mcp.NewToolResultText("pong")
	tool.Execute(context.Background(), value.Null())
	if caller.lastName != "ping" {
		t.Fatalf("remote call must use the server-side name, got %q", caller.lastName)
	}
}
