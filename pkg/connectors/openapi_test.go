// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

const testOpenAPISpec = `
openapi: "3.0.0"
info:
  title: Inventory API
  version: "1.0.0"
servers:
  - url: https://inventory.example.com/
paths:
  /hosts:
    get:
      operationId: listHosts
      summary: List hosts
      parameters:
        - name: limit
          in: query
    post:
      operationId: createHost
      summary: Register a host
      requestBody:
        required: true
  /hosts/{id}:
    get:
      summary: Get a host
      parameters:
        - name: id
          in: path
          required: true
    delete:
      operationId: deleteHost
      parameters:
        - name: id
          in: path
          required: true
        - name: X-Reason
          in: header
`

func TestNewFromBytesGeneratesSortedTools(t *testing.T) {
	c, err := NewFromBytes([]byte(testOpenAPISpec), WithPrefix("inv."))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.Title() != "Inventory API" {
		t.Fatalf("unexpected title %q", c.Title())
	}
	want := []string{"inv.createHost", "inv.deleteHost", "inv.get_hosts_id", "inv.listHosts"}
	tools := c.Tools()
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(tools))
	}
	for i, tool := range tools {
		if tool.Name() != want[i] {
			t.Fatalf("tool %d = %q, want %q", i, tool.Name(), want[i])
		}
	}
	if tools[1].Description() != "DELETE /hosts/{id}" {
		t.Fatalf("fallback description: %q", tools[1].Description())
	}
}

func TestNewFromBytesErrors(t *testing.T) {
	if _, err := NewFromBytes([]byte("paths: [")); errors.CodeOf(err) != errors.CodeInvalidArguments {
		t.Fatalf("expected INVALID_ARGUMENTS for bad document, got %v", err)
	}
	if _, err := NewFromBytes([]byte("openapi: 3.0.0\npaths: {}\n")); err == nil {
		t.Fatal("expected error without server url")
	}
}

func TestOperationInvocation(t *testing.T) {
	c, err := NewFromBytes([]byte(testOpenAPISpec))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	byName := map[string]task.PrimitiveTool{}
	for _, tool := range c.Tools() {
		byName[tool.Name()] = tool.(task.PrimitiveTool)
	}

	tests := []struct {
		name    string
		tool    string
		args    value.Value
		method  string
		url     string
		payload string
		header  string
	}{
		{
			name:   "query",
			tool:   "listHosts",
			args:   value.MustFromAny(map[string]any{"limit": 5}),
			method: "GET",
			url:    "https://inventory.example.com/hosts?limit=5",
		},
		{
			name:   "path escaped",
			tool:   "get_hosts_id",
			args:   value.MustFromAny(map[string]any{"id": "a b"}),
			method: "GET",
			url:    "https://inventory.example.com/hosts/a%20b",
		},
		{
			name:    "body from remaining args",
			tool:    "createHost",
			args:    value.MustFromAny(map[string]any{"name": "db1"}),
			method:  "POST",
			url:     "https://inventory.example.com/hosts",
			payload: `{"name":"db1"}`,
		},
		{
			name:   "header param",
			tool:   "deleteHost",
			args:   value.MustFromAny(map[string]any{"id": "7", "X-Reason": "retired"}),
			method: "DELETE",
			url:    "https://inventory.example.com/hosts/7",
			header: "retired",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := byName[tt.tool].Invocation(tt.args)
			if err != nil {
				t.Fatalf("invocation: %v", err)
			}
			if inv.HTTPMethod() != tt.method || inv.URL != tt.url || inv.Payload != tt.payload {
				t.Fatalf("unexpected invocation: %+v", inv)
			}
			if inv.Headers["X-Reason"] != tt.header {
				t.Fatalf("unexpected X-Reason: %q", inv.Headers["X-Reason"])
			}
		})
	}

	if _, err := byName["deleteHost"].Invocation(value.Null()); errors.CodeOf(err) != errors.CodeInvalidArguments {
		t.Fatalf("missing path param should be INVALID_ARGUMENTS, got %v", err)
	}
	if _, err := byName["createHost"].Invocation(value.Null()); err == nil {
		t.Fatal("missing required body should fail")
	}
	if _, err := byName["listHosts"].Invocation(value.String("x")); err == nil {
		t.Fatal("non-object arguments should fail")
	}
}

func TestOperationExecuteAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") == "0" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]string{"method": r.Method, "path": r.URL.Path, "body": string(body)})
	}))
	defer srv.Close()

	c, err := NewFromBytes([]byte(testOpenAPISpec), WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	create, list := c.Tools()[0], c.Tools()[3]

	out := create.Execute(context.Background(), value.MustFromAny(map[string]any{"body": map[string]any{"name": "db1"}}))
	if !out.Success {
		t.Fatalf("create failed: %+v", out)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out.Result.Text()), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["method"] != "POST" || got["path"] != "/hosts" || got["body"] != `{"name":"db1"}` {
		t.Fatalf("unexpected request: %v", got)
	}

	out = list.Execute(context.Background(), value.Null())
	if !out.Success {
		t.Fatalf("list failed: %+v", out)
	}

	out = list.Execute(context.Background(), value.MustFromAny(map[string]any{"limit": 0}))
	if out.Success || out.Code != errors.CodeExecutionFailure {
		t.Fatalf("expected EXECUTION_FAILURE for 503, got %+v", out)
	}
}
