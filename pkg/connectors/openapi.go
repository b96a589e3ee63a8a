// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package connectors turns declarative API descriptions into tools. Each
// OpenAPI operation becomes a primitive HTTP tool, so it runs through the
// task executor with the configured timeout, retries and circuit breaker.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

// OpenAPISpec is the subset of an OpenAPI 3.x document used to build tools.
type OpenAPISpec struct {
	OpenAPI string              `json:"openapi" yaml:"openapi"`
	Info    OpenAPIInfo         `json:"info" yaml:"info"`
	Servers []OpenAPIServer     `json:"servers" yaml:"servers"`
	Paths   map[string]PathItem `json:"paths" yaml:"paths"`
}

type OpenAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

type OpenAPIServer struct {
	URL string `json:"url" yaml:"url"`
}

// PathItem lists the operations of one path.
type PathItem struct {
	Get    *Operation `json:"get" yaml:"get"`
	Post   *Operation `json:"post" yaml:"post"`
	Put    *Operation `json:"put" yaml:"put"`
	Delete *Operation `json:"delete" yaml:"delete"`
	Patch  *Operation `json:"patch" yaml:"patch"`
}

type Operation struct {
	OperationID string       `json:"operationId" yaml:"operationId"`
	Summary     string       `json:"summary" yaml:"summary"`
	Description string       `json:"description" yaml:"description"`
	Parameters  []Parameter  `json:"parameters" yaml:"parameters"`
	RequestBody *RequestBody `json:"requestBody" yaml:"requestBody"`
}

type Parameter struct {
	Name     string `json:"name" yaml:"name"`
	In       string `json:"in" yaml:"in"` // query, path, header
	Required bool   `json:"required" yaml:"required"`
}

type RequestBody struct {
	Required bool `json:"required" yaml:"required"`
}

// Option configures an OpenAPIConnector.
type Option func(*OpenAPIConnector)

// WithBaseURL overrides the first server of the document.
func WithBaseURL(u string) Option {
	return func(c *OpenAPIConnector) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPrefix prepends prefix to every tool name.
func WithPrefix(prefix string) Option {
	return func(c *OpenAPIConnector) { c.prefix = prefix }
}

// WithRunner sets the runner used when a tool is executed directly.
func WithRunner(r task.Runner) Option {
	return func(c *OpenAPIConnector) { c.runner = r }
}

// OpenAPIConnector holds the tools generated from one document.
type OpenAPIConnector struct {
	spec    *OpenAPISpec
	baseURL string
	prefix  string
	runner  task.Runner
	tools   []core.Tool
}

// NewFromFile reads a JSON or YAML document from path.
func NewFromFile(path string, opts ...Option) (*OpenAPIConnector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeInvalidArguments, "read openapi document", err).WithContext("path", path)
	}
	return NewFromBytes(data, opts...)
}

// NewFromBytes parses data as JSON, falling back to YAML.
func NewFromBytes(data []byte, opts ...Option) (*OpenAPIConnector, error) {
	var spec OpenAPISpec
	if err := json.Unmarshal(data, &spec); err != nil {
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, errors.New(errors.CodeInvalidArguments, "parse openapi document", err)
		}
	}

	c := &OpenAPIConnector{spec: &spec}
	if len(spec.Servers) > 0 {
		c.baseURL = strings.TrimRight(spec.Servers[0].URL, "/")
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		return nil, errors.New(errors.CodeInvalidArguments, "openapi document has no server url", nil)
	}
	if c.runner == nil {
		c.runner = task.NewExecutor()
	}
	c.generateTools()
	return c, nil
}

// Title returns the document title.
func (c *OpenAPIConnector) Title() string { return c.spec.Info.Title }

// Tools returns the generated tools sorted by name.
func (c *OpenAPIConnector) Tools() []core.Tool {
	return append([]core.Tool(nil), c.tools...)
}

func (c *OpenAPIConnector) generateTools() {
	paths := make([]string, 0, len(c.spec.Paths))
	for p := range c.spec.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		item := c.spec.Paths[p]
		for _, m := range []struct {
			method string
			op     *Operation
		}{
			{"GET", item.Get}, {"POST", item.Post}, {"PUT", item.Put},
			{"DELETE", item.Delete}, {"PATCH", item.Patch},
		} {
			if m.op != nil {
				c.tools = append(c.tools, c.newOperationTool(p, m.method, m.op))
			}
		}
	}
	sort.Slice(c.tools, func(i, j int) bool { return c.tools[i].Name() < c.tools[j].Name() })
}

func (c *OpenAPIConnector) newOperationTool(path, method string, op *Operation) *operationTool {
	name := op.OperationID
	if name == "" {
		name = strings.Trim(strings.ToLower(method)+strings.NewReplacer("/", "_", "{", "", "}", "").Replace(path), "_")
	}
	desc := op.Summary
	if desc == "" {
		desc = op.Description
	}
	if desc == "" {
		desc = method + " " + path
	}
	return &operationTool{
		conn:        c,
		name:        c.prefix + name,
		description: desc,
		path:        path,
		method:      method,
		op:          op,
	}
}

// operationTool invokes one API operation. Path, query and header
// parameters are taken from the argument object; a "body" argument, or
// else every remaining argument, becomes the JSON request body.
type operationTool struct {
	conn        *OpenAPIConnector
	name        string
	description string
	path        string
	method      string
	op          *Operation
}

func (t *operationTool) Name() string        { return t.name }
func (t *operationTool) Description() string { return t.description }

func (t *operationTool) Invocation(args value.Value) (task.Invocation, error) {
	if !args.IsNull() && args.Kind() != value.KindObject {
		return task.Invocation{}, errors.New(errors.CodeInvalidArguments, "arguments must be an object", nil)
	}
	finalPath := t.path
	query := url.Values{}
	headers := map[string]string{}
	used := map[string]bool{}

	for _, param := range t.op.Parameters {
		v, ok := args.Get(param.Name)
		if !ok || v.IsNull() {
			if param.Required {
				return task.Invocation{}, errors.New(errors.CodeInvalidArguments,
					fmt.Sprintf("missing required parameter %q", param.Name), nil)
			}
			continue
		}
		used[param.Name] = true
		switch param.In {
		case "path":
			finalPath = strings.ReplaceAll(finalPath, "{"+param.Name+"}", url.PathEscape(v.Text()))
		case "query":
			query.Set(param.Name, v.Text())
		case "header":
			headers[param.Name] = v.Text()
		}
	}

	var payload string
	if t.op.RequestBody != nil {
		body, ok := args.Get("body")
		if !ok {
			rest := map[string]value.Value{}
			for k, v := range args.Fields() {
				if !used[k] {
					rest[k] = v
				}
			}
			if len(rest) > 0 {
				body, ok = value.Object(rest), true
			}
		}
		if !ok && t.op.RequestBody.Required {
			return task.Invocation{}, errors.New(errors.CodeInvalidArguments, "request body is required", nil)
		}
		if ok {
			payload = body.String()
		}
	}

	target := t.conn.baseURL + finalPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return task.Request(t.method, target, payload, headers), nil
}

func (t *operationTool) Execute(ctx context.Context, args value.Value) core.ToolOutput {
	inv, err := t.Invocation(args)
	if err != nil {
		return core.Failed(errors.CodeInvalidArguments, errors.As(err).Message)
	}
	return t.conn.runner.Run(ctx, inv)
}

var _ task.PrimitiveTool = (*operationTool)(nil)
