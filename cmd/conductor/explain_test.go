package main

import (
	"strings"
	"testing"

	"github.com/jllopis/conductor/pkg/planner"
	"github.com/jllopis/conductor/pkg/registry"
	ctesting "github.com/jllopis/conductor/pkg/testing"
)

func TestBuildExplainResult(t *testing.T) {
	plan, err := planner.ParseYAML([]byte(`
id: p-1
goal: demo
steps:
  - tool_name: read_file
    args: {path: a.log}
    output_key: text
  - tool_name: remote.lint
    args: {input: "${text}", extra: "${later}"}
    output_key: report
  - tool_name: ghost
    args: {}
    output_key: text
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := registry.New(ctesting.NewStubTool("read_file"), ctesting.NewStubTool("remote.lint"))

	result := buildExplainResult(plan, reg, map[string][]string{"mcp:linter": {"remote.lint"}})

	if !result.Valid || result.PlanID != "p-1" {
		t.Fatalf("unexpected header: %+v", result)
	}
	if got := []string{result.Steps[0].Source, result.Steps[1].Source, result.Steps[2].Source}; strings.Join(got, ",") != "builtin,mcp:linter,missing" {
		t.Fatalf("sources = %v", got)
	}
	if len(result.Missing) != 1 || result.Missing[0] != "ghost" {
		t.Fatalf("missing = %v", result.Missing)
	}
	if !result.Steps[2].Overwrites {
		t.Fatal("third step reuses output key text")
	}
	if strings.Join(result.Steps[1].References, ",") != "later,text" {
		t.Fatalf("references = %v", result.Steps[1].References)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "${later}") {
		t.Fatalf("warnings = %v", result.Warnings)
	}
	if strings.Join(result.Outputs, ",") != "text,report" {
		t.Fatalf("outputs = %v", result.Outputs)
	}
}

func TestBuildExplainResultInvalid(t *testing.T) {
	plan := &planner.Plan{Goal: "x", Steps: []planner.Step{{ToolName: "echo"}}}
	result := buildExplainResult(plan, registry.New(), nil)
	if result.Valid || !strings.Contains(result.Error, "output key is required") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestTruncateMessage(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is a long string", 10, "this is..."},
		{"has\nnewline", 15, "has newline"},
		{"", 5, "-"},
	}
	for _, tc := range tests {
		if got := truncateMessage(tc.input, tc.maxLen); got != tc.expected {
			t.Errorf("truncateMessage(%q, %d) = %q, want %q", tc.input, tc.maxLen, got, tc.expected)
		}
	}
}
