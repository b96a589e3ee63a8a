package planner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jllopis/conductor/pkg/errors"
)

func TestParseJSON(t *testing.T) {
	payload := []byte(`{
  "id": "plan-json",
  "goal": "demo",
  "steps": [
    { "tool_name": "echo", "args": { "text": "hi" }, "output_key": "r1" },
    { "tool_name": "length", "args": { "text": "${r1}" }, "output_key": "r2" }
  ]
}`)
	plan, err := ParseJSON(payload)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if plan.ID != "plan-json" || plan.Goal != "demo" {
		t.Fatalf("unexpected plan header: %+v", plan)
	}
	if len(plan.Steps) != 2 || plan.Steps[1].ToolName != "length" {
		t.Fatalf("unexpected steps: %+v", plan.Steps)
	}
	if text, _ := plan.Steps[1].Args.GetString("text"); text != "${r1}" {
		t.Fatalf("unexpected args: %v", plan.Steps[1].Args)
	}
}

func TestParseYAML(t *testing.T) {
	payload := []byte(`
goal: analyze disk usage
steps:
  - tool_name: check_disk
    args: {}
    output_key: disk_info
  - tool_name: summarize
    args:
      text: ${disk_info}
      lines: 3
    output_key: disk_summary
`)
	plan, err := ParseYAML(payload)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if plan.Steps[0].OutputKey != "disk_info" {
		t.Fatalf("unexpected output key: %q", plan.Steps[0].OutputKey)
	}
	lines, _ := plan.Steps[1].Args.Get("lines")
	if n, ok := lines.AsNumber(); !ok || n != 3 {
		t.Fatalf("unexpected lines arg: %v", lines)
	}
}

func TestParseRejectsInvalidPlans(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"missing tool name", `{"goal":"x","steps":[{"args":{},"output_key":"a"}]}`},
		{"missing output key", `{"goal":"x","steps":[{"tool_name":"echo","args":{}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.payload))
			if errors.CodeOf(err) != errors.CodeInvalidPlan {
				t.Fatalf("expected invalid plan, got %v", err)
			}
		})
	}
	if _, err := ParseJSON(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
	if _, err := ParseYAML([]byte("steps: [")); err == nil {
		t.Fatal("expected yaml syntax error")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	plan := demoPlan()
	data, err := MarshalYAML(plan)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	back, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("parse yaml: %v\n%s", err, data)
	}
	if back.Goal != plan.Goal || len(back.Steps) != len(plan.Steps) {
		t.Fatalf("round trip mismatch: %+v", back)
	}

	data, err = MarshalJSON(plan, true)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	if _, err := ParseJSON(data); err != nil {
		t.Fatalf("parse json: %v", err)
	}
}

func TestLoadPlan(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"plan.json": `{"goal":"g","steps":[{"tool_name":"echo","args":{"text":"a"},"output_key":"r"}]}`,
		"plan.yml":  "goal: g\nsteps:\n  - tool_name: echo\n    args: {text: a}\n    output_key: r\n",
		"plan.txt":  `{"goal":"g","steps":[{"tool_name":"echo","args":{"text":"a"},"output_key":"r"}]}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		plan, err := LoadPlan(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if plan.Steps[0].ToolName != "echo" {
			t.Fatalf("%s: unexpected plan %+v", name, plan)
		}
	}
	if _, err := LoadPlan(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestPlanWarnings(t *testing.T) {
	plan := &Plan{Goal: "g", Steps: []Step{
		{ToolName: "length", Args: mustArgs(map[string]any{"text": "${later}"}), OutputKey: "first"},
		{ToolName: "echo", Args: mustArgs(map[string]any{"text": "${first}"}), OutputKey: "later"},
	}}
	warnings := plan.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %v", warnings)
	}
	if keys := plan.OutputKeys(); len(keys) != 2 || keys[0] != "first" {
		t.Fatalf("unexpected output keys %v", keys)
	}
}
