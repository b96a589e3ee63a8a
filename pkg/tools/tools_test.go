package tools

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/planner"
	"github.com/jllopis/conductor/pkg/registry"
	"github.com/jllopis/conductor/pkg/task"
	ctesting "github.com/jllopis/conductor/pkg/testing"
	"github.com/jllopis/conductor/pkg/value"
)

func args(m map[string]any) value.Value { return value.MustFromAny(m) }

func TestTextTools(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		tool     string
		args     value.Value
		want     value.Value
		wantCode errors.Code
	}{
		{"echo string", "echo", args(map[string]any{"text": "hi"}), value.String("hi"), ""},
		{"echo keeps type", "echo", args(map[string]any{"text": 4}), value.Int(4), ""},
		{"echo missing", "echo", value.Null(), value.Null(), errors.CodeInvalidArguments},
		{"length ascii", "length", args(map[string]any{"text": "hello"}), value.Int(5), ""},
		{"length runes", "length", args(map[string]any{"text": "héllo"}), value.Int(5), ""},
		{"length not a string", "length", args(map[string]any{"text": 42}), value.Null(), errors.CodeInvalidArguments},
		{"summarize short", "summarize", args(map[string]any{"text": "a\n\nb\n"}), value.String("a\nb"), ""},
		{"summarize lines", "summarize", args(map[string]any{"text": "1\n2\n3\n4", "lines": 2}), value.String("1\n2\n(2 more lines)"), ""},
	}

	reg := registry.New()
	RegisterDefaults(reg, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool, ok := reg.Lookup(tt.tool)
			if !ok {
				t.Fatalf("%s not registered", tt.tool)
			}
			out := tool.Execute(ctx, tt.args)
			if tt.wantCode != "" {
				if out.Success || out.Code != tt.wantCode {
					t.Fatalf("expected %s, got %+v", tt.wantCode, out)
				}
				return
			}
			if !out.Success || !value.Equal(out.Result, tt.want) {
				t.Fatalf("got %+v, want %s", out, tt.want)
			}
		})
	}
}

func TestSummarizeCharacterCap(t *testing.T) {
	got := summarize(strings.Repeat("x", 20), 5, 8)
	if got != "xxxxxxxx..." {
		t.Fatalf("unexpected summary %q", got)
	}
}

func TestReadFileConfinement(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "system.log"), []byte("ERROR disk full\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	tool := ReadFile(root)
	ctx := context.Background()
	a := ctesting.NewAssertions(t)

	a.AssertOutput(tool.Execute(ctx, args(map[string]any{"path": "system.log"}))).Succeeded().ResultText("ERROR disk full\n")
	a.AssertOutput(tool.Execute(ctx, args(map[string]any{"path": "/system.log"}))).Succeeded()
	a.AssertOutput(tool.Execute(ctx, args(map[string]any{"path": "../etc/passwd"}))).FailedWith(errors.CodeInvalidArguments)
	a.AssertOutput(tool.Execute(ctx, args(map[string]any{"path": "x; rm -rf"}))).FailedWith(errors.CodeInvalidArguments)
	a.AssertOutput(tool.Execute(ctx, args(map[string]any{"path": "missing.log"}))).FailedWith(errors.CodeExecutionFailure)
	a.AssertOutput(tool.Execute(ctx, value.Null())).FailedWith(errors.CodeInvalidArguments)
}

func TestPrimitiveInvocations(t *testing.T) {
	root := "/srv/data"
	tests := []struct {
		name    string
		tool    task.PrimitiveTool
		args    value.Value
		want    task.Invocation
		wantErr bool
	}{
		{"list default", ListDirectory(root, nil).(task.PrimitiveTool), value.Null(), task.Shell("ls", "-1", "/srv/data"), false},
		{"list subdir", ListDirectory(root, nil).(task.PrimitiveTool), args(map[string]any{"path": "logs"}), task.Shell("ls", "-1", "/srv/data/logs"), false},
		{"list traversal", ListDirectory(root, nil).(task.PrimitiveTool), args(map[string]any{"path": "../"}), task.Invocation{}, true},
		{"check disk", CheckDisk(nil).(task.PrimitiveTool), value.Null(), task.Shell("df", "-h"), false},
		{"post text", HTTPPost(nil).(task.PrimitiveTool), args(map[string]any{"url": "http://x", "body": "hi"}), task.HTTP("http://x", "hi"), false},
		{"post json", HTTPPost(nil).(task.PrimitiveTool), args(map[string]any{"url": "http://x", "body": map[string]any{"a": 1}}), task.HTTP("http://x", `{"a":1}`), false},
		{"post no url", HTTPPost(nil).(task.PrimitiveTool), value.Null(), task.Invocation{}, true},
		{"internal", Internal(nil).(task.PrimitiveTool), args(map[string]any{"operation": "ping"}), task.Internal("ping"), false},
		{"internal no op", Internal(nil).(task.PrimitiveTool), value.Null(), task.Invocation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := tt.tool.Invocation(tt.args)
			if tt.wantErr {
				if errors.CodeOf(err) != errors.CodeInvalidArguments {
					t.Fatalf("expected invalid arguments, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("invocation: %v", err)
			}
			if inv.String() != tt.want.String() || inv.Payload != tt.want.Payload {
				t.Fatalf("got %s (%q), want %s (%q)", inv, inv.Payload, tt.want, tt.want.Payload)
			}
		})
	}
}

func TestPrimitiveExecuteUsesRunner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte("got " + string(body)))
	}))
	defer srv.Close()

	runner := task.NewExecutor()
	ctx := context.Background()
	a := ctesting.NewAssertions(t)
	a.AssertOutput(Internal(runner).Execute(ctx, args(map[string]any{"operation": "ping"}))).Succeeded().ResultText("pong")
	a.AssertOutput(HTTPPost(runner).Execute(ctx, args(map[string]any{"url": srv.URL, "body": "x"}))).Succeeded().ResultText("got x")
	a.AssertOutput(Internal(runner).Execute(ctx, value.Null())).FailedWith(errors.CodeInvalidArguments)
}

func TestRememberRecall(t *testing.T) {
	store := memory.NewInMemory()
	remember, recall := Remember(store), Recall(store)
	ctx := context.Background()
	a := ctesting.NewAssertions(t)

	a.AssertOutput(remember.Execute(ctx, args(map[string]any{"key": "k1", "value": "disk ok", "tags": []any{"disk"}}))).Succeeded()
	a.AssertOutput(remember.Execute(ctx, args(map[string]any{"key": "k2", "value": map[string]any{"n": 1}}))).Succeeded()
	a.AssertOutput(remember.Execute(ctx, args(map[string]any{"value": "x"}))).FailedWith(errors.CodeInvalidArguments)
	a.AssertOutput(remember.Execute(ctx, args(map[string]any{"key": "k3", "tags": []any{1}}))).FailedWith(errors.CodeInvalidArguments)

	a.AssertOutput(recall.Execute(ctx, args(map[string]any{"key": "k1"}))).Succeeded().ResultText("disk ok")
	a.AssertOutput(recall.Execute(ctx, args(map[string]any{"key": "k2"}))).Succeeded().ResultText(`{"n":1}`)
	a.AssertOutput(recall.Execute(ctx, args(map[string]any{"key": "nope"}))).FailedWith(errors.CodeExecutionFailure)

	byTag := recall.Execute(ctx, args(map[string]any{"tag": "disk"}))
	a.AssertOutput(byTag).Succeeded()
	a.AssertEqual(1, byTag.Result.Len(), "entries tagged disk")

	recent := recall.Execute(ctx, args(map[string]any{"limit": 5}))
	a.AssertEqual(2, recent.Result.Len(), "recent entries")

	none := recall.Execute(ctx, args(map[string]any{"limit": 0}))
	a.AssertOutput(none).Succeeded()
	a.AssertEqual(0, none.Result.Len(), "limit 0 entries")
}

func TestRememberRecallRejectBadArguments(t *testing.T) {
	store := memory.NewInMemory()
	remember, recall := Remember(store), Recall(store)
	ctx := context.Background()

	tests := []struct {
		name string
		tool core.Tool
		args map[string]any
	}{
		{"tags string", remember, map[string]any{"key": "k", "tags": "x"}},
		{"tags object", remember, map[string]any{"key": "k", "tags": map[string]any{"a": "b"}}},
		{"negative limit", recall, map[string]any{"limit": -1}},
		{"fractional limit", recall, map[string]any{"limit": 2.5}},
		{"huge limit", recall, map[string]any{"limit": 1e18}},
		{"nan limit", recall, map[string]any{"limit": value.Number(math.NaN())}},
		{"inf limit", recall, map[string]any{"limit": value.Number(math.Inf(1))}},
		{"string limit", recall, map[string]any{"limit": "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.tool.Execute(ctx, args(tt.args))
			if out.Success || out.Code != errors.CodeInvalidArguments {
				t.Fatalf("expected INVALID_ARGUMENTS, got %+v", out)
			}
		})
	}

	if _, found, _ := store.ReadByKey(ctx, "k"); found {
		t.Fatal("rejected remember must not write")
	}
}

func TestRegisterDefaults(t *testing.T) {
	reg := registry.New()
	RegisterDefaults(reg, Options{})
	if reg.Len() != 8 {
		t.Fatalf("expected 8 tools, got %d", reg.Len())
	}
	if _, ok := reg.Lookup("shell"); ok {
		t.Fatal("shell must be opt-in")
	}

	reg = registry.New()
	RegisterDefaults(reg, Options{Memory: memory.NewInMemory(), AllowShell: true})
	for _, name := range []string{"shell", "remember", "recall"} {
		if _, ok := reg.Lookup(name); !ok {
			t.Fatalf("%s not registered", name)
		}
	}
}

func TestSummarizeLogPlan(t *testing.T) {
	root := t.TempDir()
	log := "INFO boot\nERROR disk full\nWARN retry\n"
	if err := os.WriteFile(filepath.Join(root, "system.log"), []byte(log), 0o600); err != nil {
		t.Fatal(err)
	}
	reg := registry.New()
	RegisterDefaults(reg, Options{Root: root, SummaryLines: 2})

	plan, ok := planner.NewKeywordPlanner().GeneratePlan(context.Background(), "please summarize log file")
	if !ok {
		t.Fatal("no plan for goal")
	}

	scenario := ctesting.NewScenario("summarize log file").
		WithPlan(plan).
		ExpectNoError().
		ExpectSuccess().
		ExpectOutput("summary", ctesting.Equals("INFO boot\nERROR disk full\n(1 more lines)"))
	result := scenario.Run(t, planner.NewExecutor(reg))
	result.Assert(t, scenario)
}
