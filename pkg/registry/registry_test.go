package registry

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/value"
)

func namedTool(name, result string) core.Tool {
	return core.NewTool(name, "returns "+result, func(context.Context, value.Value) core.ToolOutput {
		return core.Succeeded(value.String(result))
	})
}

func TestRegisterAndLookup(t *testing.T) {
	reg := New(namedTool("echo", "one"))

	tool, ok := reg.Lookup("echo")
	if !ok {
		t.Fatal("expected echo to be registered")
	}
	if _, ok := reg.Lookup("missing"); ok {
		t.Fatal("unexpected tool for missing name")
	}

	reg.Register(namedTool("echo", "two"))
	tool, _ = reg.Lookup("echo")
	out := tool.Execute(context.Background(), value.Null())
	if s, _ := out.Result.AsString(); s != "two" {
		t.Fatalf("expected overwrite, got %q", s)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 tool, got %d", reg.Len())
	}
}

func TestRegisterNilIsIgnored(t *testing.T) {
	reg := New()
	reg.Register(nil)
	if reg.Len() != 0 {
		t.Fatalf("nil tool must not be registered")
	}
}

func TestListSorted(t *testing.T) {
	reg := New(namedTool("length", "x"), namedTool("echo", "y"))
	list := reg.List()
	if len(list) != 2 || list[0].Name != "echo" || list[1].Name != "length" {
		t.Fatalf("unexpected list: %+v", list)
	}
	if list[0].Description != "returns y" {
		t.Fatalf("unexpected description: %q", list[0].Description)
	}
}

func TestConcurrentRegisterAndLookup(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.Register(namedTool(fmt.Sprintf("tool-%d-%d", i, j%10), "v"))
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if tool, ok := reg.Lookup(fmt.Sprintf("tool-%d-%d", i, j%10)); ok && tool == nil {
					t.Error("lookup returned a nil tool")
				}
				_ = reg.List()
			}
		}(i)
	}
	wg.Wait()
	if reg.Len() != 160 {
		t.Fatalf("expected 160 tools, got %d", reg.Len())
	}
}
