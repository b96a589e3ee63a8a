package resolver

import (
	"reflect"
	"testing"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

func sampleContext() core.ExecutionContext {
	ctx := core.NewExecutionContext()
	ctx["x"] = core.Succeeded(value.Int(42))
	ctx["obj"] = core.Succeeded(value.MustFromAny(map[string]any{"a": []any{1, 2}}))
	ctx["bad"] = core.Failed(errors.CodeTimeout, "timed out")
	return ctx
}

func TestResolve(t *testing.T) {
	ctx := sampleContext()
	tests := []struct {
		name     string
		template value.Value
		want     value.Value
	}{
		{"number keeps type", value.String("${x}"), value.Int(42)},
		{"object keeps type", value.String("${obj}"), value.MustFromAny(map[string]any{"a": []any{1, 2}})},
		{"missing is null", value.String("${missing}"), value.Null()},
		{"failed output result", value.String("${bad}"), value.Null()},
		{"substring unchanged", value.String("prefix ${x} suffix"), value.String("prefix ${x} suffix")},
		{"two references unchanged", value.String("${x}${x}"), value.String("${x}${x}")},
		{"adjacent distinct references unchanged", value.String("${x}${obj}"), value.String("${x}${obj}")},
		{"nested braces unchanged", value.String("${x}}"), value.String("${x}}")},
		{"dollar in name unchanged", value.String("${$x}"), value.String("${$x}")},
		{"empty name unchanged", value.String("${}"), value.String("${}")},
		{"plain string", value.String("hi"), value.String("hi")},
		{"number passes through", value.Int(7), value.Int(7)},
		{"bool passes through", value.Bool(true), value.Bool(true)},
		{
			"nested",
			value.MustFromAny(map[string]any{"text": "${x}", "list": []any{"${missing}", "a", map[string]any{"deep": "${x}"}}}),
			value.MustFromAny(map[string]any{"text": 42, "list": []any{nil, "a", map[string]any{"deep": 42}}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.template, ctx)
			if !value.Equal(got, tt.want) {
				t.Fatalf("Resolve(%v) = %v, want %v", tt.template, got, tt.want)
			}
		})
	}
}

func TestResolveDoesNotMutateTemplate(t *testing.T) {
	template := value.MustFromAny(map[string]any{"text": "${x}"})
	_ = Resolve(template, sampleContext())
	if s, _ := template.GetString("text"); s != "${x}" {
		t.Fatalf("template was mutated: %v", template)
	}
}

func TestResolveNilContext(t *testing.T) {
	if got := Resolve(value.String("${x}"), nil); !got.IsNull() {
		t.Fatalf("expected null, got %v", got)
	}
}

func TestReferences(t *testing.T) {
	template := value.MustFromAny(map[string]any{
		"a": "${r2}",
		"b": []any{"${r1}", "${r2}", "not ${r3}", "${r4}${r5}"},
	})
	if got := References(template); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
		t.Fatalf("unexpected references %v", got)
	}
}
