package tools

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/value"
)

// Echo returns its text argument unchanged.
func Echo() core.Tool {
	return core.NewTool("echo", "Returns the text argument.", func(_ context.Context, args value.Value) core.ToolOutput {
		v, ok := args.Get("text")
		if !ok {
			return core.Failed(errors.CodeInvalidArguments, "echo: missing text")
		}
		return core.Succeeded(v)
	})
}

// Length counts the characters of its text argument.
func Length() core.Tool {
	return core.NewTool("length", "Returns the number of characters in text.", func(_ context.Context, args value.Value) core.ToolOutput {
		text, ok := args.GetString("text")
		if !ok {
			return core.Failed(errors.CodeInvalidArguments, "length: text must be a string")
		}
		return core.Succeeded(value.Int(utf8.RuneCountInString(text)))
	})
}

// Summarize keeps the first non-empty lines of text, bounded by maxLines and
// maxChars.
func Summarize(maxLines, maxChars int) core.Tool {
	return core.NewTool("summarize", "Returns the first lines of text.", func(_ context.Context, args value.Value) core.ToolOutput {
		text, ok := textArg(args, "text")
		if !ok {
			return core.Failed(errors.CodeInvalidArguments, "summarize: missing text")
		}
		lines := maxLines
		if n, ok := args.Get("lines"); ok {
			if f, ok := n.AsNumber(); ok && f >= 1 {
				lines = int(f)
			}
		}
		return core.Succeeded(value.String(summarize(text, lines, maxChars)))
	})
}

func summarize(text string, maxLines, maxChars int) string {
	var kept []string
	total := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		total++
		if len(kept) < maxLines {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	if utf8.RuneCountInString(out) > maxChars {
		out = string([]rune(out)[:maxChars]) + "..."
	}
	if rest := total - len(kept); rest > 0 {
		out += fmt.Sprintf("\n(%d more lines)", rest)
	}
	return out
}
