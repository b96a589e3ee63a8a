package tools

import (
	"context"
	"os"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

// ReadFile returns the contents of a file under root.
func ReadFile(root string) core.Tool {
	return core.NewTool("read_file", "Reads a file below the configured root.", func(_ context.Context, args value.Value) core.ToolOutput {
		path, ok := args.GetString("path")
		if !ok || path == "" {
			return core.Failed(errors.CodeInvalidArguments, "read_file: path is required")
		}
		full, err := confine(root, path)
		if err != nil {
			return core.FromError(err)
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return core.Failedf(errors.CodeExecutionFailure, "read_file: %v", err)
		}
		return core.Succeeded(value.String(string(data)))
	})
}

// ListDirectory lists a directory under root with ls.
func ListDirectory(root string, runner task.Runner) core.Tool {
	return &primitive{
		name:        "list_directory",
		description: "Lists the contents of a directory below the configured root.",
		runner:      runner,
		build: func(args value.Value) (task.Invocation, error) {
			path, _ := args.GetString("path")
			if path == "" {
				path = "."
			}
			full, err := confine(root, path)
			if err != nil {
				return task.Invocation{}, err
			}
			return task.Shell("ls", "-1", full), nil
		},
	}
}
