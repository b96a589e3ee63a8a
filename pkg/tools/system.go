package tools

import (
	"runtime"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/value"
)

// CheckDisk reports file system usage with df -h.
func CheckDisk(runner task.Runner) core.Tool {
	return &primitive{
		name:        "check_disk",
		description: "Reports disk usage.",
		runner:      runner,
		build: func(value.Value) (task.Invocation, error) {
			return task.Shell("df", "-h"), nil
		},
	}
}

// HTTPPost posts body to url. Non-string bodies are sent as JSON.
func HTTPPost(runner task.Runner) core.Tool {
	return &primitive{
		name:        "http_post",
		description: "Sends an HTTP POST request and returns the response body.",
		runner:      runner,
		build: func(args value.Value) (task.Invocation, error) {
			url, ok := args.GetString("url")
			if !ok || url == "" {
				return task.Invocation{}, invalidArgs("http_post: url is required")
			}
			body, _ := textArg(args, "body")
			return task.HTTP(url, body), nil
		},
	}
}

// Internal runs a named internal operation of the task executor.
func Internal(runner task.Runner) core.Tool {
	return &primitive{
		name:        "internal",
		description: "Runs a built-in operation such as ping, time or version.",
		runner:      runner,
		build: func(args value.Value) (task.Invocation, error) {
			op, ok := args.GetString("operation")
			if !ok || op == "" {
				return task.Invocation{}, invalidArgs("internal: operation is required")
			}
			return task.Internal(op), nil
		},
	}
}

// ShellTool runs a command line through the platform shell.
func ShellTool(runner task.Runner) core.Tool {
	return &primitive{
		name:        "shell",
		description: "Runs a command line through the system shell.",
		runner:      runner,
		build: func(args value.Value) (task.Invocation, error) {
			cmd, ok := args.GetString("command")
			if !ok || cmd == "" {
				return task.Invocation{}, invalidArgs("shell: command is required")
			}
			if runtime.GOOS == "windows" {
				return task.Shell("cmd", "/C", cmd), nil
			}
			return task.Shell("sh", "-c", cmd), nil
		},
	}
}
