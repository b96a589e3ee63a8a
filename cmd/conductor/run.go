// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/jllopis/conductor/pkg/agent"
	"github.com/jllopis/conductor/pkg/config"
	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/planner"
)

type runOutput struct {
	Goal    string                `json:"goal,omitempty"`
	TaskID  string                `json:"task_id,omitempty"`
	Success bool                  `json:"success"`
	Outputs core.ExecutionContext `json:"outputs"`
	Error   string                `json:"error,omitempty"`
}

func runPlanCommand(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	planPath := fs.String("plan", "", "Plan file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("run", err.Error())
	}
	if *planPath == "" && fs.NArg() > 0 {
		*planPath = fs.Arg(0)
	}
	if *planPath == "" {
		return NewInvalidArgumentError("plan", "usage: conductor run -plan <file>")
	}

	plan, err := planner.LoadPlan(*planPath)
	if err != nil {
		return NewPlanError(err, *planPath)
	}

	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	for _, line := range planner.Describe(plan) {
		env.logger.Debug("plan step", "plan", *planPath, "step", line)
	}

	ctx, cancel := env.withTimeout(ctx)
	defer cancel()

	results, ok, err := a.executor.Run(ctx, plan)
	if err != nil {
		return NewPlanError(err, *planPath)
	}
	if err := printRun(env, plan.OutputKeys(), runOutput{Goal: plan.Goal, Success: ok, Outputs: results}); err != nil {
		return err
	}
	if !ok {
		return NewRunFailedError(results.Failures())
	}
	return nil
}

func runGoalCommand(ctx context.Context, env *cliEnv, args []string) error {
	goal := strings.TrimSpace(strings.Join(args, " "))
	if goal == "" {
		return NewInvalidArgumentError("goal", "usage: conductor goal <text>")
	}

	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := env.withTimeout(ctx)
	defer cancel()

	loop, stop := startLoop(ctx, a)
	defer stop()

	res, err := loop.Submit(ctx, goal)
	if res.TaskID == "" && err != nil {
		return err
	}
	if perr := printRun(env, outputKeys(res.Outputs), resultOutput(res)); perr != nil {
		return perr
	}
	if !res.Success {
		if len(res.Outputs) > 0 {
			return NewRunFailedError(res.Outputs.Failures())
		}
		return err
	}
	return nil
}

// runAgentCommand reads goals from env.in until EOF or "exit". "reset"
// clears the error state and "state" prints it.
func runAgentCommand(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("agent", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "Reload planner rules when the config file changes")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("agent", err.Error())
	}

	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	if *watch && env.global.ConfigPath != "" {
		watcher, err := config.NewWatcher(env.global.ConfigPath,
			config.WithWatchProfile(env.global.Profile),
			config.WithWatchLogger(env.logger),
		)
		if err != nil {
			return NewConfigError(err, env.global.ConfigPath)
		}
		watcher.OnChange(func(cfg *config.Config) { reloadRules(a, cfg, env.logger) })
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	loop, stop := startLoop(ctx, a)
	defer stop()
	return agentREPL(ctx, env, loop)
}

func agentREPL(ctx context.Context, env *cliEnv, loop *agent.Loop) error {
	scanner := bufio.NewScanner(env.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "state":
			fmt.Fprintln(env.out, loop.State())
			continue
		case "reset":
			if err := loop.Send(ctx, agent.Reset{}); err != nil {
				return err
			}
			fmt.Fprintln(env.out, "reset requested")
			continue
		}

		res, err := loop.Submit(ctx, input)
		if res.TaskID == "" && err != nil {
			if errors.CodeOf(err) == errors.CodeContextLost {
				return nil
			}
			fmt.Fprintf(env.out, "rejected: %s (state %s)\n", errors.As(err).Message, loop.State())
			continue
		}
		if perr := printRun(env, outputKeys(res.Outputs), resultOutput(res)); perr != nil {
			return perr
		}
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		return errors.New(errors.CodeInternal, "read input", err)
	}
	return nil
}

func startLoop(ctx context.Context, a *app) (*agent.Loop, func()) {
	loop := agent.New(a.executor,
		agent.WithPlanner(a.planner),
		agent.WithMemory(a.memory),
		agent.WithEventEmitter(a.emitter),
		agent.WithLogger(a.logger),
	)
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(loopCtx)
	}()
	return loop, func() {
		cancel()
		<-done
	}
}

func reloadRules(a *app, cfg *config.Config, logger *slog.Logger) {
	rules, err := loadRules(cfg.Planner)
	if err != nil {
		logger.Error("planner rules reload failed", slog.String("rules_file", cfg.Planner.RulesFile), slog.Any("error", err))
		return
	}
	a.planner.Swap(planner.NewKeywordPlanner(rules...))
	logger.Info("planner rules reloaded", slog.Int("rules", len(rules)))
}

func resultOutput(res agent.Result) runOutput {
	out := runOutput{Goal: res.Goal, TaskID: res.TaskID, Success: res.Success, Outputs: res.Outputs}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func outputKeys(results core.ExecutionContext) []string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printRun(env *cliEnv, keys []string, out runOutput) error {
	if env.global.JSON {
		if out.Outputs == nil {
			out.Outputs = core.ExecutionContext{}
		}
		return printJSON(env.out, out)
	}

	status := "succeeded"
	if !out.Success {
		status = "failed"
	}
	if out.TaskID != "" {
		fmt.Fprintf(env.out, "task %s %s: %s\n", out.TaskID, status, out.Goal)
	} else {
		fmt.Fprintf(env.out, "plan %s: %s\n", status, out.Goal)
	}
	if out.Error != "" && len(out.Outputs) == 0 {
		fmt.Fprintf(env.out, "reason: %s\n", out.Error)
		return nil
	}

	writer := newTabWriter(env.out)
	writeRow(writer, "KEY", "STATUS", "CODE", "RESULT")
	for _, key := range keys {
		o, ok := out.Outputs[key]
		if !ok {
			continue
		}
		if o.Success {
			writeRow(writer, key, "ok", "", truncateMessage(o.Result.Text(), 120))
			continue
		}
		writeRow(writer, key, "failed", string(o.Code), truncateMessage(o.Message, 120))
	}
	return writer.Flush()
}
