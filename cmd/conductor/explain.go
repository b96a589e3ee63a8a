// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/jllopis/conductor/pkg/planner"
	"github.com/jllopis/conductor/pkg/resolver"
)

type explainResult struct {
	Goal     string        `json:"goal"`
	PlanID   string        `json:"plan_id,omitempty"`
	Valid    bool          `json:"valid"`
	Error    string        `json:"error,omitempty"`
	Steps    []explainStep `json:"steps"`
	Outputs  []string      `json:"outputs"`
	Missing  []string      `json:"missing_tools,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

type explainStep struct {
	Index      int      `json:"index"`
	Tool       string   `json:"tool"`
	Source     string   `json:"source"`
	OutputKey  string   `json:"output_key"`
	References []string `json:"references,omitempty"`
	Overwrites bool     `json:"overwrites,omitempty"`
}

func runExplainCommand(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("explain", flag.ContinueOnError)
	planPath := fs.String("plan", "", "Plan file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("explain", err.Error())
	}
	if *planPath == "" && fs.NArg() > 0 {
		*planPath = fs.Arg(0)
	}
	if *planPath == "" {
		return NewInvalidArgumentError("plan", "usage: conductor explain -plan <file>")
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

	result := buildExplainResult(plan, a.registry, a.remote)
	if env.global.JSON {
		return printJSON(env.out, result)
	}
	printExplainTree(env, result)
	return nil
}

func buildExplainResult(plan *planner.Plan, tools planner.ToolSource, remote map[string][]string) explainResult {
	result := explainResult{
		Goal:    plan.Goal,
		PlanID:  plan.ID,
		Valid:   true,
		Steps:   make([]explainStep, 0, len(plan.Steps)),
		Outputs: plan.OutputKeys(),
	}
	if err := plan.Validate(); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}

	origin := make(map[string]string)
	for source, names := range remote {
		for _, name := range names {
			origin[name] = source
		}
	}

	produced := make(map[string]bool)
	missing := make(map[string]bool)
	for i, step := range plan.Steps {
		source := "builtin"
		if _, ok := tools.Lookup(step.ToolName); !ok {
			source = "missing"
			if !missing[step.ToolName] {
				missing[step.ToolName] = true
				result.Missing = append(result.Missing, step.ToolName)
			}
		} else if o, ok := origin[step.ToolName]; ok {
			source = o
		}
		result.Steps = append(result.Steps, explainStep{
			Index:      i,
			Tool:       step.ToolName,
			Source:     source,
			OutputKey:  step.OutputKey,
			References: resolver.References(step.Args),
			Overwrites: produced[step.OutputKey],
		})
		produced[step.OutputKey] = true
	}
	result.Warnings = plan.Warnings()
	return result
}

func printExplainTree(env *cliEnv, result explainResult) {
	fmt.Fprintf(env.out, "Plan: %s\n", orDash(result.Goal))
	if result.PlanID != "" {
		fmt.Fprintf(env.out, "├── ID: %s\n", result.PlanID)
	}
	if result.Valid {
		fmt.Fprintln(env.out, "├── Valid: yes")
	} else {
		fmt.Fprintf(env.out, "├── Valid: no (%s)\n", result.Error)
	}

	fmt.Fprintf(env.out, "├── Steps (%d)\n", len(result.Steps))
	for i, step := range result.Steps {
		prefix := "│   ├──"
		if i == len(result.Steps)-1 {
			prefix = "│   └──"
		}
		line := fmt.Sprintf("%s %d. %s -> %s [%s]", prefix, step.Index, step.Tool, step.OutputKey, step.Source)
		if len(step.References) > 0 {
			line += " uses " + strings.Join(step.References, ", ")
		}
		if step.Overwrites {
			line += " (overwrites)"
		}
		fmt.Fprintln(env.out, line)
	}

	fmt.Fprintf(env.out, "├── Outputs: %s\n", orDash(strings.Join(result.Outputs, ", ")))
	if len(result.Missing) > 0 {
		fmt.Fprintf(env.out, "├── Missing tools: %s\n", strings.Join(result.Missing, ", "))
	}
	if len(result.Warnings) == 0 {
		fmt.Fprintln(env.out, "└── Warnings: none")
		return
	}
	fmt.Fprintf(env.out, "└── Warnings (%d)\n", len(result.Warnings))
	for _, w := range result.Warnings {
		fmt.Fprintf(env.out, "    - %s\n", w)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
