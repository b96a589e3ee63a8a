// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/planner"
)

type toolRow struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description"`
}

func runToolsCommand(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) > 0 {
		return NewInvalidArgumentError("tools", fmt.Sprintf("unexpected args: %v", args))
	}
	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	origin := make(map[string]string)
	for source, names := range a.remote {
		for _, name := range names {
			origin[name] = source
		}
	}
	infos := a.registry.List()
	rows := make([]toolRow, 0, len(infos))
	for _, info := range infos {
		source := origin[info.Name]
		if source == "" {
			source = "builtin"
		}
		rows = append(rows, toolRow{Name: info.Name, Source: source, Description: info.Description})
	}
	if env.global.JSON {
		return printJSON(env.out, rows)
	}
	writer := newTabWriter(env.out)
	writeRow(writer, "NAME", "SOURCE", "DESCRIPTION")
	for _, row := range rows {
		writeRow(writer, row.Name, row.Source, truncateMessage(row.Description, 80))
	}
	return writer.Flush()
}

func runMemoryCommand(ctx context.Context, env *cliEnv, args []string) error {
	usage := "usage: conductor memory <recent [-limit N] [-all]|tag <tag>|get <key>>"
	if len(args) == 0 {
		return NewInvalidArgumentError("memory", usage)
	}

	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()

	var entries []memory.Entry
	switch args[0] {
	case "recent":
		fs := flag.NewFlagSet("memory recent", flag.ContinueOnError)
		limit := fs.Int("limit", 10, "Maximum entries")
		all := fs.Bool("all", false, "Show every entry")
		if err := fs.Parse(args[1:]); err != nil {
			return NewInvalidArgumentError("memory recent", err.Error())
		}
		if *all {
			entries, err = memory.ReadAll(ctx, a.memory)
		} else {
			entries, err = a.memory.ReadRecent(ctx, *limit)
		}
	case "tag":
		if len(args) != 2 {
			return NewInvalidArgumentError("memory tag", usage)
		}
		entries, err = a.memory.SearchByTag(ctx, args[1])
	case "get":
		if len(args) != 2 {
			return NewInvalidArgumentError("memory get", usage)
		}
		entry, found, gerr := a.memory.ReadByKey(ctx, args[1])
		if gerr != nil {
			return gerr
		}
		if !found {
			return NewCLIError(errors.New(errors.CodeMemoryError, "no entry for key "+strconv.Quote(args[1]), nil),
				"list keys with 'conductor memory recent'")
		}
		entries = []memory.Entry{entry}
	default:
		return NewInvalidArgumentError("memory", usage)
	}
	if err != nil {
		return err
	}

	if env.global.JSON {
		if entries == nil {
			entries = []memory.Entry{}
		}
		return printJSON(env.out, entries)
	}
	writer := newTabWriter(env.out)
	writeRow(writer, "KEY", "KIND", "TAGS", "TIMESTAMP", "VALUE")
	for _, e := range entries {
		writeRow(writer, e.Key, e.Kind, strings.Join(e.Tags, ","), formatTime(e.Timestamp), truncateMessage(e.Value, 80))
	}
	return writer.Flush()
}

func runAuditCommand(ctx context.Context, env *cliEnv, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	runID := fs.String("run", "", "Run ID filter")
	planID := fs.String("plan", "", "Plan ID filter")
	status := fs.String("status", "", "Status filter (started, completed, failed)")
	limit := fs.Int("limit", 50, "Maximum events")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("audit", err.Error())
	}

	a, err := newApp(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer a.close()
	if a.audit == nil {
		return NewCLIError(errors.New(errors.CodeInvalidArguments, "audit store is disabled", nil),
			"set audit.provider to sqlite to keep events between runs")
	}

	events, err := a.audit.List(ctx, planner.AuditFilter{
		RunID:  *runID,
		PlanID: *planID,
		Status: *status,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if env.global.JSON {
		if events == nil {
			events = []planner.AuditEvent{}
		}
		return printJSON(env.out, events)
	}
	writer := newTabWriter(env.out)
	writeRow(writer, "RUN", "STEP", "TOOL", "KEY", "STATUS", "CODE", "STARTED")
	for _, ev := range events {
		writeRow(writer, ev.RunID, strconv.Itoa(ev.StepIndex), ev.ToolName, ev.OutputKey, ev.Status, string(ev.Code), formatTime(ev.StartedAt))
	}
	return writer.Flush()
}
