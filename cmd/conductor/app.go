// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/jllopis/conductor/pkg/config"
	"github.com/jllopis/conductor/pkg/connectors"
	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/errors"
	"github.com/jllopis/conductor/pkg/guardrails"
	"github.com/jllopis/conductor/pkg/mcp"
	"github.com/jllopis/conductor/pkg/memory"
	"github.com/jllopis/conductor/pkg/memory/qdrant"
	"github.com/jllopis/conductor/pkg/planner"
	"github.com/jllopis/conductor/pkg/registry"
	"github.com/jllopis/conductor/pkg/resilience"
	"github.com/jllopis/conductor/pkg/task"
	"github.com/jllopis/conductor/pkg/telemetry"
	"github.com/jllopis/conductor/pkg/tools"
)

// app holds the components a command needs, built once from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	emitter  core.EventEmitter
	registry *registry.Registry
	runner   *task.Executor
	executor *planner.Executor
	planner  *swappablePlanner
	memory   memory.Store
	audit    planner.AuditStore
	// remote maps a tool origin such as "mcp:lint" to the names it registered.
	remote map[string][]string

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry.New(),
		remote:   make(map[string][]string),
	}

	emitters := core.MultiEmitter{telemetry.NewLogEmitter(logger, slog.LevelDebug)}
	if metrics, err := telemetry.NewMetricsEmitter(); err != nil {
		logger.Warn("metrics disabled", slog.Any("error", err))
	} else {
		emitters = append(emitters, metrics)
	}
	a.emitter = emitters

	store, err := a.openMemory(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	if len(cfg.Memory.Redact) > 0 {
		redactor, err := guardrails.New(guardrails.ParseMode(cfg.Memory.RedactMode), guardrails.WithTypes(cfg.Memory.Redact...))
		if err != nil {
			a.close()
			return nil, errors.New(errors.CodeInvalidArguments, "memory redaction", err)
		}
		store = guardrails.NewRedactingStore(store, redactor, logger)
	}
	a.memory = store

	if a.audit, err = a.openAudit(); err != nil {
		a.close()
		return nil, err
	}

	a.runner = task.NewExecutor(a.executorOptions()...)
	tools.RegisterDefaults(a.registry, tools.Options{
		Root:         cfg.Tools.Root,
		SummaryLines: cfg.Tools.SummaryLines,
		SummaryChars: cfg.Tools.SummaryChars,
		Memory:       a.memory,
		Runner:       a.runner,
		AllowShell:   cfg.Tools.AllowShell,
	})
	if err := a.loadConnectors(); err != nil {
		a.close()
		return nil, err
	}
	a.connectMCP(ctx)

	rules, err := loadRules(cfg.Planner)
	if err != nil {
		a.close()
		return nil, err
	}
	a.planner = newSwappablePlanner(planner.NewKeywordPlanner(rules...))

	opts := []planner.Option{
		planner.WithRunner(a.runner),
		planner.WithEventEmitter(a.emitter),
		planner.WithLogger(logger),
	}
	if a.audit != nil {
		opts = append(opts, planner.WithAuditStore(a.audit))
	}
	a.executor = planner.NewExecutor(a.registry, opts...)
	return a, nil
}

func (a *app) executorOptions() []task.Option {
	exec := a.cfg.Executor
	opts := []task.Option{
		task.WithLogger(a.logger),
		task.WithEventEmitter(a.emitter),
		task.WithRetryPolicy(task.RetryPolicy{MaxRetries: exec.MaxRetries, BackoffUnit: exec.Backoff}),
	}
	if exec.Timeout > 0 {
		opts = append(opts, task.WithTimeout(exec.Timeout))
	}
	if exec.BreakerThreshold > 0 {
		opts = append(opts, task.WithCircuitBreaker(resilience.CircuitBreakerConfig{
			FailureThreshold: exec.BreakerThreshold,
			SuccessThreshold: 1,
			Timeout:          exec.BreakerCooldown,
		}))
	}
	return opts
}

func (a *app) openMemory(ctx context.Context) (memory.Store, error) {
	mc := a.cfg.Memory
	switch mc.Provider {
	case "file":
		return memory.NewFileStore(mc.Path), nil
	case "sqlite":
		store, err := memory.OpenSQLiteStore(mc.Path)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "qdrant":
		store, err := qdrant.New(mc.QdrantAddr, mc.Collection)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return memory.NewInMemory(), nil
	}
}

func (a *app) openAudit() (planner.AuditStore, error) {
	ac := a.cfg.Audit
	switch ac.Provider {
	case "memory":
		return planner.NewMemoryAuditStore(), nil
	case "sqlite":
		store, db, err := planner.OpenSQLiteAuditStore(ac.Path)
		if err != nil {
			return nil, errors.New(errors.CodeInternal, "open audit store", err).WithContext("path", ac.Path)
		}
		a.closers = append(a.closers, db.Close)
		return store, nil
	default:
		return nil, nil
	}
}

// connectMCP registers the tools of every configured server. A server that
// cannot be reached is logged and skipped; steps naming its tools then fail
// with TOOL_NOT_FOUND.
func (a *app) connectMCP(ctx context.Context) {
	names := make([]string, 0, len(a.cfg.MCP.Servers))
	for name := range a.cfg.MCP.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	clientOpts := []mcp.ClientOption{mcp.WithRetry(a.cfg.Executor.MaxRetries, a.cfg.Executor.Backoff)}
	if a.cfg.Executor.Timeout > 0 {
		clientOpts = append(clientOpts, mcp.WithTimeout(a.cfg.Executor.Timeout))
	}

	for _, name := range names {
		srv := a.cfg.MCP.Servers[name]
		var (
			client *mcp.Client
			err    error
		)
		switch srv.Transport {
		case "stdio":
			client, err = mcp.NewClientWithStdio(srv.Command, srv.Args, clientOpts...)
		default:
			client, err = mcp.NewClientWithStreamableHTTP(srv.URL, clientOpts...)
		}
		if err != nil {
			a.logger.Warn("mcp server unavailable", slog.String("server", name), slog.Any("error", err))
			continue
		}
		a.closers = append(a.closers, client.Close)

		registered, err := mcp.RegisterRemoteTools(ctx, a.registry, client, srv.Prefix)
		if err != nil {
			a.logger.Warn("mcp tool discovery failed", slog.String("server", name), slog.Any("error", err))
		}
		a.remote["mcp:"+name] = registered
		a.logger.Info("mcp tools registered", slog.String("server", name), slog.Int("count", len(registered)))
	}
}

// loadConnectors registers the operations of every configured OpenAPI
// document. Unlike MCP servers these are local files, so a bad document
// fails startup.
func (a *app) loadConnectors() error {
	names := make([]string, 0, len(a.cfg.Connectors.OpenAPI))
	for name := range a.cfg.Connectors.OpenAPI {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		oc := a.cfg.Connectors.OpenAPI[name]
		opts := []connectors.Option{connectors.WithRunner(a.runner), connectors.WithPrefix(oc.Prefix)}
		if oc.BaseURL != "" {
			opts = append(opts, connectors.WithBaseURL(oc.BaseURL))
		}
		conn, err := connectors.NewFromFile(oc.Spec, opts...)
		if err != nil {
			return errors.As(err).WithContext("connector", name)
		}
		registered := make([]string, 0)
		for _, tool := range conn.Tools() {
			a.registry.Register(tool)
			registered = append(registered, tool.Name())
		}
		a.remote["openapi:"+name] = registered
		a.logger.Info("openapi tools registered", slog.String("connector", name), slog.Int("count", len(registered)))
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", slog.Any("error", err))
		}
	}
	a.closers = nil
}

func loadRules(pc config.PlannerConfig) ([]planner.Rule, error) {
	if pc.RulesFile == "" {
		return nil, nil
	}
	return planner.LoadRules(pc.RulesFile)
}

// swappablePlanner lets a config reload replace the keyword rules while
// the agent loop keeps running.
type swappablePlanner struct {
	current atomic.Pointer[planner.KeywordPlanner]
}

func newSwappablePlanner(p *planner.KeywordPlanner) *swappablePlanner {
	s := &swappablePlanner{}
	s.current.Store(p)
	return s
}

func (s *swappablePlanner) GeneratePlan(ctx context.Context, goal string) (*planner.Plan, bool) {
	return s.current.Load().GeneratePlan(ctx, goal)
}

func (s *swappablePlanner) Swap(p *planner.KeywordPlanner) {
	s.current.Store(p)
}
