package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/flowdeck/flowdeck/internal/expressions"
	"github.com/flowdeck/flowdeck/internal/live"
	"github.com/flowdeck/flowdeck/internal/logging"
	"github.com/flowdeck/flowdeck/internal/runstate"
	"github.com/flowdeck/flowdeck/internal/runtime"
	"github.com/flowdeck/flowdeck/internal/store"
	"github.com/flowdeck/flowdeck/internal/streaming"
	"github.com/flowdeck/flowdeck/internal/triggers"
	"github.com/flowdeck/flowdeck/internal/validation"
	"github.com/flowdeck/flowdeck/pkg/mcp"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		printVersion()
		return
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "flowdeck:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	// Event plumbing.
	hub := streaming.NewMemoryHub()
	states := runstate.NewStore()
	eventLog := store.NewEventLog(st)

	// Runtime boundary.
	rt := runtime.NewHTTPRuntime(cfg.RuntimeURL, time.Duration(cfg.RuntimeTimeoutMs)*time.Millisecond)
	service := runtime.NewService(rt, states, st, logger)
	liveCtl := live.NewController(rt, states, logger)
	approvals := runtime.NewApprovalInbox()

	ingress := runtime.NewEventIngress(cfg.RuntimeURL, hub, logger)
	go func() {
		if err := ingress.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event ingress stopped", slog.String("error", err.Error()))
		}
	}()

	dispatcher := runtime.NewDispatcher(runtime.DispatcherDeps{
		Hub:       hub,
		States:    states,
		Live:      liveCtl,
		Approvals: approvals,
		Events:    eventLog,
		Pending:   st,
		Logger:    logger,
	})
	go func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("dispatcher stopped", slog.String("error", err.Error()))
		}
	}()

	// Validation pipeline with node-config prechecks.
	schemas, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return fmt.Errorf("compile graph schema: %w", err)
	}
	checker, err := expressions.NewChecker(schemas)
	if err != nil {
		return fmt.Errorf("create config checker: %w", err)
	}
	validator, err := validation.NewGraphValidator(checker)
	if err != nil {
		return fmt.Errorf("create validator: %w", err)
	}

	// Scheduled triggers.
	if cfg.Triggers {
		sched := triggers.NewScheduler(st, service, logger)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start trigger scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// MCP surface over stdio.
	srv := mcp.NewFlowdeckServer(mcp.FlowdeckServerDeps{
		Store:     st,
		Validator: validator,
		Runtime:   service,
		Live:      liveCtl,
		Hub:       hub,
		States:    states,
		Approvals: approvals,
		History:   eventLog,
		Logger:    logger,
	})

	notifier := mcp.NewMCPNotifier(srv.MCPServer(), srv.Sessions())
	forwarder := mcp.NewEventForwarder(hub, notifier, srv.Sessions(), logger)
	go func() {
		if err := forwarder.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event forwarder stopped", slog.String("error", err.Error()))
		}
	}()

	logger.Info("flowdeck started",
		slog.String("db_path", cfg.DBPath),
		slog.String("runtime_url", cfg.RuntimeURL),
	)

	return srv.Serve(ctx)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	// Stdout carries the MCP stdio transport; logs go to stderr.
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}
