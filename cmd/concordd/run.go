package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/concordhq/concord/internal/actionlog"
	"github.com/concordhq/concord/internal/config"
	"github.com/concordhq/concord/internal/controlapi"
	"github.com/concordhq/concord/internal/engine"
	"github.com/concordhq/concord/internal/logging"
	"github.com/concordhq/concord/internal/metrics"
	"github.com/concordhq/concord/internal/observability"
	"github.com/concordhq/concord/internal/registry"
	"github.com/concordhq/concord/internal/scheduler"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the engine, registry bootstrap, and control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context())
		},
	}
}

func runDaemon(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return exitUsageErr{err}
	}

	logging.InitStructured(cfg.Observability.Logging.Format, cfg.Observability.Logging.Level)
	logging.SetLevelFromString(cfg.Observability.Logging.Level)

	if path := cfg.Observability.Logging.FiringAuditPath; path != "" {
		if err := logging.FiringAudit().SetOutput(path); err != nil {
			return fmt.Errorf("open firing audit log: %w", err)
		}
		defer logging.FiringAudit().Close()
	}

	if err := observability.Init(ctx, observability.Config{
		Enabled:     cfg.Observability.Tracing.Enabled,
		Exporter:    cfg.Observability.Tracing.Exporter,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		ServiceName: cfg.Observability.Tracing.ServiceName,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
	}); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.Shutdown(context.Background())

	if cfg.Observability.Metrics.Enabled {
		metrics.Init(cfg.Observability.Metrics.Namespace)
	}

	log, closeLog, err := buildActionLog(ctx, cfg.ActionLog)
	if err != nil {
		return fmt.Errorf("build action log: %w", err)
	}
	defer closeLog()

	reg := registry.New()
	if err := bootstrapRegistry(ctx, reg, cfg); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}

	eng := engine.New(log, reg)

	syncs, diags, err := loadSyncs(cfg)
	if err != nil {
		return fmt.Errorf("load sync manifest: %w", err)
	}
	if len(diags) > 0 {
		for _, d := range diags {
			logging.Op().Error("sync manifest diagnostic", "diagnostic", d.Error())
		}
		return exitValidationErr{fmt.Errorf("sync manifest failed validation: %d diagnostics", len(diags))}
	}
	eng.ReloadSyncs(syncs)
	logging.Op().Info("syncs installed", "count", len(syncs))

	sched := scheduler.New(reg)
	if err := sched.AddHeartbeatSweep("registry-heartbeat", cfg.Registry.HeartbeatCron); err != nil {
		return fmt.Errorf("schedule heartbeat sweep: %w", err)
	}
	sched.Start()

	// Hosting local concepts alongside the engine is an extension point:
	// embedding code registers handlers with grpcServer before Start.
	// concordd itself ships none.
	var grpcServer *registry.GRPCServer
	if cfg.GRPC.Enabled {
		grpcServer = registry.NewGRPCServer()
		if err := grpcServer.Start(cfg.GRPC.Addr); err != nil {
			return fmt.Errorf("start concept grpc server: %w", err)
		}
	}

	var metricsServer *http.Server
	if cfg.Observability.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{Addr: cfg.Observability.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Op().Error("metrics server stopped", "error", err)
			}
		}()
		logging.Op().Info("metrics server started", "addr", cfg.Observability.Metrics.Addr)
	}

	controlMux := http.NewServeMux()
	controlHandler := &controlapi.Handler{
		Engine: eng,
		Log:    log,
		Reload: func() ([]string, error) {
			syncs, diags, err := loadSyncs(cfg)
			if err != nil {
				return nil, err
			}
			if len(diags) > 0 {
				return diagnosticStrings(diags), nil
			}
			eng.ReloadSyncs(syncs)
			logging.Op().Info("syncs reloaded", "count", len(syncs))
			return nil, nil
		},
	}
	controlHandler.RegisterRoutes(controlMux)
	controlServer := &http.Server{
		Addr:    controlAddr(cfg),
		Handler: observability.HTTPMiddleware(controlMux),
	}
	go func() {
		if err := controlServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("control server stopped", "error", err)
		}
	}()
	logging.Op().Info("control server started", "addr", controlAddr(cfg))

	stopHotReload := func() {}
	if cfg.HotReload.Enabled && cfg.HotReload.SyncsPath != "" {
		stopHotReload = startHotReloadWatcher(cfg, eng)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logging.Op().Info("shutdown signal received")

	stopHotReload()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	controlServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}
	sched.Stop()

	return nil
}

func buildActionLog(ctx context.Context, cfg config.ActionLogConfig) (actionlog.Log, func(), error) {
	var log actionlog.Log
	switch cfg.Backend {
	case config.LogBackendPostgres:
		pg, err := actionlog.NewPostgresLog(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres action log: %w", err)
		}
		log = pg
	default:
		log = actionlog.NewMemoryLog(nil)
	}

	closeFn := func() {
		if closer, ok := log.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logging.Op().Error("close action log", "error", err)
			}
		}
	}

	if cfg.CacheAddr == "" {
		return log, closeFn, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.CacheAddr})
	cached := actionlog.NewCachedLog(log, client, cfg.CacheTTL)
	return cached, func() {
		client.Close()
		closeFn()
	}, nil
}

func bootstrapRegistry(ctx context.Context, reg *registry.Registry, cfg *config.Config) error {
	endpoints := cfg.Registry.Endpoints
	if cfg.AWS.Enabled {
		resolver, err := config.NewSecretResolver(ctx, cfg.AWS)
		if err != nil {
			return fmt.Errorf("build aws secret resolver: %w", err)
		}
		endpoints, err = resolver.ResolveEndpoints(ctx, endpoints)
		if err != nil {
			return fmt.Errorf("resolve endpoint secrets: %w", err)
		}
	}

	for _, ep := range endpoints {
		queryMode := registry.QueryModeLite
		if ep.QueryMode == string(registry.QueryModeGraphQL) {
			queryMode = registry.QueryModeGraphQL
		}

		transport, err := registry.DialGRPC(ctx, ep.Target, queryMode)
		if err != nil {
			return fmt.Errorf("dial concept %s: %w", ep.URI, err)
		}
		if _, err := reg.Register(ep.URI, transport, ep.Capabilities, queryMode); err != nil {
			return fmt.Errorf("register concept %s: %w", ep.URI, err)
		}
	}
	return nil
}
