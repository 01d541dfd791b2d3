// Package main implements the entry point for the opscore gateway:
// batched entity reads, real-time alert fan-out, and correlation graph
// walks behind one HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/c360/opscore/auth"
	"github.com/c360/opscore/config"
	"github.com/c360/opscore/correlation"
	"github.com/c360/opscore/event"
	"github.com/c360/opscore/fanout"
	"github.com/c360/opscore/gateway/graphql"
	"github.com/c360/opscore/graph"
	"github.com/c360/opscore/metric"
	"github.com/c360/opscore/natsclient"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "opscore"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting opscore",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	cfg, err := config.NewLoader(cliCfg.ConfigPath).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := metric.NewRegistry()

	natsClient, err := connectNATS(ctx, cfg, logger, registry)
	if err != nil {
		return err
	}
	if natsClient != nil {
		defer natsClient.Close()
	}

	graphStore, err := buildGraphStore(cfg, natsClient, logger, registry)
	if err != nil {
		return err
	}

	walker, err := correlation.New(graphStore, cfg.WalkerConfig(),
		correlation.WithLogger(logger),
		correlation.WithMetrics(registry))
	if err != nil {
		return fmt.Errorf("create walker: %w", err)
	}

	broker, err := fanout.New[event.Event](
		fanout.WithQueueSize[event.Event](cfg.Fanout.QueueSize),
		fanout.WithLogger[event.Event](logger),
		fanout.WithMetrics[event.Event](registry))
	if err != nil {
		return fmt.Errorf("create broker: %w", err)
	}
	defer broker.Close()

	resolverOpts := []graphql.ResolverOption{
		graphql.WithWalker(walker),
		graphql.WithLoaderConfig(cfg.LoaderConfig()),
		graphql.WithResolverLogger(logger),
		graphql.WithCoreMetrics(registry.Core),
	}

	if cfg.Export.Enabled && natsClient != nil {
		exporter, err := graphql.NewExporter(natsClient, cfg.ExporterConfig(), logger, registry)
		if err != nil {
			return fmt.Errorf("create exporter: %w", err)
		}
		if err := exporter.Start(ctx); err != nil {
			return fmt.Errorf("start exporter: %w", err)
		}
		defer exporter.Stop(5 * time.Second)
		resolverOpts = append(resolverOpts, graphql.WithExporter(exporter))
	}

	// Identity arrives on trusted headers from the fronting proxy; the
	// gateway itself only enforces the action policy.
	authorizer := auth.RolePolicy{Grants: map[string][]auth.Action{
		"viewer":  {auth.ActionRead, auth.ActionSubscribe},
		"analyst": {auth.ActionRead, auth.ActionSubscribe, auth.ActionWrite},
	}}

	entityStore := graphql.NewMemoryEntityStore()

	resolver, err := graphql.NewResolver(entityStore, authorizer, broker, resolverOpts...)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	server, err := graphql.NewServer(cfg.Gateway, resolver, logger)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	server.SetMetricsHandler(registry.Handler())
	if err := server.Setup(); err != nil {
		return fmt.Errorf("setup server: %w", err)
	}

	ready := make(chan struct{})
	errChan := make(chan error, 1)
	go func() { errChan <- server.Start(ctx, ready) }()

	select {
	case <-ready:
		slog.Info("Gateway ready", "address", cfg.Gateway.BindAddress)
	case err := <-errChan:
		return fmt.Errorf("server start: %w", err)
	}

	<-ctx.Done()
	slog.Info("Shutdown signal received")

	if err := server.Stop(cliCfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("server stop: %w", err)
	}
	return <-errChan
}

// connectNATS connects when anything needs the broker. Returns nil when
// neither the graph backend nor event export uses NATS.
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry *metric.Registry) (*natsclient.Client, error) {
	if cfg.Graph.Backend != config.GraphBackendNATS && !cfg.Export.Enabled {
		return nil, nil
	}

	opts := append(cfg.NATSOptions(),
		natsclient.WithLogger(logger),
		natsclient.WithCoreMetrics(registry.Core))

	client, err := natsclient.NewClient(cfg.NATS.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Connect(connCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return client, nil
}

func buildGraphStore(cfg *config.Config, natsClient *natsclient.Client, logger *slog.Logger, registry *metric.Registry) (graph.Store, error) {
	switch cfg.Graph.Backend {
	case config.GraphBackendNATS:
		store, err := graph.NewKVStore(natsClient, cfg.KVConfig(),
			graph.WithKVLogger(logger),
			graph.WithKVMetrics(registry))
		if err != nil {
			return nil, fmt.Errorf("create graph store: %w", err)
		}
		return store, nil
	default:
		slog.Info("Using in-memory graph store")
		return graph.NewMemoryStore(), nil
	}
}
