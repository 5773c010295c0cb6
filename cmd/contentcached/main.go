package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sparrowflix/contentcache/internal/cache"
	"github.com/sparrowflix/contentcache/internal/config"
	"github.com/sparrowflix/contentcache/internal/logging"
	"github.com/sparrowflix/contentcache/internal/metrics"
	"github.com/sparrowflix/contentcache/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "CONTENTCACHE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	durable, err := buildDurableTier(logger.With(slog.String("agent", "tier_factory")), cfg.Server.Cache)
	if err != nil {
		logger.Error("unable to construct durable tier", slog.Any("error", err))
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	manager := cache.NewManager(cache.Options{
		Durable:    durable,
		Policies:   cache.NewPolicyTable(cfg.Policies),
		MaxEntries: cfg.Server.Cache.FastMaxEntries,
		Logger:     logger,
		Metrics:    metricsRecorder,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := manager.Close(shutdownCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	var policiesWatcher *config.PoliciesWatcher
	if strings.TrimSpace(cfg.Server.Cache.PoliciesFile) != "" {
		watcher, err := loader.WatchPolicies(ctx, cfg, func(bundle config.PolicyBundle) {
			manager.ReplacePolicies(cache.NewPolicyTable(bundle.Policies))
		}, func(err error) {
			if err != nil {
				logger.Error("policies watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("policies watcher setup failed", slog.Any("error", err))
		} else {
			policiesWatcher = watcher
			defer policiesWatcher.Stop()
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRecorder.Handler())
	mux.Handle("/", server.NewDiagnosticsHandler(manager))

	srv, err := server.New(cfg, logger, mux)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildDurableTier selects the durable tier backend. A misconfigured external
// backend is fatal at startup rather than silently degraded.
func buildDurableTier(logger *slog.Logger, cfg config.CacheConfig) (cache.DurableTier, error) {
	switch strings.ToLower(cfg.Backend) {
	case "valkey":
		tier, err := cache.NewValkeyDurable(cfg.Valkey)
		if err != nil {
			return nil, err
		}
		logger.Info("durable tier ready", slog.String("backend", "valkey"), slog.String("address", cfg.Valkey.Address))
		return tier, nil
	case "bolt":
		tier, err := cache.NewBoltDurable(cfg.Bolt.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("durable tier ready", slog.String("backend", "bolt"), slog.String("path", cfg.Bolt.Path))
		return tier, nil
	case "memory", "":
		logger.Warn("durable tier is in-process memory, entries will not survive restarts")
		return cache.NewMemoryDurable(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}
