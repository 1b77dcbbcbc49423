package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"expiring-kv/internal/api"
	"expiring-kv/internal/clock"
	"expiring-kv/internal/config"
	"expiring-kv/internal/logs"
	"expiring-kv/internal/maps"
	"expiring-kv/internal/metrics"
	"expiring-kv/internal/store"
	"expiring-kv/internal/ttl"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	// Config
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	// Root context, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger
	level, err := logs.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatal(err)
	}
	logger := logs.NewLogger(cfg.Log.BufferSize, level)
	logger.SetOutput(os.Stdout)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	// Maps
	registry := maps.NewRegistry(cfg, clock.System{}, metricsRegistry, logger)
	for name := range cfg.Maps {
		registry.Map(name)
	}

	// Reaper
	reaper := ttl.NewReaper(
		func() []ttl.Target {
			return lo.Map(registry.Stores(), func(s *store.Store, _ int) ttl.Target { return s })
		},
		cfg.Reaper,
		clock.System{},
		logger,
		metricsRegistry,
	)

	// API
	handler := api.NewHandler(registry, metricsRegistry, logger)
	mux := http.NewServeMux()

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.RegisterRoutes(mux, handler),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		reaper.Start(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server started", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "error", err.Error())
		os.Exit(1)
	}
}
