package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/miradorstack/mirador-uptime/internal/api"
	"github.com/miradorstack/mirador-uptime/internal/config"
	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/metrics"
	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/patterns"
	"github.com/miradorstack/mirador-uptime/internal/probe"
	"github.com/miradorstack/mirador-uptime/internal/repo"
	"github.com/miradorstack/mirador-uptime/internal/services"
	"github.com/miradorstack/mirador-uptime/internal/session"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-uptime",
		slog.String("address", cfg.Server.Address),
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.Int("targets", len(cfg.Probe.Targets)))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open session store", slog.String("driver", cfg.Store.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	pipeline := engine.NewPipeline(logger, engine.Options{
		LatencyThresholdMs: cfg.Analysis.BadLatencyThresholdMs,
		LeniencyMs:         cfg.Analysis.TimeframeLeniencyMs,
		RTTBinSizeMs:       cfg.Analysis.RTTBinSizeMs,
		ConnectionTimeout:  cfg.Analysis.ConnectionTimeout,
	})

	sess := session.New(logger, pipeline, store, session.Options{
		Targets:    cfg.Probe.Targets,
		MaxHistory: cfg.Store.MaxHistory,
	})
	previous, err := store.Load(ctx, "")
	switch {
	case err == nil:
		if err := sess.Restore(ctx, previous); err != nil {
			logger.Warn("failed to restore session log", slog.String("session_id", previous.SessionID), slog.Any("error", err))
		}
	case errors.Is(err, repo.ErrNotFound):
		logger.Info("no previous session log", slog.String("session_id", sess.ID()))
	default:
		logger.Warn("failed to load session log", slog.Any("error", err))
	}

	ruleEngine, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		logger.Error("failed to load rule pack", slog.Any("error", err))
		os.Exit(1)
	}

	var prober *probe.Prober
	if cfg.Probe.Enabled {
		prober = probe.New(logger, sess, probe.Config{
			Targets:  cfg.Probe.Targets,
			Interval: cfg.Probe.Interval,
			Timeout:  cfg.Probe.Timeout,
		})
		for _, history := range sess.Snapshot() {
			if len(history.Probes) > 0 {
				prober.SeedSequence(history.Address, maxSequence(history.Probes)+1)
			}
		}
		prober.Start(ctx)
	}

	if err := sess.Start(ctx, session.Intervals{
		Outages:     cfg.Schedule.Outages,
		Correlation: cfg.Schedule.Correlation,
		Connection:  cfg.Schedule.Connection,
		Stats:       cfg.Schedule.Stats,
	}); err != nil {
		logger.Error("failed to start session", slog.Any("error", err))
		os.Exit(1)
	}

	analytics := services.NewAnalyticsService(logger, sess, ruleEngine, patterns.NewMiner(logger, 0))

	server, err := api.NewServer(cfg.Server, analytics)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	var httpServer *api.HTTPServer
	if cfg.Server.HTTPAddress != "" {
		httpServer = api.NewHTTPServer(cfg.Server.HTTPAddress, analytics, logger, cfg.Server.StatusPush)
		go func() {
			if serveErr := httpServer.Start(); serveErr != nil {
				logger.Error("http server exited", slog.Any("error", serveErr))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	if prober != nil {
		prober.Stop()
	}
	sess.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := sess.RunCorrelationPass(shutdownCtx); err != nil {
		logger.Warn("final session save failed", slog.Any("error", err))
	}

	server.Shutdown(shutdownCtx)
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("mirador-uptime stopped", slog.String("session_id", sess.ID()))
}

func maxSequence(probes []models.ProbeResult) int64 {
	max := probes[0].SequenceNumber
	for _, p := range probes[1:] {
		if p.SequenceNumber > max {
			max = p.SequenceNumber
		}
	}
	return max
}
