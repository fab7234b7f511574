package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/repo"
	"github.com/miradorstack/mirador-uptime/internal/session"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

func main() {
	var (
		driver   = flag.String("driver", "json", "Store driver: json or sqlite")
		path     = flag.String("path", "data/session.json", "Store path or DSN")
		targets  = flag.String("targets", "8.8.8.8:53,1.1.1.1:53", "Comma separated target list")
		duration = flag.Duration("duration", time.Hour, "Simulated session length")
		interval = flag.Duration("interval", time.Second, "Simulated probe interval")
		outages  = flag.Int("outages", 3, "Number of full outages to inject")
		blips    = flag.Int("blips", 5, "Number of single-target outages to inject")
		seed     = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	logger := utils.NewLogger("info", false)
	ctx := context.Background()

	store, err := repo.Open(ctx, *driver, *path)
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", *driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	cfg := simConfig{
		Targets:     strings.Split(*targets, ","),
		Start:       time.Now().UTC().Add(-*duration).Truncate(time.Second),
		Duration:    *duration,
		Interval:    *interval,
		FullOutages: *outages,
		Blips:       *blips,
		Seed:        *seed,
	}
	probes := simulate(cfg)

	end := cfg.Start.Add(cfg.Duration)
	sess := session.New(logger, engine.NewPipeline(logger, engine.Options{
		LatencyThresholdMs: 250,
		LeniencyMs:         500,
		RTTBinSizeMs:       5,
		ConnectionTimeout:  5 * time.Second,
	}), store, session.Options{
		Targets: cfg.Targets,
		Clock:   func() time.Time { return end },
	})
	for _, probe := range probes {
		if err := sess.Append(probe); err != nil {
			logger.Error("rejected simulated probe", slog.Any("error", err))
			os.Exit(1)
		}
	}
	if err := sess.RunAll(ctx); err != nil {
		logger.Error("failed to save session", slog.Any("error", err))
		os.Exit(1)
	}

	report := sess.Report()
	logger.Info("session seeded",
		slog.String("session_id", sess.ID()),
		slog.Int("probes", len(probes)),
		slog.Int("full_outages", len(report.FullOutages)),
		slog.String("store", *path))
}
