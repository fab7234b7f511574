package main

import (
	"math/rand"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

type simConfig struct {
	Targets     []string
	Start       time.Time
	Duration    time.Duration
	Interval    time.Duration
	FullOutages int
	Blips       int
	Seed        int64
}

type downWindow struct {
	target string // empty means every target
	start  time.Time
	end    time.Time
}

// simulate produces a deterministic probe stream for cfg. Full outages take every target down at
// once; blips take a single target down.
func simulate(cfg simConfig) []models.ProbeResult {
	if cfg.Interval <= 0 || cfg.Duration <= 0 || len(cfg.Targets) == 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var windows []downWindow
	for i := 0; i < cfg.FullOutages; i++ {
		windows = append(windows, randomWindow(rng, cfg, ""))
	}
	for i := 0; i < cfg.Blips; i++ {
		windows = append(windows, randomWindow(rng, cfg, cfg.Targets[rng.Intn(len(cfg.Targets))]))
	}

	steps := int(cfg.Duration / cfg.Interval)
	probes := make([]models.ProbeResult, 0, steps*len(cfg.Targets))
	for _, target := range cfg.Targets {
		base := 8 + rng.Float64()*20
		for i := 0; i < steps; i++ {
			requested := cfg.Start.Add(time.Duration(i) * cfg.Interval)
			if isDown(windows, target, requested) {
				probes = append(probes, models.Failure(target, int64(i), requested, nil, models.ErrorKindTimeout))
				continue
			}
			rtt := base + rng.ExpFloat64()*4
			if rng.Intn(200) == 0 {
				rtt += 300
			}
			probes = append(probes, models.Success(target, int64(i), requested, time.Duration(rtt*float64(time.Millisecond))))
		}
	}
	return probes
}

func randomWindow(rng *rand.Rand, cfg simConfig, target string) downWindow {
	length := time.Duration(2+rng.Intn(30)) * cfg.Interval
	if length > cfg.Duration {
		length = cfg.Duration
	}
	offset := time.Duration(rng.Int63n(int64(cfg.Duration-length) + 1))
	start := cfg.Start.Add(offset)
	return downWindow{target: target, start: start, end: start.Add(length)}
}

func isDown(windows []downWindow, target string, at time.Time) bool {
	for _, w := range windows {
		if w.target != "" && w.target != target {
			continue
		}
		if !at.Before(w.start) && at.Before(w.end) {
			return true
		}
	}
	return false
}
