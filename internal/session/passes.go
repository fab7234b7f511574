package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/metrics"
	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// Intervals sets the cadence of each pass. A non-positive interval disables that pass's ticker.
type Intervals struct {
	Outages     time.Duration
	Correlation time.Duration
	Connection  time.Duration
	Stats       time.Duration
}

// RunOutagePass refreshes the per-target outages.
func (s *Session) RunOutagePass() {
	start := time.Now()
	targetOutages := s.pipeline.DetectOutages(s.Snapshot())
	metrics.ObservePass(metrics.PassOutages, time.Since(start))

	s.resMu.Lock()
	s.results.targetOutages = targetOutages
	s.resMu.Unlock()
}

// RunCorrelationPass refreshes per-target and full outages, then persists the session log built
// from the snapshot it analysed.
func (s *Session) RunCorrelationPass(ctx context.Context) error {
	start := time.Now()
	histories := s.Snapshot()
	targetOutages := s.pipeline.DetectOutages(histories)
	full := s.pipeline.Correlate(targetOutages)
	metrics.ObservePass(metrics.PassCorrelation, time.Since(start))
	metrics.SetFullOutages(len(full))

	s.resMu.Lock()
	previous := s.results.fullOutages
	s.results.targetOutages = targetOutages
	s.results.fullOutages = full
	s.resMu.Unlock()

	for _, outage := range newOutages(previous, full, utils.MillisToDuration(s.pipeline.Options().LeniencyMs)) {
		s.logger.Info("full outage detected",
			slog.Time("start", outage.StartTime),
			slog.Time("end", outage.EndTime),
			slog.Float64("duration_seconds", outage.DurationSeconds))
	}

	return s.save(ctx, s.logFrom(histories, targetOutages, full))
}

// RunConnectionPass refreshes live connection state and logs transitions.
func (s *Session) RunConnectionPass() {
	start := time.Now()
	now := s.now()
	conn := s.pipeline.Connection(s.Snapshot(), now)
	metrics.ObservePass(metrics.PassConnection, time.Since(start))

	s.resMu.Lock()
	previous := s.results.connection
	s.results.connection = conn
	s.results.generatedAt = now
	s.resMu.Unlock()

	prevByTarget := make(map[string]models.ConnectionStatus, len(previous.Targets))
	for _, target := range previous.Targets {
		prevByTarget[target.Target] = target.Status
	}
	for _, target := range conn.Targets {
		metrics.SetConnection(target.Target, target.Status == models.StatusConnected)
		if before, ok := prevByTarget[target.Target]; ok && before != target.Status {
			s.logger.Info("target status changed",
				slog.String("target", target.Target),
				slog.String("from", string(before)),
				slog.String("to", string(target.Status)))
		}
	}
	metrics.SetAggregateConnected(conn.Status == models.StatusConnected)
	if previous.Status != conn.Status {
		s.logger.Info("connection status changed",
			slog.String("from", string(previous.Status)),
			slog.String("to", string(conn.Status)))
	}
}

// RunStatsPass refreshes the per-target statistics.
func (s *Session) RunStatsPass() {
	start := time.Now()
	stats := s.pipeline.Stats(s.Snapshot())
	metrics.ObservePass(metrics.PassStats, time.Since(start))

	for _, entry := range stats {
		if entry.Stats != nil {
			metrics.SetUptime(entry.Target, entry.Stats.UptimeFraction)
		}
	}

	s.resMu.Lock()
	s.results.stats = stats
	s.resMu.Unlock()
}

// RunAll runs every pass once, connection first so the report has a generation time.
func (s *Session) RunAll(ctx context.Context) error {
	s.RunConnectionPass()
	s.RunOutagePass()
	s.RunStatsPass()
	return s.RunCorrelationPass(ctx)
}

// Persist writes the current session log when a store is configured.
func (s *Session) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	return s.save(ctx, s.Log())
}

func (s *Session) save(ctx context.Context, log models.SessionLog) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, log); err != nil {
		s.logger.Warn("persist session log failed", slog.String("session_id", s.id), slog.Any("error", err))
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Start launches one ticker per pass. It returns an error if the session is already running.
func (s *Session) Start(ctx context.Context, iv Intervals) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh != nil {
		return fmt.Errorf("session %s already started", s.id)
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	s.stopCh = stopCh
	s.doneCh = doneCh

	passes := []struct {
		interval time.Duration
		run      func(context.Context)
	}{
		{iv.Connection, func(context.Context) { s.RunConnectionPass() }},
		{iv.Outages, func(context.Context) { s.RunOutagePass() }},
		{iv.Stats, func(context.Context) { s.RunStatsPass() }},
		{iv.Correlation, func(ctx context.Context) { _ = s.RunCorrelationPass(ctx) }},
	}

	var wg sync.WaitGroup
	for _, pass := range passes {
		if pass.interval <= 0 {
			continue
		}
		wg.Add(1)
		go func(interval time.Duration, run func(context.Context)) {
			defer wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				case <-ticker.C:
					run(ctx)
				}
			}
		}(pass.interval, pass.run)
	}
	go func() {
		wg.Wait()
		close(doneCh)
	}()

	s.logger.Info("session started", slog.String("session_id", s.id), slog.Int("targets", len(s.Targets())))
	return nil
}

// Stop halts the pass tickers and waits for in-flight passes to finish.
func (s *Session) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.stopCh = nil
	s.doneCh = nil
	s.logger.Info("session stopped", slog.String("session_id", s.id))
}

// newOutages returns the outages in current that overlap none of previous, allowing slack on
// either side. An outage still in progress grows and its bounds move between passes, so identity
// is overlap rather than equal bounds.
func newOutages(previous, current []models.FullOutage, slack time.Duration) []models.FullOutage {
	var out []models.FullOutage
	for _, outage := range current {
		seen := false
		for _, prev := range previous {
			if !outage.StartTime.After(prev.EndTime.Add(slack)) && !outage.EndTime.Before(prev.StartTime.Add(-slack)) {
				seen = true
				break
			}
		}
		if !seen {
			out = append(out, outage)
		}
	}
	return out
}
