package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-uptime/internal/api"
	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/patterns"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// ReportProvider exposes the latest analysis results of a session.
type ReportProvider interface {
	ID() string
	StartedAt() time.Time
	Report() engine.Report
}

// AnalyticsService implements the UptimeAnalytics gRPC service and the HTTP report source.
type AnalyticsService struct {
	logger    *slog.Logger
	reports   ReportProvider
	rules     *engine.RuleEngine
	miner     *patterns.Miner
	latencies *utils.LatencyTracker
}

var (
	_ api.UptimeAnalyticsServer = (*AnalyticsService)(nil)
	_ api.ReportSource          = (*AnalyticsService)(nil)
)

// NewAnalyticsService constructs the analytics facade. rules may be nil.
func NewAnalyticsService(logger *slog.Logger, reports ReportProvider, rules *engine.RuleEngine, miner *patterns.Miner) *AnalyticsService {
	if logger == nil {
		logger = slog.Default()
	}
	if miner == nil {
		miner = patterns.NewMiner(logger, 0)
	}
	return &AnalyticsService{
		logger:    logger,
		reports:   reports,
		rules:     rules,
		miner:     miner,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// StatusReport returns live connection state plus any rule notices.
func (s *AnalyticsService) StatusReport(ctx context.Context) (api.StatusReport, error) {
	if err := s.ready(ctx); err != nil {
		return api.StatusReport{}, err
	}
	report := s.reports.Report()
	notices := s.rules.Evaluate(report)
	if notices == nil {
		notices = []engine.Notice{}
	}
	return api.StatusReport{
		SessionID:   s.reports.ID(),
		GeneratedAt: report.GeneratedAt,
		Connection:  report.Connection,
		Notices:     notices,
	}, nil
}

// OutageReport returns per-target and full outages.
func (s *AnalyticsService) OutageReport(ctx context.Context) (api.OutageReport, error) {
	if err := s.ready(ctx); err != nil {
		return api.OutageReport{}, err
	}
	report := s.reports.Report()
	return api.OutageReport{
		SessionID:     s.reports.ID(),
		TargetOutages: api.ToOutageViews(report.TargetOutages),
		FullOutages:   nonNilOutages(report),
	}, nil
}

// StatsReport returns per-target statistics.
func (s *AnalyticsService) StatsReport(ctx context.Context) (api.StatsReport, error) {
	if err := s.ready(ctx); err != nil {
		return api.StatsReport{}, err
	}
	return api.StatsReport{
		SessionID: s.reports.ID(),
		Stats:     s.reports.Report().Stats,
	}, nil
}

// SummaryReport returns the outage summary.
func (s *AnalyticsService) SummaryReport(ctx context.Context) (api.SummaryReport, error) {
	if err := s.ready(ctx); err != nil {
		return api.SummaryReport{}, err
	}
	report := s.reports.Report()
	return api.SummaryReport{
		SessionID: s.reports.ID(),
		StartedAt: s.reports.StartedAt(),
		Summary:   s.miner.Summarize(report.FullOutages, report.TargetOutages),
	}, nil
}

// GetStatus implements the gRPC method.
func (s *AnalyticsService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return serve(s, ctx, "GetStatus", s.StatusReport)
}

// ListOutages implements the gRPC method.
func (s *AnalyticsService) ListOutages(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return serve(s, ctx, "ListOutages", s.OutageReport)
}

// GetStats implements the gRPC method.
func (s *AnalyticsService) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return serve(s, ctx, "GetStats", s.StatsReport)
}

// GetSummary implements the gRPC method.
func (s *AnalyticsService) GetSummary(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return serve(s, ctx, "GetSummary", s.SummaryReport)
}

// LatencyP95 returns the current p95 request latency.
func (s *AnalyticsService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func serve[T any](s *AnalyticsService, ctx context.Context, method string, build func(context.Context) (T, error)) (*structpb.Struct, error) {
	start := time.Now()
	report, err := build(ctx)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		s.logger.Error("report failed", slog.String("method", method), slog.Any("error", err))
		return nil, status.Error(codes.Internal, fmt.Sprintf("%s failed: %v", method, err))
	}
	out, err := api.ToStruct(report)
	if err != nil {
		s.logger.Error("report conversion failed", slog.String("method", method), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode report")
	}

	s.latencies.Observe(time.Since(start))
	if total := s.latencies.Total(); total%20 == 0 {
		s.logger.Info("analytics latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Uint64("requests", total))
	}
	return out, nil
}

func (s *AnalyticsService) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	if s.reports == nil {
		return status.Error(codes.FailedPrecondition, "session not configured")
	}
	return nil
}

func nonNilOutages(report engine.Report) []models.FullOutage {
	if report.FullOutages == nil {
		return []models.FullOutage{}
	}
	return report.FullOutages
}
