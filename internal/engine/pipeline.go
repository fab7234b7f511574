package engine

import (
	"log/slog"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/extractors"
	"github.com/miradorstack/mirador-uptime/internal/models"
	"github.com/miradorstack/mirador-uptime/internal/utils"
)

// Options carries the numeric parameters of the analysis passes.
type Options struct {
	LatencyThresholdMs float64
	LeniencyMs         float64
	RTTBinSizeMs       float64
	ConnectionTimeout  time.Duration
}

// Report bundles the output of every pass run against one snapshot.
type Report struct {
	GeneratedAt   time.Time                `json:"generatedAt"`
	Connection    models.SessionConnection `json:"connection"`
	TargetOutages []TargetOutages          `json:"targetOutages"`
	FullOutages   []models.FullOutage      `json:"fullOutages"`
	Stats         []models.SessionStats    `json:"stats"`
}

// Pipeline runs the analytical passes. It holds configuration only, so a single Pipeline can
// serve concurrent callers.
type Pipeline struct {
	logger  *slog.Logger
	opts    Options
	outages *extractors.OutageExtractor
}

// NewPipeline constructs a pipeline; negative parameters are treated as zero.
func NewPipeline(logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.LatencyThresholdMs < 0 {
		opts.LatencyThresholdMs = 0
	}
	if opts.LeniencyMs < 0 {
		opts.LeniencyMs = 0
	}
	if opts.RTTBinSizeMs < 0 {
		opts.RTTBinSizeMs = 0
	}
	return &Pipeline{
		logger:  logger,
		opts:    opts,
		outages: extractors.NewOutageExtractor(opts.LatencyThresholdMs),
	}
}

// Options returns the effective parameters.
func (p *Pipeline) Options() Options {
	return p.opts
}

// DetectOutages runs the streak detector over every history, preserving target order.
func (p *Pipeline) DetectOutages(histories []models.TargetHistory) []TargetOutages {
	out := make([]TargetOutages, 0, len(histories))
	for _, history := range histories {
		out = append(out, TargetOutages{
			ID:      history.Address,
			Outages: p.outages.Detect(history.Probes),
		})
	}
	return out
}

// Correlate derives full outages from per-target outages.
func (p *Pipeline) Correlate(targets []TargetOutages) []models.FullOutage {
	return Correlate(targets, p.leniency())
}

// Connection evaluates live state as of now.
func (p *Pipeline) Connection(histories []models.TargetHistory, now time.Time) models.SessionConnection {
	return SessionConnectionStatus(histories, p.opts.LatencyThresholdMs, p.opts.ConnectionTimeout, now)
}

// Stats computes per-target reliability metrics.
func (p *Pipeline) Stats(histories []models.TargetHistory) []models.SessionStats {
	return ComputeSessionStats(histories, p.opts.LatencyThresholdMs, p.opts.RTTBinSizeMs)
}

// Analyze runs every pass against the same snapshot.
func (p *Pipeline) Analyze(histories []models.TargetHistory, now time.Time) Report {
	targetOutages := p.DetectOutages(histories)
	report := Report{
		GeneratedAt:   now,
		Connection:    p.Connection(histories, now),
		TargetOutages: targetOutages,
		FullOutages:   p.Correlate(targetOutages),
		Stats:         p.Stats(histories),
	}
	p.logger.Debug("analysis complete",
		slog.Int("targets", len(histories)),
		slog.Int("full_outages", len(report.FullOutages)),
		slog.String("status", string(report.Connection.Status)))
	return report
}

func (p *Pipeline) leniency() time.Duration {
	return utils.MillisToDuration(p.opts.LeniencyMs)
}
