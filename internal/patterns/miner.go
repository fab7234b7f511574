package patterns

import (
	"log/slog"
	"sort"

	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

// DefaultHotspots is how many hours Summarize reports when no limit is given.
const DefaultHotspots = 3

// Miner mines recurring downtime patterns from outage history.
type Miner struct {
	logger   *slog.Logger
	hotspots int
}

// NewMiner constructs a Miner reporting up to hotspots hours; hotspots <= 0 uses DefaultHotspots.
func NewMiner(logger *slog.Logger, hotspots int) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	if hotspots <= 0 {
		hotspots = DefaultHotspots
	}
	return &Miner{logger: logger, hotspots: hotspots}
}

// Summarize aggregates full outages by UTC hour of day and per-target outages by target.
func (m *Miner) Summarize(full []models.FullOutage, targets []engine.TargetOutages) models.OutageSummary {
	summary := models.OutageSummary{
		FullOutageCount: len(full),
		Hotspots:        []models.HourHotspot{},
		Targets:         make([]models.TargetSummary, 0, len(targets)),
	}

	hours := make(map[int]*models.HourHotspot)
	for _, outage := range full {
		summary.TotalDowntimeSeconds += outage.DurationSeconds
		if outage.DurationSeconds > summary.LongestOutageSeconds {
			summary.LongestOutageSeconds = outage.DurationSeconds
		}
		if summary.LastOutageEnd == nil || outage.EndTime.After(*summary.LastOutageEnd) {
			end := outage.EndTime
			summary.LastOutageEnd = &end
		}

		hour := outage.StartTime.UTC().Hour()
		agg, ok := hours[hour]
		if !ok {
			agg = &models.HourHotspot{Hour: hour}
			hours[hour] = agg
		}
		agg.Count++
		agg.DowntimeSeconds += outage.DurationSeconds
	}

	for _, agg := range hours {
		summary.Hotspots = append(summary.Hotspots, *agg)
	}
	sort.Slice(summary.Hotspots, func(i, j int) bool {
		a, b := summary.Hotspots[i], summary.Hotspots[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.DowntimeSeconds != b.DowntimeSeconds {
			return a.DowntimeSeconds > b.DowntimeSeconds
		}
		return a.Hour < b.Hour
	})
	if len(summary.Hotspots) > m.hotspots {
		summary.Hotspots = summary.Hotspots[:m.hotspots]
	}

	for _, target := range targets {
		entry := models.TargetSummary{Target: target.ID, OutageCount: len(target.Outages)}
		for _, outage := range target.Outages {
			entry.DowntimeSeconds += outage.DurationSeconds
		}
		summary.Targets = append(summary.Targets, entry)
	}

	m.logger.Debug("outage summary computed",
		slog.Int("full_outages", summary.FullOutageCount),
		slog.Float64("downtime_seconds", summary.TotalDowntimeSeconds))
	return summary
}
