package engine

import (
	"math"
	"sort"

	"github.com/miradorstack/mirador-uptime/internal/extractors"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

// DefaultRTTBinSizeMs is the bin width used for the RTT mode when none is configured.
const DefaultRTTBinSizeMs = 5.0

// ComputeTargetStats summarises one target's history. It returns nil when there are no probes so
// callers can tell "no data" apart from 0% uptime.
func ComputeTargetStats(target string, probes []models.ProbeResult, latencyThresholdMs, binSizeMs float64) *models.TargetStats {
	if len(probes) == 0 {
		return nil
	}

	rtts := make([]float64, 0, len(probes))
	badCount := 0
	for _, probe := range probes {
		if extractors.IsBadResponse(probe, latencyThresholdMs) {
			badCount++
			continue
		}
		rtts = append(rtts, *probe.RoundTripTimeMs)
	}

	stats := &models.TargetStats{
		Target:         target,
		TotalProbes:    len(probes),
		BadProbes:      badCount,
		UptimeFraction: float64(len(probes)-badCount) / float64(len(probes)),
	}
	if len(rtts) == 0 {
		return stats
	}

	sort.Float64s(rtts)
	sum := 0.0
	for _, v := range rtts {
		sum += v
	}
	stats.MeanGoodRTT = floatPtr(sum / float64(len(rtts)))
	stats.MedianGoodRTT = floatPtr(median(rtts))
	stats.ModeGoodRTT = floatPtr(binnedMode(rtts, binSizeMs))
	stats.MinGoodRTT = floatPtr(rtts[0])
	stats.MaxGoodRTT = floatPtr(rtts[len(rtts)-1])
	return stats
}

// ComputeSessionStats returns one stat block per history, in the same order.
func ComputeSessionStats(histories []models.TargetHistory, latencyThresholdMs, binSizeMs float64) []models.SessionStats {
	out := make([]models.SessionStats, 0, len(histories))
	for _, history := range histories {
		out = append(out, models.SessionStats{
			Target: history.Address,
			Stats:  ComputeTargetStats(history.Address, history.Probes, latencyThresholdMs, binSizeMs),
		})
	}
	return out
}

// median expects sorted input.
func median(sorted []float64) float64 {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// binnedMode rounds each value to the nearest multiple of binSize and returns the most common
// bin; ties go to the smallest bin. binSize <= 0 uses raw values.
func binnedMode(values []float64, binSize float64) float64 {
	counts := make(map[float64]int, len(values))
	for _, v := range values {
		bin := v
		if binSize > 0 {
			bin = math.Round(v/binSize) * binSize
		}
		counts[bin]++
	}

	best := math.Inf(1)
	bestCount := 0
	for bin, count := range counts {
		if count > bestCount || (count == bestCount && bin < best) {
			best = bin
			bestCount = count
		}
	}
	return best
}

func floatPtr(v float64) *float64 {
	return &v
}
