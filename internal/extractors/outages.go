package extractors

import (
	"sort"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

// OutageExtractor groups consecutive bad probes of a single target into outages.
type OutageExtractor struct {
	thresholdMs float64
}

// NewOutageExtractor creates a streak detector using the given latency threshold.
func NewOutageExtractor(latencyThresholdMs float64) *OutageExtractor {
	return &OutageExtractor{thresholdMs: latencyThresholdMs}
}

// Detect returns the outages found in one target's history. The input is never modified.
func (e *OutageExtractor) Detect(probes []models.ProbeResult) []models.TargetOutage {
	return DetectOutages(probes, e.thresholdMs)
}

// DetectOutages walks a probe history once, in sequence order, and closes a TargetOutage every
// time a good probe ends a run of bad ones. A run still open at the end of the history is
// reported with its current extent.
func DetectOutages(probes []models.ProbeResult, latencyThresholdMs float64) []models.TargetOutage {
	if len(probes) == 0 {
		return []models.TargetOutage{}
	}
	ordered := SortBySequence(probes)

	outages := make([]models.TargetOutage, 0)
	var streak []models.ProbeResult
	for _, probe := range ordered {
		if IsBadResponse(probe, latencyThresholdMs) {
			streak = append(streak, probe)
			continue
		}
		if len(streak) > 0 {
			outages = append(outages, newTargetOutage(streak))
			streak = nil
		}
	}
	if len(streak) > 0 {
		outages = append(outages, newTargetOutage(streak))
	}
	return outages
}

// SortBySequence returns a copy of probes ordered by sequence number. Timestamps are not used
// for ordering since clock skew and retries can make them non-monotonic.
func SortBySequence(probes []models.ProbeResult) []models.ProbeResult {
	ordered := append([]models.ProbeResult(nil), probes...)
	if !sort.SliceIsSorted(ordered, func(i, j int) bool {
		return ordered[i].SequenceNumber < ordered[j].SequenceNumber
	}) {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].SequenceNumber < ordered[j].SequenceNumber
		})
	}
	return ordered
}

func newTargetOutage(streak []models.ProbeResult) models.TargetOutage {
	start := streak[0].Time()
	end := streak[len(streak)-1].Time()
	for _, probe := range streak {
		ts := probe.Time()
		if ts.Before(start) {
			start = ts
		}
		if ts.After(end) {
			end = ts
		}
	}
	return models.TargetOutage{
		Target:          streak[0].TargetAddress,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: models.DurationSeconds(start, end),
		Probes:          streak,
	}
}
