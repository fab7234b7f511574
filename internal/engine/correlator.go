package engine

import (
	"math"
	"sort"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/extractors"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

// TargetOutages pairs a target with the outages detected in its history.
type TargetOutages struct {
	ID      string                `json:"id"`
	Outages []models.TargetOutage `json:"outages"`
}

type window struct {
	start time.Time
	end   time.Time
}

// Correlate finds the intervals during which every target was down at once. Targets are
// checked in the order supplied; the first one provides the candidate windows, and each
// following target can only narrow a candidate or drop it.
//
// With a single target its outages are returned as-is.
func Correlate(targets []TargetOutages, leniency time.Duration) []models.FullOutage {
	full := make([]models.FullOutage, 0)
	if len(targets) == 0 {
		return full
	}
	if len(targets) == 1 {
		for _, outage := range targets[0].Outages {
			full = append(full, models.NewFullOutage(outage.StartTime, outage.EndTime))
		}
		return full
	}
	if leniency < 0 {
		leniency = 0
	}

	base := orderedOutages(targets[0].Outages)
	others := make([][]models.TargetOutage, 0, len(targets)-1)
	for _, target := range targets[1:] {
		others = append(others, orderedOutages(target.Outages))
	}

	for _, outage := range base {
		current := window{start: outage.StartTime, end: outage.EndTime}
		survived := true
		for _, candidates := range others {
			next, ok := narrow(current, candidates, leniency)
			if !ok {
				survived = false
				break
			}
			current = next
		}
		if survived {
			full = append(full, models.NewFullOutage(current.start, current.end))
		}
	}
	return full
}

// narrow intersects w with one target's outages. Probes within leniency of the window count as
// matches. When several outages match, the one with the latest start wins; the returned window
// spans its earliest and latest matching probes, clamped so it never grows.
func narrow(w window, outages []models.TargetOutage, leniency time.Duration) (window, bool) {
	lo := w.start.Add(-leniency)
	hi := w.end.Add(leniency)

	var (
		best      window
		bestStart time.Time
		found     bool
	)
	for _, outage := range outages {
		first, last, ok := matchingSpan(outage.Probes, lo, hi)
		if !ok {
			continue
		}
		if found && outage.StartTime.Before(bestStart) {
			continue
		}
		best = window{start: clampTime(first, w), end: clampTime(last, w)}
		bestStart = outage.StartTime
		found = true
	}
	return best, found
}

func matchingSpan(probes []models.ProbeResult, lo, hi time.Time) (time.Time, time.Time, bool) {
	var first, last time.Time
	matched := false
	for _, probe := range probes {
		ts := probe.Time()
		if ts.Before(lo) || ts.After(hi) {
			continue
		}
		if !matched || ts.Before(first) {
			first = ts
		}
		if !matched || ts.After(last) {
			last = ts
		}
		matched = true
	}
	return first, last, matched
}

func clampTime(ts time.Time, w window) time.Time {
	if ts.Before(w.start) {
		return w.start
	}
	if ts.After(w.end) {
		return w.end
	}
	return ts
}

func orderedOutages(outages []models.TargetOutage) []models.TargetOutage {
	ordered := make([]models.TargetOutage, len(outages))
	for i, outage := range outages {
		outage.Probes = extractors.SortBySequence(outage.Probes)
		ordered[i] = outage
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return firstSequence(ordered[i]) < firstSequence(ordered[j])
	})
	return ordered
}

func firstSequence(outage models.TargetOutage) int64 {
	if len(outage.Probes) == 0 {
		return math.MaxInt64
	}
	return outage.Probes[0].SequenceNumber
}
