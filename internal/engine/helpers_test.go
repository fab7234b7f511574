package engine

import (
	"time"

	"github.com/miradorstack/mirador-uptime/internal/extractors"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

var epoch = time.Unix(1_700_000_000, 0).UTC()

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func goodProbe(target string, seq int64, ms int, rtt float64) models.ProbeResult {
	received := at(ms)
	return models.ProbeResult{
		TargetAddress:   target,
		SequenceNumber:  seq,
		TimeRequested:   received.Add(-time.Duration(rtt * float64(time.Millisecond))),
		TimeReceived:    &received,
		RoundTripTimeMs: &rtt,
	}
}

func badProbe(target string, seq int64, ms int) models.ProbeResult {
	return models.Failure(target, seq, at(ms), nil, models.ErrorKindTimeout)
}

// failingRun builds a target history that is good, then bad at each given offset, then good.
func failingRun(target string, offsets ...int) []models.ProbeResult {
	probes := []models.ProbeResult{goodProbe(target, 0, offsets[0]-1000, 10)}
	for i, ms := range offsets {
		probes = append(probes, badProbe(target, int64(i+1), ms))
	}
	last := offsets[len(offsets)-1]
	probes = append(probes, goodProbe(target, int64(len(offsets)+1), last+1000, 10))
	return probes
}

func outagesFor(target string, probes []models.ProbeResult) TargetOutages {
	return TargetOutages{ID: target, Outages: extractors.DetectOutages(probes, 250)}
}
