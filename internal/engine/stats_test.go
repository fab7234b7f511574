package engine

import (
	"testing"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

func TestComputeTargetStatsNoProbes(t *testing.T) {
	if stats := ComputeTargetStats("a", nil, 250, 5); stats != nil {
		t.Fatalf("expected nil stats block, got %+v", stats)
	}
}

func TestComputeTargetStatsUptimeFraction(t *testing.T) {
	probes := make([]models.ProbeResult, 0, 10)
	for i := 0; i < 7; i++ {
		probes = append(probes, goodProbe("a", int64(i), i*1000, 20))
	}
	for i := 7; i < 10; i++ {
		probes = append(probes, badProbe("a", int64(i), i*1000))
	}
	stats := ComputeTargetStats("a", probes, 250, 5)
	if stats.UptimeFraction != 0.7 {
		t.Fatalf("expected uptime 0.7, got %v", stats.UptimeFraction)
	}
	if stats.TotalProbes != 10 || stats.BadProbes != 3 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
}

func TestComputeTargetStatsRTT(t *testing.T) {
	rtts := []float64{11, 12, 19, 21, 40, 300}
	probes := make([]models.ProbeResult, 0, len(rtts))
	for i, rtt := range rtts {
		probes = append(probes, goodProbe("a", int64(i), i*1000, rtt))
	}
	stats := ComputeTargetStats("a", probes, 250, 5)

	// 300ms is above the threshold and therefore excluded from RTT metrics
	if *stats.MinGoodRTT != 11 || *stats.MaxGoodRTT != 40 {
		t.Fatalf("unexpected min/max: %v %v", *stats.MinGoodRTT, *stats.MaxGoodRTT)
	}
	if *stats.MeanGoodRTT != 20.6 {
		t.Fatalf("unexpected mean: %v", *stats.MeanGoodRTT)
	}
	if *stats.MedianGoodRTT != 19 {
		t.Fatalf("unexpected median: %v", *stats.MedianGoodRTT)
	}
	// 11,12 -> 10; 19,21 -> 20; 40 -> 40. Tie between 10 and 20 resolves to the smaller bin.
	if *stats.ModeGoodRTT != 10 {
		t.Fatalf("unexpected mode: %v", *stats.ModeGoodRTT)
	}
}

func TestComputeTargetStatsEvenMedian(t *testing.T) {
	probes := []models.ProbeResult{
		goodProbe("a", 1, 0, 10),
		goodProbe("a", 2, 1000, 20),
		goodProbe("a", 3, 2000, 30),
		goodProbe("a", 4, 3000, 40),
	}
	stats := ComputeTargetStats("a", probes, 250, 0)
	if *stats.MedianGoodRTT != 25 {
		t.Fatalf("expected median 25, got %v", *stats.MedianGoodRTT)
	}
}

func TestComputeTargetStatsAllBad(t *testing.T) {
	probes := []models.ProbeResult{badProbe("a", 1, 0), badProbe("a", 2, 1000)}
	stats := ComputeTargetStats("a", probes, 250, 5)
	if stats == nil {
		t.Fatalf("expected stats block")
	}
	if stats.UptimeFraction != 0 {
		t.Fatalf("expected zero uptime, got %v", stats.UptimeFraction)
	}
	if stats.MeanGoodRTT != nil || stats.MedianGoodRTT != nil || stats.ModeGoodRTT != nil || stats.MinGoodRTT != nil || stats.MaxGoodRTT != nil {
		t.Fatalf("expected nil RTT metrics without successful probes")
	}
}
