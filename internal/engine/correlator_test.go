package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

func TestCorrelateNoTargets(t *testing.T) {
	full := Correlate(nil, time.Second)
	if full == nil || len(full) != 0 {
		t.Fatalf("expected empty result, got %#v", full)
	}
}

func TestCorrelateSingleTargetReturnsOutagesUnchanged(t *testing.T) {
	probes := append(failingRun("a", 1000, 2000), badProbe("a", 10, 9000))
	target := outagesFor("a", probes)
	full := Correlate([]TargetOutages{target}, 500*time.Millisecond)
	if len(full) != len(target.Outages) {
		t.Fatalf("expected %d full outages, got %d", len(target.Outages), len(full))
	}
	for i, outage := range target.Outages {
		if !full[i].StartTime.Equal(outage.StartTime) || !full[i].EndTime.Equal(outage.EndTime) {
			t.Fatalf("full outage %d differs from target outage: %+v vs %+v", i, full[i], outage)
		}
		if full[i].DurationSeconds != outage.DurationSeconds {
			t.Fatalf("duration mismatch at %d", i)
		}
	}
}

func TestCorrelateTwoTargetsIntersects(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000, 2000, 3000))
	b := outagesFor("b", failingRun("b", 1200, 2200, 3200))

	full := Correlate([]TargetOutages{a, b}, 500*time.Millisecond)
	if len(full) != 1 {
		t.Fatalf("expected one full outage, got %d", len(full))
	}
	if !full[0].StartTime.Equal(at(1200)) || !full[0].EndTime.Equal(at(3000)) {
		t.Fatalf("expected [1200, 3000], got [%v, %v]", full[0].StartTime.Sub(epoch), full[0].EndTime.Sub(epoch))
	}
	if full[0].DurationSeconds != 1.8 {
		t.Fatalf("expected 1.8s, got %v", full[0].DurationSeconds)
	}
}

func TestCorrelateTargetThatNeverFails(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000, 2000, 3000))
	b := outagesFor("b", failingRun("b", 1100, 2100, 3100))
	steady := []models.ProbeResult{}
	for i := 0; i < 6; i++ {
		steady = append(steady, goodProbe("c", int64(i), i*1000, 12))
	}
	c := outagesFor("c", steady)

	full := Correlate([]TargetOutages{a, b, c}, 500*time.Millisecond)
	if len(full) != 0 {
		t.Fatalf("expected no full outages, got %+v", full)
	}
}

func TestCorrelateLeniencyBoundaryInclusive(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000))
	inside := outagesFor("b", failingRun("b", 1500))
	outside := outagesFor("b", failingRun("b", 1501))

	if full := Correlate([]TargetOutages{a, inside}, 500*time.Millisecond); len(full) != 1 {
		t.Fatalf("probe exactly at leniency must match, got %d outages", len(full))
	}
	if full := Correlate([]TargetOutages{a, outside}, 500*time.Millisecond); len(full) != 0 {
		t.Fatalf("probe at leniency+1ms must not match, got %d outages", len(full))
	}
}

func TestCorrelateNeverWidensWindow(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000))
	b := outagesFor("b", failingRun("b", 1400))
	full := Correlate([]TargetOutages{a, b}, 500*time.Millisecond)
	if len(full) != 1 {
		t.Fatalf("expected one full outage, got %d", len(full))
	}
	if !full[0].StartTime.Equal(at(1000)) || !full[0].EndTime.Equal(at(1000)) {
		t.Fatalf("window must stay inside the base outage, got %+v", full[0])
	}
}

// When a target has several outages inside the same candidate window, the one with the latest
// start time decides the narrowed window.
func TestCorrelatePicksLatestStartingOverlap(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000, 2000, 3000, 4000, 5000))
	probes := []models.ProbeResult{
		goodProbe("b", 0, 0, 10),
		badProbe("b", 1, 1000),
		badProbe("b", 2, 2000),
		goodProbe("b", 3, 3000, 10),
		badProbe("b", 4, 4000),
		badProbe("b", 5, 5000),
		goodProbe("b", 6, 6000, 10),
	}
	b := outagesFor("b", probes)
	if len(b.Outages) != 2 {
		t.Fatalf("setup: expected two outages for b, got %d", len(b.Outages))
	}

	full := Correlate([]TargetOutages{a, b}, 100*time.Millisecond)
	if len(full) != 1 {
		t.Fatalf("expected one full outage, got %d", len(full))
	}
	if !full[0].StartTime.Equal(at(4000)) || !full[0].EndTime.Equal(at(5000)) {
		t.Fatalf("expected latest overlapping outage [4000, 5000], got %+v", full[0])
	}
}

func TestCorrelateThreeTargetsNarrowsProgressively(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000, 2000, 3000, 4000))
	b := outagesFor("b", failingRun("b", 1500, 2500, 3500))
	c := outagesFor("c", failingRun("c", 2100, 3100))
	full := Correlate([]TargetOutages{a, b, c}, 200*time.Millisecond)
	if len(full) != 1 {
		t.Fatalf("expected one full outage, got %d", len(full))
	}
	if !full[0].StartTime.Equal(at(2100)) || !full[0].EndTime.Equal(at(3100)) {
		t.Fatalf("expected [2100, 3100], got %+v", full[0])
	}
	if full[0].EndTime.Before(full[0].StartTime) {
		t.Fatalf("end before start")
	}
}

func TestCorrelateToleratesUnsortedInput(t *testing.T) {
	a := outagesFor("a", failingRun("a", 1000, 2000, 3000))
	b := outagesFor("b", failingRun("b", 1200, 2200, 3200))
	reversed := make([]models.ProbeResult, len(b.Outages[0].Probes))
	for i, p := range b.Outages[0].Probes {
		reversed[len(reversed)-1-i] = p
	}
	b.Outages[0].Probes = reversed

	full := Correlate([]TargetOutages{a, b}, 500*time.Millisecond)
	if len(full) != 1 || !full[0].StartTime.Equal(at(1200)) {
		t.Fatalf("unexpected result for unsorted input: %+v", full)
	}
}

func TestCorrelateIdempotent(t *testing.T) {
	targets := []TargetOutages{
		outagesFor("a", failingRun("a", 1000, 2000, 3000)),
		outagesFor("b", failingRun("b", 1200, 2200, 3200)),
	}
	first := Correlate(targets, 500*time.Millisecond)
	second := Correlate(targets, 500*time.Millisecond)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("correlation is not idempotent")
	}
}
