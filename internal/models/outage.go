package models

import "time"

// TargetOutage is a maximal run of bad probes for one target, ordered by sequence number.
type TargetOutage struct {
	Target          string        `json:"target"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         time.Time     `json:"endTime"`
	DurationSeconds float64       `json:"durationSeconds"`
	Probes          []ProbeResult `json:"probes"`
}

// FullOutage is an interval during which every monitored target was down.
type FullOutage struct {
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds float64   `json:"durationSeconds"`
}

// NewFullOutage builds a FullOutage, swapping the bounds if they arrive reversed.
func NewFullOutage(start, end time.Time) FullOutage {
	if end.Before(start) {
		start, end = end, start
	}
	return FullOutage{
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: DurationSeconds(start, end),
	}
}

// DurationSeconds converts the millisecond delta between two instants into seconds.
func DurationSeconds(start, end time.Time) float64 {
	return float64(end.Sub(start).Milliseconds()) / 1000
}
