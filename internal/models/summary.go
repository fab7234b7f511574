package models

import "time"

// OutageSummary condenses a session's outage history for reporting.
type OutageSummary struct {
	FullOutageCount      int             `json:"fullOutageCount"`
	TotalDowntimeSeconds float64         `json:"totalDowntimeSeconds"`
	LongestOutageSeconds float64         `json:"longestOutageSeconds"`
	LastOutageEnd        *time.Time      `json:"lastOutageEnd,omitempty"`
	Hotspots             []HourHotspot   `json:"hotspots"`
	Targets              []TargetSummary `json:"targets"`
}

// HourHotspot aggregates full outages that started in one UTC hour of the day.
type HourHotspot struct {
	Hour            int     `json:"hour"`
	Count           int     `json:"count"`
	DowntimeSeconds float64 `json:"downtimeSeconds"`
}

// TargetSummary aggregates one target's own outages.
type TargetSummary struct {
	Target          string  `json:"target"`
	OutageCount     int     `json:"outageCount"`
	DowntimeSeconds float64 `json:"downtimeSeconds"`
}
