package models

import "time"

// ConnectionStatus captures live reachability.
type ConnectionStatus string

const (
	StatusConnected       ConnectionStatus = "CONNECTED"
	StatusDisconnected    ConnectionStatus = "DISCONNECTED"
	StatusPendingResponse ConnectionStatus = "PENDING_RESPONSE"
)

// TargetConnection is the live state of one target.
type TargetConnection struct {
	Target      string           `json:"target"`
	Status      ConnectionStatus `json:"status"`
	LastGood    *time.Time       `json:"lastGood,omitempty"`
	LastBad     *time.Time       `json:"lastBad,omitempty"`
	LatestProbe *ProbeResult     `json:"latestProbe,omitempty"`
}

// SessionConnection aggregates per-target state for the whole session.
type SessionConnection struct {
	Status  ConnectionStatus   `json:"status"`
	Targets []TargetConnection `json:"targets"`
}

// TargetStats carries reliability metrics for one target. RTT metrics are nil when the target
// has no successful probes.
type TargetStats struct {
	Target         string   `json:"target"`
	TotalProbes    int      `json:"totalProbes"`
	BadProbes      int      `json:"badProbes"`
	UptimeFraction float64  `json:"uptimeFraction"`
	MeanGoodRTT    *float64 `json:"meanGoodRTT"`
	MedianGoodRTT  *float64 `json:"medianGoodRTT"`
	ModeGoodRTT    *float64 `json:"modeGoodRTT"`
	MinGoodRTT     *float64 `json:"minGoodRTT"`
	MaxGoodRTT     *float64 `json:"maxGoodRTT"`
}

// SessionStats pairs a target with its stat block; Stats is nil when there is no data.
type SessionStats struct {
	Target string       `json:"target"`
	Stats  *TargetStats `json:"stats"`
}
