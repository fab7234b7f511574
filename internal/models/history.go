package models

import "time"

// TargetHistory is one target's probe history as handed to an analytical pass.
type TargetHistory struct {
	Address string        `json:"address"`
	Probes  []ProbeResult `json:"probes"`
}

// TargetLog is the persisted form of one target: its history and the outages derived from it.
type TargetLog struct {
	Address string         `json:"address"`
	Probes  []ProbeResult  `json:"probes"`
	Outages []TargetOutage `json:"outages"`
}

// SessionLog is what the log store persists for a session. Reloading it and re-running the
// analysis must reproduce Outages and FullOutages exactly.
type SessionLog struct {
	SessionID   string       `json:"sessionId"`
	StartedAt   time.Time    `json:"startedAt"`
	SavedAt     time.Time    `json:"savedAt"`
	Targets     []TargetLog  `json:"targets"`
	FullOutages []FullOutage `json:"fullOutages"`
}

// Histories returns the probe histories in target order.
func (l SessionLog) Histories() []TargetHistory {
	out := make([]TargetHistory, 0, len(l.Targets))
	for _, t := range l.Targets {
		out = append(out, TargetHistory{Address: t.Address, Probes: t.Probes})
	}
	return out
}
