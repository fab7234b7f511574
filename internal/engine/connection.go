package engine

import (
	"time"

	"github.com/miradorstack/mirador-uptime/internal/extractors"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

// TargetConnectionStatus derives the live state of a target from its most recent probe only.
// A good probe older than timeout leaves the target pending; timeout <= 0 disables the check.
func TargetConnectionStatus(history models.TargetHistory, latencyThresholdMs float64, timeout time.Duration, now time.Time) models.TargetConnection {
	conn := models.TargetConnection{
		Target: history.Address,
		Status: models.StatusPendingResponse,
	}
	if len(history.Probes) == 0 {
		return conn
	}

	ordered := extractors.SortBySequence(history.Probes)
	latest := ordered[len(ordered)-1]
	latestTime := latest.Time()
	conn.LatestProbe = &latest

	latestBad := extractors.IsBadResponse(latest, latencyThresholdMs)
	opposite := lastWithClassification(ordered[:len(ordered)-1], !latestBad, latencyThresholdMs)

	if latestBad {
		conn.Status = models.StatusDisconnected
		conn.LastBad = &latestTime
		conn.LastGood = opposite
		return conn
	}

	conn.LastGood = &latestTime
	conn.LastBad = opposite
	if timeout > 0 && now.Sub(latestTime) > timeout {
		return conn
	}
	conn.Status = models.StatusConnected
	return conn
}

// AggregateStatus is CONNECTED as soon as one target is reachable, DISCONNECTED otherwise.
func AggregateStatus(targets []models.TargetConnection) models.ConnectionStatus {
	for _, target := range targets {
		if target.Status == models.StatusConnected {
			return models.StatusConnected
		}
	}
	return models.StatusDisconnected
}

// SessionConnectionStatus evaluates every target and the aggregate.
func SessionConnectionStatus(histories []models.TargetHistory, latencyThresholdMs float64, timeout time.Duration, now time.Time) models.SessionConnection {
	targets := make([]models.TargetConnection, 0, len(histories))
	for _, history := range histories {
		targets = append(targets, TargetConnectionStatus(history, latencyThresholdMs, timeout, now))
	}
	return models.SessionConnection{
		Status:  AggregateStatus(targets),
		Targets: targets,
	}
}

func lastWithClassification(ordered []models.ProbeResult, wantBad bool, latencyThresholdMs float64) *time.Time {
	for i := len(ordered) - 1; i >= 0; i-- {
		if extractors.IsBadResponse(ordered[i], latencyThresholdMs) == wantBad {
			ts := ordered[i].Time()
			return &ts
		}
	}
	return nil
}
