package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-uptime/internal/engine"
	"github.com/miradorstack/mirador-uptime/internal/models"
)

// ReportSource produces the documents served over gRPC and HTTP.
type ReportSource interface {
	StatusReport(ctx context.Context) (StatusReport, error)
	OutageReport(ctx context.Context) (OutageReport, error)
	StatsReport(ctx context.Context) (StatsReport, error)
	SummaryReport(ctx context.Context) (SummaryReport, error)
}

// StatusReport is the live connection view.
type StatusReport struct {
	SessionID   string                   `json:"sessionId"`
	GeneratedAt time.Time                `json:"generatedAt"`
	Connection  models.SessionConnection `json:"connection"`
	Notices     []engine.Notice          `json:"notices"`
}

// OutageView is a TargetOutage without its probe list.
type OutageView struct {
	Target          string    `json:"target"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	DurationSeconds float64   `json:"durationSeconds"`
	ProbeCount      int       `json:"probeCount"`
}

// OutageReport lists per-target and full outages.
type OutageReport struct {
	SessionID     string              `json:"sessionId"`
	TargetOutages []OutageView        `json:"targetOutages"`
	FullOutages   []models.FullOutage `json:"fullOutages"`
}

// StatsReport carries per-target statistics.
type StatsReport struct {
	SessionID string                `json:"sessionId"`
	Stats     []models.SessionStats `json:"stats"`
}

// SummaryReport carries the outage summary.
type SummaryReport struct {
	SessionID string               `json:"sessionId"`
	StartedAt time.Time            `json:"startedAt"`
	Summary   models.OutageSummary `json:"summary"`
}

// ToOutageViews flattens per-target outages in target order.
func ToOutageViews(targets []engine.TargetOutages) []OutageView {
	out := make([]OutageView, 0)
	for _, target := range targets {
		for _, outage := range target.Outages {
			out = append(out, OutageView{
				Target:          target.ID,
				StartTime:       outage.StartTime,
				EndTime:         outage.EndTime,
				DurationSeconds: outage.DurationSeconds,
				ProbeCount:      len(outage.Probes),
			})
		}
	}
	return out
}

// ToStruct converts a JSON-serialisable report into a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("convert report: %w", err)
	}
	return out, nil
}

// FromStruct decodes a protobuf Struct into v.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("struct is nil")
	}
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}
