package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

// RuleEngine turns a Report into operator-facing notices using a YAML rule pack.
type RuleEngine struct {
	rules  []Rule
	logger *slog.Logger
}

// Rule represents a single notice rule.
type Rule struct {
	ID      string    `yaml:"id"`
	Match   RuleMatch `yaml:"match"`
	Message string    `yaml:"message"`
}

// RuleMatch defines optional conditions; every set condition must hold.
type RuleMatch struct {
	Target             string   `yaml:"target"`
	Status             string   `yaml:"status"`
	MinOutageSeconds   float64  `yaml:"min_outage_seconds"`
	BelowUptime        *float64 `yaml:"below_uptime"`
	AboveMedianRTTMs   *float64 `yaml:"above_median_rtt_ms"`
	RequireFullOutages bool     `yaml:"require_full_outages"`
}

// Notice is one fired rule.
type Notice struct {
	RuleID  string `json:"ruleId"`
	Target  string `json:"target,omitempty"`
	Message string `json:"message"`
}

// RuleConfigFile is the YAML root structure.
type RuleConfigFile struct {
	Rules []Rule `yaml:"rules"`
}

// NewRuleEngine loads rules from the provided path. If path is empty or missing, returns nil engine.
func NewRuleEngine(path string, logger *slog.Logger) (*RuleEngine, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cfg RuleConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEngine{rules: cfg.Rules, logger: logger}, nil
}

// Evaluate returns the notices whose conditions hold for the report. Rules naming a target, or
// using per-target conditions, fire once per matching target.
func (e *RuleEngine) Evaluate(report Report) []Notice {
	if e == nil {
		return nil
	}

	notices := make([]Notice, 0)
	for _, rule := range e.rules {
		if rule.Match.RequireFullOutages && len(report.FullOutages) == 0 {
			continue
		}
		if rule.Match.MinOutageSeconds > 0 && !hasFullOutageOver(report.FullOutages, rule.Match.MinOutageSeconds) {
			continue
		}
		if !rule.Match.perTarget() {
			if rule.Match.Status != "" && !strings.EqualFold(rule.Match.Status, string(report.Connection.Status)) {
				continue
			}
			notices = append(notices, Notice{RuleID: rule.ID, Message: rule.Message})
			continue
		}
		for _, target := range report.Connection.Targets {
			if !rule.Match.matchesTarget(target, statsFor(report.Stats, target.Target)) {
				continue
			}
			notices = append(notices, Notice{
				RuleID:  rule.ID,
				Target:  target.Target,
				Message: strings.ReplaceAll(rule.Message, "{target}", target.Target),
			})
		}
	}
	return notices
}

func (m RuleMatch) perTarget() bool {
	return m.Target != "" || m.BelowUptime != nil || m.AboveMedianRTTMs != nil
}

func (m RuleMatch) matchesTarget(conn models.TargetConnection, stats *models.TargetStats) bool {
	if m.Target != "" && !strings.EqualFold(m.Target, conn.Target) {
		return false
	}
	if m.Status != "" && !strings.EqualFold(m.Status, string(conn.Status)) {
		return false
	}
	if m.BelowUptime != nil && (stats == nil || stats.UptimeFraction >= *m.BelowUptime) {
		return false
	}
	if m.AboveMedianRTTMs != nil && (stats == nil || stats.MedianGoodRTT == nil || *stats.MedianGoodRTT <= *m.AboveMedianRTTMs) {
		return false
	}
	return true
}

func hasFullOutageOver(outages []models.FullOutage, seconds float64) bool {
	for _, outage := range outages {
		if outage.DurationSeconds >= seconds {
			return true
		}
	}
	return false
}

func statsFor(stats []models.SessionStats, target string) *models.TargetStats {
	for _, s := range stats {
		if s.Target == target {
			return s.Stats
		}
	}
	return nil
}
