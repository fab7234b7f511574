package engine

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/miradorstack/mirador-uptime/internal/models"
)

const testRulePack = `rules:
  - id: full-outage
    match:
      require_full_outages: true
      min_outage_seconds: 1
    message: "every target lost connectivity"
  - id: low-uptime
    match:
      below_uptime: 0.9
    message: "{target} uptime below 90%"
  - id: gateway-down
    match:
      target: 192.168.1.1
      status: DISCONNECTED
    message: "local gateway unreachable"
`

func writeRulePack(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestRuleEngineEvaluate(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t, testRulePack), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	histories := []models.TargetHistory{
		{Address: "8.8.8.8", Probes: failingRun("8.8.8.8", 1000, 2000, 3000)},
		{Address: "1.1.1.1", Probes: failingRun("1.1.1.1", 1200, 2200, 3200)},
	}
	report := newTestPipeline().Analyze(histories, at(4500))
	notices := engine.Evaluate(report)

	if len(notices) != 3 {
		t.Fatalf("expected 3 notices, got %+v", notices)
	}
	if notices[0].RuleID != "full-outage" || notices[0].Target != "" {
		t.Fatalf("unexpected first notice: %+v", notices[0])
	}
	if notices[1].Message != "8.8.8.8 uptime below 90%" || notices[2].Target != "1.1.1.1" {
		t.Fatalf("unexpected per-target notices: %+v", notices[1:])
	}
}

func TestRuleEngineTargetStatusRule(t *testing.T) {
	engine, err := NewRuleEngine(writeRulePack(t, testRulePack), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	histories := []models.TargetHistory{{Address: "192.168.1.1", Probes: []models.ProbeResult{badProbe("192.168.1.1", 1, 1000)}}}
	report := NewPipeline(nil, Options{LatencyThresholdMs: 250, ConnectionTimeout: time.Minute}).Analyze(histories, at(1500))

	var fired bool
	for _, notice := range engine.Evaluate(report) {
		if notice.RuleID == "gateway-down" && notice.Target == "192.168.1.1" {
			fired = true
		}
	}
	if !fired {
		t.Fatalf("expected gateway-down notice")
	}
}

func TestNewRuleEngineMissingFile(t *testing.T) {
	engine, err := NewRuleEngine(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil || engine != nil {
		t.Fatalf("expected nil engine and nil error, got %v %v", engine, err)
	}
	if notices := engine.Evaluate(Report{}); notices != nil {
		t.Fatalf("nil engine must not produce notices")
	}
}

func TestNewRuleEngineInvalidYAML(t *testing.T) {
	if _, err := NewRuleEngine(writeRulePack(t, "rules: [unterminated"), nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
