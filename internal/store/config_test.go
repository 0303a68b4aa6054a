package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalYAML = `
symbols: [EURUSD]
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Mode != ModeDryRun {
		t.Errorf("expected mode %s, got %s", ModeDryRun, cfg.Mode)
	}
	if cfg.Timeframe != "M15" {
		t.Errorf("expected timeframe M15, got %s", cfg.Timeframe)
	}
	if cfg.Profile != ProfileDefault {
		t.Errorf("expected default profile, got %s", cfg.Profile)
	}

	g := cfg.ActiveProfile().Guard
	if g.MaxPositions != 5 || g.SLBasePoints != 100 || g.TPRatio != 1.5 {
		t.Errorf("unexpected guard defaults: %+v", g)
	}
	if g.TrendStrengthThreshold != 0.5 || g.EntryTolerancePercent != 0.3 {
		t.Errorf("unexpected entry thresholds: %+v", g)
	}
	if g.VolatilityThresholdPoints != 50 || g.VolatilityMeasure != "range" {
		t.Errorf("unexpected volatility gate: %+v", g)
	}
	if _, ok := cfg.Profiles[ProfileMock]; !ok {
		t.Error("expected built-in mock profile")
	}
	if cfg.Journal.SummaryTime != "15:40" {
		t.Errorf("expected summary time 15:40, got %q", cfg.Journal.SummaryTime)
	}
}

func TestPartialProfileKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
symbols: [EURUSD]
profile: tight
profiles:
  tight:
    guard:
      max_positions: 2
      entry_tolerance_percent: 0
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	g := cfg.ActiveProfile().Guard
	if g.MaxPositions != 2 {
		t.Errorf("expected max_positions 2, got %d", g.MaxPositions)
	}
	if g.EntryTolerancePercent != 0 {
		t.Errorf("expected explicit zero tolerance to survive, got %v", g.EntryTolerancePercent)
	}
	if g.SLBasePoints != 100 {
		t.Errorf("expected default sl_base_points 100, got %d", g.SLBasePoints)
	}
	if cfg.ActiveProfile().Trend.SlowSpan != 50 {
		t.Errorf("expected default slow span, got %d", cfg.ActiveProfile().Trend.SlowSpan)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	_, err := Parse([]byte(`
mode: PAPER
symbols: []
profile: missing
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"mode", "symbols", "unknown profile"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected error to mention %q, got %v", want, msg)
		}
	}
}

func TestValidateRejectsInvertedSpans(t *testing.T) {
	_, err := Parse([]byte(`
symbols: [EURUSD]
profiles:
  default:
    trend:
      fast_span: 60
      slow_span: 50
`))
	if err == nil || !strings.Contains(err.Error(), "slow_span") {
		t.Errorf("expected slow_span error, got %v", err)
	}
}

func TestValidateBarsCoverLookback(t *testing.T) {
	_, err := Parse([]byte(`
symbols: [EURUSD]
bars: 20
`))
	if err == nil || !strings.Contains(err.Error(), "lookback") {
		t.Errorf("expected lookback error, got %v", err)
	}
}

func TestLiveModeRequiresCredentials(t *testing.T) {
	t.Setenv("KITE_API_KEY", "")
	t.Setenv("KITE_ACCESS_TOKEN", "")
	_, err := Parse([]byte(`
mode: LIVE
symbols: [INFY]
`))
	if err == nil || !strings.Contains(err.Error(), "KITE_API_KEY") {
		t.Errorf("expected credentials error, got %v", err)
	}

	t.Setenv("KITE_API_KEY", "key")
	t.Setenv("KITE_ACCESS_TOKEN", "token")
	if _, err := Parse([]byte("mode: LIVE\nsymbols: [INFY]\n")); err != nil {
		t.Errorf("expected LIVE config to validate, got %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BOT_SYMBOLS", "EURUSD, GBPUSD ,")
	t.Setenv("BOT_POLL_SECONDS", "30")
	t.Setenv("BOT_RISK_PERCENT", "2.5")
	t.Setenv("BOT_MAX_POSITIONS", "3")

	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "GBPUSD" {
		t.Errorf("expected [EURUSD GBPUSD], got %v", cfg.Symbols)
	}
	if cfg.PollSeconds != 30 {
		t.Errorf("expected poll 30, got %d", cfg.PollSeconds)
	}
	g := cfg.ActiveProfile().Guard
	if g.RiskPercent != 2.5 || g.MaxPositions != 3 {
		t.Errorf("expected overrides in active profile, got %+v", g)
	}
}

func TestEnvOverrideParseError(t *testing.T) {
	t.Setenv("BOT_POLL_SECONDS", "soon")
	if _, err := Parse([]byte(minimalYAML)); err == nil {
		t.Error("expected parse error for BOT_POLL_SECONDS")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Symbols[0] != "EURUSD" {
		t.Errorf("expected EURUSD, got %v", cfg.Symbols)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
