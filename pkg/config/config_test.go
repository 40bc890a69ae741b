package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
environment: test
validation:
  start_date: "2024-01-01"
  end_date: "2024-12-31"
price:
  min_price: 0.01
  max_price: 1000000
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Validation.Frequency != "1d" {
		t.Fatalf("expected default frequency 1d, got %s", cfg.Validation.Frequency)
	}
	if cfg.Validation.MinConfidence != 0.3 {
		t.Fatalf("expected default min_confidence 0.3, got %v", cfg.Validation.MinConfidence)
	}
	if cfg.Price.BaseItemID != 1 {
		t.Fatalf("expected default base_item_id 1, got %d", cfg.Price.BaseItemID)
	}
	if cfg.Price.AnomalyThreshold != 3.0 {
		t.Fatalf("expected default anomaly_threshold 3.0, got %v", cfg.Price.AnomalyThreshold)
	}
	if cfg.Solver.ConditionBound != 1e8 {
		t.Fatalf("expected default condition_bound 1e8, got %v", cfg.Solver.ConditionBound)
	}
	if cfg.Runner.Interval != time.Minute {
		t.Fatalf("expected default runner interval 1m, got %v", cfg.Runner.Interval)
	}
}

func TestLoadParsesValidationWindow(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	start, end := cfg.ValidationWindow()
	if !start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window start %v", start)
	}
	if !end.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window end %v", end)
	}
}

func TestLoadRejectsMissingEnvironment(t *testing.T) {
	_, err := Load(writeConfig(t, "price:\n  max_price: 100\n"))
	if err == nil {
		t.Fatalf("expected error for missing environment")
	}
}

func TestLoadRejectsInvalidFrequency(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
validation:
  frequency: 5m
`))
	if err == nil {
		t.Fatalf("expected error for invalid frequency")
	}
}

func TestLoadRejectsInvertedWindow(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
validation:
  start_date: "2024-12-31"
  end_date: "2024-01-01"
`))
	if err == nil {
		t.Fatalf("expected error for end before start")
	}
}

func TestLoadRejectsInvertedPriceBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `
environment: test
price:
  min_price: 100
  max_price: 1
`))
	if err == nil {
		t.Fatalf("expected error for max below min")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("PRIORITY_SOURCES", "alpha,beta")

	cfg, err := LoadWithEnv(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[0] != "broker1:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Validation.PrioritySources) != 2 || cfg.Validation.PrioritySources[1] != "beta" {
		t.Fatalf("unexpected priority sources %v", cfg.Validation.PrioritySources)
	}
}
