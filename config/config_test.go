package config

import (
	"os"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalConfig = `marketforge:
  name: "TestApp"
  version: "1.0"
engine:
  window_duration_seconds: 60
  thread_pool_workers: 4
feed:
  queue_capacity: 128
  unique_tags: true
  sources:
    - type: csv
      name: primary
      csv:
        filename: "testdata/orders.csv"
`

func TestLoadConfig(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.MarketForge.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.MarketForge.Name)
	}
	if cfg.Engine.ThreadPoolWorkers != 4 {
		t.Errorf("unexpected thread pool workers: %d", cfg.Engine.ThreadPoolWorkers)
	}
	if len(cfg.Feed.Sources) != 1 || cfg.Feed.Sources[0].CSV.Filename != "testdata/orders.csv" {
		t.Errorf("unexpected feed sources: %+v", cfg.Feed.Sources)
	}
}

func TestLoadConfigAppliesEngineDefaults(t *testing.T) {
	path := writeTempConfig(t, `marketforge:
  name: "TestApp"
  version: "1.0"
feed:
  queue_capacity: 1
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Engine.WindowDurationSeconds != 60 {
		t.Errorf("expected default window duration 60, got %d", cfg.Engine.WindowDurationSeconds)
	}
}

func TestLoadConfigRejectsMissingName(t *testing.T) {
	path := writeTempConfig(t, `marketforge:
  version: "1.0"
feed:
  queue_capacity: 1
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for missing name")
	}
}

func TestLoadConfigRejectsUnknownSourceType(t *testing.T) {
	path := writeTempConfig(t, `marketforge:
  name: "TestApp"
  version: "1.0"
feed:
  queue_capacity: 1
  sources:
    - type: carrier-pigeon
      name: bad
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for unknown source type")
	}
}

func TestLoadConfigRejectsIncompleteCSVSource(t *testing.T) {
	path := writeTempConfig(t, `marketforge:
  name: "TestApp"
  version: "1.0"
feed:
  queue_capacity: 1
  sources:
    - type: csv
      name: bad
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for csv source missing filename")
	}
}

func TestLoadConfigRequiresDashboardAddressWhenEnabled(t *testing.T) {
	path := writeTempConfig(t, `marketforge:
  name: "TestApp"
  version: "1.0"
feed:
  queue_capacity: 1
dashboard:
  enabled: true
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for enabled dashboard without address")
	}
}
