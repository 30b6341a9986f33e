package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultSchedulerConfigEasyDaysDisabled(t *testing.T) {
	cfg := DefaultSchedulerConfig()
	if !cfg.EasyDays.Disabled() {
		t.Errorf("uniform weekday weights should report Disabled() == true")
	}
}

func TestEasyDaysConfigEnabledWithSpecificDates(t *testing.T) {
	e := EasyDaysConfig{SpecificDates: []time.Time{time.Now()}}
	if e.Disabled() {
		t.Errorf("configured specific dates should report Disabled() == false")
	}
}

func TestEasyDaysConfigEnabledWithUnevenWeights(t *testing.T) {
	e := EasyDaysConfig{DaysToWorkloadPercentage: map[Weekday]float64{
		time.Sunday: 0.5, time.Monday: 0.1,
	}}
	if e.Disabled() {
		t.Errorf("uneven weekday weights should report Disabled() == false")
	}
}

func TestEasyDaysConfigDisabledWhenEmpty(t *testing.T) {
	var e EasyDaysConfig
	if !e.Disabled() {
		t.Errorf("zero-value EasyDaysConfig should report Disabled() == true")
	}
}

func TestLoadSchedulerConfigMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := LoadSchedulerConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadSchedulerConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultSchedulerConfig()) {
		t.Errorf("missing config file should fall back to defaults, got %+v", cfg)
	}
}

func TestLoadSchedulerConfigOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spares.yaml")
	yamlBody := "minimum_interval: 48h\nleech_lapse_threshold: 4\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadSchedulerConfig(path)
	if err != nil {
		t.Fatalf("LoadSchedulerConfig: %v", err)
	}
	if cfg.MinimumInterval != 48*time.Hour {
		t.Errorf("MinimumInterval = %v, want 48h", cfg.MinimumInterval)
	}
	if cfg.LeechLapseThreshold != 4 {
		t.Errorf("LeechLapseThreshold = %d, want 4", cfg.LeechLapseThreshold)
	}
	if cfg.MaximumInterval != DefaultSchedulerConfig().MaximumInterval {
		t.Errorf("unset fields should retain their default values")
	}
}

func TestRuntimeContextWriteInternalConfig(t *testing.T) {
	rc := NewRuntimeContext(DefaultSchedulerConfig())
	if rc.Now == nil {
		t.Fatalf("NewRuntimeContext must install a clock")
	}
	updated := rc.Config
	updated.LeechLapseThreshold = 99
	rc.WriteInternalConfig(updated)
	if rc.Config.LeechLapseThreshold != 99 {
		t.Errorf("WriteInternalConfig did not persist the new config")
	}
}
