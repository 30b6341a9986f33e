// Package config lifts the scheduler's global mutable state (unburial
// timestamps, easy-day tables, fuzz bounds) into an explicit RuntimeContext,
// per spec section 9's "global mutable state" redesign note, loaded from
// YAML the way the teacher's otherwise-unused gopkg.in/yaml.v3 dependency
// was meant to be used.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Weekday indexes easy_days.days_to_workload_percentage (spec section 4.9),
// 0=Sunday..6=Saturday, matching time.Weekday.
type Weekday = time.Weekday

// EasyDaysConfig is the weekday workload table consulted by the smart
// scheduler's easy-day weighting step (spec section 4.9 step 2).
type EasyDaysConfig struct {
	DaysToWorkloadPercentage map[Weekday]float64 `yaml:"days_to_workload_percentage"`
	SpecificDates            []time.Time         `yaml:"specific_dates"`
}

// Disabled reports whether easy-days weighting should be skipped: all
// weekday weights equal and no specific dates configured (spec section 4.9
// step 2 preamble).
func (e EasyDaysConfig) Disabled() bool {
	if len(e.SpecificDates) > 0 {
		return false
	}
	if len(e.DaysToWorkloadPercentage) == 0 {
		return true
	}
	var first float64
	seen := false
	for _, w := range e.DaysToWorkloadPercentage {
		if !seen {
			first = w
			seen = true
			continue
		}
		if w != first {
			return false
		}
	}
	return true
}

// SchedulerConfig is the tunable knobs consumed by C8/C9/C10, loaded once
// per operation (spec section 5: "configuration is read once per
// operation").
type SchedulerConfig struct {
	MinimumInterval   time.Duration  `yaml:"minimum_interval"`
	MaximumInterval   time.Duration  `yaml:"maximum_interval"`
	EasyDays          EasyDaysConfig `yaml:"easy_days"`
	LeechLapseThreshold int          `yaml:"leech_lapse_threshold"`
	FilteredGoodThreshold int        `yaml:"filtered_good_threshold"`
	// SmartScheduleSkew is the fixed per-step weight increment applied when
	// sibling dispersion proposes a shift (spec section 9, open question 3 —
	// kept abstract in the source as a hard-coded ±0.1; exposed here).
	SmartScheduleSkew float64 `yaml:"smart_schedule_skew"`
	RetentionSafetyBand float64 `yaml:"retention_safety_band"`
}

// DefaultSchedulerConfig returns the baseline configuration matching the
// constants named throughout spec sections 4.8-4.10.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		MinimumInterval:       24 * time.Hour,
		MaximumInterval:       100 * 365 * 24 * time.Hour,
		LeechLapseThreshold:   8,
		FilteredGoodThreshold: 2,
		SmartScheduleSkew:     0.1,
		RetentionSafetyBand:   0.05,
		EasyDays: EasyDaysConfig{
			DaysToWorkloadPercentage: map[Weekday]float64{
				time.Sunday: 1.0 / 7, time.Monday: 1.0 / 7, time.Tuesday: 1.0 / 7,
				time.Wednesday: 1.0 / 7, time.Thursday: 1.0 / 7, time.Friday: 1.0 / 7,
				time.Saturday: 1.0 / 7,
			},
		},
	}
}

// LoadSchedulerConfig reads a YAML config file, falling back to
// DefaultSchedulerConfig for any field left unset in the file.
func LoadSchedulerConfig(path string) (SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read scheduler config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse scheduler config %s: %w", path, err)
	}
	return cfg, nil
}

// RuntimeContext is the single mutable-state carrier passed to scheduler
// entry points (spec section 9): the config plus a reference clock, so
// scheduling math never reaches for time.Now() directly and stays
// deterministic under test.
type RuntimeContext struct {
	Config SchedulerConfig
	Now    func() time.Time
}

// NewRuntimeContext builds a RuntimeContext with the real wall clock.
func NewRuntimeContext(cfg SchedulerConfig) *RuntimeContext {
	return &RuntimeContext{Config: cfg, Now: time.Now}
}

// WriteInternalConfig is the single narrow mutation method spec section 5
// requires ("mutation goes through an explicit write_internal_config that is
// externally serialized") — callers are responsible for their own locking;
// this just swaps the value.
func (r *RuntimeContext) WriteInternalConfig(cfg SchedulerConfig) {
	r.Config = cfg
}
