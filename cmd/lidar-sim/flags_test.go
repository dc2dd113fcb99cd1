package main

import (
	"testing"
	"time"

	"github.com/banshee-data/lidarscan/internal/config"
)

// TestFlagDefaults verifies that the documented defaults are what
// optionsFromFlags hands to the simulator.
func TestFlagDefaults(t *testing.T) {
	o := optionsFromFlags()

	if o.ConfigPath != config.DefaultConfigPath {
		t.Errorf("ConfigPath = %q, want %q", o.ConfigPath, config.DefaultConfigPath)
	}
	if !o.WatchConfig {
		t.Error("config watching should be on by default")
	}
	if o.Tick != 16*time.Millisecond {
		t.Errorf("Tick = %v, want 16ms", o.Tick)
	}
	if o.InstantEvery != 0 {
		t.Errorf("InstantEvery = %v, want disabled", o.InstantEvery)
	}
	if o.SweepEvery != 10*time.Second {
		t.Errorf("SweepEvery = %v, want 10s", o.SweepEvery)
	}
	if o.DBPath == "" {
		t.Error("journal should be enabled by default")
	}
	if o.Clock != nil {
		t.Error("flags never set a clock")
	}
}
