package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/monitoring"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadScannerConfig(t *testing.T) {
	path := writeConfig(t, "scanner.json", `{
  "scanner_id": "north-mast",
  "instant_ray_count": 12,
  "radius_max": 5,
  "sweep_rate": 45,
  "muzzle_offset": [0.5, 0, 0.25],
  "far_color": {"r": 0, "g": 1, "b": 0, "a": 1},
  "surface_overrides": [
    {"tag": "metal", "color": {"r": 0.8, "g": 0.8, "b": 0.9, "a": 1}, "lifetime": 5}
  ],
  "enable_debug": true
}`)

	cfg, err := LoadScannerConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetScannerID() != "north-mast" {
		t.Errorf("GetScannerID() = %q, want north-mast", cfg.GetScannerID())
	}
	if cfg.GetInstantRayCount() != 12 {
		t.Errorf("GetInstantRayCount() = %d, want 12", cfg.GetInstantRayCount())
	}
	if cfg.GetRadiusMax() != 5 {
		t.Errorf("GetRadiusMax() = %f, want 5", cfg.GetRadiusMax())
	}
	if cfg.GetSweepRate() != 45 {
		t.Errorf("GetSweepRate() = %f, want 45", cfg.GetSweepRate())
	}
	if got := cfg.GetMuzzleOffset(); got != (r3.Vec{X: 0.5, Z: 0.25}) {
		t.Errorf("GetMuzzleOffset() = %v", got)
	}
	if cfg.GetFarColor() != scan.Green {
		t.Errorf("GetFarColor() = %+v, want green", cfg.GetFarColor())
	}
	if !cfg.GetEnableDebug() {
		t.Error("GetEnableDebug() = false, want true")
	}

	// Omitted fields keep their defaults.
	if cfg.GetSweepRayCount() != 40 {
		t.Errorf("GetSweepRayCount() = %d, want default 40", cfg.GetSweepRayCount())
	}
	if cfg.GetCloseColor() != scan.Red {
		t.Errorf("GetCloseColor() = %+v, want default red", cfg.GetCloseColor())
	}
}

func TestLoadScannerConfigMissing(t *testing.T) {
	if _, err := LoadScannerConfig("/nonexistent/path/to/config.json"); err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadScannerConfigInvalidJSON(t *testing.T) {
	path := writeConfig(t, "invalid.json", `{"instant_ray_count": "many"`)
	if _, err := LoadScannerConfig(path); err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadScannerConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "scanner.yaml", `instant_ray_count: 3`)
	_, err := LoadScannerConfig(path)
	if err == nil || !strings.Contains(err.Error(), ".json") {
		t.Errorf("Expected extension error, got %v", err)
	}
}

func TestLoadScannerConfigRejectsLargeFile(t *testing.T) {
	body := `{"scanner_id": "` + strings.Repeat("x", maxFileSize) + `"}`
	path := writeConfig(t, "huge.json", body)
	_, err := LoadScannerConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected size error, got %v", err)
	}
}

func TestLoadScannerConfigRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "bad.json", `{"sweep_vertical_half_angle": 120}`)
	_, err := LoadScannerConfig(path)
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ScannerConfig
		wantErr bool
	}{
		{name: "empty config is valid", cfg: &ScannerConfig{}},
		{name: "zero ray counts are valid", cfg: &ScannerConfig{InstantRayCount: ptrInt(0), SweepRayCount: ptrInt(0)}},
		{name: "negative ray counts are valid", cfg: &ScannerConfig{InstantRayCount: ptrInt(-1), SweepRayCount: ptrInt(-3)}},
		{name: "negative radius min", cfg: &ScannerConfig{RadiusMin: ptrFloat64(-0.5)}, wantErr: true},
		{name: "radius min above max", cfg: &ScannerConfig{RadiusMin: ptrFloat64(4)}, wantErr: true},
		{name: "zero radius step", cfg: &ScannerConfig{RadiusStep: ptrFloat64(0)}, wantErr: true},
		{name: "horizontal angle too wide", cfg: &ScannerConfig{SweepHorizontalAngle: ptrFloat64(361)}, wantErr: true},
		{name: "full circle horizontal angle", cfg: &ScannerConfig{SweepHorizontalAngle: ptrFloat64(360)}},
		{name: "vertical half angle negative", cfg: &ScannerConfig{SweepVerticalHalfAngle: ptrFloat64(-1)}, wantErr: true},
		{name: "zero sweep rate", cfg: &ScannerConfig{SweepRate: ptrFloat64(0)}, wantErr: true},
		{name: "zero max ray length", cfg: &ScannerConfig{MaxRayLength: ptrFloat64(0)}, wantErr: true},
		{name: "colour channel out of range", cfg: &ScannerConfig{CloseColor: &scan.Color{R: 2, A: 1}}, wantErr: true},
		{
			name:    "override without tag",
			cfg:     &ScannerConfig{SurfaceOverrides: []scan.SurfaceOverride{{Color: scan.White, Lifetime: 1}}},
			wantErr: true,
		},
		{
			name:    "override with bad colour",
			cfg:     &ScannerConfig{SurfaceOverrides: []scan.SurfaceOverride{{Tag: "metal", Color: scan.Color{B: -1}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToScanConfigDefaultsMatchEngine(t *testing.T) {
	got := EmptyScannerConfig().ToScanConfig()
	want := scan.DefaultConfig()
	want.Overrides = []scan.SurfaceOverride{}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ToScanConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestToScanConfigOverrides(t *testing.T) {
	cfg := &ScannerConfig{
		ScannerID: ptrString("rig"),
		SurfaceOverrides: []scan.SurfaceOverride{
			{Tag: "metal", Color: scan.White, Lifetime: 3},
			{Tag: "glass", Color: scan.Green, Lifetime: 1},
		},
	}
	got := cfg.ToScanConfig()

	want := []scan.SurfaceOverride{
		{Tag: "metal", Color: scan.White, Lifetime: 3},
		{Tag: "glass", Color: scan.Green, Lifetime: 1},
	}
	if diff := cmp.Diff(want, got.Overrides); diff != "" {
		t.Errorf("Overrides mismatch (-want +got):\n%s", diff)
	}
	if got.ScannerID != "rig" {
		t.Errorf("ScannerID = %q, want rig", got.ScannerID)
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	// The checked-in defaults must agree with the built-in fallbacks.
	want := scan.DefaultConfig()
	want.Overrides = []scan.SurfaceOverride{}
	if diff := cmp.Diff(want, cfg.ToScanConfig()); diff != "" {
		t.Errorf("defaults file mismatch (-want +got):\n%s", diff)
	}
}

func TestNegativeRayCountsCastNothing(t *testing.T) {
	prev := monitoring.Logf
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) { logged = append(logged, fmt.Sprintf(format, v...)) })
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	path := writeConfig(t, "negative.json", `{"instant_ray_count": -5, "sweep_ray_count": -1}`)
	cfg, err := LoadScannerConfig(path)
	if err != nil {
		t.Fatalf("negative ray counts should load, got %v", err)
	}
	if got := cfg.ToScanConfig().Instant.RayCount; got != 0 {
		t.Errorf("Instant.RayCount = %d, want 0", got)
	}
	if got := cfg.ToScanConfig().Sweep.RayCount; got != 0 {
		t.Errorf("Sweep.RayCount = %d, want 0", got)
	}
	if len(logged) != 2 {
		t.Errorf("expected a log line per negative count, got %q", logged)
	}
}
