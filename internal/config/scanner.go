package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

// DefaultConfigPath is the path to the canonical scanner defaults file.
const DefaultConfigPath = "config/scanner.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ScannerConfig is the JSON document describing a scanner. Every field is
// optional; the Get* methods fall back to the stock defaults, so partial
// files are safe.
type ScannerConfig struct {
	ScannerID *string `json:"scanner_id,omitempty"`

	// Instant scan
	InstantRayCount *int     `json:"instant_ray_count,omitempty"`
	InstantRadius   *float64 `json:"instant_radius,omitempty"`
	RadiusMin       *float64 `json:"radius_min,omitempty"`
	RadiusMax       *float64 `json:"radius_max,omitempty"`
	RadiusStep      *float64 `json:"radius_step,omitempty"`

	// Sweep scan
	SweepRayCount          *int     `json:"sweep_ray_count,omitempty"`
	SweepHorizontalAngle   *float64 `json:"sweep_horizontal_angle,omitempty"`   // degrees
	SweepVerticalHalfAngle *float64 `json:"sweep_vertical_half_angle,omitempty"` // degrees
	SweepRate              *float64 `json:"sweep_rate,omitempty"`                // degrees per second

	MaxRayLength *float64    `json:"max_ray_length,omitempty"`
	MuzzleOffset *[3]float64 `json:"muzzle_offset,omitempty"`

	// Colouring
	ColorMaxDistance *float64          `json:"color_max_distance,omitempty"`
	CloseColor       *scan.Color       `json:"close_color,omitempty"`
	FarColor         *scan.Color       `json:"far_color,omitempty"`
	DefaultLifetime  *float64          `json:"default_lifetime,omitempty"`
	SurfaceOverrides []scan.SurfaceOverride `json:"surface_overrides,omitempty"`

	EnableDebug *bool `json:"enable_debug,omitempty"`
}

// EmptyScannerConfig returns a ScannerConfig with all fields unset.
func EmptyScannerConfig() *ScannerConfig {
	return &ScannerConfig{}
}

// LoadScannerConfig loads and validates a ScannerConfig from a JSON file.
func LoadScannerConfig(path string) (*ScannerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseScannerConfig(data)
}

// ParseScannerConfig decodes and validates a JSON document.
func ParseScannerConfig(data []byte) (*ScannerConfig, error) {
	cfg := EmptyScannerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *ScannerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/lidar/scan/
		"../../../../" + DefaultConfigPath,    // from internal/lidar/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadScannerConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the values that are set. Negative ray counts are not an
// error: they cast zero rays.
func (c *ScannerConfig) Validate() error {
	if c.InstantRayCount != nil && *c.InstantRayCount < 0 {
		logf("instant_ray_count %d is negative, instant scans will cast no rays", *c.InstantRayCount)
	}
	if c.SweepRayCount != nil && *c.SweepRayCount < 0 {
		logf("sweep_ray_count %d is negative, sweep lines will cast no rays", *c.SweepRayCount)
	}

	if c.GetRadiusMin() < 0 {
		return fmt.Errorf("radius_min must be non-negative, got %f", c.GetRadiusMin())
	}
	if c.GetRadiusMin() > c.GetRadiusMax() {
		return fmt.Errorf("radius_min (%f) must not exceed radius_max (%f)", c.GetRadiusMin(), c.GetRadiusMax())
	}
	if c.RadiusStep != nil && *c.RadiusStep <= 0 {
		return fmt.Errorf("radius_step must be positive, got %f", *c.RadiusStep)
	}

	if h := c.GetSweepHorizontalAngle(); h < 0 || h > 360 {
		return fmt.Errorf("sweep_horizontal_angle must be between 0 and 360, got %f", h)
	}
	if v := c.GetSweepVerticalHalfAngle(); v < 0 || v > 90 {
		return fmt.Errorf("sweep_vertical_half_angle must be between 0 and 90, got %f", v)
	}
	if c.SweepRate != nil && *c.SweepRate <= 0 {
		return fmt.Errorf("sweep_rate must be positive, got %f", *c.SweepRate)
	}
	if c.MaxRayLength != nil && *c.MaxRayLength <= 0 {
		return fmt.Errorf("max_ray_length must be positive, got %f", *c.MaxRayLength)
	}

	if c.CloseColor != nil {
		if err := validateColor("close_color", *c.CloseColor); err != nil {
			return err
		}
	}
	if c.FarColor != nil {
		if err := validateColor("far_color", *c.FarColor); err != nil {
			return err
		}
	}
	for i, o := range c.SurfaceOverrides {
		if o.Tag == "" {
			return fmt.Errorf("surface_overrides[%d]: tag must not be empty", i)
		}
		if err := validateColor(fmt.Sprintf("surface_overrides[%d].color", i), o.Color); err != nil {
			return err
		}
	}
	return nil
}

func validateColor(field string, c scan.Color) error {
	for _, v := range []float64{c.R, c.G, c.B, c.A} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s channels must be between 0 and 1, got %+v", field, c)
		}
	}
	return nil
}

// GetScannerID returns the scanner_id value or the default.
func (c *ScannerConfig) GetScannerID() string {
	if c.ScannerID == nil || *c.ScannerID == "" {
		return "scanner-01"
	}
	return *c.ScannerID
}

// GetInstantRayCount returns the instant_ray_count value or the default.
func (c *ScannerConfig) GetInstantRayCount() int {
	if c.InstantRayCount == nil {
		return 50
	}
	return max(*c.InstantRayCount, 0)
}

// GetInstantRadius returns the instant_radius value or the default.
func (c *ScannerConfig) GetInstantRadius() float64 {
	if c.InstantRadius == nil {
		return 1.0
	}
	return *c.InstantRadius
}

// GetRadiusMin returns the radius_min value or the default.
func (c *ScannerConfig) GetRadiusMin() float64 {
	if c.RadiusMin == nil {
		return 0.1
	}
	return *c.RadiusMin
}

// GetRadiusMax returns the radius_max value or the default.
func (c *ScannerConfig) GetRadiusMax() float64 {
	if c.RadiusMax == nil {
		return 3.0
	}
	return *c.RadiusMax
}

// GetRadiusStep returns the radius_step value or the default.
func (c *ScannerConfig) GetRadiusStep() float64 {
	if c.RadiusStep == nil {
		return 1.0
	}
	return *c.RadiusStep
}

// GetSweepRayCount returns the sweep_ray_count value or the default.
func (c *ScannerConfig) GetSweepRayCount() int {
	if c.SweepRayCount == nil {
		return 40
	}
	return max(*c.SweepRayCount, 0)
}

// GetSweepHorizontalAngle returns the sweep_horizontal_angle value or the default.
func (c *ScannerConfig) GetSweepHorizontalAngle() float64 {
	if c.SweepHorizontalAngle == nil {
		return 30.0
	}
	return *c.SweepHorizontalAngle
}

// GetSweepVerticalHalfAngle returns the sweep_vertical_half_angle value or the default.
func (c *ScannerConfig) GetSweepVerticalHalfAngle() float64 {
	if c.SweepVerticalHalfAngle == nil {
		return 30.0
	}
	return *c.SweepVerticalHalfAngle
}

// GetSweepRate returns the sweep_rate value or the default.
func (c *ScannerConfig) GetSweepRate() float64 {
	if c.SweepRate == nil {
		return 10.0
	}
	return *c.SweepRate
}

// GetMaxRayLength returns the max_ray_length value or the default.
func (c *ScannerConfig) GetMaxRayLength() float64 {
	if c.MaxRayLength == nil {
		return 10000.0
	}
	return *c.MaxRayLength
}

// GetMuzzleOffset returns the muzzle_offset value or the zero vector.
func (c *ScannerConfig) GetMuzzleOffset() r3.Vec {
	if c.MuzzleOffset == nil {
		return r3.Vec{}
	}
	return r3.Vec{X: c.MuzzleOffset[0], Y: c.MuzzleOffset[1], Z: c.MuzzleOffset[2]}
}

// GetColorMaxDistance returns the color_max_distance value or the default.
func (c *ScannerConfig) GetColorMaxDistance() float64 {
	if c.ColorMaxDistance == nil {
		return 800.0
	}
	return *c.ColorMaxDistance
}

// GetCloseColor returns the close_color value or the default (red).
func (c *ScannerConfig) GetCloseColor() scan.Color {
	if c.CloseColor == nil {
		return scan.Red
	}
	return *c.CloseColor
}

// GetFarColor returns the far_color value or the default (blue).
func (c *ScannerConfig) GetFarColor() scan.Color {
	if c.FarColor == nil {
		return scan.Blue
	}
	return *c.FarColor
}

// GetDefaultLifetime returns the default_lifetime value or the default.
func (c *ScannerConfig) GetDefaultLifetime() float64 {
	if c.DefaultLifetime == nil {
		return 99999.0
	}
	return *c.DefaultLifetime
}

// GetEnableDebug returns the enable_debug value or the default.
func (c *ScannerConfig) GetEnableDebug() bool {
	if c.EnableDebug == nil {
		return false
	}
	return *c.EnableDebug
}

// ToScanConfig converts the document into the scanner's runtime config.
func (c *ScannerConfig) ToScanConfig() scan.Config {
	overrides := append(make([]scan.SurfaceOverride, 0, len(c.SurfaceOverrides)), c.SurfaceOverrides...)
	return scan.Config{
		ScannerID: c.GetScannerID(),
		Instant: scan.InstantConfig{
			RayCount:   c.GetInstantRayCount(),
			Radius:     c.GetInstantRadius(),
			RadiusMin:  c.GetRadiusMin(),
			RadiusMax:  c.GetRadiusMax(),
			RadiusStep: c.GetRadiusStep(),
		},
		Sweep: scan.SweepConfig{
			RayCount:          c.GetSweepRayCount(),
			HorizontalAngle:   c.GetSweepHorizontalAngle(),
			VerticalHalfAngle: c.GetSweepVerticalHalfAngle(),
			Rate:              c.GetSweepRate(),
		},
		MaxRayLength:     c.GetMaxRayLength(),
		MuzzleOffset:     c.GetMuzzleOffset(),
		ColorMaxDistance: c.GetColorMaxDistance(),
		CloseColor:       c.GetCloseColor(),
		FarColor:         c.GetFarColor(),
		DefaultLifetime:  c.GetDefaultLifetime(),
		Overrides:        overrides,
		EnableDebug:      c.GetEnableDebug(),
	}
}
