package scan

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// InstantConfig controls the instant (disc) scan.
type InstantConfig struct {
	RayCount   int
	Radius     float64 // initial cone radius, clamped to [RadiusMin, RadiusMax]
	RadiusMin  float64
	RadiusMax  float64
	RadiusStep float64
}

// SweepConfig controls the sweep scan.
type SweepConfig struct {
	RayCount          int     // rays per horizontal line
	HorizontalAngle   float64 // degrees, full width, [0,360]
	VerticalHalfAngle float64 // degrees, [0,90]
	Rate              float64 // degrees per second
}

// Config is the immutable scanner configuration. Controllers copy it on
// construction and on Reconfigure.
type Config struct {
	ScannerID string

	Instant InstantConfig
	Sweep   SweepConfig

	MaxRayLength float64
	MuzzleOffset r3.Vec

	ColorMaxDistance float64
	CloseColor       Color
	FarColor         Color
	DefaultLifetime  float64

	Overrides []SurfaceOverride

	EnableDebug bool
}

// DefaultConfig returns the stock scanner settings.
func DefaultConfig() Config {
	return Config{
		ScannerID: "scanner-01",
		Instant: InstantConfig{
			RayCount:   50,
			Radius:     1,
			RadiusMin:  0.1,
			RadiusMax:  3,
			RadiusStep: 1,
		},
		Sweep: SweepConfig{
			RayCount:          40,
			HorizontalAngle:   30,
			VerticalHalfAngle: 30,
			Rate:              10,
		},
		MaxRayLength:     10000,
		ColorMaxDistance: 800,
		CloseColor:       Red,
		FarColor:         Blue,
		DefaultLifetime:  99999,
	}
}

// normalized returns a copy with angle bounds clamped to their legal ranges
// and the radius bounds ordered. Ray counts are left alone; negative counts
// simply produce no rays.
func (c Config) normalized() Config {
	if c.Instant.RadiusMin > c.Instant.RadiusMax {
		c.Instant.RadiusMin, c.Instant.RadiusMax = c.Instant.RadiusMax, c.Instant.RadiusMin
	}
	c.Instant.Radius = clamp(c.Instant.Radius, c.Instant.RadiusMin, c.Instant.RadiusMax)
	c.Sweep.HorizontalAngle = clamp(c.Sweep.HorizontalAngle, 0, 360)
	c.Sweep.VerticalHalfAngle = clamp(c.Sweep.VerticalHalfAngle, 0, 90)
	c.Overrides = append([]SurfaceOverride(nil), c.Overrides...)
	return c
}
