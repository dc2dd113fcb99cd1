package scan

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// DistanceColorizer maps hit distance to a colour between Close and Far.
type DistanceColorizer struct {
	Close       Color
	Far         Color
	MaxDistance float64
}

// Alpha returns the interpolation weight for distance. A non-positive
// MaxDistance yields 1 so every sample takes the Far colour.
func (d DistanceColorizer) Alpha(distance float64) float64 {
	if d.MaxDistance <= 0 {
		return 1
	}
	return clamp(distance/d.MaxDistance, 0, 1)
}

// Colorize returns the colour for a hit at distance.
func (d DistanceColorizer) Colorize(distance float64) Color {
	return LerpHSV(d.Close, d.Far, d.Alpha(distance))
}

// LerpHSV interpolates from a to b in HSV space, taking the shorter way
// around the hue circle. Alpha is interpolated linearly.
func LerpHSV(a, b Color, t float64) Color {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	ca := colorful.Color{R: a.R, G: a.G, B: a.B}
	cb := colorful.Color{R: b.R, G: b.G, B: b.B}
	mixed := ca.BlendHsv(cb, t)
	return Color{
		R: mixed.R,
		G: mixed.G,
		B: mixed.B,
		A: a.A + (b.A-a.A)*t,
	}
}
