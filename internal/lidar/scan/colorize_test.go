package scan

import (
	"image/color"
	"math"
	"testing"
)

const colorTolerance = 1e-9

func assertColor(t *testing.T, want, got Color) {
	t.Helper()
	if math.Abs(want.R-got.R) > colorTolerance || math.Abs(want.G-got.G) > colorTolerance ||
		math.Abs(want.B-got.B) > colorTolerance || math.Abs(want.A-got.A) > colorTolerance {
		t.Errorf("color = %+v, want %+v", got, want)
	}
}

func TestDistanceColorizer_Alpha(t *testing.T) {
	d := DistanceColorizer{MaxDistance: 800}

	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 0},
		{200, 0.25},
		{400, 0.5},
		{800, 1},
		{1600, 1},
		{-10, 0},
	}
	for _, tt := range tests {
		if got := d.Alpha(tt.distance); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Alpha(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestDistanceColorizer_Endpoints(t *testing.T) {
	d := DistanceColorizer{Close: Red, Far: Blue, MaxDistance: 800}

	assertColor(t, Red, d.Colorize(0))
	assertColor(t, Blue, d.Colorize(800))
	assertColor(t, Blue, d.Colorize(5000))
}

func TestDistanceColorizer_NonPositiveMaxDistance(t *testing.T) {
	for _, maxDistance := range []float64{0, -1} {
		d := DistanceColorizer{Close: Red, Far: Blue, MaxDistance: maxDistance}
		if got := d.Alpha(0); got != 1 {
			t.Errorf("MaxDistance=%v: Alpha(0) = %v, want 1", maxDistance, got)
		}
		assertColor(t, Blue, d.Colorize(0))
		assertColor(t, Blue, d.Colorize(100))
	}
}

func TestDistanceColorizer_HalfwayIsHueBlend(t *testing.T) {
	d := DistanceColorizer{Close: Red, Far: Blue, MaxDistance: 800}

	// Red (0 deg) to blue (240 deg) goes the short way round through 300 deg.
	assertColor(t, Color{R: 1, G: 0, B: 1, A: 1}, d.Colorize(400))
}

func TestLerpHSV_Alpha(t *testing.T) {
	a := Color{R: 1, A: 0}
	b := Color{R: 1, A: 1}

	got := LerpHSV(a, b, 0.25)
	assertColor(t, Color{R: 1, A: 0.25}, got)
}

func TestLerpHSV_GreenToBlue(t *testing.T) {
	// 120 deg to 240 deg: midpoint is cyan.
	got := LerpHSV(Green, Blue, 0.5)
	assertColor(t, Color{R: 0, G: 1, B: 1, A: 1}, got)
}

func TestColor_NRGBA(t *testing.T) {
	tests := []struct {
		in   Color
		want color.NRGBA
	}{
		{Red, color.NRGBA{R: 255, A: 255}},
		{White, color.NRGBA{R: 255, G: 255, B: 255, A: 255}},
		{Color{R: 0.5, G: 0.25, A: 1}, color.NRGBA{R: 128, G: 64, A: 255}},
		{Color{R: 2, G: -1, B: 0.5}, color.NRGBA{R: 255, B: 128}},
	}
	for _, tt := range tests {
		if got := tt.in.NRGBA(); got != tt.want {
			t.Errorf("%+v.NRGBA() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
