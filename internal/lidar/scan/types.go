// Package scan implements the lidar scan sampling engine: ray generation for
// the instant (disc) and sweep scan modes, hit classification, and the sample
// buffer that hands each completed batch to a particle renderer.
//
// The engine is driven by a single goroutine. Every exported operation on
// Controller completes synchronously; the only hand-off to other goroutines is
// SampleBuffer.Commit, which passes freshly allocated slices to the sink.
package scan

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Color is a linear RGBA colour with channels in [0,1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// NRGBA quantises c to 8 bits per channel, clamping out-of-range values.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: channel8(c.R), G: channel8(c.G), B: channel8(c.B), A: channel8(c.A)}
}

func channel8(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

// Common colours.
var (
	Red   = Color{R: 1, A: 1}
	Green = Color{G: 1, A: 1}
	Blue  = Color{B: 1, A: 1}
	White = Color{R: 1, G: 1, B: 1, A: 1}
)

// Sample is one classified lidar return.
type Sample struct {
	Position r3.Vec
	Color    Color
	Lifetime float64 // seconds
}

// Rotator is an orientation expressed as Euler angles in degrees.
//
// Axes: +X forward, +Y right, +Z up. Positive yaw turns forward towards
// right, positive pitch turns forward towards up, positive roll turns right
// towards up. Angles are applied roll first, then pitch, then yaw.
type Rotator struct {
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
	Roll  float64 `json:"roll"`
}

var (
	axisForward = r3.Vec{X: 1}
	axisRight   = r3.Vec{Y: 1}
	axisUp      = r3.Vec{Z: 1}
)

// Rotation returns the rotation described by r.
func (r Rotator) Rotation() r3.Rotation {
	yaw := r3.NewRotation(degToRad(r.Yaw), axisUp)
	pitch := r3.NewRotation(degToRad(r.Pitch), r3.Scale(-1, axisRight))
	roll := r3.NewRotation(degToRad(r.Roll), axisForward)
	return compose(yaw, compose(pitch, roll))
}

// compose returns the rotation that applies b first, then a.
func compose(a, b r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Mul(quat.Number(a), quat.Number(b)))
}

// Pose is a camera position and orientation in world space.
type Pose struct {
	Position r3.Vec
	Rotation Rotator
}

// Axes returns the forward, right and up unit vectors of the pose.
func (p Pose) Axes() (forward, right, up r3.Vec) {
	rot := p.Rotation.Rotation()
	return rot.Rotate(axisForward), rot.Rotate(axisRight), rot.Rotate(axisUp)
}

// Hit is the nearest intersection returned by an Oracle.
type Hit struct {
	Position r3.Vec
	Distance float64
	Tags     []string
	Actor    string
}

// Oracle resolves ray casts against the scene. Implementations must ignore
// the actors that own the scanner.
type Oracle interface {
	Cast(origin, direction r3.Vec, maxLength float64) (Hit, bool)
}

// PoseSource reports the current camera pose.
type PoseSource interface {
	CurrentPose() Pose
}

// SampleSink receives committed batches. The slices are owned by the sink
// once Upload is called and are never modified by the scanner afterwards.
// Sinks must accept zero-length batches.
type SampleSink interface {
	Upload(positions []r3.Vec, colors []Color, lifetimes []float64)
}

// ReadyReporter is implemented by sinks that may not be ready to receive
// data yet, for example a renderer that has not finished initialising.
type ReadyReporter interface {
	Ready() bool
}

// RandomSource yields uniform numbers in [0,1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

// PassObserver is notified after every scan pass has been committed.
type PassObserver interface {
	ObservePass(PassSummary)
}

// PassObserverFunc adapts a function to PassObserver.
type PassObserverFunc func(PassSummary)

// ObservePass calls f(s).
func (f PassObserverFunc) ObservePass(s PassSummary) { f(s) }

func degToRad(d float64) float64 { return d * math.Pi / 180 }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func uniform(rng RandomSource, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
