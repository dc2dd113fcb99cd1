// Package visualiser streams committed scan batches to particle renderers
// over gRPC.
//
// The Publisher is a scan.SampleSink: every committed batch becomes a
// ParticleFrame that is broadcast to connected StreamFrames clients.
package visualiser

import (

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

// ParticleFrame is one committed batch in renderer layout: parallel arrays
// of positions, packed RGBA8 colours and lifetimes.
type ParticleFrame struct {
	FrameID        uint64
	TimestampNanos int64
	ScannerID      string

	X        []float32
	Y        []float32
	Z        []float32
	RGBA     []uint32 // 0xRRGGBBAA
	Lifetime []float32

	// SourceCount is the number of samples before decimation.
	SourceCount int
}

// NewParticleFrame converts a committed batch. The three slices are expected
// to have equal length; extra entries in longer slices are ignored.
func NewParticleFrame(positions []r3.Vec, colors []scan.Color, lifetimes []float64) *ParticleFrame {
	n := min(len(positions), len(colors), len(lifetimes))
	f := &ParticleFrame{
		X:           make([]float32, n),
		Y:           make([]float32, n),
		Z:           make([]float32, n),
		RGBA:        make([]uint32, n),
		Lifetime:    make([]float32, n),
		SourceCount: n,
	}
	for i := 0; i < n; i++ {
		f.X[i] = float32(positions[i].X)
		f.Y[i] = float32(positions[i].Y)
		f.Z[i] = float32(positions[i].Z)
		f.RGBA[i] = PackRGBA(colors[i])
		f.Lifetime[i] = float32(lifetimes[i])
	}
	return f
}

// Len returns the number of particles.
func (f *ParticleFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.X)
}

// PositionAt returns the i-th position, or the zero vector when i is out of
// range.
func (f *ParticleFrame) PositionAt(i int) r3.Vec {
	if i < 0 || i >= f.Len() {
		return r3.Vec{}
	}
	return r3.Vec{X: float64(f.X[i]), Y: float64(f.Y[i]), Z: float64(f.Z[i])}
}

// ColorAt returns the i-th colour, or transparent black when i is out of range.
func (f *ParticleFrame) ColorAt(i int) scan.Color {
	if i < 0 || i >= f.Len() {
		return scan.Color{}
	}
	return UnpackRGBA(f.RGBA[i])
}

// LifetimeAt returns the i-th lifetime, or 0 when i is out of range.
func (f *ParticleFrame) LifetimeAt(i int) float64 {
	if i < 0 || i >= f.Len() {
		return 0
	}
	return float64(f.Lifetime[i])
}

// Decimate returns a frame with at most maxSamples particles, keeping every
// Nth one. Frames are shared between clients, so f is never modified; when
// no decimation is needed f itself is returned.
func (f *ParticleFrame) Decimate(maxSamples int) *ParticleFrame {
	n := f.Len()
	if maxSamples <= 0 || n <= maxSamples {
		return f
	}

	out := &ParticleFrame{
		FrameID:        f.FrameID,
		TimestampNanos: f.TimestampNanos,
		ScannerID:      f.ScannerID,
		X:              make([]float32, 0, maxSamples),
		Y:              make([]float32, 0, maxSamples),
		Z:              make([]float32, 0, maxSamples),
		RGBA:           make([]uint32, 0, maxSamples),
		Lifetime:       make([]float32, 0, maxSamples),
		SourceCount:    f.SourceCount,
	}
	for k := 0; k < maxSamples; k++ {
		i := k * n / maxSamples
		out.X = append(out.X, f.X[i])
		out.Y = append(out.Y, f.Y[i])
		out.Z = append(out.Z, f.Z[i])
		out.RGBA = append(out.RGBA, f.RGBA[i])
		out.Lifetime = append(out.Lifetime, f.Lifetime[i])
	}
	return out
}

// PackRGBA quantises c to 8 bits per channel.
func PackRGBA(c scan.Color) uint32 {
	q := c.NRGBA()
	return uint32(q.R)<<24 | uint32(q.G)<<16 | uint32(q.B)<<8 | uint32(q.A)
}

// UnpackRGBA is the inverse of PackRGBA.
func UnpackRGBA(v uint32) scan.Color {
	return scan.Color{
		R: float64(v>>24&0xff) / 255,
		G: float64(v>>16&0xff) / 255,
		B: float64(v>>8&0xff) / 255,
		A: float64(v&0xff) / 255,
	}
}
