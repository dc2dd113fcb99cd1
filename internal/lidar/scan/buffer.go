package scan

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleBuffer holds the samples of the pass in progress as three parallel
// slices. The slices always have equal length.
type SampleBuffer struct {
	positions []r3.Vec
	colors    []Color
	lifetimes []float64

	sink SampleSink
}

// NewSampleBuffer returns an empty buffer that commits to sink. sink may be
// nil and attached later with SetSink.
func NewSampleBuffer(sink SampleSink) *SampleBuffer {
	return &SampleBuffer{sink: sink}
}

// SetSink replaces the sink used by Commit.
func (b *SampleBuffer) SetSink(sink SampleSink) {
	b.sink = sink
}

// Clear empties the buffer, keeping capacity for the next pass.
func (b *SampleBuffer) Clear() {
	b.positions = b.positions[:0]
	b.colors = b.colors[:0]
	b.lifetimes = b.lifetimes[:0]
}

// Append adds s to all three slices.
func (b *SampleBuffer) Append(s Sample) {
	b.positions = append(b.positions, s.Position)
	b.colors = append(b.colors, s.Color)
	b.lifetimes = append(b.lifetimes, s.Lifetime)
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	return len(b.positions)
}

// Snapshot returns a copy of the buffered samples.
func (b *SampleBuffer) Snapshot() Batch {
	return Batch{
		Positions: append([]r3.Vec(nil), b.positions...),
		Colors:    append([]Color(nil), b.colors...),
		Lifetimes: append([]float64(nil), b.lifetimes...),
	}
}

// Commit uploads a copy of the buffer to the sink. It reports whether an
// upload happened: a nil sink, or one that reports it is not ready, is
// skipped silently.
func (b *SampleBuffer) Commit() bool {
	if b.sink == nil {
		return false
	}
	if r, ok := b.sink.(ReadyReporter); ok && !r.Ready() {
		return false
	}
	batch := b.Snapshot()
	b.sink.Upload(batch.Positions, batch.Colors, batch.Lifetimes)
	return true
}

// Batch is an immutable copy of a committed pass.
type Batch struct {
	Positions []r3.Vec
	Colors    []Color
	Lifetimes []float64
}

// Len returns the number of samples in the batch.
func (b Batch) Len() int { return len(b.Positions) }

// Sample returns the i-th sample.
func (b Batch) Sample(i int) Sample {
	return Sample{Position: b.PositionAt(i), Color: b.ColorAt(i), Lifetime: b.LifetimeAt(i)}
}

// PositionAt returns the i-th position, or the zero vector when i is out of range.
func (b Batch) PositionAt(i int) r3.Vec {
	if i < 0 || i >= len(b.Positions) {
		return r3.Vec{}
	}
	return b.Positions[i]
}

// ColorAt returns the i-th colour, or transparent black when i is out of range.
func (b Batch) ColorAt(i int) Color {
	if i < 0 || i >= len(b.Colors) {
		return Color{}
	}
	return b.Colors[i]
}

// LifetimeAt returns the i-th lifetime, or 0 when i is out of range.
func (b Batch) LifetimeAt(i int) float64 {
	if i < 0 || i >= len(b.Lifetimes) {
		return 0
	}
	return b.Lifetimes[i]
}

// MultiSink fans a batch out to several sinks. Sinks that report they are
// not ready are skipped. The same slices are passed to every sink, so sinks
// must treat them as read-only.
type MultiSink []SampleSink

// Upload forwards the batch to every ready sink.
func (m MultiSink) Upload(positions []r3.Vec, colors []Color, lifetimes []float64) {
	for _, s := range m {
		if s == nil {
			continue
		}
		if r, ok := s.(ReadyReporter); ok && !r.Ready() {
			continue
		}
		s.Upload(positions, colors, lifetimes)
	}
}

// Ready reports whether at least one sink is ready.
func (m MultiSink) Ready() bool {
	for _, s := range m {
		if s == nil {
			continue
		}
		r, ok := s.(ReadyReporter)
		if !ok || r.Ready() {
			return true
		}
	}
	return false
}
