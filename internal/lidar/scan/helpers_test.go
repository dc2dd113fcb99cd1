package scan

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

// fixedOracle returns the same hit, placed along the ray at hit.Distance,
// for every cast.
type fixedOracle struct {
	hit   Hit
	miss  bool
	casts []castCall
}

type castCall struct {
	origin    r3.Vec
	direction r3.Vec
	maxLength float64
}

func (o *fixedOracle) Cast(origin, direction r3.Vec, maxLength float64) (Hit, bool) {
	o.casts = append(o.casts, castCall{origin: origin, direction: direction, maxLength: maxLength})
	if o.miss {
		return Hit{}, false
	}
	h := o.hit
	h.Position = r3.Add(origin, r3.Scale(h.Distance, direction))
	return h, true
}

// alternatingOracle hits on even casts and misses on odd ones.
type alternatingOracle struct {
	n int
}

func (o *alternatingOracle) Cast(origin, direction r3.Vec, maxLength float64) (Hit, bool) {
	o.n++
	if o.n%2 == 0 {
		return Hit{}, false
	}
	return Hit{Position: r3.Add(origin, direction), Distance: 1}, true
}

type staticPose Pose

func (p staticPose) CurrentPose() Pose { return Pose(p) }

type recordingSink struct {
	uploads  []Batch
	notReady bool
}

func (s *recordingSink) Upload(positions []r3.Vec, colors []Color, lifetimes []float64) {
	s.uploads = append(s.uploads, Batch{Positions: positions, Colors: colors, Lifetimes: lifetimes})
}

func (s *recordingSink) Ready() bool { return !s.notReady }

func (s *recordingSink) last() Batch {
	if len(s.uploads) == 0 {
		return Batch{}
	}
	return s.uploads[len(s.uploads)-1]
}

func seededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5deece66d))
}

func newTestController(cfg Config, oracle Oracle, opts ...Option) (*Controller, *recordingSink) {
	sink := &recordingSink{}
	opts = append([]Option{WithSink(sink), WithRandom(seededRand(1))}, opts...)
	c, err := NewController(cfg, oracle, staticPose{}, opts...)
	if err != nil {
		panic(err)
	}
	return c, sink
}
