package monitor

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
)

// LatestSink is a scan.SampleSink that keeps the most recent committed batch
// for the debug charts.
type LatestSink struct {
	mu      sync.RWMutex
	batch   scan.Batch
	at      time.Time
	uploads uint64
	now     func() time.Time
}

// NewLatestSink returns an empty sink.
func NewLatestSink() *LatestSink {
	return &LatestSink{now: time.Now}
}

// Upload replaces the held batch. The slices are retained, not copied;
// callers must not modify them afterwards.
func (s *LatestSink) Upload(positions []r3.Vec, colors []scan.Color, lifetimes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batch = scan.Batch{Positions: positions, Colors: colors, Lifetimes: lifetimes}
	s.at = s.now()
	s.uploads++
}

// Latest returns the held batch, when it was uploaded, and the number of
// uploads seen so far.
func (s *LatestSink) Latest() (scan.Batch, time.Time, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch, s.at, s.uploads
}
