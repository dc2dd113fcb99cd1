package scan

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/monitoring"
)

var logf = monitoring.Component("Scanner")

var (
	ErrNilOracle     = errors.New("scan: oracle is nil")
	ErrNilPoseSource = errors.New("scan: pose source is nil")
)

// Mode identifies the kind of scan pass.
type Mode string

const (
	ModeInstant Mode = "instant"
	ModeSweep   Mode = "sweep"
)

// SweepState is the progress of a sweep scan.
type SweepState struct {
	InProgress   bool    `json:"in_progress"`
	CurrentAngle float64 `json:"current_angle"` // degrees
}

// PassSummary describes one committed scan pass.
type PassSummary struct {
	PassID        string        `json:"pass_id"`
	ScannerID     string        `json:"scanner_id"`
	Mode          Mode          `json:"mode"`
	VerticalAngle float64       `json:"vertical_angle"`
	Rays          int           `json:"rays"`
	Hits          int           `json:"hits"`
	Overrides     int           `json:"overrides"`
	Committed     bool          `json:"committed"`
	Duration      time.Duration `json:"duration_ns"`
	At            time.Time     `json:"at"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the sink batches are committed to.
func WithSink(sink SampleSink) Option {
	return func(c *Controller) { c.buffer.SetSink(sink) }
}

// WithRandom sets the random source used for ray jitter.
func WithRandom(rng RandomSource) Option {
	return func(c *Controller) { c.rng = rng }
}

// WithMetrics records pass statistics in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithObserver registers an observer notified after every pass.
func WithObserver(o PassObserver) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithNow overrides the time source used to stamp pass summaries.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller runs scan passes and drives the sweep state machine. It is not
// safe for concurrent use; see Driver for a goroutine-owned wrapper.
type Controller struct {
	cfg        Config
	oracle     Oracle
	poses      PoseSource
	rng        RandomSource
	classifier *TagClassifier
	colorizer  DistanceColorizer
	buffer     *SampleBuffer
	metrics    *Metrics
	observers  []PassObserver
	now        func() time.Time

	radius   float64
	sweep    SweepState
	lastPass *PassSummary
}

// NewController creates a controller for cfg.
func NewController(cfg Config, oracle Oracle, poses PoseSource, opts ...Option) (*Controller, error) {
	if oracle == nil {
		return nil, ErrNilOracle
	}
	if poses == nil {
		return nil, ErrNilPoseSource
	}
	c := &Controller{
		oracle: oracle,
		poses:  poses,
		rng:    globalRand{},
		buffer: NewSampleBuffer(nil),
		now:    time.Now,
	}
	c.apply(cfg.normalized())
	c.radius = c.cfg.Instant.Radius
	c.sweep.CurrentAngle = -c.cfg.Sweep.VerticalHalfAngle
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) apply(cfg Config) {
	c.cfg = cfg
	c.classifier = NewTagClassifier(cfg.Overrides)
	c.colorizer = DistanceColorizer{
		Close:       cfg.CloseColor,
		Far:         cfg.FarColor,
		MaxDistance: cfg.ColorMaxDistance,
	}
}

// Config returns the active configuration.
func (c *Controller) Config() Config { return c.cfg }

// Reconfigure replaces the configuration. The current radius is re-clamped
// to the new bounds; an in-progress sweep keeps its angle.
func (c *Controller) Reconfigure(cfg Config) {
	c.apply(cfg.normalized())
	c.radius = clamp(c.radius, c.cfg.Instant.RadiusMin, c.cfg.Instant.RadiusMax)
	if !c.sweep.InProgress {
		c.sweep.CurrentAngle = -c.cfg.Sweep.VerticalHalfAngle
	}
	if c.cfg.EnableDebug {
		logf("%s reconfigured: instant_rays=%d sweep_rays=%d radius=%.2f",
			c.cfg.ScannerID, c.cfg.Instant.RayCount, c.cfg.Sweep.RayCount, c.radius)
	}
}

// SetSink attaches or replaces the sink, e.g. once the renderer is up.
func (c *Controller) SetSink(sink SampleSink) { c.buffer.SetSink(sink) }

// Radius returns the current instant-scan cone radius.
func (c *Controller) Radius() float64 { return c.radius }

// Sweep returns the sweep state.
func (c *Controller) Sweep() SweepState { return c.sweep }

// Batch returns a copy of the samples from the latest pass.
func (c *Controller) Batch() Batch { return c.buffer.Snapshot() }

// LastPass returns the summary of the latest pass, or nil before the first.
func (c *Controller) LastPass() *PassSummary {
	if c.lastPass == nil {
		return nil
	}
	p := *c.lastPass
	return &p
}

// AdjustScanRadius moves the radius one step in the direction of input's
// sign and clamps it. Zero input steps down.
func (c *Controller) AdjustScanRadius(input float64) {
	delta := -c.cfg.Instant.RadiusStep
	if input > 0 {
		delta = c.cfg.Instant.RadiusStep
	}
	c.radius = clamp(c.radius+delta, c.cfg.Instant.RadiusMin, c.cfg.Instant.RadiusMax)
}

// RunInstantScan casts one disc of rays from the current pose and replaces
// the batch with the hits.
func (c *Controller) RunInstantScan() PassSummary {
	pose := c.poses.CurrentPose()
	policy := DiscPolicy{RayCount: c.cfg.Instant.RayCount, Radius: c.radius}
	return c.runPass(ModeInstant, 0, pose, policy.Directions(pose, c.rng))
}

// StartSweepScan begins a sweep from the lower vertical bound. It does
// nothing while a sweep is already running.
func (c *Controller) StartSweepScan() bool {
	if c.sweep.InProgress {
		return false
	}
	c.sweep = SweepState{InProgress: true, CurrentAngle: -c.cfg.Sweep.VerticalHalfAngle}
	c.metrics.observeSweep(c.sweep)
	if c.cfg.EnableDebug {
		logf("%s sweep started at %.2f deg", c.cfg.ScannerID, c.sweep.CurrentAngle)
	}
	return true
}

// AdvanceSweep moves the sweep forward by dt seconds and casts one line of
// rays at the new angle. The tick that would reach the upper bound ends the
// sweep without casting. It returns the pass summary when rays were cast.
func (c *Controller) AdvanceSweep(dt float64) (PassSummary, bool) {
	if !c.sweep.InProgress {
		return PassSummary{}, false
	}
	step := c.cfg.Sweep.Rate * dt
	if c.sweep.CurrentAngle+step >= c.cfg.Sweep.VerticalHalfAngle {
		c.sweep = SweepState{CurrentAngle: -c.cfg.Sweep.VerticalHalfAngle}
		c.metrics.observeSweep(c.sweep)
		if c.cfg.EnableDebug {
			logf("%s sweep ended", c.cfg.ScannerID)
		}
		return PassSummary{}, false
	}
	c.sweep.CurrentAngle += step
	c.metrics.observeSweep(c.sweep)

	pose := c.poses.CurrentPose()
	policy := SweepPolicy{RayCount: c.cfg.Sweep.RayCount, HorizontalAngle: c.cfg.Sweep.HorizontalAngle}
	dirs := policy.Directions(pose, c.sweep.CurrentAngle, c.rng)
	return c.runPass(ModeSweep, c.sweep.CurrentAngle, pose, dirs), true
}

// runPass casts dirs from pose, rebuilds the buffer from the hits and
// commits it.
func (c *Controller) runPass(mode Mode, angle float64, pose Pose, dirs []r3.Vec) PassSummary {
	start := c.now()
	origin := r3.Add(pose.Position, pose.Rotation.Rotation().Rotate(c.cfg.MuzzleOffset))

	summary := PassSummary{
		PassID:        uuid.NewString(),
		ScannerID:     c.cfg.ScannerID,
		Mode:          mode,
		VerticalAngle: angle,
		Rays:          len(dirs),
		At:            start,
	}

	c.buffer.Clear()
	for _, dir := range dirs {
		hit, ok := c.oracle.Cast(origin, dir, c.cfg.MaxRayLength)
		if !ok {
			continue
		}
		sample := Sample{Position: hit.Position}
		if o, matched := c.classifier.Classify(hit.Tags); matched {
			sample.Color = o.Color
			sample.Lifetime = o.Lifetime
			summary.Overrides++
		} else {
			sample.Color = c.colorizer.Colorize(hit.Distance)
			sample.Lifetime = c.cfg.DefaultLifetime
		}
		c.buffer.Append(sample)
	}
	summary.Hits = c.buffer.Len()
	summary.Committed = c.buffer.Commit()
	summary.Duration = c.now().Sub(start)

	c.lastPass = &summary
	c.metrics.observePass(summary)
	for _, o := range c.observers {
		o.ObservePass(summary)
	}
	return summary
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
