package scan

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/banshee-data/lidarscan/internal/timeutil"
)

// CommandKind selects what a Command does.
type CommandKind int

const (
	CommandInstantScan CommandKind = iota
	CommandStartSweep
	CommandAdjustRadius
	CommandReconfigure
)

func (k CommandKind) String() string {
	switch k {
	case CommandInstantScan:
		return "instant_scan"
	case CommandStartSweep:
		return "start_sweep"
	case CommandAdjustRadius:
		return "adjust_radius"
	case CommandReconfigure:
		return "reconfigure"
	}
	return "unknown"
}

// Command is an input event applied on the tick goroutine.
type Command struct {
	Kind   CommandKind
	Input  float64 // CommandAdjustRadius: sign selects the direction
	Config *Config // CommandReconfigure
}

// Status is a point-in-time view of the controller, safe to read from any
// goroutine.
type Status struct {
	ScannerID       string       `json:"scanner_id"`
	Sweep           SweepState   `json:"sweep"`
	Radius          float64      `json:"radius"`
	BatchSize       int          `json:"batch_size"`
	LastPass        *PassSummary `json:"last_pass,omitempty"`
	Ticks           uint64       `json:"ticks"`
	DroppedCommands uint64       `json:"dropped_commands"`
}

// Driver owns a Controller and applies queued commands and sweep ticks from
// a single goroutine. Submit and Status may be called from anywhere.
type Driver struct {
	ctrl     *Controller
	commands chan Command
	status   atomic.Pointer[Status]
	ticks    atomic.Uint64
	dropped  atomic.Uint64
}

// NewDriver wraps ctrl. queueSize bounds the number of pending commands.
func NewDriver(ctrl *Controller, queueSize int) *Driver {
	if queueSize <= 0 {
		queueSize = 16
	}
	d := &Driver{
		ctrl:     ctrl,
		commands: make(chan Command, queueSize),
	}
	d.publish()
	return d
}

// Submit queues cmd for the next tick. It never blocks; when the queue is
// full the command is dropped and Submit returns false.
func (d *Driver) Submit(cmd Command) bool {
	select {
	case d.commands <- cmd:
		return true
	default:
		n := d.dropped.Add(1)
		logf("command queue full, dropped %s (total dropped: %d)", cmd.Kind, n)
		return false
	}
}

// Step runs one tick: pending commands first, then the sweep advance.
// It must only be called from the goroutine that owns the driver.
func (d *Driver) Step(dt float64) {
	for drained := false; !drained; {
		select {
		case cmd := <-d.commands:
			d.apply(cmd)
		default:
			drained = true
		}
	}
	d.ctrl.AdvanceSweep(dt)
	d.ticks.Add(1)
	d.publish()
}

func (d *Driver) apply(cmd Command) {
	switch cmd.Kind {
	case CommandInstantScan:
		d.ctrl.RunInstantScan()
	case CommandStartSweep:
		d.ctrl.StartSweepScan()
	case CommandAdjustRadius:
		d.ctrl.AdjustScanRadius(cmd.Input)
	case CommandReconfigure:
		if cmd.Config != nil {
			d.ctrl.Reconfigure(*cmd.Config)
		}
	default:
		logf("ignoring unknown command %d", cmd.Kind)
	}
}

// Run ticks the driver every interval until ctx is cancelled. dt is taken
// from the clock so late ticks advance the sweep by the real elapsed time.
func (d *Driver) Run(ctx context.Context, clock timeutil.Clock, interval time.Duration) error {
	last := clock.Now()
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C():
			dt := now.Sub(last).Seconds()
			last = now
			d.Step(dt)
		}
	}
}

// Status returns the state published after the latest tick.
func (d *Driver) Status() Status {
	return *d.status.Load()
}

func (d *Driver) publish() {
	d.status.Store(&Status{
		ScannerID:       d.ctrl.Config().ScannerID,
		Sweep:           d.ctrl.Sweep(),
		Radius:          d.ctrl.Radius(),
		BatchSize:       d.ctrl.buffer.Len(),
		LastPass:        d.ctrl.LastPass(),
		Ticks:           d.ticks.Load(),
		DroppedCommands: d.dropped.Load(),
	})
}
