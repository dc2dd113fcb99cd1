package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/config"
	"github.com/banshee-data/lidarscan/internal/httputil"
	"github.com/banshee-data/lidarscan/internal/lidar/monitor"
	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/lidar/scene"
	"github.com/banshee-data/lidarscan/internal/lidar/storage/sqlite"
	"github.com/banshee-data/lidarscan/internal/lidar/visualiser"
	"github.com/banshee-data/lidarscan/internal/monitoring"
	"github.com/banshee-data/lidarscan/internal/timeutil"
)

var logf = monitoring.Component("Sim")

const commandQueueSize = 64

type options struct {
	ConfigPath   string // empty uses built-in defaults
	WatchConfig  bool
	ScenePath    string
	HTTPAddr     string
	GRPCAddr     string
	MaxClients   int
	DBPath       string // empty disables the journal
	Tick         time.Duration
	InstantEvery time.Duration
	SweepEvery   time.Duration
	Clock        timeutil.Clock // nil uses the real clock
}

// simulator owns every long-running component of the process.
type simulator struct {
	opts      options
	clock     timeutil.Clock
	driver    *scan.Driver
	publisher *visualiser.Publisher
	latest    *monitor.LatestSink
	pose      *scene.MovablePose
	web       *monitor.WebServer
	journal   *sqlite.Journal
	registry  *prometheus.Registry
}

func loadScannerConfig(path string) (*config.ScannerConfig, error) {
	if path == "" {
		return config.EmptyScannerConfig(), nil
	}
	return config.LoadScannerConfig(path)
}

func newSimulator(opts options) (*simulator, error) {
	cfg, err := loadScannerConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	scanCfg := cfg.ToScanConfig()

	desc, err := scene.LoadFile(opts.ScenePath)
	if err != nil {
		return nil, err
	}
	world, err := desc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build scene %s: %w", opts.ScenePath, err)
	}
	logf("loaded scene %q with %d objects", desc.Name, world.Len())

	s := &simulator{
		opts:     opts,
		clock:    opts.Clock,
		latest:   monitor.NewLatestSink(),
		pose:     scene.NewMovablePose(desc.ScannerPose()),
		registry: prometheus.NewRegistry(),
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s.publisher = visualiser.NewPublisher(visualiser.Config{
		ListenAddr:   opts.GRPCAddr,
		ScannerID:    scanCfg.ScannerID,
		MaxClients:   opts.MaxClients,
		ClientBuffer: 10,
	})

	ctrlOpts := []scan.Option{
		scan.WithSink(scan.MultiSink{s.publisher, s.latest}),
		scan.WithMetrics(scan.NewMetrics(s.registry)),
	}
	if opts.DBPath != "" {
		s.journal, err = sqlite.Open(opts.DBPath, sqlite.DefaultQueueSize)
		if err != nil {
			return nil, err
		}
		ctrlOpts = append(ctrlOpts, scan.WithObserver(s.journal))
	}

	ctrl, err := scan.NewController(scanCfg, world, s.pose, ctrlOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.driver = scan.NewDriver(ctrl, commandQueueSize)

	s.web = monitor.NewWebServer(monitor.WebServerConfig{
		Address:      opts.HTTPAddr,
		Driver:       s.driver,
		Latest:       s.latest,
		Gatherer:     s.registry,
		AttachRoutes: s.attachRoutes,
	})
	return s, nil
}

func (s *simulator) attachRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/scan/pose", s.handlePose)
	if s.journal == nil {
		return
	}
	mux.HandleFunc("/api/scan/passes", s.handlePasses)
	mux.HandleFunc("/api/scan/totals", s.handleTotals)
	if err := s.journal.AttachAdminRoutes(mux); err != nil {
		logf("journal admin routes disabled: %v", err)
	}
}

// poseDocument is the JSON form of the scanner pose. Angles are degrees.
type poseDocument struct {
	Position [3]float64   `json:"position"`
	Rotation scan.Rotator `json:"rotation"`
}

// handlePose reports the scanner pose on GET and replaces it on POST. The
// new pose applies from the next pass.
func (s *simulator) handlePose(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var doc poseDocument
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid pose: %v", err))
			return
		}
		s.pose.Set(scan.Pose{
			Position: r3.Vec{X: doc.Position[0], Y: doc.Position[1], Z: doc.Position[2]},
			Rotation: doc.Rotation,
		})
		logf("scanner moved to %v %+v", doc.Position, doc.Rotation)
	default:
		httputil.MethodNotAllowed(w)
		return
	}
	p := s.pose.CurrentPose()
	httputil.WriteJSON(w, http.StatusOK, poseDocument{
		Position: [3]float64{p.Position.X, p.Position.Y, p.Position.Z},
		Rotation: p.Rotation,
	})
}

// handlePasses lists recent passes from the journal. Query params:
//
//	limit (optional) - maximum passes to return, default 50
func (s *simulator) handlePasses(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}
	passes, err := s.journal.ListRecent(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list passes: %v", err))
		return
	}
	if passes == nil {
		passes = []scan.PassSummary{}
	}
	httputil.WriteJSON(w, http.StatusOK, passes)
}

type totalsResponse struct {
	Totals  []sqlite.ModeTotals `json:"totals"`
	Journal sqlite.JournalStats `json:"journal"`
}

// handleTotals reports per-mode pass totals and the journal queue counters.
func (s *simulator) handleTotals(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	totals, err := s.journal.Totals(r.Context())
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to read totals: %v", err))
		return
	}
	if totals == nil {
		totals = []sqlite.ModeTotals{}
	}
	httputil.WriteJSON(w, http.StatusOK, totalsResponse{Totals: totals, Journal: s.journal.Stats()})
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (s *simulator) Run(ctx context.Context) error {
	if err := s.publisher.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		s.publisher.Stop()
		return nil
	})
	g.Go(func() error { return s.driver.Run(gctx, s.clock, s.opts.Tick) })
	g.Go(func() error { return s.web.Start(gctx) })
	if s.journal != nil {
		g.Go(func() error { return s.journal.Run(gctx) })
	}
	if s.opts.WatchConfig && s.opts.ConfigPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, s.opts.ConfigPath, config.DefaultDebounce, s.reconfigure)
		})
	}
	g.Go(func() error { return s.trigger(gctx, s.opts.InstantEvery, scan.CommandInstantScan) })
	g.Go(func() error { return s.trigger(gctx, s.opts.SweepEvery, scan.CommandStartSweep) })

	return g.Wait()
}

func (s *simulator) reconfigure(cfg *config.ScannerConfig) {
	scanCfg := cfg.ToScanConfig()
	if s.driver.Submit(scan.Command{Kind: scan.CommandReconfigure, Config: &scanCfg}) {
		logf("config reloaded from %s", s.opts.ConfigPath)
	}
}

// trigger submits a command of the given kind every interval. A
// non-positive interval disables it.
func (s *simulator) trigger(ctx context.Context, every time.Duration, kind scan.CommandKind) error {
	if every <= 0 {
		return nil
	}
	ticker := s.clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s.driver.Submit(scan.Command{Kind: kind})
		}
	}
}

// runAndClose runs sim and then closes it, whether or not Run failed.
func runAndClose(ctx context.Context, sim *simulator) error {
	err := sim.Run(ctx)
	if cerr := sim.Close(); cerr != nil {
		logf("close failed: %v", cerr)
		if err == nil {
			err = cerr
		}
	}
	return err
}

// Close releases resources that outlive Run.
func (s *simulator) Close() error {
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}
