// Package monitor serves the scanner's HTTP debug surface: status and
// command endpoints, Prometheus metrics, and charts of the latest pass.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/lidarscan/internal/httputil"
	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/monitoring"
	"github.com/banshee-data/lidarscan/internal/version"
)

var logf = monitoring.Component("Monitor")

// ScanDriver is the part of scan.Driver the web server needs.
type ScanDriver interface {
	Status() scan.Status
	Submit(cmd scan.Command) bool
}

// WebServer handles the HTTP interface for the scanner.
type WebServer struct {
	address  string
	driver   ScanDriver
	latest   *LatestSink
	gatherer prometheus.Gatherer
	server   *http.Server
	now      func() time.Time
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address  string
	Driver   ScanDriver
	Latest   *LatestSink         // optional; charts show an empty pass without it
	Gatherer prometheus.Gatherer // optional; /metrics is not served without it

	// AttachRoutes registers extra handlers, such as admin pages, on the
	// server's mux.
	AttachRoutes func(mux *http.ServeMux)
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  config.Address,
		driver:   config.Driver,
		latest:   config.Latest,
		gatherer: config.Gatherer,
		now:      time.Now,
	}
	if ws.latest == nil {
		ws.latest = NewLatestSink()
	}

	mux := ws.setupRoutes()
	if config.AttachRoutes != nil {
		config.AttachRoutes(mux)
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Handler returns the server's root handler.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves HTTP until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			logf("HTTP server force close error: %v", err)
		}
	}

	logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/scan/status", ws.handleStatus)
	mux.HandleFunc("/api/scan/instant", ws.handleCommand(scan.CommandInstantScan))
	mux.HandleFunc("/api/scan/sweep", ws.handleCommand(scan.CommandStartSweep))
	mux.HandleFunc("/api/scan/radius", ws.handleRadius)
	mux.HandleFunc("/debug/scan/latest", ws.handleLatestChart)
	mux.HandleFunc("/debug/scan/plot.png", ws.handleLatestPlot)
	if ws.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(ws.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "lidarscan",
		"version":   version.String(),
		"timestamp": ws.now().UTC().Format(time.RFC3339),
	})
}

type statusResponse struct {
	scan.Status
	Uploads      uint64     `json:"uploads"`
	LastUploadAt *time.Time `json:"last_upload_at,omitempty"`
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodGet) {
		return
	}
	resp := statusResponse{Status: ws.driver.Status()}
	_, at, uploads := ws.latest.Latest()
	resp.Uploads = uploads
	if uploads > 0 {
		resp.LastUploadAt = &at
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleCommand queues a parameterless command. Commands run on the next
// tick, so success is reported as 202.
func (ws *WebServer) handleCommand(kind scan.CommandKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httputil.RequireMethod(w, r, http.MethodPost) {
			return
		}
		ws.submit(w, scan.Command{Kind: kind})
	}
}

// handleRadius queues a radius step. Query params:
//
//	delta (required) - the sign selects the direction; zero steps down
func (ws *WebServer) handleRadius(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireMethod(w, r, http.MethodPost) {
		return
	}
	raw := r.URL.Query().Get("delta")
	if raw == "" {
		httputil.BadRequest(w, "missing delta parameter")
		return
	}
	delta, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid delta: %v", err))
		return
	}
	ws.submit(w, scan.Command{Kind: scan.CommandAdjustRadius, Input: delta})
}

func (ws *WebServer) submit(w http.ResponseWriter, cmd scan.Command) {
	if !ws.driver.Submit(cmd) {
		httputil.ServiceUnavailable(w, "command queue full")
		return
	}
	httputil.Accepted(w, cmd.Kind.String())
}

// Close shuts down the web server immediately.
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
