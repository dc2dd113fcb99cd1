package visualiser

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/lidarscan/internal/lidar/scan"
	"github.com/banshee-data/lidarscan/internal/monitoring"
)

var logf = monitoring.Component("Visualiser")

// ErrTooManyClients is returned to subscribers beyond Config.MaxClients.
var ErrTooManyClients = errors.New("visualiser: too many clients")

// ErrNotRunning is returned to subscribers of a publisher that was never served.
var ErrNotRunning = errors.New("visualiser: publisher not running")

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50051")
	ListenAddr string

	// ScannerID is stamped on every published frame
	ScannerID string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// ClientBuffer is the number of frames queued per client before frames
	// are dropped for that client
	ClientBuffer int
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   "localhost:50051",
		ScannerID:    "scanner-01",
		MaxClients:   5,
		ClientBuffer: 10,
	}
}

// Publisher manages the gRPC server and frame streaming. It implements
// scan.SampleSink and reports ready only while the server is running.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener
	now      func() time.Time

	frameChan chan *ParticleFrame
	clients   map[string]*clientStream
	stopCh    chan struct{} // replaced on every Serve; guarded by clientsMu
	clientsMu sync.RWMutex

	frameCount    atomic.Uint64
	clientCount   atomic.Int32
	droppedFrames atomic.Uint64

	lifecycle sync.Mutex // serialises Serve and Stop
	running   atomic.Bool
	wg        sync.WaitGroup
}

// clientStream represents a connected streaming client.
type clientStream struct {
	id      string
	frameCh chan *ParticleFrame
	stopCh  <-chan struct{}
}

var (
	_ scan.SampleSink    = (*Publisher)(nil)
	_ scan.ReadyReporter = (*Publisher)(nil)
)

// NewPublisher creates a new Publisher with the given configuration.
func NewPublisher(cfg Config) *Publisher {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 10
	}
	return &Publisher{
		config:    cfg,
		now:       time.Now,
		frameChan: make(chan *ParticleFrame, 100),
		clients:   make(map[string]*clientStream),
	}
}

// Start listens on Config.ListenAddr and serves the particle stream.
func (p *Publisher) Start() error {
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve serves the particle stream on lis until Stop is called. A stopped
// publisher may be served again.
//
// The server always uses the lidarframe codec, so clients generated from
// particles.proto that send plain application/grpc are understood too.
func (p *Publisher) Serve(lis net.Listener) error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis

	stop := make(chan struct{})
	p.clientsMu.Lock()
	p.stopCh = stop
	p.clientsMu.Unlock()

	const maxMsgSize = 16 * 1024 * 1024 // 16 MB
	srv := grpc.NewServer(
		grpc.ForceServerCodec(frameCodec{}),
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(srv, NewServer(p))
	p.server = srv
	p.running.Store(true)

	p.wg.Add(1)
	go p.broadcastLoop(stop)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logf("gRPC server listening on %s", lis.Addr())
		if err := srv.Serve(lis); err != nil && p.running.Load() {
			logf("gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop shuts down the gRPC server and closes open streams.
func (p *Publisher) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.clientsMu.Lock()
	close(p.stopCh)
	p.clientsMu.Unlock()

	if p.server != nil {
		p.server.Stop()
	}
	p.wg.Wait()
	logf("gRPC server stopped")
}

// Ready reports whether the publisher is accepting frames.
func (p *Publisher) Ready() bool {
	return p.running.Load()
}

// Upload converts a committed batch to a frame and publishes it. The sink
// contract hands over ownership of the slices, but the frame is built from
// copies regardless.
func (p *Publisher) Upload(positions []r3.Vec, colors []scan.Color, lifetimes []float64) {
	f := NewParticleFrame(positions, colors, lifetimes)
	f.TimestampNanos = p.now().UnixNano()
	f.ScannerID = p.config.ScannerID
	p.Publish(f)
}

// Publish queues frame for broadcast. Frames are dropped when the publisher
// is stopped or the broadcast queue is full.
func (p *Publisher) Publish(frame *ParticleFrame) {
	if !p.running.Load() || frame == nil {
		return
	}
	frame.FrameID = p.frameCount.Add(1)

	select {
	case p.frameChan <- frame:
	default:
		dropped := p.droppedFrames.Add(1)
		logf("DROPPED frame %d (total dropped: %d), channel full, particles=%d",
			frame.FrameID, dropped, frame.Len())
	}
}

// broadcastLoop distributes frames to all connected clients.
func (p *Publisher) broadcastLoop(stop <-chan struct{}) {
	defer p.wg.Done()

	for {
		select {
		case <-stop:
			return
		case frame := <-p.frameChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				select {
				case client.frameCh <- frame:
				default:
					// Slow client: drop the frame for this client only.
					p.droppedFrames.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a new streaming client.
func (p *Publisher) addClient() (*clientStream, error) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()

	if p.config.MaxClients > 0 && len(p.clients) >= p.config.MaxClients {
		return nil, ErrTooManyClients
	}
	if p.stopCh == nil {
		return nil, ErrNotRunning
	}
	client := &clientStream{
		id:      uuid.NewString(),
		frameCh: make(chan *ParticleFrame, p.config.ClientBuffer),
		stopCh:  p.stopCh,
	}
	p.clients[client.id] = client
	n := p.clientCount.Add(1)
	logf("Client connected: %s (total: %d)", client.id, n)
	return client, nil
}

// removeClient unregisters a streaming client.
func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()

	if _, ok := p.clients[id]; !ok {
		return
	}
	delete(p.clients, id)
	n := p.clientCount.Add(-1)
	logf("Client disconnected: %s (remaining: %d)", id, n)
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		FrameCount:    p.frameCount.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		ClientCount:   p.clientCount.Load(),
		Running:       p.running.Load(),
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	FrameCount    uint64 `json:"frame_count"`
	DroppedFrames uint64 `json:"dropped_frames"`
	ClientCount   int32  `json:"client_count"`
	Running       bool   `json:"running"`
}
