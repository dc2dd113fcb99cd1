package visualiser

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Fully qualified RPC names.
const (
	serviceName            = "lidarscan.visualiser.v1.ParticleStream"
	StreamFramesMethodName = "/" + serviceName + "/StreamFrames"
	GetStatusMethodName    = "/" + serviceName + "/GetStatus"
)

// ParticleStreamServer is the service implemented by Server.
type ParticleStreamServer interface {
	StreamFrames(req *StreamRequest, stream grpc.ServerStream) error
	GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
}

// ServiceDesc describes the ParticleStream service. Messages use the
// lidarframe codec, which is wire compatible with particles.proto.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ParticleStreamServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamFrames", Handler: streamFramesHandler, ServerStreams: true},
	},
	Metadata: "particles.proto",
}

// RegisterService registers the gRPC service with the server.
func RegisterService(s grpc.ServiceRegistrar, srv ParticleStreamServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	req := new(StreamRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ParticleStreamServer).StreamFrames(req, stream)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(StatusRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ParticleStreamServer).GetStatus(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetStatusMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ParticleStreamServer).GetStatus(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, req, info, handler)
}

// Server implements ParticleStreamServer on top of a Publisher.
type Server struct {
	publisher *Publisher
}

var _ ParticleStreamServer = (*Server)(nil)

// NewServer creates a new gRPC server.
func NewServer(publisher *Publisher) *Server {
	return &Server{publisher: publisher}
}

// StreamFrames sends every published frame to the client until it
// disconnects or the publisher stops.
func (s *Server) StreamFrames(req *StreamRequest, stream grpc.ServerStream) error {
	if req.ScannerID != "" && req.ScannerID != s.publisher.config.ScannerID {
		return status.Errorf(codes.NotFound, "unknown scanner %q", req.ScannerID)
	}

	client, err := s.publisher.addClient()
	if errors.Is(err, ErrTooManyClients) {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	if errors.Is(err, ErrNotRunning) {
		return status.Error(codes.Unavailable, err.Error())
	}
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	defer s.publisher.removeClient(client.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-client.stopCh:
			return status.Error(codes.Unavailable, "publisher stopped")
		case frame := <-client.frameCh:
			if err := stream.SendMsg(frame.Decimate(int(req.MaxSamples))); err != nil {
				return err
			}
		}
	}
}

// GetStatus reports publisher statistics.
func (s *Server) GetStatus(ctx context.Context, req *StatusRequest) (*StatusResponse, error) {
	st := s.publisher.Stats()
	return &StatusResponse{
		ScannerID:     s.publisher.config.ScannerID,
		Running:       st.Running,
		FrameCount:    st.FrameCount,
		DroppedFrames: st.DroppedFrames,
		ClientCount:   st.ClientCount,
	}, nil
}
