package visualiser

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

// Client is a ParticleStream client for renderers and tools.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to target. The lidarframe codec is selected for every
// call; opts must supply transport credentials.
func NewClient(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetStatus fetches publisher statistics.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.conn.Invoke(ctx, GetStatusMethodName, &StatusRequest{}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// FrameStream receives frames from a StreamFrames call.
type FrameStream struct {
	stream grpc.ClientStream
}

// StreamFrames subscribes to published frames. The stream ends when ctx is
// cancelled.
func (c *Client) StreamFrames(ctx context.Context, req *StreamRequest) (*FrameStream, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], StreamFramesMethodName)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &FrameStream{stream: stream}, nil
}

// Recv blocks until the next frame arrives.
func (s *FrameStream) Recv() (*ParticleFrame, error) {
	f := new(ParticleFrame)
	if err := s.stream.RecvMsg(f); err != nil {
		return nil, err
	}
	return f, nil
}
