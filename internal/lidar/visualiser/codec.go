package visualiser

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// CodecName is the gRPC content subtype used by the particle stream. Client
// selects it per call; the server uses it for every call regardless.
const CodecName = "lidarframe"

func init() {
	encoding.RegisterCodec(frameCodec{})
}

// wireMessage is implemented by every message carried by the particle
// stream. The encoding is protobuf-compatible; see particles.proto.
type wireMessage interface {
	appendWire(b []byte) []byte
	consumeWire(b []byte) error
}

type frameCodec struct{}

func (frameCodec) Name() string { return CodecName }

func (frameCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wireMessage)
	if !ok {
		return nil, fmt.Errorf("%s codec: cannot marshal %T", CodecName, v)
	}
	return m.appendWire(nil), nil
}

func (frameCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wireMessage)
	if !ok {
		return fmt.Errorf("%s codec: cannot unmarshal into %T", CodecName, v)
	}
	return m.consumeWire(data)
}

// StreamRequest opens a StreamFrames subscription.
type StreamRequest struct {
	ScannerID string
	// MaxSamples caps the particles per frame; 0 sends every sample.
	MaxSamples int32
}

// StatusRequest is the (empty) GetStatus request.
type StatusRequest struct{}

// StatusResponse reports publisher state.
type StatusResponse struct {
	ScannerID     string
	Running       bool
	FrameCount    uint64
	DroppedFrames uint64
	ClientCount   int32
}

// ParticleFrame field numbers.
const (
	frameFieldID          protowire.Number = 1
	frameFieldTimestamp   protowire.Number = 2
	frameFieldScannerID   protowire.Number = 3
	frameFieldX           protowire.Number = 4
	frameFieldY           protowire.Number = 5
	frameFieldZ           protowire.Number = 6
	frameFieldRGBA        protowire.Number = 7
	frameFieldLifetime    protowire.Number = 8
	frameFieldSourceCount protowire.Number = 9
)

func (f *ParticleFrame) appendWire(b []byte) []byte {
	if f.FrameID != 0 {
		b = protowire.AppendTag(b, frameFieldID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.FrameID)
	}
	if f.TimestampNanos != 0 {
		b = protowire.AppendTag(b, frameFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.TimestampNanos))
	}
	if f.ScannerID != "" {
		b = protowire.AppendTag(b, frameFieldScannerID, protowire.BytesType)
		b = protowire.AppendString(b, f.ScannerID)
	}
	b = appendPackedFloat32(b, frameFieldX, f.X)
	b = appendPackedFloat32(b, frameFieldY, f.Y)
	b = appendPackedFloat32(b, frameFieldZ, f.Z)
	if len(f.RGBA) > 0 {
		b = protowire.AppendTag(b, frameFieldRGBA, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(4*len(f.RGBA)))
		for _, v := range f.RGBA {
			b = protowire.AppendFixed32(b, v)
		}
	}
	b = appendPackedFloat32(b, frameFieldLifetime, f.Lifetime)
	if f.SourceCount != 0 {
		b = protowire.AppendTag(b, frameFieldSourceCount, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(f.SourceCount))
	}
	return b
}

func (f *ParticleFrame) consumeWire(b []byte) error {
	*f = ParticleFrame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == frameFieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.FrameID = v
			b = b[n:]
		case num == frameFieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.TimestampNanos = int64(v)
			b = b[n:]
		case num == frameFieldScannerID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.ScannerID = v
			b = b[n:]
		case num == frameFieldX && typ == protowire.BytesType:
			v, n, err := consumePackedFloat32(b)
			if err != nil {
				return err
			}
			f.X = append(f.X, v...)
			b = b[n:]
		case num == frameFieldY && typ == protowire.BytesType:
			v, n, err := consumePackedFloat32(b)
			if err != nil {
				return err
			}
			f.Y = append(f.Y, v...)
			b = b[n:]
		case num == frameFieldZ && typ == protowire.BytesType:
			v, n, err := consumePackedFloat32(b)
			if err != nil {
				return err
			}
			f.Z = append(f.Z, v...)
			b = b[n:]
		case num == frameFieldRGBA && typ == protowire.BytesType:
			v, n, err := consumePackedFixed32(b)
			if err != nil {
				return err
			}
			f.RGBA = append(f.RGBA, v...)
			b = b[n:]
		case num == frameFieldLifetime && typ == protowire.BytesType:
			v, n, err := consumePackedFloat32(b)
			if err != nil {
				return err
			}
			f.Lifetime = append(f.Lifetime, v...)
			b = b[n:]
		case num == frameFieldSourceCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.SourceCount = int(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}

	if l := len(f.X); len(f.Y) != l || len(f.Z) != l || len(f.RGBA) != l || len(f.Lifetime) != l {
		return errors.New("particle frame: parallel arrays differ in length")
	}
	return nil
}

func (r *StreamRequest) appendWire(b []byte) []byte {
	if r.ScannerID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, r.ScannerID)
	}
	if r.MaxSamples != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.MaxSamples))
	}
	return b
}

func (r *StreamRequest) consumeWire(b []byte) error {
	*r = StreamRequest{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			r.ScannerID = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.MaxSamples = int32(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (*StatusRequest) appendWire(b []byte) []byte { return b }

func (r *StatusRequest) consumeWire(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (s *StatusResponse) appendWire(b []byte) []byte {
	if s.ScannerID != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, s.ScannerID)
	}
	if s.Running {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if s.FrameCount != 0 {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, s.FrameCount)
	}
	if s.DroppedFrames != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, s.DroppedFrames)
	}
	if s.ClientCount != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.ClientCount))
	}
	return b
}

func (s *StatusResponse) consumeWire(b []byte) error {
	*s = StatusResponse{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeString(b)
			s.ScannerID = v
			return n, nil
		}
		if typ != protowire.VarintType {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		v, n := protowire.ConsumeVarint(b)
		switch num {
		case 2:
			s.Running = protowire.DecodeBool(v)
		case 3:
			s.FrameCount = v
		case 4:
			s.DroppedFrames = v
		case 5:
			s.ClientCount = int32(v)
		}
		return n, nil
	})
}

// consumeFields walks the fields in b, handing each value to fn. fn returns
// the number of bytes it consumed or a negative protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func appendPackedFloat32(b []byte, num protowire.Number, v []float32) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(4*len(v)))
	for _, f := range v {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b
}

func consumePackedFixed32(b []byte) ([]uint32, int, error) {
	payload, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	if len(payload)%4 != 0 {
		return nil, 0, fmt.Errorf("packed fixed32 field has %d bytes", len(payload))
	}
	out := make([]uint32, 0, len(payload)/4)
	for len(payload) > 0 {
		v, m := protowire.ConsumeFixed32(payload)
		if m < 0 {
			return nil, 0, protowire.ParseError(m)
		}
		out = append(out, v)
		payload = payload[m:]
	}
	return out, n, nil
}

func consumePackedFloat32(b []byte) ([]float32, int, error) {
	raw, n, err := consumePackedFixed32(b)
	if err != nil {
		return nil, 0, err
	}
	out := make([]float32, len(raw))
	for i, v := range raw {
		out[i] = math.Float32frombits(v)
	}
	return out, n, nil
}
