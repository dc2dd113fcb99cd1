package visualiser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestCodecRegistered(t *testing.T) {
	if encoding.GetCodecV2(CodecName) == nil {
		t.Fatalf("codec %q is not registered", CodecName)
	}
}

func TestCodec_ParticleFrame(t *testing.T) {
	in := NewParticleFrame(sampleBatch(4))
	in.FrameID = 42
	in.TimestampNanos = 1_700_000_000_000_000_000
	in.ScannerID = "scanner-01"

	data, err := frameCodec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := new(ParticleFrame)
	if err := (frameCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_EmptyFrame(t *testing.T) {
	data, err := frameCodec{}.Marshal(&ParticleFrame{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("empty frame encoded to %d bytes", len(data))
	}
	out := new(ParticleFrame)
	if err := (frameCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Len() = %d, want 0", out.Len())
	}
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	in := &StreamRequest{ScannerID: "a", MaxSamples: 9}
	data := in.appendWire(nil)
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "future field")

	out := new(StreamRequest)
	if err := (frameCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestCodec_StatusResponse(t *testing.T) {
	in := &StatusResponse{ScannerID: "s", Running: true, FrameCount: 10, DroppedFrames: 2, ClientCount: 3}
	data, err := frameCodec{}.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := new(StatusResponse)
	if err := (frameCodec{}).Unmarshal(data, out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *out != *in {
		t.Errorf("got %+v, want %+v", out, in)
	}
}

func TestCodec_RejectsMismatchedArrays(t *testing.T) {
	f := NewParticleFrame(sampleBatch(2))
	f.Lifetime = f.Lifetime[:1]
	data := f.appendWire(nil)

	if err := (frameCodec{}).Unmarshal(data, new(ParticleFrame)); err == nil {
		t.Error("expected error for mismatched array lengths")
	}
}

func TestCodec_RejectsTruncatedInput(t *testing.T) {
	data := NewParticleFrame(sampleBatch(3)).appendWire(nil)
	if err := (frameCodec{}).Unmarshal(data[:len(data)-3], new(ParticleFrame)); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestCodec_RejectsForeignTypes(t *testing.T) {
	if _, err := (frameCodec{}).Marshal("not a message"); err == nil {
		t.Error("expected Marshal error")
	}
	var s string
	if err := (frameCodec{}).Unmarshal(nil, &s); err == nil {
		t.Error("expected Unmarshal error")
	}
}
