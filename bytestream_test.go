package rtmp

import (
	"bytes"
	"math"
	"testing"
)

func TestByteStreamReads(t *testing.T) {
	s := NewByteStream([]byte{
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0A,
		0x0B, 0x0C, 0x0D, 0x0E,
	})

	if got := s.ReadUint8(); got != 0x01 {
		t.Errorf("ReadUint8: got 0x%02x, want 0x01", got)
	}
	if got := s.ReadUint16(); got != 0x0203 {
		t.Errorf("ReadUint16: got 0x%04x, want 0x0203", got)
	}
	if got := s.ReadUint24(); got != 0x040506 {
		t.Errorf("ReadUint24: got 0x%06x, want 0x040506", got)
	}
	if got := s.ReadUint32(); got != 0x0708090A {
		t.Errorf("ReadUint32: got 0x%08x, want 0x0708090A", got)
	}
	if got := s.ReadUint32LE(); got != 0x0E0D0C0B {
		t.Errorf("ReadUint32LE: got 0x%08x, want 0x0E0D0C0B", got)
	}
	if !s.EndOfStream() {
		t.Error("expected end of stream")
	}
	if s.HasError() {
		t.Error("expected no error after exact reads")
	}
}

func TestByteStreamDouble(t *testing.T) {
	var w ByteStreamWriter
	w.WriteDouble(1935.5)

	s := NewByteStream(w.Bytes())
	if got := s.ReadDouble(); got != 1935.5 {
		t.Errorf("ReadDouble: got %v, want 1935.5", got)
	}
}

func TestByteStreamStickyError(t *testing.T) {
	s := NewByteStream([]byte{0x01, 0x02})

	if got := s.ReadUint32(); got != 0 {
		t.Errorf("truncated ReadUint32: got %d, want 0", got)
	}
	if !s.HasError() {
		t.Fatal("expected error flag after short read")
	}

	// Sticky: the two remaining bytes must not satisfy later reads.
	if got := s.ReadUint8(); got != 0 {
		t.Errorf("read after error: got %d, want 0", got)
	}
	if got := s.ReadData(1); got != nil {
		t.Errorf("ReadData after error: got %v, want nil", got)
	}
	if s.RemainingBytes() != 2 {
		t.Errorf("cursor advanced after error: %d remaining", s.RemainingBytes())
	}
}

func TestByteStreamReadData(t *testing.T) {
	s := NewByteStream([]byte{0x01, 0x02, 0x03, 0x04})

	if got := s.ReadData(3); !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadData(3): got %v", got)
	}
	if got := s.PeekData(); !bytes.Equal(got, []byte{0x04}) {
		t.Errorf("PeekData: got %v", got)
	}
	if s.RemainingBytes() != 1 {
		t.Errorf("RemainingBytes: got %d, want 1", s.RemainingBytes())
	}

	if got := s.ReadData(2); got != nil {
		t.Errorf("overlong ReadData: got %v, want nil", got)
	}
	if !s.HasError() {
		t.Error("expected error flag after overlong ReadData")
	}
}

func TestByteStreamWriterMirrorsReader(t *testing.T) {
	var w ByteStreamWriter
	w.WriteUint8(0x7F)
	w.WriteUint16(0xBEEF)
	w.WriteUint24(0xABCDEF)
	w.WriteUint32(0x01020304)
	w.WriteUint32LE(0x01020304)
	w.WriteUint64(0x1122334455667788)
	w.WriteData([]byte{0xAA, 0xBB})

	s := NewByteStream(w.Bytes())
	if got := s.ReadUint8(); got != 0x7F {
		t.Errorf("u8 roundtrip: got 0x%02x", got)
	}
	if got := s.ReadUint16(); got != 0xBEEF {
		t.Errorf("u16 roundtrip: got 0x%04x", got)
	}
	if got := s.ReadUint24(); got != 0xABCDEF {
		t.Errorf("u24 roundtrip: got 0x%06x", got)
	}
	if got := s.ReadUint32(); got != 0x01020304 {
		t.Errorf("u32 roundtrip: got 0x%08x", got)
	}
	if got := s.ReadUint32LE(); got != 0x01020304 {
		t.Errorf("u32le roundtrip: got 0x%08x", got)
	}
	if got := s.ReadUint64(); got != 0x1122334455667788 {
		t.Errorf("u64 roundtrip: got 0x%016x", got)
	}
	if got := s.ReadData(2); !bytes.Equal(got, []byte{0xAA, 0xBB}) {
		t.Errorf("data roundtrip: got %v", got)
	}
}

func TestWriteAmf0String(t *testing.T) {
	var w ByteStreamWriter
	w.WriteAmf0String("connect")

	want := []byte{0x00, 0x07, 'c', 'o', 'n', 'n', 'e', 'c', 't'}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteAmf0String: got %v, want %v", w.Bytes(), want)
	}
}

func TestReadDoubleNaN(t *testing.T) {
	var w ByteStreamWriter
	w.WriteUint64(math.Float64bits(math.NaN()))

	s := NewByteStream(w.Bytes())
	if got := s.ReadDouble(); !math.IsNaN(got) {
		t.Errorf("ReadDouble: got %v, want NaN", got)
	}
}
