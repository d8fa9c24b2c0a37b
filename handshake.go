package rtmp

import (
	"bytes"

	"github.com/mediabricks/rtmp-ingest/rand"
)

const RtmpVersion3 = 3

const (
	// HandshakePacketSize is the size of C1, C2, S1 and S2.
	HandshakePacketSize = 1536
	// HandshakeRandomSize is the random tail of a handshake packet, after the
	// two leading u32 time fields.
	HandshakeRandomSize = HandshakePacketSize - 8
)

// HandshakeState accumulates the client side of the C0/C1/C2 exchange.
// Round advances from 0 (nothing read) to 3 (handshake complete).
type HandshakeState struct {
	Round int

	// Round 0
	ClientVersion uint8

	// Round 1 (C1)
	ClientTime   uint32
	ClientRandom [HandshakeRandomSize]byte

	// Round 2 (C2)
	EchoTime     uint32
	EchoTime2    uint32
	ClientEcho   [HandshakeRandomSize]byte
}

// Handshake consumes the client's handshake bytes round by round. Input may
// arrive in arbitrary recv-sized pieces; a round that is truncated mid-read is
// pushed back into the rolling buffer and resumed on the next Parse call.
type Handshake struct {
	Buffer *RollingBuffer
	State  HandshakeState
}

// Parse drives the handshake state machine over data. Once the state reaches
// round 3, any trailing bytes are stored back for the chunk session parser.
func (h *Handshake) Parse(data []byte) {
	data = h.Buffer.Continue(data)
	stream := NewByteStream(data)

	for !stream.EndOfStream() {
		if h.State.Round >= 3 {
			// Handshake done; the rest of the input belongs to the chunk stream.
			h.Buffer.StoreRemaining(stream.PeekData())
			return
		}

		start := stream.PeekData()

		switch h.State.Round {
		case 0:
			h.State.ClientVersion = stream.ReadUint8()
		case 1:
			h.State.ClientTime = stream.ReadUint32()
			stream.ReadUint32() // zero field
			random := stream.ReadData(HandshakeRandomSize)
			if !stream.HasError() {
				copy(h.State.ClientRandom[:], random)
			}
		case 2:
			h.State.EchoTime = stream.ReadUint32()
			h.State.EchoTime2 = stream.ReadUint32()
			echo := stream.ReadData(HandshakeRandomSize)
			if !stream.HasError() {
				copy(h.State.ClientEcho[:], echo)
			}
		}

		if stream.HasError() {
			h.Buffer.StoreRemaining(start)
			return
		}

		h.State.Round++
	}

	h.Buffer.Clear()
}

// generateS0S1 produces the S0 version byte followed by S1: a u32 server
// time, a u32 zero field and 1528 bytes of pseudo-random data keyed on the
// server time. Keeping the fill deterministic makes the C2 echo check
// reproducible for a given time value.
func generateS0S1(serverTime uint32) []byte {
	s0s1 := make([]byte, 1+HandshakePacketSize)
	s0s1[0] = RtmpVersion3
	writeUint32(s0s1[1:], serverTime)
	rand.FillDeterministic(s0s1[9:], serverTime)
	return s0s1
}

// generateS2 echoes the client's C1: its time, a zero field and its random data.
func generateS2(peerTime uint32, clientRandom []byte) []byte {
	s2 := make([]byte, HandshakePacketSize)
	writeUint32(s2, peerTime)
	copy(s2[8:], clientRandom)
	return s2
}

// validateC2 checks that the client echoed the random portion of S1.
// s1 is the S1 packet without the leading S0 byte.
func validateC2(s1 []byte, clientEcho []byte) bool {
	return bytes.Equal(s1[8:HandshakePacketSize], clientEcho)
}

func writeUint32(buffer []byte, v uint32) {
	buffer[0] = byte(v >> 24)
	buffer[1] = byte(v >> 16)
	buffer[2] = byte(v >> 8)
	buffer[3] = byte(v)
}
