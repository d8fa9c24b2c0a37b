package rtmp

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mediabricks/rtmp-ingest/amf/amf0"
	"github.com/mediabricks/rtmp-ingest/audio"
	"github.com/mediabricks/rtmp-ingest/config"
)

// Handler receives the events a session surfaces while parsing the inbound
// chunk stream. The receiver implements it; callbacks run synchronously on
// the worker goroutine and must not reenter the session.
type Handler interface {
	// OnNeedAck fires when the window acknowledgement size has been exceeded.
	// sequenceNumber is the total number of bytes received on the connection.
	OnNeedAck(sequenceNumber uint32)
	// OnCommand fires for every AMF0 command message.
	OnCommand(name string, transactionID float64)
	// OnVideo fires for every complete video message, tag byte still attached.
	OnVideo(streamID uint32, timestamp uint32, payload []byte)
}

// chunkStream is the per-cs_id state: the last fully decoded header, used to
// resolve Type-1/2/3 header compression, and the accumulator for a message
// that spans multiple chunks.
type chunkStream struct {
	header   RTMPHeader
	assembly []byte
}

// ChunkHandler reassembles RTMP messages from the chunked byte stream. Parse
// accepts recv-sized pieces in any split; a chunk cut off mid-read is saved in
// the rolling buffer and decoding restarts from its first byte next call.
type ChunkHandler struct {
	logger  *zap.Logger
	buffer  *RollingBuffer
	handler Handler

	chunkStreams map[uint32]*chunkStream

	chunkSize         uint32
	windowAckSize     uint32
	ackSequenceNumber uint32
	receivedSinceAck  uint32

	// Announced by the peer's SetPeerBandwidth; recorded but not otherwise used.
	maxUnackedBytes uint32
	limitType       uint8
}

func NewChunkHandler(logger *zap.Logger, buffer *RollingBuffer, handler Handler) *ChunkHandler {
	return &ChunkHandler{
		logger:        logger,
		buffer:        buffer,
		handler:       handler,
		chunkStreams:  make(map[uint32]*chunkStream),
		chunkSize:     config.DefaultChunkSize,
		windowAckSize: config.DefaultWindowAckSize,
	}
}

// Parse consumes data chunk by chunk, dispatching every completed message. A
// truncated chunk stores the unconsumed suffix and returns nil; a protocol
// violation returns an error and the connection must be closed.
func (ch *ChunkHandler) Parse(data []byte) error {
	data = ch.buffer.Continue(data)
	stream := NewByteStream(data)

	for !stream.EndOfStream() {
		start := stream.PeekData()
		remaining := stream.RemainingBytes()

		header, prev, ok := ch.readHeader(stream)
		if stream.HasError() {
			ch.buffer.StoreRemaining(start)
			return nil
		}
		if !ok {
			return errors.Wrapf(ErrMissingChunkState, "fmt %d, cs_id %d", header.Format, header.ChunkStreamID)
		}

		// How much of the message the current chunk carries: all of what is
		// still missing, capped at the chunk size boundary.
		accumulated := uint32(0)
		if prev != nil {
			accumulated = uint32(len(prev.assembly))
		}
		expected := header.Length - accumulated
		if expected > ch.chunkSize {
			expected = ch.chunkSize
		}

		payload := stream.ReadData(int(expected))
		if stream.HasError() {
			ch.buffer.StoreRemaining(start)
			return nil
		}

		consumed := uint32(remaining - stream.RemainingBytes())
		ch.ackSequenceNumber += consumed
		ch.receivedSinceAck += consumed
		if ch.receivedSinceAck > ch.windowAckSize {
			ch.handler.OnNeedAck(ch.ackSequenceNumber)
			ch.receivedSinceAck = 0
		}

		cs := prev
		if cs == nil {
			cs = &chunkStream{}
			ch.chunkStreams[header.ChunkStreamID] = cs
		}
		cs.header = header

		if header.Length > ch.chunkSize {
			cs.assembly = append(cs.assembly, payload...)
			if uint32(len(cs.assembly)) >= header.Length {
				if err := ch.dispatch(header, cs.assembly); err != nil {
					return err
				}
				cs.assembly = cs.assembly[:0]
			}
			continue
		}

		if err := ch.dispatch(header, payload); err != nil {
			return err
		}
	}

	ch.buffer.Clear()
	return nil
}

// readHeader decodes the basic header, the message header for its format code
// and the extended timestamp. ok is false when an inheriting format arrived
// for a chunk stream with no prior state.
func (ch *ChunkHandler) readHeader(stream *ByteStream) (header RTMPHeader, prev *chunkStream, ok bool) {
	basic := stream.ReadUint8()
	header.Format = (basic >> 6) & 0x03
	header.ChunkStreamID = uint32(basic & 0x3F)

	// cs_id 0 and 1 select the two and three byte basic header forms.
	if header.ChunkStreamID == 0 {
		header.ChunkStreamID = uint32(stream.ReadUint8()) + 64
	} else if header.ChunkStreamID == 1 {
		header.ChunkStreamID = uint32(stream.ReadUint16()) + 64
	}

	prev = ch.chunkStreams[header.ChunkStreamID]
	if header.Format != 0 && prev == nil {
		// An inheriting header has nothing to inherit from. Reported after the
		// truncation check so a half-received basic header isn't misclassified.
		if !stream.HasError() {
			return header, nil, false
		}
		return header, nil, true
	}

	switch header.Format {
	case 0:
		header.Timestamp = stream.ReadUint24()
		header.Length = stream.ReadUint24()
		header.TypeID = stream.ReadUint8()
		header.StreamID = stream.ReadUint32LE()
		if header.Timestamp == 0xFFFFFF {
			header.Timestamp = stream.ReadUint32()
		}
	case 1:
		delta := stream.ReadUint24()
		header.Length = stream.ReadUint24()
		header.TypeID = stream.ReadUint8()
		header.StreamID = prev.header.StreamID
		if delta == 0xFFFFFF {
			delta = stream.ReadUint32()
		}
		header.Timestamp = prev.header.Timestamp + delta
	case 2:
		delta := stream.ReadUint24()
		header.Length = prev.header.Length
		header.TypeID = prev.header.TypeID
		header.StreamID = prev.header.StreamID
		if delta == 0xFFFFFF {
			delta = stream.ReadUint32()
		}
		header.Timestamp = prev.header.Timestamp + delta
	case 3:
		// Everything inherits; the timestamp delta is zero.
		header.Timestamp = prev.header.Timestamp
		header.Length = prev.header.Length
		header.TypeID = prev.header.TypeID
		header.StreamID = prev.header.StreamID
	}

	return header, prev, true
}

// dispatch routes one complete message. Control messages update the session
// parameters in place; commands and media are surfaced through the handler.
func (ch *ChunkHandler) dispatch(header RTMPHeader, payload []byte) error {
	switch header.TypeID {
	case SetChunkSize:
		stream := NewByteStream(payload)
		size := stream.ReadUint32()
		if stream.HasError() || size == 0 {
			ch.logger.Warn("malformed SetChunkSize payload, ignoring")
			return nil
		}
		ch.logger.Debug("peer chunk size updated", zap.Uint32("chunkSize", size))
		ch.chunkSize = size

	case AbortMessage:
		stream := NewByteStream(payload)
		csID := stream.ReadUint32()
		if stream.HasError() {
			return nil
		}
		if _, exists := ch.chunkStreams[csID]; !exists {
			ch.logger.Debug("abort for unknown chunk stream", zap.Uint32("csID", csID))
			return nil
		}
		delete(ch.chunkStreams, csID)

	case Acknowledgement:
		// The peer acknowledging our bytes; nothing to track for ingest.

	case WindowAckSize:
		stream := NewByteStream(payload)
		size := stream.ReadUint32()
		if stream.HasError() {
			return nil
		}
		ch.logger.Debug("window ack size updated", zap.Uint32("windowAckSize", size))
		ch.windowAckSize = size

	case SetPeerBandwidth:
		stream := NewByteStream(payload)
		ch.maxUnackedBytes = stream.ReadUint32()
		ch.limitType = stream.ReadUint8()

	case UserControlMessage:
		stream := NewByteStream(payload)
		event := stream.ReadUint16()
		ch.logger.Debug("user control message", zap.Uint16("event", event))

	case CommandMessageAMF0:
		name, transactionID, err := amf0.ScanCommand(payload)
		if err != nil {
			return errors.Wrap(err, "command message")
		}
		ch.handler.OnCommand(name, transactionID)

	case DataMessageAMF0:
		// Informational only (@setDataFrame metadata and friends).
		if name, _, err := amf0.ScanCommand(payload); err == nil {
			ch.logger.Debug("data message", zap.String("name", name))
		}

	case VideoMessage:
		ch.handler.OnVideo(header.StreamID, header.Timestamp, payload)

	case AudioMessage:
		if len(payload) > 0 {
			format := audio.Format(payload[0] >> 4)
			ch.logger.Debug("dropping audio message", zap.String("format", format.String()))
		}

	default:
		ch.logger.Debug("dropping message",
			zap.String("type", MessageTypeName(header.TypeID)),
			zap.Uint32("length", header.Length))
	}
	return nil
}
