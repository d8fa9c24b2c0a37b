package rtmp

import (
	"github.com/mediabricks/rtmp-ingest/amf/amf0"
)

// Chunk stream IDs the server emits on. Only the protocol channel (2) is
// reserved by the spec; command responses go out on 3, matching what
// publishing clients expect.
const (
	ProtocolChannel uint8 = 2
	CommandChannel  uint8 = 3
)

const NetConnectionSuccess = "NetConnection.Connect.Success"

// writeMessage frames a complete message as a single Type-0 chunk. Every
// payload the server emits is smaller than the 128-byte default chunk size,
// so one chunk is always legal regardless of what has been announced. All
// emissions carry timestamp 0 and message stream ID 0; the stream ID goes out
// little-endian, mirroring how the parser reads it.
func writeMessage(w *ByteStreamWriter, csID uint8, typeID uint8, payload []byte) {
	w.WriteUint8(csID & 0x3F) // fmt = 0
	w.WriteUint24(0)          // timestamp
	w.WriteUint24(uint32(len(payload)))
	w.WriteUint8(typeID)
	w.WriteUint32LE(0) // message stream ID
	w.WriteData(payload)
}

// generateAckMessage builds an Acknowledgement carrying the total number of
// bytes received so far.
func generateAckMessage(sequenceNumber uint32) []byte {
	var payload ByteStreamWriter
	payload.WriteUint32(sequenceNumber)

	var msg ByteStreamWriter
	writeMessage(&msg, ProtocolChannel, Acknowledgement, payload.Bytes())
	return msg.Bytes()
}

// generateConnectResponse builds the full reply to a connect command:
// WindowAckSize, SetPeerBandwidth, SetChunkSize, the AMF0 _result and the
// StreamBegin user control event, in that order, as one write.
func generateConnectResponse(transactionID float64, windowAckSize, peerBandwidth uint32, limitType uint8, chunkSize uint32) []byte {
	var msg ByteStreamWriter

	var payload ByteStreamWriter
	payload.WriteUint32(windowAckSize)
	writeMessage(&msg, ProtocolChannel, WindowAckSize, payload.Bytes())

	payload = ByteStreamWriter{}
	payload.WriteUint32(peerBandwidth)
	payload.WriteUint8(limitType)
	writeMessage(&msg, ProtocolChannel, SetPeerBandwidth, payload.Bytes())

	payload = ByteStreamWriter{}
	payload.WriteUint32(chunkSize)
	writeMessage(&msg, ProtocolChannel, SetChunkSize, payload.Bytes())

	// _result with the status object. Field order is fixed: level, code,
	// description. Writing the object by hand keeps the ordering deterministic.
	var amf ByteStreamWriter
	amf.WriteUint8(amf0.TypeString)
	amf.WriteAmf0String("_result")
	amf.WriteUint8(amf0.TypeNumber)
	amf.WriteDouble(transactionID)
	amf.WriteUint8(amf0.TypeNull)
	amf.WriteUint8(amf0.TypeObject)
	amf.WriteAmf0String("level")
	amf.WriteUint8(amf0.TypeString)
	amf.WriteAmf0String("status")
	amf.WriteAmf0String("code")
	amf.WriteUint8(amf0.TypeString)
	amf.WriteAmf0String(NetConnectionSuccess)
	amf.WriteAmf0String("description")
	amf.WriteUint8(amf0.TypeString)
	amf.WriteAmf0String("Connection succeeded.")
	amf.WriteUint16(0) // empty key ends the object
	amf.WriteUint8(amf0.TypeObjectEnd)
	writeMessage(&msg, CommandChannel, CommandMessageAMF0, amf.Bytes())

	payload = ByteStreamWriter{}
	payload.WriteUint16(EventStreamBegin)
	payload.WriteUint32(0) // stream 0
	writeMessage(&msg, ProtocolChannel, UserControlMessage, payload.Bytes())

	return msg.Bytes()
}

// generateResultResponse builds the generic _result acknowledgement sent for
// any command other than connect: the echoed transaction number, a Null and
// an Undefined.
func generateResultResponse(transactionID float64) []byte {
	var amf ByteStreamWriter
	amf.WriteUint8(amf0.TypeString)
	amf.WriteAmf0String("_result")
	amf.WriteUint8(amf0.TypeNumber)
	amf.WriteDouble(transactionID)
	amf.WriteUint8(amf0.TypeNull)
	amf.WriteUint8(amf0.TypeUndefined)

	var msg ByteStreamWriter
	writeMessage(&msg, CommandChannel, CommandMessageAMF0, amf.Bytes())
	return msg.Bytes()
}
