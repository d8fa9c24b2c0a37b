package rtmp

import (
	"go.uber.org/zap"

	"github.com/mediabricks/rtmp-ingest/video"
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}
var emulationPrevention = []byte{0x00, 0x00, 0x03}

// SetupResult carries the decoder configuration parsed from the AVC sequence
// header: the raw AVCDecoderConfigurationRecord, the parameter sets and the
// width of the NALU length prefix that subsequent packets will use.
type SetupResult struct {
	Record         []byte
	Profile        uint8
	Level          uint8
	VideoSizeBytes int
	SPS            [][]byte
	PPS            [][]byte
}

// AVCCParser converts AVCC-framed H.264 into Annex-B byte stream. The
// sequence header produces extradata (Annex-B SPS/PPS) that is held back and
// prepended to the first NALU sequence, so a decoder reading the output sees
// parameter sets before any coded slice.
type AVCCParser struct {
	logger *zap.Logger

	videoSizeBytes int
	extradata      []byte

	// Annex-B output of the last Parse call; reused across calls.
	Video []byte

	// Set by Parse when a sequence header was decoded.
	Setup    SetupResult
	HasSetup bool
}

func NewAVCCParser(logger *zap.Logger) *AVCCParser {
	return &AVCCParser{logger: logger}
}

// Parse consumes one FLV video payload with the leading frame-type/codec byte
// already stripped. Truncation aborts the current message; the parser stays
// usable for the next one.
func (p *AVCCParser) Parse(data []byte) {
	p.Video = p.Video[:0]
	p.HasSetup = false

	stream := NewByteStream(data)
	packetType := video.AVCPacketType(stream.ReadUint8())
	stream.ReadUint24() // composition time, unused

	switch packetType {
	case video.AVCSequenceHeader:
		p.parseExtradata(stream)
	case video.AVCNALU:
		p.parseCodedVideo(stream)
	case video.AVCEndOfSequence:
		// End marker carries no payload.
	default:
		p.logger.Debug("unsupported AVC packet type", zap.Uint8("type", uint8(packetType)))
	}

	if stream.HasError() {
		p.logger.Debug("truncated AVCC payload")
	}
}

// parseExtradata walks the AVCDecoderConfigurationRecord, converting every
// SPS and PPS to Annex-B framing in the pending extradata buffer.
func (p *AVCCParser) parseExtradata(stream *ByteStream) {
	setup := SetupResult{Record: stream.PeekData()}

	stream.ReadUint8() // configuration version
	setup.Profile = stream.ReadUint8()
	stream.ReadUint8() // profile compatibility
	setup.Level = stream.ReadUint8()
	setup.VideoSizeBytes = int(stream.ReadUint8()&0x03) + 1

	p.extradata = p.extradata[:0]

	numSPS := int(stream.ReadUint8() & 0x1F)
	for i := 0; i < numSPS; i++ {
		size := int(stream.ReadUint16())
		sps := stream.ReadData(size)
		if stream.HasError() {
			p.logger.Debug("truncated while reading SPS")
			return
		}
		setup.SPS = append(setup.SPS, sps)
		p.extradata = convertToAnnexB(p.extradata, sps)
	}

	numPPS := int(stream.ReadUint8())
	for i := 0; i < numPPS; i++ {
		size := int(stream.ReadUint16())
		pps := stream.ReadData(size)
		if stream.HasError() {
			p.logger.Debug("truncated while reading PPS")
			return
		}
		setup.PPS = append(setup.PPS, pps)
		p.extradata = convertToAnnexB(p.extradata, pps)
	}

	if stream.HasError() {
		return
	}

	p.videoSizeBytes = setup.VideoSizeBytes
	p.Setup = setup
	p.HasSetup = true
}

// parseCodedVideo unpacks a sequence of length-prefixed NALUs. Pending
// extradata is flushed ahead of the first converted unit.
func (p *AVCCParser) parseCodedVideo(stream *ByteStream) {
	if p.videoSizeBytes == 0 {
		p.logger.Debug("NALU payload before sequence header, dropping")
		return
	}

	if len(p.extradata) > 0 {
		p.Video = append(p.Video, p.extradata...)
		p.extradata = p.extradata[:0]
	}

	for !stream.EndOfStream() {
		var size int
		switch p.videoSizeBytes {
		case 1:
			size = int(stream.ReadUint8())
		case 2:
			size = int(stream.ReadUint16())
		case 3:
			size = int(stream.ReadUint24())
		case 4:
			size = int(stream.ReadUint32())
		}
		body := stream.ReadData(size)
		if stream.HasError() {
			p.logger.Debug("truncated NALU", zap.Int("size", size))
			return
		}
		p.Video = convertToAnnexB(p.Video, body)
	}
}

// convertToAnnexB appends nalu to out with a 4-byte start code, replacing
// every 00 00 00 window with the 00 00 03 emulation prevention sequence.
func convertToAnnexB(out []byte, nalu []byte) []byte {
	out = append(out, startCode...)
	for len(nalu) > 0 {
		if len(nalu) >= 3 && nalu[0] == 0 && nalu[1] == 0 && nalu[2] == 0 {
			out = append(out, emulationPrevention...)
			nalu = nalu[3:]
		} else {
			out = append(out, nalu[0])
			nalu = nalu[1:]
		}
	}
	return out
}
