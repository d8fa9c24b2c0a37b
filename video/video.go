package video

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf

type FrameType uint8

const (
	KeyFrame             FrameType = 1
	InterFrame           FrameType = 2
	DisposableInterFrame FrameType = 3
	GeneratedKeyFrame    FrameType = 4
	// Video info/command frame
	CommandFrame FrameType = 5
)

func (f FrameType) String() string {
	switch f {
	case KeyFrame:
		return "key frame"
	case InterFrame:
		return "inter frame"
	case DisposableInterFrame:
		return "disposable inter frame"
	case GeneratedKeyFrame:
		return "generated key frame"
	case CommandFrame:
		return "command frame"
	}
	return "unknown frame type"
}

type Codec uint8

const (
	SorensonH263    Codec = 2
	ScreenVideo     Codec = 3
	VP6             Codec = 4
	VP6AlphaChannel Codec = 5
	ScreenVideoV2   Codec = 6
	H264            Codec = 7
)

func (c Codec) String() string {
	switch c {
	case SorensonH263:
		return "Sorenson H.263"
	case ScreenVideo:
		return "Screen Video"
	case VP6:
		return "VP6"
	case VP6AlphaChannel:
		return "VP6 with alpha"
	case ScreenVideoV2:
		return "Screen Video v2"
	case H264:
		return "H.264"
	}
	return "unknown codec"
}

type AVCPacketType uint8

const (
	AVCSequenceHeader AVCPacketType = 0
	AVCNALU           AVCPacketType = 1
	AVCEndOfSequence  AVCPacketType = 2
)
