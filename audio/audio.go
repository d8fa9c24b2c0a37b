package audio

// As defined in the FLV spec: https://www.adobe.com/content/dam/acom/en/devnet/flv/video_file_format_spec_v10_1.pdf
//
// Audio ingest is not supported; the receiver only decodes the format tag far
// enough to name what it is dropping.

type Format uint8

const (
	LinearPCMPlatformEndian Format = 0
	ADPCM                   Format = 1
	MP3                     Format = 2
	LinearPCMLittleEndian   Format = 3
	Nellymoser16KHzMono     Format = 4
	Nellymoser8KHzMono      Format = 5
	Nellymoser              Format = 6
	G711AlawLogPCM          Format = 7
	G711MulawLogPCM         Format = 8
	AAC                     Format = 10
	Speex                   Format = 11
	MP38KHz                 Format = 14
	DeviceSpecificSound     Format = 15
)

func (f Format) String() string {
	switch f {
	case LinearPCMPlatformEndian, LinearPCMLittleEndian:
		return "Linear PCM"
	case ADPCM:
		return "ADPCM"
	case MP3, MP38KHz:
		return "MP3"
	case Nellymoser16KHzMono, Nellymoser8KHzMono, Nellymoser:
		return "Nellymoser"
	case G711AlawLogPCM, G711MulawLogPCM:
		return "G.711"
	case AAC:
		return "AAC"
	case Speex:
		return "Speex"
	case DeviceSpecificSound:
		return "device specific"
	}
	return "unknown format"
}
