package rtmp

import "github.com/pkg/errors"

var (
	// ErrUnsupportedRTMPVersion is returned when C0 carries a protocol version other than 3.
	ErrUnsupportedRTMPVersion = errors.New("rtmp: unsupported protocol version")
	// ErrWrongC2Message is returned when the trailing 1528 bytes of C2 do not echo S1.
	ErrWrongC2Message = errors.New("rtmp: c2 does not echo the s1 random data")
	// ErrMissingChunkState is returned when a chunk with an inheriting format code
	// arrives for a chunk stream the session has never seen.
	ErrMissingChunkState = errors.New("rtmp: chunk header references unknown chunk stream state")
	// ErrShortSend is returned when a socket write sent fewer bytes than requested.
	ErrShortSend = errors.New("rtmp: short send")
)
