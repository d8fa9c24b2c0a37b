package amf0

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrUnknownMarker = errors.New("amf0: unknown type marker")
	ErrTruncated     = errors.New("amf0: truncated value")
)

// ScanCommand walks the AMF0 values of a command or data message and returns
// the leading command name (first top-level string) and the transaction ID
// (first top-level number). Objects, ECMA arrays and other primitives are
// skipped without building any value tree; the responder only needs the
// name/number pair to answer.
func ScanCommand(data []byte) (name string, transactionID float64, err error) {
	haveName := false
	haveNumber := false

	for len(data) > 0 {
		marker := data[0]
		rest, s, n, isString, isNumber, err := scanValue(data)
		if err != nil {
			return name, transactionID, errors.Wrapf(err, "marker 0x%02x", marker)
		}
		if isString && !haveName {
			name = s
			haveName = true
		}
		if isNumber && !haveNumber {
			transactionID = n
			haveNumber = true
		}
		data = rest
	}
	return name, transactionID, nil
}

// scanValue consumes one tagged value and returns the remainder. String and
// number payloads are surfaced so the caller can capture the top-level pair.
func scanValue(data []byte) (rest []byte, s string, n float64, isString, isNumber bool, err error) {
	if len(data) == 0 {
		return nil, "", 0, false, false, ErrTruncated
	}
	marker := data[0]
	data = data[1:]

	switch marker {
	case TypeNumber:
		if len(data) < 8 {
			return nil, "", 0, false, false, ErrTruncated
		}
		n = math.Float64frombits(binary.BigEndian.Uint64(data))
		return data[8:], "", n, false, true, nil

	case TypeBoolean:
		if len(data) < 1 {
			return nil, "", 0, false, false, ErrTruncated
		}
		return data[1:], "", 0, false, false, nil

	case TypeString:
		s, data, err = scanShortString(data)
		if err != nil {
			return nil, "", 0, false, false, err
		}
		return data, s, 0, true, false, nil

	case TypeNull, TypeUndefined:
		return data, "", 0, false, false, nil

	case TypeReference:
		if len(data) < 2 {
			return nil, "", 0, false, false, ErrTruncated
		}
		return data[2:], "", 0, false, false, nil

	case TypeObject:
		data, err = scanObjectBody(data)
		return data, "", 0, false, false, err

	case TypeECMAArray:
		// The u32 associative count is advisory; properties still end with the
		// empty-key/ObjectEnd sentinel.
		if len(data) < 4 {
			return nil, "", 0, false, false, ErrTruncated
		}
		data, err = scanObjectBody(data[4:])
		return data, "", 0, false, false, err

	case TypeObjectEnd:
		return data, "", 0, false, false, nil

	default:
		return nil, "", 0, false, false, ErrUnknownMarker
	}
}

// scanObjectBody skips key/value pairs until the zero-length key that marks
// the end of the object, followed by the ObjectEnd marker.
func scanObjectBody(data []byte) ([]byte, error) {
	for {
		if len(data) < 2 {
			return nil, ErrTruncated
		}
		keyLength := binary.BigEndian.Uint16(data)
		if len(data) < 2+int(keyLength) {
			return nil, ErrTruncated
		}
		data = data[2+keyLength:]

		if keyLength == 0 {
			if len(data) < 1 {
				return nil, ErrTruncated
			}
			if data[0] != TypeObjectEnd {
				return nil, ErrUnknownMarker
			}
			return data[1:], nil
		}

		rest, _, _, _, _, err := scanValue(data)
		if err != nil {
			return nil, err
		}
		data = rest
	}
}

func scanShortString(data []byte) (string, []byte, error) {
	if len(data) < 2 {
		return "", nil, ErrTruncated
	}
	length := binary.BigEndian.Uint16(data)
	if len(data) < 2+int(length) {
		return "", nil, ErrTruncated
	}
	return string(data[2 : 2+length]), data[2+length:], nil
}
