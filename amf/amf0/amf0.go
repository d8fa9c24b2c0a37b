package amf0

const (
	TypeNumber      byte = 0x00
	TypeBoolean     byte = 0x01
	TypeString      byte = 0x02
	TypeObject      byte = 0x03
	TypeMovieClip   byte = 0x04 // reserved, not supported
	TypeNull        byte = 0x05
	TypeUndefined   byte = 0x06
	TypeReference   byte = 0x07
	TypeECMAArray   byte = 0x08
	TypeObjectEnd   byte = 0x09
	TypeStrictArray byte = 0x0A
	TypeDate        byte = 0x0B
	TypeLongString  byte = 0x0C
)
