package comport

import "encoding/binary"

// Parity mirrors the RFC 2217 SET_PARITY value space.
type Parity byte

const (
	ParityRequest Parity = 0
	ParityNone    Parity = 1
	ParityOdd     Parity = 2
	ParityEven    Parity = 3
	ParityMark    Parity = 4
	ParitySpace   Parity = 5
	ParityError   Parity = 6 // not produced by DecodeParity; an unrecognized wire value leaves Parity unchanged
)

// Flow mirrors the flow-control portion of SET_CONTROL.
type Flow byte

const (
	FlowNone    Flow = 0
	FlowXonXoff Flow = 1
	FlowHard    Flow = 2
)

// StopBits is restricted to the values SerialGeometry allows (1 or 2);
// a wire STOPSIZE of 1.5 decodes to StopBits(1) plus the HalfStop flag,
// since 1.5 only ever pairs with 5 data bits.
type StopBits byte

const (
	StopOne StopBits = 1
	StopTwo StopBits = 2
)

// SerialGeometry is the remote port configuration as predicted by this
// client. Zero value is the all-"unknown"/request state, except Flow,
// whose zero value is FlowNone (emitted as SET_CONTROL flow "none").
type SerialGeometry struct {
	OutputBaud uint32 // 0 = unknown
	InputBaud  uint32 // 0 = same as output
	DataBits   byte   // 5, 6, 7, or 8
	Parity     Parity
	StopBits   StopBits
	HalfStop   bool // true = 1.5 stop bits (only meaningful with DataBits==5)
	Flow       Flow
}

// Default returns a conventional starting geometry: 8 data bits, no
// parity, one stop bit, no flow control, baud left as "request current".
// This is the SerialGeometry equivalent of the teacher's
// Termios.MakeRaw() one-call convenience.
func Default() SerialGeometry {
	return SerialGeometry{
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: StopOne,
		Flow:     FlowNone,
	}
}

// EncodeBaud produces the 4-byte big-endian SET_BAUDRATE payload.
func EncodeBaud(baud uint32) [4]byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], baud)
	return b
}

// DecodeBaud parses a SET_BAUDRATE payload (request or notification).
func DecodeBaud(payload []byte) uint32 {
	if len(payload) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(payload)
}

// DecodeDataBits maps a wire SET_DATASIZE byte to a DataBits value. ok is
// false for any value outside {0,5,6,7,8}; the caller should leave state
// unchanged in that case rather than apply an unrecognized value.
func DecodeDataBits(v byte) (byte, bool) {
	switch v {
	case 0, 5, 6, 7, 8:
		return v, true
	}
	return 0, false
}

// DecodeParity maps a wire SET_PARITY byte.
func DecodeParity(v byte) (Parity, bool) {
	switch Parity(v) {
	case ParityRequest, ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
		return Parity(v), true
	}
	return 0, false
}

// DecodeStopBits maps a wire SET_STOPSIZE byte to (StopBits, halfStop).
// Value 3 (1.5 stop bits) is only valid when DataBits==5; the caller is
// responsible for that cross-field check.
func DecodeStopBits(v byte) (bits StopBits, half bool, ok bool) {
	switch v {
	case 0:
		return 0, false, true
	case 1:
		return StopOne, false, true
	case 2:
		return StopTwo, false, true
	case 3:
		return StopOne, true, true
	}
	return 0, false, false
}

// EncodeStopBits is the inverse of DecodeStopBits, used when emitting a
// SET_STOPSIZE request from a SerialGeometry.
func EncodeStopBits(bits StopBits, half bool) byte {
	if half {
		return 3
	}
	return byte(bits)
}
