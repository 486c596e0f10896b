// Package telnet implements the TELNET framing (RFC 854) this client
// needs: IAC escaping on the wire, IAC-frame extraction on read, and the
// RFC 1143 Q-method option negotiator. It knows nothing about COM-PORT
// (RFC 2217) semantics; callers attach a SubHandler to receive
// subnegotiation payloads for whichever option they care about.
package telnet

// Command bytes (RFC 854).
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	// Single-byte commands this client logs for diagnostics but never
	// acts on.
	AYT   byte = 246
	BREAK byte = 243
	IP    byte = 244
	GA    byte = 249
	NOP   byte = 241
)

// Option numbers this client negotiates. No other option is ever
// offered or accepted.
const (
	OptBinary  byte = 0
	OptEcho    byte = 1
	OptSGA     byte = 3
	OptComPort byte = 44
)

func verbName(b byte) string {
	switch b {
	case WILL:
		return "WILL"
	case WONT:
		return "WONT"
	case DO:
		return "DO"
	case DONT:
		return "DONT"
	}
	return "?"
}
