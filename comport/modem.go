package comport

import (
	"fmt"
	"strings"
)

// ModemLines is the bitset of RS-232 control/status lines this client
// tracks. The bit layout follows the teacher's local TIOCM_* assignments
// (port_linux.go) so the two conventions read the same way in logs, even
// though these bits now arrive over COM-PORT notifications rather than a
// local TIOCMGET ioctl.
type ModemLines uint32

const (
	LE  ModemLines = 0x001 // line enable / DSR passthrough, status ancillary
	DTR ModemLines = 0x002 // output: data terminal ready
	RTS ModemLines = 0x004 // output: request to send
	ST  ModemLines = 0x008 // status ancillary, passes through unchanged
	SR  ModemLines = 0x010 // status ancillary, passes through unchanged
	CTS ModemLines = 0x020 // input: clear to send
	CD  ModemLines = 0x040 // input: carrier detect
	RI  ModemLines = 0x080 // input: ring indicator
	DSR ModemLines = 0x100 // input: data set ready
)

var modemLineNames = map[ModemLines]string{
	LE:  "LE",
	DTR: "DTR",
	RTS: "RTS",
	ST:  "ST",
	SR:  "SR",
	CTS: "CTS",
	CD:  "CD",
	RI:  "RI",
	DSR: "DSR",
}

// String renders the set bits as "[DTR|RTS]", mirroring the teacher's
// ModemLine.String().
func (m ModemLines) String() string {
	var names []string
	for bit := ModemLines(1); bit <= DSR; bit <<= 1 {
		if m&bit == 0 {
			continue
		}
		if name, ok := modemLineNames[bit]; ok {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("Unknown(%#x)", uint32(bit)))
		}
	}
	return "[" + strings.Join(names, "|") + "]"
}

// decodeModemstate translates a NOTIFY_MODEMSTATE wire byte into the
// subset of ModemLines it carries, applying mask. DTR/RTS are never
// present in the wire byte: they are outputs, only ever updated by our
// own SET_CONTROL echoes.
func decodeModemstate(wire byte) ModemLines {
	var m ModemLines
	if wire&wireCD != 0 {
		m |= CD
	}
	if wire&wireRI != 0 {
		m |= RI
	}
	if wire&wireDSR != 0 {
		m |= DSR
	}
	if wire&wireCTS != 0 {
		m |= CTS
	}
	return m
}
