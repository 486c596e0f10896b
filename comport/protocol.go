// Package comport implements the RFC 2217 COM-PORT-OPTION subnegotiation
// layer: the baud/parity/size/flow wire codec (C3) and the engine that
// mirrors remote serial geometry and modem lines (C4). It is agnostic of
// the surrounding TELNET transport except for the telnet.Entry type used
// to watch the option table's us/him state.
package comport

// Subcommands a client sends. A server reply carries the same number
// plus serverBase.
const (
	SubSignature          = 0
	SubSetBaudrate        = 1
	SubSetDatasize        = 2
	SubSetParity          = 3
	SubSetStopsize        = 4
	SubSetControl         = 5
	SubNotifyLinestate    = 6
	SubNotifyModemstate   = 7
	SubFlowControlSuspend = 8
	SubFlowControlResume  = 9
	SubSetLinestateMask   = 10
	SubSetModemstateMask  = 11
	SubPurgeData          = 12

	serverBase = 100
)

// SET_CONTROL values.
const (
	CtlFlowRequest = 0
	CtlFlowNone    = 1
	CtlFlowXonXoff = 2
	CtlFlowHard    = 3

	CtlBreakRequest = 4
	CtlBreakOn      = 5
	CtlBreakOff     = 6

	CtlDTRRequest = 7
	CtlDTROn      = 8
	CtlDTROff     = 9

	CtlRTSRequest = 10
	CtlRTSOn      = 11
	CtlRTSOff     = 12
)

// PURGE_DATA selectors.
type FlushSelector byte

const (
	FlushIn   FlushSelector = 1
	FlushOut  FlushSelector = 2
	FlushBoth FlushSelector = 3
)

// NOTIFY_MODEMSTATE wire bit positions (RFC 2217), distinct from the
// client-side ModemLines bit layout in modem.go.
const (
	wireDeltaCTS = 0x01
	wireDeltaDSR = 0x02
	wireTERI     = 0x04
	wireDeltaCD  = 0x08
	wireCTS      = 0x10
	wireDSR      = 0x20
	wireRI       = 0x40
	wireCD       = 0x80

	// ModemstateMask is the subset of input lines this client asks the
	// server to notify it about.
	ModemstateMask = wireCD | wireRI | wireDSR | wireCTS
)
