package comport

import (
	"strings"
	"time"

	"github.com/daedaluz/rfc2217term/telnet"
	"go.uber.org/zap"
)

// FrameWriter writes one COM-PORT subnegotiation frame to the wire.
// telnet.Codec implements this directly.
type FrameWriter interface {
	WriteSubnegotiation(opt byte, payload []byte) error
}

// Sleeper abstracts the BREAK hold delay so tests don't actually wait.
type Sleeper func(time.Duration)

// Engine is the COM-PORT protocol engine (C4): it emits configuration
// and modem-control subnegotiations, demultiplexes server notifications
// back into a predicted SerialGeometry/ModemLines, and exposes the
// initial-configuration barrier predicates.
//
// Engine is not safe for concurrent use; it is driven from the same
// single-threaded read loop as the rest of the client.
type Engine struct {
	w         FrameWriter
	log       *zap.SugaredLogger
	signature string
	sleep     Sleeper

	geometry SerialGeometry
	modem    ModemLines

	canComport        bool
	setTermiosPending bool
	setModemPending   bool
	confPending       int
	initialConfigured bool
}

// NewEngine builds an Engine. signature is what this client replies with
// to an empty SIGNATURE request, e.g. "rserial v1.0" in the style of
// picocom's own "picocom v<VERSION>".
func NewEngine(w FrameWriter, signature string, log *zap.SugaredLogger) *Engine {
	return &Engine{w: w, signature: signature, sleep: time.Sleep, log: log}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Debugf(format, args...)
	}
}

// ComPortStarted is the cond_comport_start barrier predicate.
func (e *Engine) ComPortStarted() bool { return e.canComport }

// InitialConfigComplete is the cond_initial_conf_complete barrier
// predicate. Once satisfied it latches permanently.
func (e *Engine) InitialConfigComplete() bool {
	if e.initialConfigured {
		return true
	}
	if e.canComport && e.confPending == 0 {
		e.initialConfigured = true
		return true
	}
	return false
}

// HasPendingConfig reports whether TCSetAttr was called before
// can_comport became true (i.e. whether the caller opted into the
// initial-config barrier at all; ModemBis/ModemBic do not opt in, and a
// caller who never calls TCSetAttr early is never blocked).
func (e *Engine) HasPendingConfig() bool {
	return e.setTermiosPending
}

// HandleOptionChange is wired to the telnet option table's OnChange
// hook. It watches for opt[COM-PORT].us reaching YES for the first time.
// Two variants of this latch exist in the wild, differing on whether it
// fires after WILL alone or after both WILL and DO; this engine uses the
// newer behavior: Us==YES alone is sufficient.
func (e *Engine) HandleOptionChange(opt byte, entry telnet.Entry) {
	if opt != telnet.OptComPort || e.canComport || entry.Us != telnet.Yes {
		return
	}
	e.canComport = true
	e.start()
}

func (e *Engine) send(sub byte, payload []byte) {
	body := make([]byte, 0, len(payload)+1)
	body = append(body, sub)
	body = append(body, payload...)
	if err := e.w.WriteSubnegotiation(telnet.OptComPort, body); err != nil {
		e.logf("comport: subnegotiation write failed: %v", err)
	}
}

func (e *Engine) sendControl(v byte) { e.send(SubSetControl, []byte{v}) }

// start runs once, the instant can_comport becomes true.
func (e *Engine) start() {
	e.send(SubSignature, nil)
	e.send(SubSetLinestateMask, []byte{0})
	e.send(SubSetModemstateMask, []byte{ModemstateMask})

	if e.setTermiosPending {
		e.emitGeometry(e.geometry)
	} else {
		e.emitRequestCurrent()
	}
	e.confPending += 5

	if e.setModemPending {
		e.sendControl(ctlFor(DTR, e.modem&DTR != 0))
		e.sendControl(ctlFor(RTS, e.modem&RTS != 0))
	} else {
		e.sendControl(CtlDTRRequest)
		e.sendControl(CtlRTSRequest)
	}

	e.sendControl(CtlBreakRequest)
}

func (e *Engine) emitRequestCurrent() {
	var zero [4]byte
	e.send(SubSetBaudrate, zero[:])
	e.send(SubSetDatasize, []byte{0})
	e.send(SubSetParity, []byte{0})
	e.send(SubSetStopsize, []byte{0})
	e.send(SubSetControl, []byte{CtlFlowRequest})
}

func (e *Engine) emitGeometry(g SerialGeometry) {
	baud := EncodeBaud(g.OutputBaud)
	e.send(SubSetBaudrate, baud[:])
	e.send(SubSetDatasize, []byte{g.DataBits})
	e.send(SubSetParity, []byte{byte(g.Parity)})
	e.send(SubSetStopsize, []byte{EncodeStopBits(g.StopBits, g.HalfStop)})
	e.send(SubSetControl, []byte{flowToCtl(g.Flow)})
}

func flowToCtl(f Flow) byte {
	switch f {
	case FlowXonXoff:
		return CtlFlowXonXoff
	case FlowHard:
		return CtlFlowHard
	default:
		return CtlFlowNone
	}
}

func flowFromCtl(v byte) Flow {
	switch v {
	case CtlFlowXonXoff:
		return FlowXonXoff
	case CtlFlowHard:
		return FlowHard
	default:
		return FlowNone
	}
}

func ctlFor(line ModemLines, on bool) byte {
	switch line {
	case DTR:
		if on {
			return CtlDTROn
		}
		return CtlDTROff
	case RTS:
		if on {
			return CtlRTSOn
		}
		return CtlRTSOff
	}
	return 0
}

// TCGetAttr returns the current predicted geometry; never blocks.
func (e *Engine) TCGetAttr() SerialGeometry { return e.geometry }

// TCSetAttr stores the requested geometry and, once COM-PORT is active,
// immediately emits the five SET_* messages. This client always applies
// settings immediately; it models no drain/flush semantics beyond
// PURGE_DATA.
func (e *Engine) TCSetAttr(g SerialGeometry) {
	e.geometry = g
	if e.canComport {
		e.emitGeometry(g)
		e.confPending += 5
	} else {
		e.setTermiosPending = true
	}
}

// ModemBis sets the given modem line bits.
func (e *Engine) ModemBis(mask ModemLines) {
	e.modem |= mask
	e.applyModemIntent(mask, true)
}

// ModemBic clears the given modem line bits.
func (e *Engine) ModemBic(mask ModemLines) {
	e.modem &^= mask
	e.applyModemIntent(mask, false)
}

func (e *Engine) applyModemIntent(mask ModemLines, on bool) {
	touches := mask&(DTR|RTS) != 0
	if !touches {
		return
	}
	if e.canComport {
		if mask&DTR != 0 {
			e.sendControl(ctlFor(DTR, on))
		}
		if mask&RTS != 0 {
			e.sendControl(ctlFor(RTS, on))
		}
		return
	}
	e.setModemPending = true
}

// ModemGet returns the predicted modem line bitset; never blocks. It
// reflects our own last-set DTR/RTS intention from the moment it is set,
// whether or not the server has acknowledged it yet, until a server
// SET_CONTROL notification reports a different DTR/RTS value.
func (e *Engine) ModemGet() ModemLines { return e.modem }

// SendBreak asserts BREAK for 250ms.
func (e *Engine) SendBreak() {
	e.sendControl(CtlBreakOn)
	e.sleep(250 * time.Millisecond)
	e.sendControl(CtlBreakOff)
}

// Flush issues PURGE_DATA for the given selector.
func (e *Engine) Flush(sel FlushSelector) {
	e.send(SubPurgeData, []byte{byte(sel)})
}

// HandleNotification processes one reassembled subnegotiation. It
// ignores anything that isn't the COM-PORT option, and any payload whose
// first byte identifies a client-echoed (sub < serverBase) subcommand.
func (e *Engine) HandleNotification(opt byte, payload []byte) {
	if opt != telnet.OptComPort || len(payload) == 0 {
		return
	}
	sub := payload[0]
	body := payload[1:]
	if sub < serverBase {
		return
	}
	switch sub - serverBase {
	case SubSignature:
		if len(body) > 0 {
			e.logf("comport: remote signature %q", strings.Trim(string(body), "\x00 \t\r\n"))
		} else {
			e.send(SubSignature, []byte(e.signature))
		}
	case SubSetBaudrate:
		if len(body) >= 4 {
			e.geometry.OutputBaud = DecodeBaud(body)
		}
		e.confPending--
	case SubSetDatasize:
		if len(body) > 0 {
			if v, ok := DecodeDataBits(body[0]); ok {
				e.geometry.DataBits = v
			}
		}
		e.confPending--
	case SubSetParity:
		if len(body) > 0 {
			if v, ok := DecodeParity(body[0]); ok {
				e.geometry.Parity = v
			}
		}
		e.confPending--
	case SubSetStopsize:
		if len(body) > 0 {
			if bits, half, ok := DecodeStopBits(body[0]); ok {
				e.geometry.StopBits = bits
				e.geometry.HalfStop = half
			}
		}
		e.confPending--
	case SubSetControl:
		if len(body) > 0 {
			e.handleControlNotify(body[0])
		}
	case SubNotifyModemstate:
		if len(body) > 0 {
			const inputs = CD | RI | DSR | CTS
			e.modem = (e.modem &^ inputs) | decodeModemstate(body[0])
		}
	default:
		e.logf("comport: ignoring server subcommand %d", sub-serverBase)
	}
}

// handleControlNotify classifies a SET_CONTROL echo value: flow values
// decrement conf_pending, DTR/RTS on/off values update the corresponding
// output bit without touching the counter, and anything else is left
// alone.
func (e *Engine) handleControlNotify(v byte) {
	switch v {
	case CtlFlowNone, CtlFlowXonXoff, CtlFlowHard:
		e.geometry.Flow = flowFromCtl(v)
		e.confPending--
	case CtlDTROn:
		e.modem |= DTR
	case CtlDTROff:
		e.modem &^= DTR
	case CtlRTSOn:
		e.modem |= RTS
	case CtlRTSOff:
		e.modem &^= RTS
	default:
		e.logf("comport: unrecognized SET_CONTROL value %d, ignoring", v)
	}
}
