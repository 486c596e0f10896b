package rserial

import "errors"

// ErrWouldBlock is returned by Read when a socket read produced no user
// bytes yet (every byte belonged to an in-flight IAC frame, or the
// descriptor simply wasn't ready). It is the unified, non-error signal
// behind the decoder's EOF-masking rule: callers must not mistake it for
// end of stream.
var ErrWouldBlock = errors.New("rserial: try again")

// Kind classifies a failure so a higher-level component (a terminal
// emulator) can decide how to react without needing to pattern-match the
// message string.
type Kind int

const (
	// KindNone is the zero value: no error.
	KindNone Kind = iota
	// KindInput is a hard failure reading the socket.
	KindInput
	// KindOutput is a hard failure writing the socket.
	KindOutput
	// KindSelect is a hard failure in the barrier's readiness wait.
	KindSelect
	// KindTimedOut is a configuration barrier exceeding its deadline.
	KindTimedOut
	// KindReadZero is the peer closing while a barrier waited.
	KindReadZero
	// KindMemory is allocation failure of per-connection state at init.
	KindMemory
	// KindProtocol is a malformed IAC frame; never fatal to the
	// connection, only logged and the frame state reset.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input error"
	case KindOutput:
		return "output error"
	case KindSelect:
		return "select error"
	case KindTimedOut:
		return "timed out"
	case KindReadZero:
		return "read zero"
	case KindMemory:
		return "memory"
	case KindProtocol:
		return "protocol"
	}
	return "none"
}

// Error is the result wrapper this package returns, mirroring the
// teacher's serial.Error: a short message plus the wrapped underlying
// error, with an associated Kind.
type Error struct {
	Kind Kind
	msg  string
	err  error
}

func (e Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return e.msg + ": " + e.err.Error()
		}
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return e.Kind.String()
}

func (e Error) Unwrap() error { return e.err }

func newErr(kind Kind, msg string, err error) error {
	return Error{Kind: kind, msg: msg, err: err}
}
