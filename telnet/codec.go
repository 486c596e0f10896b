package telnet

import (
	"errors"
	"io"

	"go.uber.org/zap"
)

// ErrTryAgain is returned by Decode when a read produced only IAC frames
// and no user bytes. It is not a real error: it masks the degenerate
// zero-byte return so a caller doesn't mistake it for EOF.
var ErrTryAgain = errors.New("telnet: try again")

// cmdBufCap is the commandBuffer capacity. Subnegotiation frames in this
// protocol are small; a stack-resident fixed accumulator is correct and
// sufficient.
const cmdBufCap = 64

type decodeState int

const (
	stateOutside decodeState = iota
	stateGotIAC
	stateNegotiationOpt
	stateSubOption
	stateSubBody
	stateSubBodyIAC
)

// commandBuffer accumulates the bytes of an in-flight IAC frame.
type commandBuffer struct {
	buf [cmdBufCap]byte
	len int
}

func (c *commandBuffer) reset() { c.len = 0 }

// append reports whether the byte fit. The buffer holds at most
// capacity-1 bytes; a frame that would grow beyond that is abandoned by
// the caller.
func (c *commandBuffer) append(b byte) bool {
	if c.len >= cmdBufCap-1 {
		return false
	}
	c.buf[c.len] = b
	c.len++
	return true
}

// CommandHandler receives single-byte IAC commands (AYT, BREAK, IP, ...)
// that this client logs but never acts on.
type CommandHandler func(cmd byte)

// SubHandler receives a fully reassembled subnegotiation: the option
// number and its (already IAC-unescaped) payload.
type SubHandler func(opt byte, payload []byte)

// Codec is the per-connection byte-stream codec (C1) plus the glue that
// drives negotiation replies (C2) and dispatches subnegotiations. It is
// not safe for concurrent use; callers drive it from a single
// cooperative reader per connection.
type Codec struct {
	w io.Writer

	Options *Table
	OnSub   SubHandler
	OnCmd   CommandHandler
	Log     *zap.SugaredLogger

	state   decodeState
	cmd     commandBuffer
	subOpt  byte
	willbuf [3]byte
}

// NewCodec builds a codec that writes IAC-doubled bytes and negotiation
// replies to w.
func NewCodec(w io.Writer, opts *Table) *Codec {
	c := &Codec{w: w, Options: opts}
	if opts != nil {
		opts.send = c.sendVerb
	}
	return c
}

func (c *Codec) logf(format string, args ...interface{}) {
	if c.Log != nil {
		c.Log.Debugf(format, args...)
	}
}

// Encode is the write-path codec (C1 encode): every occurrence of IAC in
// p is doubled on the wire. The returned count is always len(p) on
// success, regardless of the doubling, matching io.Writer's caller-visible
// contract.
func (c *Codec) Encode(p []byte) (int, error) {
	start := 0
	for i, b := range p {
		if b != IAC {
			continue
		}
		if _, err := c.w.Write(p[start : i+1]); err != nil {
			return start, err
		}
		if _, err := c.w.Write([]byte{IAC}); err != nil {
			return start, err
		}
		start = i + 1
	}
	if start < len(p) {
		if _, err := c.w.Write(p[start:]); err != nil {
			return start, err
		}
	}
	return len(p), nil
}

// WriteSubnegotiation writes IAC SB opt <payload, IAC-doubled> IAC SE.
// Subnegotiation payloads are small control messages, not user data, but
// any 0xFF byte inside one (e.g. a baud rate that happens to contain
// 0xFF) still needs escaping per RFC 854.
func (c *Codec) WriteSubnegotiation(opt byte, payload []byte) error {
	buf := make([]byte, 0, len(payload)+6)
	buf = append(buf, IAC, SB, opt)
	for _, b := range payload {
		if b == IAC {
			buf = append(buf, IAC)
		}
		buf = append(buf, b)
	}
	buf = append(buf, IAC, SE)
	_, err := c.w.Write(buf)
	return err
}

// sendVerb writes a bare (undoubled) IAC <verb> <opt> sequence, used for
// negotiation replies. These three bytes are never user data, so IAC
// never needs escaping here.
func (c *Codec) sendVerb(verb, opt byte) error {
	c.willbuf[0], c.willbuf[1], c.willbuf[2] = IAC, verb, opt
	_, err := c.w.Write(c.willbuf[:])
	return err
}

// Decode consumes src (freshly read from the socket) and writes every
// user byte (i.e. every byte that did not belong to an IAC frame) to
// dst, which must have capacity >= len(src). IAC frames are dispatched
// to Options/OnSub/OnCmd in arrival order as they complete.
func (c *Codec) Decode(src, dst []byte) (int, error) {
	n := 0
	for _, b := range src {
		switch c.state {
		case stateOutside:
			if b == IAC {
				c.cmd.reset()
				c.state = stateGotIAC
			} else {
				dst[n] = b
				n++
			}

		case stateGotIAC:
			switch {
			case b == IAC:
				dst[n] = IAC
				n++
				c.state = stateOutside
			case b == WILL || b == WONT || b == DO || b == DONT:
				c.cmd.buf[0] = b
				c.cmd.len = 1
				c.state = stateNegotiationOpt
			case b == SB:
				c.state = stateSubOption
			default:
				if c.OnCmd != nil {
					c.OnCmd(b)
				}
				c.state = stateOutside
			}

		case stateNegotiationOpt:
			verb, opt := c.cmd.buf[0], b
			c.state = stateOutside
			c.handleNegotiation(verb, opt)

		case stateSubOption:
			c.subOpt = b
			c.cmd.reset()
			c.state = stateSubBody

		case stateSubBody:
			if b == IAC {
				c.state = stateSubBodyIAC
				continue
			}
			if !c.cmd.append(b) {
				c.overflow()
			}

		case stateSubBodyIAC:
			switch b {
			case IAC:
				if !c.cmd.append(IAC) {
					c.overflow()
					continue
				}
				c.state = stateSubBody
			case SE:
				c.state = stateOutside
				if c.OnSub != nil {
					c.OnSub(c.subOpt, c.cmd.buf[:c.cmd.len])
				}
			default:
				c.logf("malformed subnegotiation: IAC followed by %d instead of IAC/SE", b)
				c.state = stateOutside
			}
		}
	}
	if n == 0 && len(src) > 0 {
		return 0, ErrTryAgain
	}
	return n, nil
}

func (c *Codec) overflow() {
	c.logf("overlong IAC command, discarding")
	c.cmd.reset()
	c.state = stateOutside
}

func (c *Codec) handleNegotiation(verb, opt byte) {
	t := c.Options
	if t == nil {
		return
	}
	switch verb {
	case WILL:
		t.RecvWill(opt)
	case WONT:
		t.RecvWont(opt)
	case DO:
		t.RecvDo(opt)
	case DONT:
		t.RecvDont(opt)
	}
}
