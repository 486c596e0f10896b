// Package rserial implements a TELNET client that drives a remote
// serial port through the RFC 2217 COM-PORT option, in the style of the
// teacher's local-port client: an Options-struct constructor, a thin
// façade type wrapping a non-blocking descriptor, and explicit
// Error/Kind values instead of sentinel errno comparisons at call sites.
package rserial

import (
	"context"
	"errors"
	"io"

	"github.com/daedaluz/rfc2217term/comport"
	"github.com/daedaluz/rfc2217term/telnet"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Terminal is the façade (C5): a single TELNET+COM-PORT connection,
// exposing the serial-port-shaped operations a terminal emulator
// expects, while internally driving the codec/option table/COM-PORT
// engine from its own Read/Write calls. It is not safe for concurrent
// use: like the teacher's Port, every method must be called from the
// one goroutine that owns the connection.
type Terminal struct {
	ID uuid.UUID

	opts *Options
	conn *fdConn
	log  *zap.SugaredLogger

	options *telnet.Table
	codec   *telnet.Codec
	engine  *comport.Engine

	rawBuf  [4096]byte
	scratch [4096]byte
}

// Dial resolves endpoint ("host" or "host,service"), connects, and
// returns a Terminal with TELNET binary/SGA negotiation
// and the COM-PORT bootstrap already kicked off. It does not itself
// block on either barrier; callers observe those through Read/Write,
// or explicitly via WaitComPortStarted/WaitInitialConfigComplete.
func Dial(endpoint string, opts *Options) (*Terminal, error) {
	if opts == nil {
		opts = NewOptions()
	}
	ctx, cancel := context.WithTimeout(context.Background(), opts.BarrierTimeout)
	defer cancel()

	t := &Terminal{ID: uuid.New(), opts: opts, log: opts.Logger}
	logf := func(format string, args ...interface{}) {
		if t.log != nil {
			t.log.Debugf(format, args...)
		}
	}

	fd, err := dial(ctx, endpoint, logf)
	if err != nil {
		return nil, err
	}
	t.conn = &fdConn{fd: fd}
	t.bootstrap()
	return t, nil
}

// newTerminalFrom wires a Terminal around an already-connected,
// non-blocking socket descriptor for testing, bypassing
// network resolution. Production code only ever goes through Dial.
func newTerminalFrom(fd int, opts *Options) *Terminal {
	if opts == nil {
		opts = NewOptions()
	}
	t := &Terminal{ID: uuid.New(), opts: opts, log: opts.Logger, conn: &fdConn{fd: fd}}
	t.bootstrap()
	return t
}

func (t *Terminal) bootstrap() {
	t.options = telnet.NewTable()
	t.codec = telnet.NewCodec(t.conn, t.options)
	t.codec.Log = t.log
	t.engine = comport.NewEngine(t.codec, t.opts.Signature, t.log)

	t.options.OnChange = t.engine.HandleOptionChange
	t.codec.OnSub = t.engine.HandleNotification
	t.codec.OnCmd = func(cmd byte) {
		if t.log != nil {
			t.log.Debugf("terminal %s: ignoring IAC command %d", t.ID, cmd)
		}
	}

	// Offer BINARY/SGA both ways, then offer COM-PORT locally.
	t.options.AskLocal(telnet.OptBinary, true)
	t.options.AskRemote(telnet.OptBinary, true)
	t.options.AskLocal(telnet.OptSGA, true)
	t.options.AskRemote(telnet.OptSGA, true)
	t.options.AskLocal(telnet.OptComPort, true)
}

// feed decodes raw bytes already read from the socket, routing IAC
// frames through the codec/engine and writing any remaining user bytes
// to dst. It is shared by Read and the barrier's one-byte pump.
func (t *Terminal) feed(raw, dst []byte) (int, error) {
	n, err := t.codec.Decode(raw, dst)
	if err != nil {
		if errors.Is(err, telnet.ErrTryAgain) {
			return 0, ErrWouldBlock
		}
		return 0, newErr(KindProtocol, "decode", err)
	}
	return n, nil
}

// WaitComPortStarted blocks until the server has accepted COM-PORT
// (cond_comport_start), or the configured barrier timeout elapses.
func (t *Terminal) WaitComPortStarted() error {
	return t.waitUntil(t.engine.ComPortStarted, t.opts.BarrierTimeout)
}

// WaitInitialConfigComplete blocks until every initial SET_* this client
// issued has been echoed back (cond_initial_conf_complete).
func (t *Terminal) WaitInitialConfigComplete() error {
	return t.waitUntil(t.engine.InitialConfigComplete, t.opts.BarrierTimeout)
}

// Read returns user bytes only: IAC frames are consumed internally and
// never appear in buf. It first blocks on the initial-configuration
// barrier, but only if the caller opted into
// initial configuration by calling TCSetAttr before COM-PORT became
// active; a caller that never does so is never blocked here.
func (t *Terminal) Read(buf []byte) (int, error) {
	if t.engine.HasPendingConfig() {
		if err := t.waitUntil(t.engine.InitialConfigComplete, t.opts.BarrierTimeout); err != nil {
			return 0, err
		}
	}

	limit := len(buf)
	if limit > len(t.rawBuf) {
		limit = len(t.rawBuf)
	}
	n, err := t.conn.Read(t.rawBuf[:limit])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, ErrWouldBlock
		}
		return 0, newErr(KindInput, "read", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return t.feed(t.rawBuf[:n], buf)
}

// Write sends user bytes, IAC-doubled by the codec. It first blocks on
// the COM-PORT-start barrier, under the same opt-in rule as Read.
func (t *Terminal) Write(buf []byte) (int, error) {
	if t.engine.HasPendingConfig() {
		if err := t.waitUntil(t.engine.ComPortStarted, t.opts.BarrierTimeout); err != nil {
			return 0, err
		}
	}
	n, err := t.codec.Encode(buf)
	if err != nil {
		return n, newErr(KindOutput, "write", err)
	}
	return n, nil
}

// TCGetAttr returns the predicted remote serial geometry; never blocks.
func (t *Terminal) TCGetAttr() comport.SerialGeometry { return t.engine.TCGetAttr() }

// TCSetAttr requests a new remote serial geometry. This client always
// applies settings immediately: it does not model a
// drain-before-apply or flush-before-apply distinction beyond the
// explicit Flush operation, so the "when" selector other TCSETATTR
// APIs expose has no counterpart here (documented as a resolved Open
// Question in the design notes).
func (t *Terminal) TCSetAttr(g comport.SerialGeometry) { t.engine.TCSetAttr(g) }

// ModemGet returns the predicted modem control/status line bitset;
// never blocks.
func (t *Terminal) ModemGet() comport.ModemLines { return t.engine.ModemGet() }

// ModemBis asserts the given modem line bits (DTR/RTS).
func (t *Terminal) ModemBis(mask comport.ModemLines) { t.engine.ModemBis(mask) }

// ModemBic clears the given modem line bits (DTR/RTS).
func (t *Terminal) ModemBic(mask comport.ModemLines) { t.engine.ModemBic(mask) }

// SendBreak asserts BREAK on the remote line for 250ms.
func (t *Terminal) SendBreak() { t.engine.SendBreak() }

// Flush issues PURGE_DATA for the given selector.
func (t *Terminal) Flush(sel comport.FlushSelector) { t.engine.Flush(sel) }

// FakeFlush exists only so Terminal satisfies the same capability-based
// operation set as a local-tty backend, where a "fake flush" of a
// software-buffered line discipline has meaning. Over COM-PORT there is
// no local buffer to fake-drain, so this is a documented no-op.
func (t *Terminal) FakeFlush() error { return nil }

// Drain is likewise part of the shared capability surface but has no
// remote-port counterpart beyond Flush/PURGE_DATA; it is a no-op here.
func (t *Terminal) Drain() error { return nil }

// Close tears down the connection, following the plain-vs-drained
// distinction controlled by Options.CloseDrain.
func (t *Terminal) Close() error {
	if t.opts.CloseDrain {
		return closeDrained(t.conn.fd)
	}
	return closeFast(t.conn.fd)
}
