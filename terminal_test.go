package rserial

import (
	"testing"
	"time"

	"github.com/daedaluz/rfc2217term/comport"
	"github.com/daedaluz/rfc2217term/telnet"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newTestPair returns a connected Terminal (non-blocking) plus the raw
// peer fd a test drives directly, using a UNIX socketpair instead of a
// real network dial (spec.md's bootstrap/barrier logic is transport
// agnostic: only the fd matters).
func newTestPair(t *testing.T, opts *Options) (*Terminal, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	require.NoError(t, unix.SetNonblock(fds[0], true))

	term := newTerminalFrom(fds[0], opts)
	t.Cleanup(func() { unix.Close(fds[1]) })
	return term, fds[1]
}

func readAll(t *testing.T, fd int, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got := 0
	deadline := time.Now().Add(2 * time.Second)
	for got < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out reading %d bytes, got %d", n, got)
		}
		m, err := unix.Read(fd, buf[got:])
		if err == unix.EAGAIN {
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		got += m
	}
	return buf
}

func TestDialBootstrapNegotiatesBinarySGAAndOffersComPort(t *testing.T) {
	term, peer := newTestPair(t, NewOptions())
	_ = term

	// WILL BINARY, DO BINARY, WILL SGA, DO SGA, WILL COMPORT: 5 * 3 bytes.
	got := readAll(t, peer, 15)
	expect := []byte{
		telnet.IAC, telnet.WILL, telnet.OptBinary,
		telnet.IAC, telnet.DO, telnet.OptBinary,
		telnet.IAC, telnet.WILL, telnet.OptSGA,
		telnet.IAC, telnet.DO, telnet.OptSGA,
		telnet.IAC, telnet.WILL, telnet.OptComPort,
	}
	require.Equal(t, expect, got)
}

func sendVerb(t *testing.T, fd int, verb, opt byte) {
	t.Helper()
	_, err := unix.Write(fd, []byte{telnet.IAC, verb, opt})
	require.NoError(t, err)
}

func TestWriteBlocksUntilComPortStartedWhenOptedIn(t *testing.T) {
	term, peer := newTestPair(t, NewOptions().SetBarrierTimeout(500*time.Millisecond))
	readAll(t, peer, 15) // drain bootstrap negotiation

	term.TCSetAttr(comport.SerialGeometry{OutputBaud: 9600, DataBits: 8, StopBits: comport.StopOne})

	done := make(chan error, 1)
	go func() {
		_, err := term.Write([]byte("hello"))
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("write returned before COM-PORT start")
	case <-time.After(100 * time.Millisecond):
	}

	sendVerb(t, peer, telnet.DO, telnet.OptComPort)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("write never unblocked after DO COMPORT")
	}
}

func TestWriteDoesNotBlockWhenNoSetterWasCalled(t *testing.T) {
	term, peer := newTestPair(t, NewOptions())
	readAll(t, peer, 15)

	done := make(chan error, 1)
	go func() {
		_, err := term.Write([]byte("hi"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("write blocked despite no prior setter call")
	}
}

func TestReadReturnsUserBytesAndConsumesIACFrames(t *testing.T) {
	term, peer := newTestPair(t, NewOptions())
	readAll(t, peer, 15)

	payload := []byte{telnet.IAC, telnet.AYT, 'h', 'i'}
	_, err := unix.Write(peer, payload)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	buf := make([]byte, 32)
	var n int
	deadline := time.Now().Add(time.Second)
	for {
		n, err = term.Read(buf)
		if err == nil {
			break
		}
		if err == ErrWouldBlock && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		t.Fatalf("unexpected read error: %v", err)
	}
	require.Equal(t, "hi", string(buf[:n]))
}
