package telnet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	sent [][2]byte
}

func (r *recorder) send(verb, opt byte) error {
	r.sent = append(r.sent, [2]byte{verb, opt})
	return nil
}

func newTestTable() (*Table, *recorder) {
	t := NewTable()
	r := &recorder{}
	t.send = r.send
	return t, r
}

func TestRecvWillUnacceptableRefused(t *testing.T) {
	tbl, r := newTestTable()
	tbl.RecvWill(OptComPort) // remote_should does not include COM-PORT
	require.Equal(t, No, tbl.Entry(OptComPort).Him)
	require.Equal(t, [][2]byte{{DONT, OptComPort}}, r.sent)
}

func TestRecvWillComPortBootstrapScenario(t *testing.T) {
	tbl, r := newTestTable()
	tbl.RemoteShould = func(opt byte) bool { return opt == OptComPort }
	tbl.RecvWill(OptComPort)
	require.Equal(t, Yes, tbl.Entry(OptComPort).Him)
	require.Equal(t, [][2]byte{{DO, OptComPort}}, r.sent)
}

func TestAskLocalThenDoCompletesToYes(t *testing.T) {
	tbl, r := newTestTable()
	tbl.AskLocal(OptComPort, true)
	require.Equal(t, WantYes, tbl.Entry(OptComPort).Us)
	require.Equal(t, [][2]byte{{WILL, OptComPort}}, r.sent)

	tbl.RecvDo(OptComPort)
	require.Equal(t, Yes, tbl.Entry(OptComPort).Us)
}

func TestWantYesOppositeThenDont(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.AskLocal(OptBinary, true) // Us: No -> WantYes, q=Empty
	tbl.AskLocal(OptBinary, false) // still WantYes, q flips to Opposite
	require.Equal(t, WantYes, tbl.Entry(OptBinary).Us)
	require.Equal(t, Opposite, tbl.Entry(OptBinary).UsQueue)

	tbl.RecvDont(OptBinary)
	e := tbl.Entry(OptBinary)
	require.Equal(t, No, e.Us)
	require.Equal(t, Empty, e.UsQueue)
}

func TestWantNoOppositeThenWill(t *testing.T) {
	tbl, r := newTestTable()
	e := &tbl.entries[OptSGA]
	e.Him = WantNo
	e.HimQueue = Opposite

	tbl.RecvWill(OptSGA)
	got := tbl.Entry(OptSGA)
	require.Equal(t, Yes, got.Him)
	require.Equal(t, Empty, got.HimQueue)
	require.Empty(t, r.sent)
}

func TestWantNoOppositeThenWont(t *testing.T) {
	tbl, r := newTestTable()
	e := &tbl.entries[OptSGA]
	e.Him = WantNo
	e.HimQueue = Opposite

	tbl.RecvWont(OptSGA)
	got := tbl.Entry(OptSGA)
	require.Equal(t, WantYes, got.Him)
	require.Equal(t, Empty, got.HimQueue)
	require.Equal(t, [][2]byte{{DO, OptSGA}}, r.sent)
}

func TestInvariantSettledStatesAfterBootstrap(t *testing.T) {
	tbl, _ := newTestTable()
	tbl.RemoteShould = func(opt byte) bool { return opt == OptBinary || opt == OptSGA }

	tbl.AskLocal(OptBinary, true)
	tbl.AskRemote(OptBinary, true)
	tbl.AskLocal(OptSGA, true)
	tbl.AskRemote(OptSGA, true)

	tbl.RecvWill(OptBinary)
	tbl.RecvDo(OptBinary)
	tbl.RecvWill(OptSGA)
	tbl.RecvDo(OptSGA)

	for _, opt := range []byte{OptBinary, OptSGA} {
		e := tbl.Entry(opt)
		require.Contains(t, []State{No, Yes}, e.Us)
		require.Contains(t, []State{No, Yes}, e.Him)
		require.Equal(t, Empty, e.UsQueue)
		require.Equal(t, Empty, e.HimQueue)
	}
}

func TestOnChangeFiresForComPortLatch(t *testing.T) {
	tbl, _ := newTestTable()
	var latched bool
	tbl.OnChange = func(opt byte, e Entry) {
		if opt == OptComPort && e.Us == Yes {
			latched = true
		}
	}
	tbl.AskLocal(OptComPort, true)
	require.False(t, latched)
	tbl.RecvDo(OptComPort)
	require.True(t, latched)
}
