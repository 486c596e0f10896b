package comport

import (
	"testing"
	"time"

	"github.com/daedaluz/rfc2217term/telnet"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	frames [][]byte
}

func (f *fakeWriter) WriteSubnegotiation(opt byte, payload []byte) error {
	f.frames = append(f.frames, append([]byte{opt}, payload...))
	return nil
}

func newTestEngine() (*Engine, *fakeWriter) {
	w := &fakeWriter{}
	e := NewEngine(w, "test-sig v1.0", nil)
	e.sleep = func(time.Duration) {}
	return e, w
}

func TestStartSequenceWithoutPendingSetters(t *testing.T) {
	e, w := newTestEngine()
	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})

	require.True(t, e.ComPortStarted())
	require.Len(t, w.frames, 1+1+1+5+2+1) // signature, linestate mask, modemstate mask, 5 requests, dtr+rts request, break request
	require.Equal(t, byte(SubSignature), w.frames[0][1])
	require.Equal(t, byte(CtlDTRRequest), w.frames[len(w.frames)-3][2])
	require.Equal(t, byte(CtlBreakRequest), w.frames[len(w.frames)-1][2])
}

func TestStartLatchesOnlyOnce(t *testing.T) {
	e, w := newTestEngine()
	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	n := len(w.frames)
	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	require.Equal(t, n, len(w.frames))
}

func TestTCSetAttrBeforeComPortDefersThenReplaysOnStart(t *testing.T) {
	e, w := newTestEngine()
	g := SerialGeometry{OutputBaud: 9600, DataBits: 8, Parity: ParityNone, StopBits: StopOne, Flow: FlowHard}
	e.TCSetAttr(g)
	require.Empty(t, w.frames)
	require.Equal(t, g, e.TCGetAttr())

	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	var baudFrame []byte
	for _, f := range w.frames {
		if f[1] == SubSetBaudrate {
			baudFrame = f
		}
	}
	require.NotNil(t, baudFrame)
	require.Equal(t, DecodeBaud(baudFrame[2:]), uint32(9600))
}

func TestTCSetAttrAfterComPortSendsImmediately(t *testing.T) {
	e, w := newTestEngine()
	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	before := len(w.frames)
	pendingBefore := e.confPending

	e.TCSetAttr(SerialGeometry{OutputBaud: 115200, DataBits: 8, StopBits: StopOne})
	require.Equal(t, before+5, len(w.frames))
	require.Equal(t, pendingBefore+5, e.confPending)
}

func TestModemBisSetsPredictedStateImmediately(t *testing.T) {
	e, _ := newTestEngine()
	e.ModemBis(DTR | RTS)
	require.Equal(t, DTR|RTS, e.ModemGet()&(DTR|RTS))
}

func TestModemBisBeforeComPortDefersControl(t *testing.T) {
	e, w := newTestEngine()
	e.ModemBis(DTR)
	require.Empty(t, w.frames)

	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	var sawDTROn bool
	for _, f := range w.frames {
		if f[1] == SubSetControl && f[2] == CtlDTROn {
			sawDTROn = true
		}
	}
	require.True(t, sawDTROn)
}

func TestSendBreakSequence(t *testing.T) {
	e, w := newTestEngine()
	var slept time.Duration
	e.sleep = func(d time.Duration) { slept = d }
	e.SendBreak()
	require.Equal(t, 250*time.Millisecond, slept)
	require.Len(t, w.frames, 2)
	require.Equal(t, byte(CtlBreakOn), w.frames[0][2])
	require.Equal(t, byte(CtlBreakOff), w.frames[1][2])
}

func TestNotificationSetBaudrateDecrementsConfPending(t *testing.T) {
	e, _ := newTestEngine()
	e.confPending = 1
	payload := append([]byte{SubSetBaudrate + serverBase}, EncodeBaud(9600)[:]...)
	e.HandleNotification(telnet.OptComPort, payload)
	require.Equal(t, uint32(9600), e.TCGetAttr().OutputBaud)
	require.Equal(t, 0, e.confPending)
}

func TestNotificationClientEchoIgnored(t *testing.T) {
	e, _ := newTestEngine()
	e.confPending = 1
	e.HandleNotification(telnet.OptComPort, []byte{SubSetBaudrate, 0, 0, 0x25, 0x80})
	require.Equal(t, uint32(0), e.TCGetAttr().OutputBaud)
	require.Equal(t, 1, e.confPending)
}

func TestNotificationModemstateMasksCorrectly(t *testing.T) {
	e, _ := newTestEngine()
	e.ModemBis(DTR) // outputs must be untouched by notification
	e.HandleNotification(telnet.OptComPort, []byte{SubNotifyModemstate + serverBase, 0x8F})
	got := e.ModemGet()
	require.Equal(t, CD|DTR, got)
}

func TestNotificationUnrecognizedControlLeavesStateUnchanged(t *testing.T) {
	e, _ := newTestEngine()
	before := e.TCGetAttr()
	e.HandleNotification(telnet.OptComPort, []byte{SubSetControl + serverBase, 0xEE})
	require.Equal(t, before, e.TCGetAttr())
}

func TestInitialConfigCompleteBarrier(t *testing.T) {
	e, _ := newTestEngine()
	require.False(t, e.InitialConfigComplete())
	e.HandleOptionChange(telnet.OptComPort, telnet.Entry{Us: telnet.Yes})
	require.False(t, e.InitialConfigComplete())

	for i := 0; i < 5; i++ {
		e.HandleNotification(telnet.OptComPort, []byte{SubSetBaudrate + serverBase, 0, 0, 0, 0})
	}
	require.True(t, e.InitialConfigComplete())
	require.Equal(t, 0, e.confPending)
}
