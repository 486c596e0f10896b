package rserial

import (
	"time"

	"go.uber.org/zap"
)

// Options configures a Dial/Terminal, following the teacher's
// Options-struct-with-fluent-setters convention (serial.NewOptions() /
// (*Options).SetReadTimeout()).
type Options struct {
	// BarrierTimeout bounds both the COM-PORT-start and initial-config
	// barriers: 5000ms by default.
	BarrierTimeout time.Duration
	// CloseDrain selects the drained-close behavior instead of a plain
	// fast close.
	CloseDrain bool
	// Logger, if set, receives diagnostic output from every layer
	// (telnet framing errors and ignored IAC commands, COM-PORT
	// notifications, bootstrap connect failures); option negotiation
	// transitions are not logged. A nil logger silently discards these:
	// every layer nil-checks it before logging.
	Logger *zap.SugaredLogger
	// Signature is what this client answers an empty SIGNATURE request
	// with.
	Signature string
}

// NewOptions returns sane defaults: a 5000ms barrier, fast close, no
// logger, and a generic signature string.
func NewOptions() *Options {
	return &Options{
		BarrierTimeout: 5000 * time.Millisecond,
		Signature:      "rserial v1.0",
	}
}

func (o *Options) SetBarrierTimeout(d time.Duration) *Options {
	o.BarrierTimeout = d
	return o
}

func (o *Options) SetCloseDrain(drain bool) *Options {
	o.CloseDrain = drain
	return o
}

func (o *Options) SetLogger(log *zap.SugaredLogger) *Options {
	o.Logger = log
	return o
}

func (o *Options) SetSignature(sig string) *Options {
	o.Signature = sig
	return o
}
