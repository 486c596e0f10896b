package telnet

// State is one side's (us or him) option state, per RFC 1143.
type State byte

const (
	No State = iota
	Yes
	WantYes
	WantNo
)

func (s State) String() string {
	switch s {
	case No:
		return "NO"
	case Yes:
		return "YES"
	case WantYes:
		return "WANT_YES"
	case WantNo:
		return "WANT_NO"
	}
	return "?"
}

// QueueState is the single-slot anti-loop queue attached to each side.
type QueueState byte

const (
	Empty QueueState = iota
	Opposite
)

// Entry is the per-option state.
type Entry struct {
	Us       State
	UsQueue  QueueState
	Him      State
	HimQueue QueueState
}

// ChangeHook is invoked after every transition of a single option,
// receiving the option number and its entry post-transition.
type ChangeHook func(opt byte, e Entry)

// Predicate reports whether this client is willing to enable opt on the
// named side.
type Predicate func(opt byte) bool

// Table is the 256-option negotiation state table (C2). It is not safe
// for concurrent use: callers drive it from a single cooperative reader.
type Table struct {
	entries [256]Entry

	// send transmits a 3-byte IAC <verb> <opt> reply. Codec installs
	// this when the table is attached via NewCodec.
	send func(verb, opt byte) error

	// RemoteShould/LocalShould are the acceptance predicates governing
	// negotiation. Defaults are installed by NewTable; tests may
	// override them to probe the state machine in isolation.
	RemoteShould Predicate
	LocalShould  Predicate

	OnChange ChangeHook
}

// NewTable builds a Table with the default acceptance predicates:
// remote_should = {BINARY, ECHO, SGA}; local_should = {BINARY, SGA,
// COM-PORT}.
func NewTable() *Table {
	return &Table{
		RemoteShould: func(opt byte) bool {
			switch opt {
			case OptBinary, OptEcho, OptSGA:
				return true
			}
			return false
		},
		LocalShould: func(opt byte) bool {
			switch opt {
			case OptBinary, OptSGA, OptComPort:
				return true
			}
			return false
		},
	}
}

// Entry returns a copy of the current state for opt.
func (t *Table) Entry(opt byte) Entry { return t.entries[opt] }

func (t *Table) fireChange(opt byte) {
	if t.OnChange != nil {
		t.OnChange(opt, t.entries[opt])
	}
}

func (t *Table) reply(verb, opt byte) {
	if t.send == nil {
		return
	}
	_ = t.send(verb, opt)
}

// RecvWill processes an incoming IAC WILL opt, per the RFC 1143
// recv-WILL transition table. It updates Him/HimQueue and replies with
// DO/DONT when the table forces one.
func (t *Table) RecvWill(opt byte) {
	e := &t.entries[opt]
	switch e.Him {
	case No:
		if t.RemoteShould(opt) {
			e.Him = Yes
			t.reply(DO, opt)
		} else {
			t.reply(DONT, opt)
		}
	case Yes:
		// no change
	case WantYes:
		switch e.HimQueue {
		case Empty:
			e.Him = Yes
		case Opposite:
			e.Him = WantNo
			e.HimQueue = Empty
			t.reply(DONT, opt)
		}
	case WantNo:
		switch e.HimQueue {
		case Empty:
			e.Him = No
		case Opposite:
			e.Him = Yes
			e.HimQueue = Empty
		}
	}
	t.fireChange(opt)
}

// RecvWont processes an incoming IAC WONT opt.
func (t *Table) RecvWont(opt byte) {
	e := &t.entries[opt]
	switch e.Him {
	case No:
		// stays NO
	case Yes:
		e.Him = No
		t.reply(DONT, opt)
	case WantYes:
		switch e.HimQueue {
		case Empty:
			e.Him = No
		case Opposite:
			e.Him = No
			e.HimQueue = Empty
		}
	case WantNo:
		switch e.HimQueue {
		case Empty:
			e.Him = No
		case Opposite:
			e.Him = WantYes
			e.HimQueue = Empty
			t.reply(DO, opt)
		}
	}
	t.fireChange(opt)
}

// RecvDo processes an incoming IAC DO opt, the mirror of RecvWill over
// Us/UsQueue, replying with WILL/WONT.
func (t *Table) RecvDo(opt byte) {
	e := &t.entries[opt]
	switch e.Us {
	case No:
		if t.LocalShould(opt) {
			e.Us = Yes
			t.reply(WILL, opt)
		} else {
			t.reply(WONT, opt)
		}
	case Yes:
		// no change
	case WantYes:
		switch e.UsQueue {
		case Empty:
			e.Us = Yes
		case Opposite:
			e.Us = WantNo
			e.UsQueue = Empty
			t.reply(WONT, opt)
		}
	case WantNo:
		switch e.UsQueue {
		case Empty:
			e.Us = No
		case Opposite:
			e.Us = Yes
			e.UsQueue = Empty
		}
	}
	t.fireChange(opt)
}

// RecvDont processes an incoming IAC DONT opt.
func (t *Table) RecvDont(opt byte) {
	e := &t.entries[opt]
	switch e.Us {
	case No:
		// stays NO
	case Yes:
		e.Us = No
		t.reply(WONT, opt)
	case WantYes:
		switch e.UsQueue {
		case Empty:
			e.Us = No
		case Opposite:
			e.Us = No
			e.UsQueue = Empty
		}
	case WantNo:
		switch e.UsQueue {
		case Empty:
			e.Us = No
		case Opposite:
			e.Us = WantYes
			e.UsQueue = Empty
			t.reply(WILL, opt)
		}
	}
	t.fireChange(opt)
}

// AskRemote initiates a him-side negotiation: want=true sends DO, asking
// the remote to enable opt; want=false sends DONT. This is the standard
// Q-method "ask" half of RFC 1143, used for locally-initiated
// negotiation (as opposed to RecvWill/RecvWont, which react to the
// remote's own WILL/WONT).
func (t *Table) AskRemote(opt byte, want bool) {
	e := &t.entries[opt]
	switch e.Him {
	case No:
		if want {
			e.Him = WantYes
			e.HimQueue = Empty
			t.reply(DO, opt)
		}
	case Yes:
		if !want {
			e.Him = WantNo
			e.HimQueue = Empty
			t.reply(DONT, opt)
		}
	case WantNo:
		switch e.HimQueue {
		case Empty:
			if want {
				e.HimQueue = Opposite
			}
		case Opposite:
			if !want {
				e.HimQueue = Empty
			}
		}
	case WantYes:
		switch e.HimQueue {
		case Empty:
			if !want {
				e.HimQueue = Opposite
			}
		case Opposite:
			if want {
				e.HimQueue = Empty
			}
		}
	}
	t.fireChange(opt)
}

// AskLocal initiates a us-side negotiation: want=true sends WILL,
// offering to enable opt ourselves; want=false sends WONT.
func (t *Table) AskLocal(opt byte, want bool) {
	e := &t.entries[opt]
	switch e.Us {
	case No:
		if want {
			e.Us = WantYes
			e.UsQueue = Empty
			t.reply(WILL, opt)
		}
	case Yes:
		if !want {
			e.Us = WantNo
			e.UsQueue = Empty
			t.reply(WONT, opt)
		}
	case WantNo:
		switch e.UsQueue {
		case Empty:
			if want {
				e.UsQueue = Opposite
			}
		case Opposite:
			if !want {
				e.UsQueue = Empty
			}
		}
	case WantYes:
		switch e.UsQueue {
		case Empty:
			if !want {
				e.UsQueue = Opposite
			}
		case Opposite:
			if want {
				e.UsQueue = Empty
			}
		}
	}
	t.fireChange(opt)
}
