package rserial

import (
	"time"

	"github.com/daedaluz/fdev/poll"
	"golang.org/x/sys/unix"
)

// waitUntil re-evaluates predicate, and while it is false, blocks for
// socket readability (the same poll.WaitInput the teacher uses for its
// own read timeout), pumps exactly one byte through the codec, and
// discards any user byte that produces. It gives up once deadline passes.
func (t *Terminal) waitUntil(predicate func() bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if predicate() {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return newErr(KindTimedOut, "barrier", nil)
		}

		if err := poll.WaitInput(t.conn.fd, remaining); err != nil {
			if err == unix.EINTR {
				continue
			}
			return newErr(KindSelect, "barrier wait", err)
		}

		var one [1]byte
		n, err := t.conn.Read(one[:])
		if err != nil {
			if err == unix.EAGAIN {
				continue
			}
			return newErr(KindInput, "barrier read", err)
		}
		if n == 0 {
			return newErr(KindReadZero, "peer closed during barrier", nil)
		}
		if _, derr := t.feed(one[:n], t.scratch[:]); derr != nil && derr != ErrWouldBlock {
			return derr
		}
	}
}
