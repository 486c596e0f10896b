package rserial

import "golang.org/x/sys/unix"

// fdConn is a thin io.ReadWriteCloser over a single non-blocking socket
// descriptor. It owns the locally recovered retry policy: EINTR around
// read/write, and EAGAIN on write resolved by selecting for writability
// and retrying ("writen_ni").
type fdConn struct {
	fd int
}

func (c *fdConn) Write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		n, err := unix.Write(c.fd, p[total:])
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN:
				if werr := waitWritable(c.fd); werr != nil {
					return total, werr
				}
				continue
			default:
				return total, err
			}
		}
		total += n
	}
	return total, nil
}

// Read performs a single non-blocking read. Callers in this package only
// invoke it once readiness has already been established (by the
// barrier's select, or by the embedding program's own outer select), so
// EAGAIN here is reported to the caller rather than retried internally.
func (c *fdConn) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(c.fd, p)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}

func (c *fdConn) Close() error {
	return unix.Close(c.fd)
}

// waitWritable blocks until fd is ready for writing, with no deadline:
// it backs the opportunistic EAGAIN retry inside Write, not the
// configuration barrier (which has its own deadline via waitUntil).
func waitWritable(fd int) error {
	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n > 0 {
			return nil
		}
	}
}
