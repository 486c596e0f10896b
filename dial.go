package rserial

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type logFunc func(format string, args ...interface{})

// parseEndpoint splits "host[,service]", defaulting the service to
// "telnet" (port 23/tcp) when absent.
func parseEndpoint(endpoint string) (host, service string) {
	if i := strings.IndexByte(endpoint, ','); i >= 0 {
		return strings.TrimSpace(endpoint[:i]), strings.TrimSpace(endpoint[i+1:])
	}
	return strings.TrimSpace(endpoint), "telnet"
}

func resolvePort(service string) (int, error) {
	if p, err := strconv.Atoi(service); err == nil {
		return p, nil
	}
	return net.LookupPort("tcp", service)
}

// dial resolves endpoint and tries each candidate address in turn until
// one connects, logging every failure along the way rather than
// aborting at the first one. The returned descriptor is already marked
// non-blocking.
func dial(ctx context.Context, endpoint string, log logFunc) (int, error) {
	host, service := parseEndpoint(endpoint)
	port, err := resolvePort(service)
	if err != nil {
		return -1, newErr(KindInput, "resolve service "+service, err)
	}

	ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return -1, newErr(KindInput, "resolve host "+host, err)
	}

	var lastErr error
	for _, ip := range ips {
		fd, cerr := connectOne(ip.IP, port)
		if cerr != nil {
			log("dial: connect to %s:%d failed: %v", ip.IP, port, cerr)
			lastErr = cerr
			continue
		}
		if serr := unix.SetNonblock(fd, true); serr != nil {
			unix.Close(fd)
			lastErr = serr
			continue
		}
		return fd, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no addresses for %q", host)
	}
	return -1, newErr(KindInput, "dial "+endpoint, lastErr)
}

func connectOne(ip net.IP, port int) (int, error) {
	if v4 := ip.To4(); v4 != nil {
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
		if err != nil {
			return -1, err
		}
		addr := &unix.SockaddrInet4{Port: port}
		copy(addr.Addr[:], v4)
		if err := unix.Connect(fd, addr); err != nil {
			unix.Close(fd)
			return -1, err
		}
		return fd, nil
	}
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, err
	}
	addr := &unix.SockaddrInet6{Port: port}
	copy(addr.Addr[:], ip.To16())
	if err := unix.Connect(fd, addr); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// closeFast closes fd immediately without draining any pending input.
func closeFast(fd int) error {
	return unix.Close(fd)
}

// closeDrained shuts down the write side, switches to blocking reads,
// and drains until the peer closes or an error occurs, before closing
// the descriptor.
func closeDrained(fd int) error {
	if err := unix.Shutdown(fd, unix.SHUT_WR); err != nil {
		unix.Close(fd)
		return err
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return err
	}
	buf := make([]byte, 256)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil || n <= 0 {
			break
		}
	}
	return unix.Close(fd)
}
