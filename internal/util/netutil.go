package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// CreateListener creates a TCP listener on address with SO_REUSEADDR set, so a
// restarted server can bind while old connections sit in TIME_WAIT.
func CreateListener(ctx context.Context, network, address string) (net.Listener, error) {
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return nil, fmt.Errorf("unsupported network type: %s, only 'tcp', 'tcp4', or 'tcp6' are supported for CreateListener", network)
	}

	lc := net.ListenConfig{Control: reuseAddrControl}
	listener, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, address, err)
	}
	return listener, nil
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("failed to access raw socket for %s: %w", address, err)
	}
	if sockErr != nil {
		return fmt.Errorf("failed to set SO_REUSEADDR on %s: %w", address, sockErr)
	}
	return nil
}

// IsAddrInUse reports whether err is an "address already in use" error.
func IsAddrInUse(err error) bool {
	return errors.Is(err, unix.EADDRINUSE)
}

// ReuseAddrEnabled reports whether SO_REUSEADDR is set on a TCP listener's socket.
func ReuseAddrEnabled(l net.Listener) (bool, error) {
	tl, ok := l.(*net.TCPListener)
	if !ok {
		return false, fmt.Errorf("unsupported listener type: %T", l)
	}
	raw, err := tl.SyscallConn()
	if err != nil {
		return false, err
	}
	var value int
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		value, sockErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR)
	}); err != nil {
		return false, err
	}
	if sockErr != nil {
		return false, sockErr
	}
	return value != 0, nil
}
