//go:build windows

package network

import (
	"net"
	"syscall"
)

// ListenConfig returns a net.ListenConfig that sets SO_REUSEADDR before
// binding, so a restarted process can rebind a port still in TIME_WAIT.
func ListenConfig() net.ListenConfig {
	return net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
		},
	}
}
