//go:build !linux && !windows

package network

import "net"

// ListenConfig returns the default listen configuration.
func ListenConfig() net.ListenConfig {
	return net.ListenConfig{}
}
