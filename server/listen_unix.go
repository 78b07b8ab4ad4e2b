//go:build unix

package server

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// listenControl sets SO_REUSEPORT on the listening socket when configured.
func listenControl(config *Config) func(network, address string, c syscall.RawConn) error {
	if !config.ReusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var serr error
		err := c.Control(func(fd uintptr) {
			serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
		})
		if err != nil {
			return err
		}
		return serr
	}
}
