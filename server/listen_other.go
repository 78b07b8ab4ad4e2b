//go:build !unix

package server

import (
	"errors"
	"syscall"
)

func listenControl(config *Config) func(network, address string, c syscall.RawConn) error {
	if !config.ReusePort {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return errors.New("SO_REUSEPORT is not supported on this platform")
	}
}
