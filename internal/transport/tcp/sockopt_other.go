//go:build !unix

package tcp

import "syscall"

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
