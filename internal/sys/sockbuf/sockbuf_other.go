//go:build !linux

// FILE: internal/sys/sockbuf/sockbuf_other.go
package sockbuf

import (
	"fmt"
	"net"
	"syscall"
)

// Control 在非Linux系统上的存根实现：只有在请求了缓冲区大小时才报错。
func Control(recvBuf, sendBuf int) func(network, address string, c syscall.RawConn) error {
	if recvBuf <= 0 && sendBuf <= 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		return fmt.Errorf("socket buffer sizing is not supported on this platform")
	}
}

// RecvBufferSize 在非Linux系统上的存根实现
func RecvBufferSize(conn net.Conn) (int, error) {
	return 0, fmt.Errorf("socket buffer inspection is not supported on this platform")
}

// SendBufferSize 在非Linux系统上的存根实现
func SendBufferSize(conn net.Conn) (int, error) {
	return 0, fmt.Errorf("socket buffer inspection is not supported on this platform")
}
