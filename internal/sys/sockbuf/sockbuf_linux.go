//go:build linux

// FILE: internal/sys/sockbuf/sockbuf_linux.go
package sockbuf

import (
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Control 返回一个可用于 net.Dialer / net.ListenConfig 的 Control 函数，
// 在 connect/listen 之前设置内核收发缓冲区大小。两个参数都 <= 0 时返回 nil。
// 监听套接字上的 SO_SNDBUF 会被 accept 出来的连接继承。
func Control(recvBuf, sendBuf int) func(network, address string, c syscall.RawConn) error {
	if recvBuf <= 0 && sendBuf <= 0 {
		return nil
	}
	return func(network, address string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if recvBuf > 0 {
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recvBuf); opErr != nil {
					opErr = fmt.Errorf("failed to set SO_RCVBUF=%d: %w", recvBuf, opErr)
					return
				}
			}
			if sendBuf > 0 {
				if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, sendBuf); opErr != nil {
					opErr = fmt.Errorf("failed to set SO_SNDBUF=%d: %w", sendBuf, opErr)
				}
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}

// RecvBufferSize 读取连接当前的 SO_RCVBUF。Linux 上该值是设置值的两倍。
func RecvBufferSize(conn net.Conn) (int, error) {
	return getInt(conn, unix.SO_RCVBUF)
}

// SendBufferSize 读取连接当前的 SO_SNDBUF。
func SendBufferSize(conn net.Conn) (int, error) {
	return getInt(conn, unix.SO_SNDBUF)
}

func getInt(conn net.Conn, opt int) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("not a syscall.Conn: %T", conn)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}
	var value int
	var opErr error
	err = raw.Control(func(fd uintptr) {
		value, opErr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt)
	})
	if err != nil {
		return 0, err
	}
	return value, opErr
}
