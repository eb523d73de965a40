// FILE: internal/shared/counted_conn.go
package shared

import (
	"net"
	"sync/atomic"
)

// Traffic 保存一个或多个连接的累计流量，所有字段均可并发读写。
type Traffic struct {
	Uplink   atomic.Uint64 // bytes written
	Downlink atomic.Uint64 // bytes read
	Reads    atomic.Uint64 // Read calls that returned data
	Writes   atomic.Uint64
}

// CountedConn 是一个 net.Conn 的包装器，用于原子地统计上行和下行流量。
// 多个 CountedConn 可以共享同一个 Traffic 以得到汇总值。
type CountedConn struct {
	net.Conn
	traffic *Traffic
}

// NewCountedConn 创建一个新的 CountedConn 实例。
func NewCountedConn(conn net.Conn, traffic *Traffic) *CountedConn {
	return &CountedConn{
		Conn:    conn,
		traffic: traffic,
	}
}

// Read 从底层连接读取数据，并增加下行流量计数。
func (c *CountedConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.traffic.Downlink.Add(uint64(n))
		c.traffic.Reads.Add(1)
	}
	return n, err
}

// Write 将数据写入底层连接，并增加上行流量计数。
func (c *CountedConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 {
		c.traffic.Uplink.Add(uint64(n))
		c.traffic.Writes.Add(1)
	}
	return n, err
}

// Traffic returns the counters this connection reports into.
func (c *CountedConn) Traffic() *Traffic {
	return c.traffic
}
