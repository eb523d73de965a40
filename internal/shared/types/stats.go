package types

import "time"

// ServerStats 是 loadserver 在某一时刻的运行统计快照。
type ServerStats struct {
	Timestamp         time.Time     `json:"timestamp"`
	ActiveConnections int64         `json:"active_connections"`
	TotalSessions     uint64        `json:"total_sessions"`
	BytesSent         uint64        `json:"bytes_sent"`
	BytesReceived     uint64        `json:"bytes_received"`
	LoadsServed       uint64        `json:"loads_served"`
	Stalls            uint64        `json:"stalls"`
	StallTime         time.Duration `json:"stall_time_ns"`
	UplinkRate        uint64        `json:"uplink_rate,omitempty"`   // bytes per second
	DownlinkRate      uint64        `json:"downlink_rate,omitempty"` // bytes per second
}

// StatsProvider 由能提供 ServerStats 快照的组件实现。
type StatsProvider interface {
	Snapshot() ServerStats
}
