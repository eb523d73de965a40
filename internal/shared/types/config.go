package types

import "time"

const (
	KiB = 1024
	MiB = 1024 * KiB
)

// ClientConf 描述慢速接收端的一次运行。
type ClientConf struct {
	Address      string        `ini:"address"`
	Command      string        `ini:"command"`
	ExpectedSize int64         `ini:"expected_size"`
	ChunkSize    int           `ini:"chunk_size"`
	ReadDelay    time.Duration `ini:"read_delay"`
	DialTimeout  time.Duration `ini:"dial_timeout"` // 0 = 不限制
	ReadTimeout  time.Duration `ini:"read_timeout"` // 0 = 不限制
	RecvBuffer   int           `ini:"recv_buffer"`  // SO_RCVBUF, 0 = 系统默认
	ProgressMode string        `ini:"progress_mode"`
}

// ServerConf 包含 loadserver 特有的配置
type ServerConf struct {
	ListenAddr        string        `ini:"listen_addr"`
	PayloadSize       int64         `ini:"payload_size"`
	ChunkSize         int           `ini:"chunk_size"`
	HighWaterMark     int           `ini:"high_water_mark"`
	MaxConnections    int           `ini:"max_connections"`
	SendBuffer        int           `ini:"send_buffer"`
	CloseAfterPayload bool          `ini:"close_after_payload"`
	MonitorPort       int           `ini:"monitor_port"`
	MonitorInterval   time.Duration `ini:"monitor_interval"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level  string `ini:"level"`
	Format string `ini:"format"` // "console" or "json"
}

// Config 是 slowdrain 的统一配置结构体
type Config struct {
	ClientConf `ini:"client"`
	ServerConf `ini:"server"`
	LogConf    `ini:"log"`
}

// DefaultConfig returns the built-in scenario: 127.0.0.1:8080, "load", 100 MiB read in
// 4 KiB chunks with a 1ms pause after each read.
func DefaultConfig() *Config {
	return &Config{
		ClientConf: ClientConf{
			Address:      "127.0.0.1:8080",
			Command:      "load",
			ExpectedSize: 100 * MiB,
			ChunkSize:    4096,
			ReadDelay:    time.Millisecond,
			ProgressMode: "boundary",
		},
		ServerConf: ServerConf{
			ListenAddr:      "127.0.0.1:8080",
			PayloadSize:     100 * MiB,
			ChunkSize:       1 * MiB,
			HighWaterMark:   10 * MiB,
			MonitorInterval: time.Second,
		},
		LogConf: LogConf{
			Level:  "info",
			Format: "console",
		},
	}
}
