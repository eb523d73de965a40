package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"
	"slowdrain/internal/shared/types"
)

// LoadIni 加载 slowdrain.ini。文件不存在时使用默认配置。
// 文件中缺失的键保留 DefaultConfig 中的值。
func LoadIni(fileName string) (*types.Config, error) {
	cfg := types.DefaultConfig()
	iniFile, err := ini.LooseLoad(fileName)
	if err != nil {
		return nil, err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", fileName, err)
	}

	overrideFromEnvString(&cfg.ClientConf.Address, "SLOWDRAIN_ADDRESS")
	overrideFromEnvInt64(&cfg.ClientConf.ExpectedSize, "SLOWDRAIN_EXPECTED_SIZE")
	overrideFromEnvString(&cfg.ServerConf.ListenAddr, "SLOWDRAIN_LISTEN_ADDR")
	overrideFromEnvInt64(&cfg.ServerConf.PayloadSize, "SLOWDRAIN_PAYLOAD_SIZE")

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the receiver and server cannot run with.
func Validate(cfg *types.Config) error {
	c := cfg.ClientConf
	if c.Address == "" {
		return fmt.Errorf("client.address must not be empty")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("client.chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.ExpectedSize < 0 {
		return fmt.Errorf("client.expected_size must not be negative, got %d", c.ExpectedSize)
	}
	if c.ReadDelay < 0 {
		return fmt.Errorf("client.read_delay must not be negative, got %s", c.ReadDelay)
	}
	switch c.ProgressMode {
	case "boundary", "modulo":
	default:
		return fmt.Errorf("client.progress_mode must be 'boundary' or 'modulo', got '%s'", c.ProgressMode)
	}

	s := cfg.ServerConf
	if s.ChunkSize <= 0 {
		return fmt.Errorf("server.chunk_size must be positive, got %d", s.ChunkSize)
	}
	if s.PayloadSize < 0 {
		return fmt.Errorf("server.payload_size must not be negative, got %d", s.PayloadSize)
	}
	if s.HighWaterMark < 0 {
		return fmt.Errorf("server.high_water_mark must not be negative, got %d", s.HighWaterMark)
	}
	return nil
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt64(target *int64, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			*target = intValue
		}
	}
}
