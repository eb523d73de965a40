package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"slowdrain/internal/receiver"
	"slowdrain/internal/shared/config"
	"slowdrain/internal/shared/logger"
	"slowdrain/internal/shared/types"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "slowdrain.ini")

	// 1. 加载 .ini 配置，文件不存在时使用内置场景
	cfg, err := config.LoadIni(iniPath)
	if err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 运行慢速接收
	run(ctx, cfg, os.Stdout)
}

// run 执行一次慢速接收。任何失败只向 out 打印一行错误，进程仍正常退出。
func run(ctx context.Context, cfg *types.Config, out io.Writer) {
	if _, err := receiver.New(cfg.ClientConf, out).Run(ctx); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		logger.Debug().Err(err).Msg("Receiver failed")
	}
}
