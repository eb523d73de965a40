package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"slowdrain/internal/loadserver"
	"slowdrain/internal/service/web"
	"slowdrain/internal/shared/config"
	"slowdrain/internal/shared/logger"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "slowdrain.ini")

	cfg, err := config.LoadIni(iniPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := loadserver.New(cfg.ServerConf)
	if err := srv.Listen(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start load server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if cfg.ServerConf.MonitorPort > 0 {
		monitor := web.NewMonitor(srv, cfg.ServerConf.MonitorInterval)
		addr := fmt.Sprintf("127.0.0.1:%d", cfg.ServerConf.MonitorPort)
		g.Go(func() error {
			return monitor.Run(gctx, addr)
		})
	} else {
		logger.Info().Msg("Monitor is disabled (monitor_port is 0 or not set).")
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Load server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("Load server shutdown complete.")
}
