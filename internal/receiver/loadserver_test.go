package receiver

import (
	"context"
	"io"
	"testing"

	"slowdrain/internal/loadserver"
	"slowdrain/internal/shared/types"
)

func TestRun_AgainstLoadServer(t *testing.T) {
	scfg := types.DefaultConfig().ServerConf
	scfg.ListenAddr = "127.0.0.1:0"
	scfg.PayloadSize = 2 * types.MiB
	scfg.ChunkSize = 256 * types.KiB
	scfg.HighWaterMark = 512 * types.KiB

	srv := loadserver.New(scfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := srv.Listen(ctx); err != nil {
		t.Fatalf("Listen() returned an error: %v", err)
	}
	served := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(served)
	}()
	defer func() {
		cancel()
		<-served
	}()

	cfg := testConf(srv.Addr().String())
	cfg.ExpectedSize = scfg.PayloadSize
	res, err := New(cfg, io.Discard).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}
	if res.TotalReceived != uint64(scfg.PayloadSize) {
		t.Errorf("Expected %d bytes, but got %d", scfg.PayloadSize, res.TotalReceived)
	}
	if res.ProgressReports != 2 {
		t.Errorf("Expected 2 progress reports, but got %d", res.ProgressReports)
	}
}
