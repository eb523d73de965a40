package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"slowdrain/internal/shared/logger"
	"slowdrain/internal/shared/types"
)

// --- DIAGNOSTIC HELPER: A listener that logs accepted connections ---
type loggingListener struct {
	net.Listener
}

func (l loggingListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err == nil {
		logger.Debug().Msgf(" [Monitor DIAGNOSTIC] Connection accepted from: %s ", conn.RemoteAddr())
	}
	return conn, err
}

// Monitor 通过 HTTP 与 WebSocket 暴露 loadserver 的统计数据。
type Monitor struct {
	source   types.StatsProvider
	hub      *Hub
	interval time.Duration

	last     types.ServerStats
	lastSeen bool
}

// NewMonitor creates a Monitor that samples source every interval.
func NewMonitor(source types.StatsProvider, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{
		source:   source,
		hub:      NewHub(),
		interval: interval,
	}
}

// Handler returns the monitor's routes. ctx bounds the lifetime of WebSocket clients.
func (m *Monitor) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stats", m.handleStats)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(ctx, m.hub, w, r)
	})
	return mux
}

func (m *Monitor) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(m.source.Snapshot())
}

// Run serves on addr until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start monitor on %s: %w", addr, err)
	}
	return m.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (m *Monitor) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{Handler: m.Handler(ctx)}
	logger.Info().Msgf("SUCCESS: Monitor is listening on http://%s", listener.Addr())

	go m.hub.Run(ctx)
	go m.tick(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(loggingListener{Listener: listener}); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("monitor server error: %w", err)
	}
	logger.Info().Msg("Monitor stopped.")
	return nil
}

func (m *Monitor) tick(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := m.sample()
			m.hub.BroadcastStats(&stats)
		}
	}
}

// sample takes a snapshot and derives per-second rates from the previous one.
func (m *Monitor) sample() types.ServerStats {
	cur := m.source.Snapshot()
	if m.lastSeen {
		if elapsed := cur.Timestamp.Sub(m.last.Timestamp).Seconds(); elapsed > 0 {
			cur.UplinkRate = uint64(float64(cur.BytesSent-m.last.BytesSent) / elapsed)
			cur.DownlinkRate = uint64(float64(cur.BytesReceived-m.last.BytesReceived) / elapsed)
		}
	}
	m.last = cur
	m.lastSeen = true
	return cur
}
