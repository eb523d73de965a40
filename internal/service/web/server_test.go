package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"slowdrain/internal/shared/types"
)

// mockStatsProvider returns queued snapshots, repeating the last one.
type mockStatsProvider struct {
	mu    sync.Mutex
	queue []types.ServerStats
}

func (m *mockStatsProvider) Snapshot() types.ServerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.queue[0]
	if len(m.queue) > 1 {
		m.queue = m.queue[1:]
	}
	return s
}

func startMonitor(t *testing.T, source types.StatsProvider) (string, *Monitor) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := NewMonitor(source, 20*time.Millisecond)
	done := make(chan struct{})
	go func() {
		m.Serve(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ln.Addr().String(), m
}

func TestMonitor_StatsEndpoint(t *testing.T) {
	source := &mockStatsProvider{queue: []types.ServerStats{
		{ActiveConnections: 2, BytesSent: 4096, Stalls: 3},
	}}
	addr, _ := startMonitor(t, source)

	resp, err := http.Get("http://" + addr + "/api/stats")
	if err != nil {
		t.Fatalf("GET /api/stats returned an error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, but got %d", resp.StatusCode)
	}

	var stats types.ServerStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.ActiveConnections != 2 || stats.BytesSent != 4096 || stats.Stalls != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestMonitor_StatsEndpointRejectsPost(t *testing.T) {
	source := &mockStatsProvider{queue: []types.ServerStats{{}}}
	addr, _ := startMonitor(t, source)

	resp, err := http.Post("http://"+addr+"/api/stats", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/stats returned an error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, but got %d", resp.StatusCode)
	}
}

func TestMonitor_BroadcastsOverWebSocket(t *testing.T) {
	source := &mockStatsProvider{queue: []types.ServerStats{
		{Timestamp: time.Now(), LoadsServed: 7},
	}}
	addr, m := startMonitor(t, source)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial() returned an error: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg struct {
		Type string            `json:"type"`
		Data types.ServerStats `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() returned an error: %v", err)
	}
	if msg.Type != "server_stats" {
		t.Errorf("Expected type 'server_stats', but got '%s'", msg.Type)
	}
	if msg.Data.LoadsServed != 7 {
		t.Errorf("Expected loads_served 7, but got %d", msg.Data.LoadsServed)
	}
	// A broadcast was received, so the client is registered.
	if got := m.hub.ClientCount(); got != 1 {
		t.Errorf("Expected 1 registered client, but got %d", got)
	}
}

func TestMonitor_SampleComputesRates(t *testing.T) {
	t0 := time.Now()
	source := &mockStatsProvider{queue: []types.ServerStats{
		{Timestamp: t0, BytesSent: 1000, BytesReceived: 10},
		{Timestamp: t0.Add(2 * time.Second), BytesSent: 5000, BytesReceived: 50},
	}}
	m := NewMonitor(source, time.Second)

	first := m.sample()
	if first.UplinkRate != 0 {
		t.Errorf("Expected no rate on the first sample, but got %d", first.UplinkRate)
	}
	second := m.sample()
	if second.UplinkRate != 2000 {
		t.Errorf("Expected uplink rate 2000, but got %d", second.UplinkRate)
	}
	if second.DownlinkRate != 20 {
		t.Errorf("Expected downlink rate 20, but got %d", second.DownlinkRate)
	}
}
