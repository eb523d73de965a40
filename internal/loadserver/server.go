package loadserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"

	"slowdrain/internal/shared"
	"slowdrain/internal/shared/logger"
	"slowdrain/internal/shared/types"
	"slowdrain/internal/sys/sockbuf"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server accepts connections and runs one session per connection.
type Server struct {
	cfg      types.ServerConf
	listener net.Listener
	log      zerolog.Logger

	traffic       shared.Traffic
	active        atomic.Int64
	totalSessions atomic.Uint64
	loads         atomic.Uint64
	stalls        atomic.Uint64
	stallNanos    atomic.Int64

	mu       sync.Mutex
	sessions map[*session]struct{}
	wg       sync.WaitGroup
}

// New 创建一个尚未监听的 Server。
func New(cfg types.ServerConf) *Server {
	return &Server{
		cfg:      cfg,
		log:      logger.WithComponent("loadserver"),
		sessions: make(map[*session]struct{}),
	}
}

// Listen binds the configured address. It must be called before Serve.
func (s *Server) Listen(ctx context.Context) error {
	lc := net.ListenConfig{Control: sockbuf.Control(0, s.cfg.SendBuffer)}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.listener = ln
	s.log.Info().
		Str("addr", ln.Addr().String()).
		Int64("payload_size", s.cfg.PayloadSize).
		Int("high_water_mark", s.cfg.HighWaterMark).
		Msg("Listening")
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled, then closes every live session
// and waits for them to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("loadserver: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			// Back off on repeated failures such as EMFILE.
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.log.Warn().Err(err).Dur("retry_in", backoff).Msg("Accept failed")
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		sess := newSession(s, conn)
		s.track(sess, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(sess, false)
			sess.run()
		}()
	}

	s.mu.Lock()
	for sess := range s.sessions {
		sess.abort()
	}
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info().Msg("Server stopped")
	return nil
}

func (s *Server) track(sess *session, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.sessions[sess] = struct{}{}
		s.active.Add(1)
		s.totalSessions.Add(1)
		return
	}
	delete(s.sessions, sess)
	s.active.Add(-1)
}

func (s *Server) recordStall(d time.Duration) {
	s.stalls.Add(1)
	s.stallNanos.Add(int64(d))
}

// Snapshot implements types.StatsProvider.
func (s *Server) Snapshot() types.ServerStats {
	return types.ServerStats{
		Timestamp:         time.Now().UTC(),
		ActiveConnections: s.active.Load(),
		TotalSessions:     s.totalSessions.Load(),
		BytesSent:         s.traffic.Uplink.Load(),
		BytesReceived:     s.traffic.Downlink.Load(),
		LoadsServed:       s.loads.Load(),
		Stalls:            s.stalls.Load(),
		StallTime:         time.Duration(s.stallNanos.Load()),
	}
}
