package loadserver

import (
	"bytes"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"slowdrain/internal/shared"
)

const (
	loadCommand = "load"
	readBufSize = 4096
	payloadByte = 'X'
)

// errPayloadDone ends a session after a completed load when close_after_payload is set.
var errPayloadDone = errors.New("payload complete")

// session 对应一个客户端连接：读协程负责解析命令并生产数据，
// flush 协程负责把 OutputBuffer 中的数据写入 socket。
type session struct {
	id     string
	srv    *Server
	conn   *shared.CountedConn
	out    *shared.OutputBuffer
	log    zerolog.Logger
	opened time.Time
}

func newSession(srv *Server, conn net.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		srv:    srv,
		conn:   shared.NewCountedConn(conn, &srv.traffic),
		out:    shared.NewOutputBuffer(srv.cfg.HighWaterMark),
		log:    srv.log.With().Str("session_id", id).Str("client_addr", conn.RemoteAddr().String()).Logger(),
		opened: time.Now(),
	}
}

func (s *session) run() {
	s.log.Info().Msg("Connection UP")

	flushed := make(chan error, 1)
	go func() {
		_, err := s.out.WriteTo(s.conn)
		flushed <- err
	}()

	err := s.readLoop()
	switch {
	case err == nil, errors.Is(err, errPayloadDone):
	case peerGone(err):
		s.log.Debug().Err(err).Msg("Client went away")
	default:
		s.log.Warn().Err(err).Msg("Session ended with error")
	}

	s.out.Close()
	if ferr := <-flushed; ferr != nil && !peerGone(ferr) {
		s.log.Debug().Err(ferr).Msg("Flush stopped")
	}
	s.conn.Close()
	s.log.Info().Dur("duration", time.Since(s.opened)).Msg("Connection DOWN")
}

// abort 由 Server 关闭时调用，解除读和 drain 等待。
func (s *session) abort() {
	s.out.Fail(net.ErrClosed)
	s.conn.Close()
}

func (s *session) readLoop() error {
	buf := make([]byte, readBufSize)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			msg := buf[:n]
			s.log.Debug().Int("n", n).Msg("Received")
			if bytes.HasPrefix(msg, []byte(loadCommand)) {
				if perr := s.streamPayload(); perr != nil {
					return perr
				}
			} else if _, werr := s.out.Write(msg); werr != nil {
				return werr
			}
		}
		if err != nil {
			return err
		}
	}
}

// streamPayload queues payload_size bytes in chunk_size pieces. Whenever the queued amount
// exceeds the high-water mark the producer waits until the flusher has drained it.
func (s *session) streamPayload() error {
	cfg := s.srv.cfg
	s.log.Info().Int64("payload_size", cfg.PayloadSize).Msg("Start sending big data")
	start := time.Now()

	chunk := bytes.Repeat([]byte{payloadByte}, cfg.ChunkSize)
	remaining := cfg.PayloadSize
	stalls := 0
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := s.out.Write(chunk[:n]); err != nil {
			return err
		}
		remaining -= n

		if s.out.AboveHighWater() {
			waitStart := time.Now()
			if err := s.out.WaitDrained(); err != nil {
				return err
			}
			s.srv.recordStall(time.Since(waitStart))
			stalls++
		}
	}

	s.srv.loads.Add(1)
	s.log.Info().Int("stalls", stalls).Dur("elapsed", time.Since(start)).Msg("Finished sending big data")
	if cfg.CloseAfterPayload {
		return errPayloadDone
	}
	return nil
}

func peerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}
