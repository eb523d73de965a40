package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"slowdrain/internal/shared"
	"slowdrain/internal/shared/logger"
	"slowdrain/internal/shared/types"
	"slowdrain/internal/sys/sockbuf"
)

// Result summarises one completed run.
type Result struct {
	TotalReceived   uint64
	Reads           uint64
	ProgressReports int
	PeerClosed      bool // loop ended on EOF before reaching ExpectedSize
	Elapsed         time.Duration
}

// Receiver connects to a server, sends the trigger command and drains the response in
// small reads with a pause after each one, so the sender's buffers fill up.
type Receiver struct {
	cfg  types.ClientConf
	out  io.Writer
	log  zerolog.Logger
	dial func(ctx context.Context, network, address string) (net.Conn, error)
}

// New creates a Receiver that prints its console output to out.
func New(cfg types.ClientConf, out io.Writer) *Receiver {
	dialer := &net.Dialer{
		Timeout: cfg.DialTimeout,
		Control: sockbuf.Control(cfg.RecvBuffer, 0),
	}
	return &Receiver{
		cfg:  cfg,
		out:  out,
		log:  logger.WithComponent("receiver"),
		dial: dialer.DialContext,
	}
}

// Run performs connect, send, read loop and close. Cancelling ctx aborts a blocked read
// or the inter-read pause. Any failure is returned as a single wrapped error and no
// partial Result is reported.
func (r *Receiver) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	rawConn, err := r.dial(ctx, "tcp", r.cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", r.cfg.Address, err)
	}
	traffic := &shared.Traffic{}
	conn := shared.NewCountedConn(rawConn, traffic)
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { rawConn.Close() })
	defer stop()

	fmt.Fprintf(r.out, "Connected to %s\n", r.cfg.Address)
	r.log.Info().
		Str("local_addr", rawConn.LocalAddr().String()).
		Str("remote_addr", rawConn.RemoteAddr().String()).
		Msg("Connected")
	if r.cfg.RecvBuffer > 0 {
		if size, err := sockbuf.RecvBufferSize(rawConn); err == nil {
			r.log.Debug().Int("requested", r.cfg.RecvBuffer).Int("effective", size).Msg("Receive buffer sized")
		}
	}

	if _, err := conn.Write([]byte(r.cfg.Command)); err != nil {
		return nil, r.wrap(ctx, "send command", err)
	}
	fmt.Fprintf(r.out, "Sent '%s' command\n", r.cfg.Command)

	progress := NewProgress(r.out, r.cfg.ProgressMode, r.cfg.ChunkSize)
	buf := make([]byte, r.cfg.ChunkSize)
	expected := uint64(r.cfg.ExpectedSize)
	peerClosed := false

	for progress.Total() < expected {
		if r.cfg.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout)); err != nil {
				return nil, r.wrap(ctx, "set read deadline", err)
			}
		}
		n, err := conn.Read(buf)
		if progress.Add(n) {
			r.log.Debug().Uint64("total", progress.Total()).Msg("Progress")
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				peerClosed = true
				break
			}
			return nil, r.wrap(ctx, "read", err)
		}
		if n == 0 {
			peerClosed = true
			break
		}
		r.log.Trace().Int("n", n).Uint64("total", progress.Total()).Msg("Read chunk")

		if err := pause(ctx, r.cfg.ReadDelay); err != nil {
			return nil, fmt.Errorf("read loop interrupted: %w", err)
		}
	}

	res := &Result{
		TotalReceived:   progress.Total(),
		Reads:           traffic.Reads.Load(),
		ProgressReports: progress.Reports(),
		PeerClosed:      peerClosed,
		Elapsed:         time.Since(start),
	}
	fmt.Fprintf(r.out, "\nDone. Total received: %d bytes\n", res.TotalReceived)
	r.log.Info().
		Uint64("total", res.TotalReceived).
		Uint64("reads", res.Reads).
		Bool("peer_closed", res.PeerClosed).
		Dur("elapsed", res.Elapsed).
		Msg("Receive finished")
	return res, nil
}

// wrap prefers the context error so that a cancelled run is not reported as a
// "use of closed network connection".
func (r *Receiver) wrap(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
