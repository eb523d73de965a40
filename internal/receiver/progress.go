package receiver

import (
	"fmt"
	"io"

	"slowdrain/internal/shared/types"
)

const (
	ProgressBoundary = "boundary"
	ProgressModulo   = "modulo"
)

// Progress accumulates received bytes and decides when to print the
// "\rReceived: X.XX MB" line.
//
// In boundary mode a line is printed exactly when the running total crosses a MiB
// boundary. Modulo mode keeps the older approximation, total%MiB < window, which can
// skip a boundary or fire more than once near one when reads are irregular.
type Progress struct {
	out     io.Writer
	mode    string
	window  uint64
	total   uint64
	reports int
}

// NewProgress creates a Progress writing to out. window is the modulo-mode slack,
// normally the read chunk size.
func NewProgress(out io.Writer, mode string, window int) *Progress {
	if mode == "" {
		mode = ProgressBoundary
	}
	return &Progress{out: out, mode: mode, window: uint64(window)}
}

// Add records a read of n bytes and reports whether a progress line was printed.
func (p *Progress) Add(n int) bool {
	if n <= 0 {
		return false
	}
	prev := p.total
	p.total += uint64(n)
	if !p.due(prev) {
		return false
	}
	fmt.Fprintf(p.out, "\rReceived: %.2f MB", float64(p.total)/types.MiB)
	p.reports++
	return true
}

func (p *Progress) due(prev uint64) bool {
	if p.mode == ProgressModulo {
		return p.total%types.MiB < p.window
	}
	return p.total/types.MiB > prev/types.MiB
}

// Total returns the bytes recorded so far.
func (p *Progress) Total() uint64 { return p.total }

// Reports returns how many progress lines were printed.
func (p *Progress) Reports() int { return p.reports }
