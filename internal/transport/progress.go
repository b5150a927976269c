package transport

import (
	"context"
	"io"
)

// ProgressFunc receives the fraction of the response body read so far,
// in [0, 1]. It is only called when the response carries a Content-Length.
type ProgressFunc func(fraction float64)

// monitoredReader checks for cancellation on every Read call, before any
// bytes are consumed, so an aborted context interrupts a stalled download
// within one read, and reports progress proportional to Content-Length.
type monitoredReader struct {
	ctx      context.Context
	r        io.Reader
	length   int64
	seen     int64
	progress ProgressFunc
}

func newMonitoredReader(ctx context.Context, r io.Reader, length int64, progress ProgressFunc) *monitoredReader {
	return &monitoredReader{ctx: ctx, r: r, length: length, progress: progress}
}

func (m *monitoredReader) Read(p []byte) (int, error) {
	if err := m.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := m.r.Read(p)
	if n > 0 {
		m.seen += int64(n)
		if m.progress != nil && m.length > 0 {
			m.progress(float64(m.seen) / float64(m.length))
		}
	}
	return n, err
}
