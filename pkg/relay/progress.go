package relay

import (
	"context"
	"io"
	"time"
)

// progressReader wraps a transfer stream, checking for cancellation on every
// read and reporting throttled (transferred, total) progress.
type progressReader struct {
	r        io.Reader
	total    int64
	progress ProgressFunc
	interval time.Duration
	ctx      context.Context

	transferred int64
	lastReport  time.Time
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if err := pr.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := pr.r.Read(p)
	pr.transferred += int64(n)
	if pr.progress != nil && n > 0 {
		now := time.Now()
		if now.Sub(pr.lastReport) >= pr.interval {
			pr.lastReport = now
			pr.progress(pr.transferred, pr.total)
		}
	}
	return n, err
}

// finish emits the final progress callback so consumers always observe the
// completed byte count.
func (pr *progressReader) finish() {
	if pr.progress != nil {
		pr.progress(pr.transferred, pr.total)
	}
}
