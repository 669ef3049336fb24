package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/omtx/go-extract-orders/fetch"
)

// retryPolicy reissues an operation after transient failures with
// exponentially growing, capped delays.
type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	backoffMax time.Duration
	metrics    *Metrics
}

// delay returns the sleep before retry attempt n (1-based).
func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.backoffMax {
			return p.backoffMax
		}
	}
	if d > p.backoffMax {
		return p.backoffMax
	}
	return d
}

// do runs fn up to maxRetries+1 times. Only transient fetch failures
// are retried; everything else returns immediately. The sleep between
// attempts honors ctx cancellation.
func (p retryPolicy) do(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt >= p.maxRetries || !fetch.Transient(err) {
			return err
		}

		wait := p.delay(attempt + 1)
		p.metrics.IncRetry()
		slog.Warn("transient failure, retrying",
			slog.String("op", op),
			slog.Int("attempt", attempt+1),
			slog.Duration("wait", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
