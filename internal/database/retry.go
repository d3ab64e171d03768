package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// backoff retries an operation with exponentially growing, jittered delays.
type backoff struct {
	attempts int
	base     time.Duration
	max      time.Duration
}

func defaultBackoff() backoff {
	return backoff{attempts: 6, base: 100 * time.Millisecond, max: 30 * time.Second}
}

// delay returns the wait before retry n (0-based), with up to 25% jitter.
func (b backoff) delay(n int) time.Duration {
	d := b.base << n
	if d <= 0 || d > b.max {
		d = b.max
	}
	return d + time.Duration(rand.Int63n(int64(d)/4+1))
}

func (b backoff) run(ctx context.Context, logger *slog.Logger, fn func() error) error {
	var err error
	for n := 0; n < b.attempts; n++ {
		if err = fn(); err == nil {
			return nil
		}
		if n == b.attempts-1 {
			break
		}
		wait := b.delay(n)
		logger.DebugContext(ctx, "retrying", "attempt", n+1, "wait", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return fmt.Errorf("gave up after %d attempts: %w", b.attempts, err)
}
