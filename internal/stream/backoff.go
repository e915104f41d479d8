package stream

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds automatic reconnection
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy returns 10 attempts with delays 1s, 2s, 4s ... capped at 30s
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Normalized fills zero or negative fields with the defaults
func (p Policy) Normalized() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff returns a fresh backoff sequence. Each Next call yields the delay of
// the next attempt and stops once MaxAttempts delays have been handed out.
func (p Policy) Backoff() retry.Backoff {
	p = p.Normalized()
	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts), b)
}

// Delay returns min(BaseDelay * 2^n, MaxDelay), the wait before the
// (n+1)th attempt.
func (p Policy) Delay(n int) time.Duration {
	p = p.Normalized()
	if n < 0 {
		n = 0
	}
	b := retry.WithCappedDuration(p.MaxDelay, retry.NewExponential(p.BaseDelay))
	var d time.Duration
	for i := 0; i <= n; i++ {
		d, _ = b.Next()
		if d == p.MaxDelay {
			break
		}
	}
	return d
}
