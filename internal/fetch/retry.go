package fetch

import (
	"math/rand/v2"
	"time"
)

// Policy decides how many times a failed attempt is retried and how long to
// pause before each retry. The pause escalates with consecutive failures,
// bounded by MaxBackoff, under the assumption that repeated failure
// correlates with transient contention. The zero value never retries.
type Policy struct {
	// Attempts is the number of retries allowed beyond the first attempt.
	Attempts int

	// Backoff is the pause before the first retry. Zero retries
	// immediately.
	Backoff time.Duration

	// MaxBackoff caps the escalated pause. Zero means no cap.
	MaxBackoff time.Duration
}

// DefaultPolicy returns a policy with sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:   3,
		Backoff:    100 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

// Retry reports whether a failure on the given zero-based attempt index
// leaves retry budget.
func (p Policy) Retry(attempt int) bool {
	return attempt < p.Attempts
}

// Delay returns the pause before the given retry (1-based). The base delay
// doubles per consecutive failure up to MaxBackoff, with 0.5x-1.5x jitter.
func (p Policy) Delay(retry int) time.Duration {
	if p.Backoff <= 0 || retry <= 0 {
		return 0
	}

	d := p.Backoff
	for i := 1; i < retry; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			d = p.MaxBackoff
			break
		}
	}

	return time.Duration(float64(d) * (0.5 + rand.Float64()))
}
