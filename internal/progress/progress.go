package progress

import "time"

// Epsilon is added to every percentage so consumers can distinguish a
// download that has started from one that has not: an unknown total reports
// Epsilon instead of 0.
const Epsilon = 1e-14

// Percent returns the completion percentage for the given byte counters.
// A zero or unknown total yields Epsilon rather than a division error.
func Percent(downloaded, total int64) float64 {
	if total == 0 {
		return Epsilon
	}
	return float64(downloaded)*100/float64(total) + Epsilon
}

// Throttle limits how often progress is fanned out to observers. It is not
// safe for concurrent use; a download worker owns its throttle.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

// NewThrottle returns a throttle that allows one report per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether the interval has elapsed since the last allowed
// report. The first call always succeeds.
func (t *Throttle) Allow() bool {
	now := time.Now()
	if now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}
