// Package progress provides progress arithmetic and display helpers for
// downloads.
//
// Percent converts byte counters into a display percentage without ever
// dividing by zero: an unknown total yields Epsilon, and any known ratio is
// biased by Epsilon so a started download never reads as exactly 0%.
//
// Throttle bounds how often progress observers are notified:
//
//	th := progress.NewThrottle(100 * time.Millisecond)
//	if th.Allow() {
//	    // fan out to observers
//	}
//
// FormatBytes and ParseBytes convert between raw byte counts and
// human-readable strings such as "512KB".
package progress
