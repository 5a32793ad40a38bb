package progress

import (
	"fmt"
	"strings"
	"time"
)

const (
	kb = 1024
	mb = kb * 1024
	gb = mb * 1024
	tb = gb * 1024
)

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(b int64) string {
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// FormatDuration formats a duration with second precision for display.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// ParseBytes parses a human-readable byte string (e.g. "512KB").
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = strings.TrimSpace(s)

	switch {
	case strings.HasSuffix(s, "TB"):
		multiplier = tb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier = gb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier = mb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "KB"):
		multiplier = kb
		s = s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		s = s[:len(s)-1]
	}

	var value float64
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}
