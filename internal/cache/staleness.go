package cache

import (
	"context"
	"time"

	"gocloud.dev/blob"
)

// Staleness disqualifies a cached object from use by size floor or age
// ceiling. The problem payload and the category index carry distinct
// settings because they update at different cadences.
type Staleness struct {
	// MaxAge is how old the object may grow before a refresh is due.
	// Zero disables the age check.
	MaxAge time.Duration `yaml:"max_age"`

	// MinSize is the smallest plausible size; anything below it is treated
	// as a broken or truncated cache write.
	MinSize int64 `yaml:"min_size"`
}

// IsStale reports whether the object under key needs a refresh. A missing
// object is stale.
func IsStale(ctx context.Context, bucket *blob.Bucket, key string, s Staleness) bool {
	attrs, err := bucket.Attributes(ctx, key)
	if err != nil {
		return true
	}
	if attrs.Size < s.MinSize {
		return true
	}
	return s.MaxAge > 0 && time.Since(attrs.ModTime) > s.MaxAge
}
