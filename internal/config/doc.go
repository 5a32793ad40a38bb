// Package config defines configuration for the uva-arena CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (ARENA_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	type Config struct {
//	    Bucket           string
//	    ProblemListURL   string
//	    CategoryIndexURL string
//	    ProblemListKey   string
//	    CategoryIndexKey string
//	    DetailKeyPattern string
//	    RateLimit        int64
//	    Retry            RetryConfig
//	    ProblemList      cache.Staleness
//	    CategoryIndex    cache.Staleness
//	}
//
//	type RetryConfig struct {
//	    Count      int
//	    Backoff    time.Duration
//	    MaxBackoff time.Duration
//	}
package config
