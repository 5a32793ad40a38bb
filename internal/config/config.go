package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amritoo/uva-arena/internal/cache"
	"github.com/amritoo/uva-arena/internal/progress"
)

// Config defines configuration for the uva-arena CLI.
type Config struct {
	// Bucket is the blob URL of the cache store, e.g. "file:///home/u/.arena".
	Bucket string `yaml:"bucket"`

	// ProblemListURL is the remote problem payload.
	ProblemListURL string `yaml:"problem_list_url"`

	// CategoryIndexURL is the remote category index.
	CategoryIndexURL string `yaml:"category_index_url"`

	// ProblemListKey, CategoryIndexKey and DetailKeyPattern locate the
	// cached objects inside the bucket.
	ProblemListKey   string `yaml:"problem_list_key"`
	CategoryIndexKey string `yaml:"category_index_key"`
	DetailKeyPattern string `yaml:"detail_key_pattern"`

	// RateLimit caps download throughput in bytes per second. Zero
	// disables the cap.
	RateLimit int64 `yaml:"rate_limit"`

	Retry RetryConfig `yaml:"retry"`

	// ProblemList and CategoryIndex carry the distinct staleness settings
	// of the two cached objects.
	ProblemList   cache.Staleness `yaml:"problem_list"`
	CategoryIndex cache.Staleness `yaml:"category_index"`
}

// RetryConfig defines retry behavior for one download task.
type RetryConfig struct {
	Count      int           `yaml:"count"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	keys := cache.DefaultKeys()
	return Config{
		ProblemListURL:   "https://uhunt.onlinejudge.org/api/p",
		CategoryIndexURL: "https://uhunt.onlinejudge.org/api/cpbook/3",
		ProblemListKey:   keys.ProblemList,
		CategoryIndexKey: keys.CategoryIndex,
		DetailKeyPattern: keys.DetailPattern,
		Retry: RetryConfig{
			Count:      3,
			Backoff:    100 * time.Millisecond,
			MaxBackoff: 2 * time.Second,
		},
		ProblemList: cache.Staleness{
			MaxAge:  7 * 24 * time.Hour,
			MinSize: 1024,
		},
		CategoryIndex: cache.Staleness{
			MaxAge:  30 * 24 * time.Hour,
			MinSize: 64,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Bucket           string          `yaml:"bucket"`
	ProblemListURL   string          `yaml:"problem_list_url"`
	CategoryIndexURL string          `yaml:"category_index_url"`
	ProblemListKey   string          `yaml:"problem_list_key"`
	CategoryIndexKey string          `yaml:"category_index_key"`
	DetailKeyPattern string          `yaml:"detail_key_pattern"`
	RateLimit        string          `yaml:"rate_limit"`
	Retry            yamlRetryConfig `yaml:"retry"`
	ProblemList      yamlStaleness   `yaml:"problem_list"`
	CategoryIndex    yamlStaleness   `yaml:"category_index"`
}

type yamlRetryConfig struct {
	Count      int    `yaml:"count"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

type yamlStaleness struct {
	MaxAge  string `yaml:"max_age"`
	MinSize string `yaml:"min_size"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.ProblemListURL != "" {
		cfg.ProblemListURL = yc.ProblemListURL
	}
	if yc.CategoryIndexURL != "" {
		cfg.CategoryIndexURL = yc.CategoryIndexURL
	}
	if yc.ProblemListKey != "" {
		cfg.ProblemListKey = yc.ProblemListKey
	}
	if yc.CategoryIndexKey != "" {
		cfg.CategoryIndexKey = yc.CategoryIndexKey
	}
	if yc.DetailKeyPattern != "" {
		cfg.DetailKeyPattern = yc.DetailKeyPattern
	}
	if yc.RateLimit != "" {
		size, err := progress.ParseBytes(yc.RateLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse rate_limit: %w", err)
		}
		cfg.RateLimit = size
	}
	if yc.Retry.Count != 0 {
		cfg.Retry.Count = yc.Retry.Count
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}
	if err := applyStaleness(&cfg.ProblemList, yc.ProblemList, "problem_list"); err != nil {
		return Config{}, err
	}
	if err := applyStaleness(&cfg.CategoryIndex, yc.CategoryIndex, "category_index"); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyStaleness(dst *cache.Staleness, src yamlStaleness, name string) error {
	if src.MaxAge != "" {
		d, err := time.ParseDuration(src.MaxAge)
		if err != nil {
			return fmt.Errorf("parse %s.max_age: %w", name, err)
		}
		dst.MaxAge = d
	}
	if src.MinSize != "" {
		size, err := progress.ParseBytes(src.MinSize)
		if err != nil {
			return fmt.Errorf("parse %s.min_size: %w", name, err)
		}
		dst.MinSize = size
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables. Environment
// variables use the ARENA_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("ARENA_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("ARENA_PROBLEM_LIST_URL"); v != "" {
		c.ProblemListURL = v
	}
	if v := os.Getenv("ARENA_CATEGORY_INDEX_URL"); v != "" {
		c.CategoryIndexURL = v
	}
	if v := os.Getenv("ARENA_RATE_LIMIT"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_RATE_LIMIT: %w", err)
		}
		c.RateLimit = size
	}
	if v := os.Getenv("ARENA_RETRY_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_RETRY_COUNT: %w", err)
		}
		c.Retry.Count = n
	}
	if v := os.Getenv("ARENA_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("ARENA_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	if v := os.Getenv("ARENA_PROBLEM_LIST_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_PROBLEM_LIST_MAX_AGE: %w", err)
		}
		c.ProblemList.MaxAge = d
	}
	if v := os.Getenv("ARENA_CATEGORY_INDEX_MAX_AGE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse ARENA_CATEGORY_INDEX_MAX_AGE: %w", err)
		}
		c.CategoryIndex.MaxAge = d
	}

	return nil
}

// Keys returns the cache object layout the configuration describes.
func (c *Config) Keys() cache.Keys {
	return cache.Keys{
		ProblemList:   c.ProblemListKey,
		CategoryIndex: c.CategoryIndexKey,
		DetailPattern: c.DetailKeyPattern,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.ProblemListURL == "" {
		return errors.New("config: problem_list_url is required")
	}
	if c.ProblemListKey == "" || c.CategoryIndexKey == "" {
		return errors.New("config: cache object keys must not be empty")
	}
	if c.Retry.Count < 0 {
		return errors.New("config: retry.count must be non-negative")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate_limit must be non-negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config. Zero values
// in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.ProblemListURL != "" {
		c.ProblemListURL = override.ProblemListURL
	}
	if override.CategoryIndexURL != "" {
		c.CategoryIndexURL = override.CategoryIndexURL
	}
	if override.ProblemListKey != "" {
		c.ProblemListKey = override.ProblemListKey
	}
	if override.CategoryIndexKey != "" {
		c.CategoryIndexKey = override.CategoryIndexKey
	}
	if override.DetailKeyPattern != "" {
		c.DetailKeyPattern = override.DetailKeyPattern
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.Retry.Count != 0 {
		c.Retry.Count = override.Retry.Count
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.ProblemList.MaxAge != 0 {
		c.ProblemList.MaxAge = override.ProblemList.MaxAge
	}
	if override.ProblemList.MinSize != 0 {
		c.ProblemList.MinSize = override.ProblemList.MinSize
	}
	if override.CategoryIndex.MaxAge != 0 {
		c.CategoryIndex.MaxAge = override.CategoryIndex.MaxAge
	}
	if override.CategoryIndex.MinSize != 0 {
		c.CategoryIndex.MinSize = override.CategoryIndex.MinSize
	}
	return c
}
