package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/ratelimit"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"

	"github.com/amritoo/uva-arena/internal/cache"
	"github.com/amritoo/uva-arena/internal/config"
	"github.com/amritoo/uva-arena/internal/fetch"
	arenahttp "github.com/amritoo/uva-arena/internal/http"
)

func runUpdate(args []string) int {
	fs := flag.NewFlagSet("update", flag.ExitOnError)

	configPath := fs.String("config", "", "YAML config file")
	bucketURL := fs.String("bucket", "", "Cache bucket URL (e.g. file:///home/u/.arena)")
	force := fs.Bool("force", false, "Refresh even if the cache is fresh")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: uva-arena update [options]

Refresh the cached problem archive. Stale objects (by size floor or age
ceiling) are re-downloaded with retries, then the in-memory indices are
rebuilt and summarized.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	cfg, code := loadConfig(*configPath, *bucketURL)
	if code != ExitSuccess {
		return code
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	client := arenahttp.NewClient(arenahttp.DefaultOptions())
	keys := cfg.Keys()
	opts := fetch.Options{
		Policy: fetch.Policy{
			Attempts:   cfg.Retry.Count,
			Backoff:    cfg.Retry.Backoff,
			MaxBackoff: cfg.Retry.MaxBackoff,
		},
	}
	if cfg.RateLimit > 0 {
		opts.RateLimit = ratelimit.NewBucketWithRate(float64(cfg.RateLimit), cfg.RateLimit)
	}

	type refresh struct {
		name, key, url string
		stale          bool
	}
	refreshes := []refresh{
		{"problem list", keys.ProblemList, cfg.ProblemListURL,
			*force || cache.IsStale(ctx, bucket, keys.ProblemList, cfg.ProblemList)},
		{"category index", keys.CategoryIndex, cfg.CategoryIndexURL,
			*force || cache.IsStale(ctx, bucket, keys.CategoryIndex, cfg.CategoryIndex)},
	}

	for _, r := range refreshes {
		if !r.stale || r.url == "" {
			fmt.Fprintf(os.Stderr, "[arena] %s: cache is fresh\n", r.name)
			continue
		}

		fmt.Fprintf(os.Stderr, "[arena] Downloading %s: %s\n", r.name, r.url)
		task := cache.NewPayloadDownload(ctx, client, bucket, r.key, r.url, opts)
		task.AddMonitor(&barMonitor{})

		stopOnSignal(task)
		task.Start(ctx)
		task.Wait()

		if task.IsFailed() {
			fmt.Fprintf(os.Stderr, "Error downloading %s: %v\n", r.name, task.Err())
			return ExitDownloadFail
		}
	}

	loader := cache.NewLoader(bucket, keys)
	loader.SetRedownload(func() {
		fmt.Fprintln(os.Stderr, "[arena] Cached payload unusable, run 'uva-arena update -force'")
	})
	if err := loader.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cache: %v\n", err)
		return ExitLoadFail
	}

	snap := loader.Snapshot()
	volumes := 0
	if v := snap.Categories.Child("Volumes"); v != nil {
		volumes = len(v.Children)
	}
	fmt.Fprintf(os.Stderr, "[arena] Loaded %d problems in %d volumes, %d top-level categories\n",
		len(snap.Problems), volumes, len(snap.Categories.Children))
	return ExitSuccess
}

// loadConfig layers defaults, file, environment, and the bucket flag.
func loadConfig(path, bucketURL string) (config.Config, int) {
	cfg := config.Default()

	if path != "" {
		fileCfg, err := config.LoadFromFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return cfg, ExitInvalidArgs
		}
		cfg = fileCfg
	}

	if err := cfg.LoadFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, ExitInvalidArgs
	}

	if bucketURL != "" {
		cfg.Bucket = bucketURL
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cfg, ExitInvalidArgs
	}
	return cfg, ExitSuccess
}

// stopOnSignal wires SIGINT/SIGTERM to a cooperative task stop.
func stopOnSignal(task *fetch.Task) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\n[arena] Received interrupt, stopping download...")
			task.Stop()
		case <-task.Done():
		}
		signal.Stop(sigCh)
	}()
}
