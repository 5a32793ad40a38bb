package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/juju/ratelimit"

	"github.com/amritoo/uva-arena/internal/fetch"
	arenahttp "github.com/amritoo/uva-arena/internal/http"
	"github.com/amritoo/uva-arena/internal/progress"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)

	output := fs.String("output", "", "Output file (defaults to the URL's base name)")
	retries := fs.Int("retries", 3, "Attempts before giving up")
	limit := fs.String("limit", "", "Throughput cap, e.g. 512KB")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: uva-arena fetch [options] <url>

Download a single URL to a local file with retries and an interruptible
progress bar.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return ExitInvalidArgs
	}

	url := fs.Arg(0)
	dest := *output
	if dest == "" {
		dest = path.Base(url)
		if dest == "." || dest == "/" {
			fmt.Fprintln(os.Stderr, "Error: cannot derive a file name from the URL, use -output")
			return ExitInvalidArgs
		}
	}

	opts := fetch.Options{Policy: fetch.DefaultPolicy()}
	opts.Policy.Attempts = *retries
	if *limit != "" {
		rate, err := progress.ParseBytes(*limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -limit: %v\n", err)
			return ExitInvalidArgs
		}
		opts.RateLimit = ratelimit.NewBucketWithRate(float64(rate), rate)
	}

	client := arenahttp.NewClient(arenahttp.DefaultOptions())
	handler := &fetch.FileHandler{URL: url, Path: dest}
	task := fetch.New(client, url, handler, opts)
	task.AddMonitor(&barMonitor{})

	fmt.Fprintf(os.Stderr, "[arena] Downloading %s -> %s\n", url, dest)

	start := time.Now()
	stopOnSignal(task)
	task.Start(context.Background())
	task.Wait()

	if task.IsFailed() {
		if errors.Is(task.Err(), fetch.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Download interrupted.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", task.Err())
		}
		handler.Close()
		os.Remove(dest)
		return ExitDownloadFail
	}

	fmt.Fprintf(os.Stderr, "[arena] Done: %s in %s\n",
		progress.FormatBytes(task.DownloadedBytes()), progress.FormatDuration(time.Since(start)))
	return ExitSuccess
}
