package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"gocloud.dev/blob"

	"github.com/amritoo/uva-arena/internal/cache"
)

func runList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)

	configPath := fs.String("config", "", "YAML config file")
	bucketURL := fs.String("bucket", "", "Cache bucket URL (e.g. file:///home/u/.arena)")
	volume := fs.Int("volume", 0, "Print only the problems of one volume")
	tree := fs.Bool("tree", false, "Print the category tree instead of problems")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: uva-arena list [options]

Print problems from the local cache. Run 'uva-arena update' first to
populate it.

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

	ctx := context.Background()
	bucket, err := blob.OpenBucket(ctx, cfg.Bucket)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening cache bucket: %v\n", err)
		return ExitStorageError
	}
	defer bucket.Close()

	loader := cache.NewLoader(bucket, cfg.Keys())
	if err := loader.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading cache: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'uva-arena update' to populate the cache.")
		return ExitLoadFail
	}

	snap := loader.Snapshot()
	if *tree {
		printCategory(snap.Categories, 0)
		return ExitSuccess
	}

	numbers := make([]int, 0, len(snap.Problems))
	for n, p := range snap.Problems {
		if *volume != 0 && p.Volume() != *volume {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	if len(numbers) == 0 {
		fmt.Fprintln(os.Stderr, "No problems found.")
		return ExitSuccess
	}

	for _, n := range numbers {
		p := snap.Problems[n]
		marker := " "
		if p.Favorite {
			marker = "*"
		}
		fmt.Printf("%s %5d  %-50s dacu=%-6d best=%dms\n",
			marker, p.Number, p.Title, p.DACU, p.BestRuntime)
	}
	return ExitSuccess
}

func printCategory(c *cache.Category, depth int) {
	indent := strings.Repeat("  ", depth)
	if len(c.Problems) > 0 {
		fmt.Printf("%s%s (%d problems)\n", indent, c.Name, len(c.Problems))
	} else {
		fmt.Printf("%s%s\n", indent, c.Name)
	}
	for _, child := range c.Children {
		printCategory(child, depth+1)
	}
}
