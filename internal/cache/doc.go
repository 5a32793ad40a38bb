// Package cache loads the locally cached problem archive into in-memory
// indices and keeps them fresh.
//
// The cache lives in a blob bucket (a local directory via fileblob in the
// desktop client, mem:// in tests). A Loader reads the problem payload,
// builds the problem and category indices as one immutable Snapshot, and
// publishes it with a single pointer swap: readers always observe either
// the previous generation or the complete new one, never a partial state.
//
// # Usage
//
//	loader := cache.NewLoader(bucket, cache.DefaultKeys())
//	loader.OnProblemsUpdated(refreshProblemViews)
//	loader.OnCategoriesUpdated(refreshCategoryViews)
//
//	if err := loader.Load(ctx); err != nil {
//	    log.Printf("load: %v", err)
//	}
//
//	snap := loader.Snapshot()
//	p := snap.Problems[100]
//
// Staleness of the cached objects is the owning process's concern: IsStale
// checks a size floor and an age ceiling against the bucket attributes, and
// NewPayloadDownload builds the download task that refreshes an object.
package cache
