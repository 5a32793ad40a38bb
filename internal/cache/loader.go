package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"gocloud.dev/blob"
)

// ErrLoadInProgress is returned when a foreground load arrives while
// another load is running; the request is dropped.
var ErrLoadInProgress = errors.New("cache: load already in progress")

// Keys locates the cached objects inside the bucket.
type Keys struct {
	// ProblemList is the problem payload object.
	ProblemList string

	// CategoryIndex is the index object naming the per-category files.
	CategoryIndex string

	// DetailPattern is the fmt pattern for a problem's detail file, with
	// one %d verb for the problem number.
	DetailPattern string
}

// DefaultKeys returns the cache layout the desktop client uses.
func DefaultKeys() Keys {
	return Keys{
		ProblemList:   "problems.json",
		CategoryIndex: "categories.json",
		DetailPattern: "problems/%d.html",
	}
}

// Snapshot is one immutable generation of the cache indices. A load builds
// a fresh Snapshot and publishes it with a single pointer swap; readers
// never observe a partially built state.
type Snapshot struct {
	// Problems maps problem number to its record.
	Problems map[int]*Problem

	// IDToNumber maps the archive's external problem id to the problem
	// number. First write wins.
	IDToNumber map[int64]int

	// Categories is the root of the category tree.
	Categories *Category
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		Problems:   map[int]*Problem{},
		IDToNumber: map[int64]int{},
		Categories: &Category{Name: "Root"},
	}
}

// indexEntry is one record of the category index object.
type indexEntry struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Loader rebuilds the in-memory cache indices from the bucket.
type Loader struct {
	bucket *blob.Bucket
	keys   Keys

	// favorites supplies externally persisted favorite problem numbers,
	// applied onto each freshly built snapshot.
	favorites func() []int

	// redownload is invoked when the payload is unusable and no load has
	// ever succeeded.
	redownload func()

	busy       atomic.Bool
	pending    atomic.Bool
	loadedOnce atomic.Bool
	snap       atomic.Pointer[Snapshot]

	mu                sync.Mutex
	problemListeners  []func()
	categoryListeners []func()
}

// NewLoader creates a loader over the given cache bucket.
func NewLoader(bucket *blob.Bucket, keys Keys) *Loader {
	l := &Loader{bucket: bucket, keys: keys}
	l.snap.Store(emptySnapshot())
	return l
}

// SetFavorites registers the provider of favorite problem numbers. It must
// be set before the first load.
func (l *Loader) SetFavorites(fn func() []int) {
	l.favorites = fn
}

// SetRedownload registers the callback invoked when the cached payload is
// unusable and nothing has ever been loaded. It must be set before the
// first load.
func (l *Loader) SetRedownload(fn func()) {
	l.redownload = fn
}

// OnProblemsUpdated registers a listener for the problem-database updated
// signal. Listeners run on the loading goroutine.
func (l *Loader) OnProblemsUpdated(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.problemListeners = append(l.problemListeners, fn)
}

// OnCategoriesUpdated registers a listener for the category-data updated
// signal. Listeners run on the loading goroutine.
func (l *Loader) OnCategoriesUpdated(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.categoryListeners = append(l.categoryListeners, fn)
}

// Snapshot returns the current published indices: empty before the first
// successful load, never nil.
func (l *Loader) Snapshot() *Snapshot {
	return l.snap.Load()
}

// Loaded reports whether any load has ever succeeded.
func (l *Loader) Loaded() bool {
	return l.loadedOnce.Load()
}

// Load rebuilds the indices inline. A request arriving while another load
// is running is dropped with ErrLoadInProgress. On failure the previously
// published snapshot stays intact.
func (l *Loader) Load(ctx context.Context) error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrLoadInProgress
	}
	err := l.load(ctx)
	l.release(ctx)
	return err
}

// LoadInBackground rebuilds the indices on a background goroutine. A
// request arriving mid-load is deferred: pending requests coalesce into one
// rerun after the current load finishes, whether that load is a foreground
// or a background one.
func (l *Loader) LoadInBackground(ctx context.Context) {
	if !l.busy.CompareAndSwap(false, true) {
		l.pending.Store(true)
		// The load holding the flag may have released it before seeing the
		// request; reclaim the flag so the request is not stranded.
		if !l.busy.CompareAndSwap(false, true) {
			return
		}
		l.pending.Store(false)
	}
	go func() {
		if err := l.load(ctx); err != nil {
			log.Printf("[arena] background cache load: %v", err)
		}
		l.release(ctx)
	}()
}

// release hands the busy flag back, first draining a background request
// that arrived mid-load. The deferred run happens off the releasing
// goroutine so a foreground caller is never blocked by it.
func (l *Loader) release(ctx context.Context) {
	for {
		if l.pending.Swap(false) {
			go func() {
				if err := l.load(ctx); err != nil {
					log.Printf("[arena] background cache load: %v", err)
				}
				l.release(ctx)
			}()
			return
		}
		l.busy.Store(false)
		// A request racing the release can set pending after the swap
		// above; recheck so it is either picked up here or by its own
		// reclaim in LoadInBackground.
		if !l.pending.Load() || !l.busy.CompareAndSwap(false, true) {
			return
		}
	}
}

func (l *Loader) load(ctx context.Context) error {
	data, err := l.bucket.ReadAll(ctx, l.keys.ProblemList)
	if err != nil {
		return l.unusable(fmt.Errorf("read problem list: %w", err))
	}
	if len(data) == 0 {
		return l.unusable(errors.New("cache: empty problem list"))
	}

	var records []*Problem
	if err := json.Unmarshal(data, &records); err != nil {
		return l.unusable(fmt.Errorf("parse problem list: %w", err))
	}

	next := emptySnapshot()
	for _, p := range records {
		// A JSON null decodes to a nil record without an unmarshal error.
		if p == nil {
			return l.unusable(errors.New("cache: null problem record"))
		}
		key := fmt.Sprintf(l.keys.DetailPattern, p.Number)
		if attrs, err := l.bucket.Attributes(ctx, key); err == nil {
			p.FileSize = attrs.Size
		}
		next.Problems[p.Number] = p
		if _, ok := next.IDToNumber[p.ID]; !ok {
			next.IDToNumber[p.ID] = p.Number
		}
	}

	next.Categories.AddChild(volumeTree(next.Problems))

	if l.favorites != nil {
		for _, num := range l.favorites() {
			if p, ok := next.Problems[num]; ok {
				p.Favorite = true
			}
		}
	}

	l.mergeCategories(ctx, next.Categories)

	l.snap.Store(next)
	l.loadedOnce.Store(true)
	l.notify(&l.problemListeners)
	l.notify(&l.categoryListeners)
	return nil
}

// unusable reports a hard failure of this load cycle. The previous snapshot
// stays published; a redownload is requested only if no load has ever
// succeeded, so a good cache never triggers a refresh loop.
func (l *Loader) unusable(err error) error {
	if !l.loadedOnce.Load() && l.redownload != nil {
		l.redownload()
	}
	return err
}

// volumeTree builds the synthetic "Volumes" subtree: one child per distinct
// volume, named by the zero-padded volume number, in ascending order.
func volumeTree(problems map[int]*Problem) *Category {
	byVolume := make(map[int][]int)
	for num, p := range problems {
		byVolume[p.Volume()] = append(byVolume[p.Volume()], num)
	}

	volumes := make([]int, 0, len(byVolume))
	for v := range byVolume {
		volumes = append(volumes, v)
	}
	sort.Ints(volumes)

	root := &Category{Name: "Volumes"}
	for _, v := range volumes {
		nums := byVolume[v]
		sort.Ints(nums)
		root.AddChild(&Category{
			Name:     fmt.Sprintf("Volume %03d", v),
			Problems: nums,
		})
	}
	return root
}

// mergeCategories loads each category-index entry into the tree. One bad
// category file is logged and skipped; the others still merge.
func (l *Loader) mergeCategories(ctx context.Context, root *Category) {
	data, err := l.bucket.ReadAll(ctx, l.keys.CategoryIndex)
	if err != nil {
		log.Printf("[arena] read category index: %v", err)
		return
	}

	var entries []indexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Printf("[arena] parse category index: %v", err)
		return
	}

	for _, e := range entries {
		raw, err := l.bucket.ReadAll(ctx, e.Key)
		if err != nil {
			log.Printf("[arena] read category %q: %v", e.Name, err)
			continue
		}
		node := &Category{}
		if err := json.Unmarshal(raw, node); err != nil {
			log.Printf("[arena] parse category %q: %v", e.Name, err)
			continue
		}
		root.RemoveChild(node.Name)
		root.AddChild(node)
	}
}

func (l *Loader) notify(listeners *[]func()) {
	l.mu.Lock()
	fns := append([]func(){}, *listeners...)
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
