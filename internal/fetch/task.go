package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/juju/ratelimit"

	arenahttp "github.com/amritoo/uva-arena/internal/http"
	"github.com/amritoo/uva-arena/internal/progress"
)

// Status is the lifecycle state of a Task.
type Status int32

const (
	Waiting Status = iota
	Running
	Stopping
	Finished
)

func (s Status) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

const (
	// bufferSize is the nominal read size for one body chunk.
	bufferSize = 2048

	// reportInterval bounds how often monitors see progress updates.
	reportInterval = 100 * time.Millisecond
)

// Common errors.
var (
	// ErrInterrupted is recorded when Stop is observed before the download
	// completed. It is terminal and never retried.
	ErrInterrupted = errors.New("fetch: download interrupted before completion")

	// ErrFailed is recorded if the attempt loop exits without a more
	// specific failure.
	ErrFailed = errors.New("fetch: download failed")
)

// Options configures optional task behavior.
type Options struct {
	// Policy controls retries. The zero value never retries.
	Policy Policy

	// RateLimit caps download throughput when non-nil. The worker takes one
	// token per byte between chunks.
	RateLimit *ratelimit.Bucket

	// ReportInterval overrides the progress throttle interval.
	// Default: 100ms.
	ReportInterval time.Duration
}

// Task downloads one HTTP resource on a dedicated worker goroutine. Exactly
// one worker ever exists per task instance. External readers may poll the
// counters at any time; they are monotonic within an attempt and intended
// for display.
type Task struct {
	id      string
	url     string
	client  *arenahttp.Client
	handler Handler
	opts    Options

	// monitors is append-only and must be populated before Start.
	monitors []Monitor

	status     atomic.Int32
	total      atomic.Int64
	downloaded atomic.Int64

	mu       sync.Mutex
	err      error
	encoding string
	chunked  bool

	throttle *progress.Throttle
	started  sync.Once
	done     chan struct{}
}

// New creates a task bound to url. The handler supplies the request and
// consumes the body; nothing happens until Start.
func New(client *arenahttp.Client, url string, handler Handler, opts Options) *Task {
	interval := opts.ReportInterval
	if interval == 0 {
		interval = reportInterval
	}
	return &Task{
		id:       uuid.NewString(),
		url:      url,
		client:   client,
		handler:  handler,
		opts:     opts,
		throttle: progress.NewThrottle(interval),
		done:     make(chan struct{}),
	}
}

// AddMonitor registers a monitor. Monitors must be registered before Start;
// registration order is invocation order.
func (t *Task) AddMonitor(m Monitor) {
	if m != nil {
		t.monitors = append(t.monitors, m)
	}
}

// Start launches the worker. Starting an already started task is a no-op.
func (t *Task) Start(ctx context.Context) {
	t.started.Do(func() {
		t.status.Store(int32(Running))
		go t.run(ctx)
	})
}

// Stop requests a cooperative stop, observed by the worker at its next
// chunk boundary. Stopping a task that is not running is a no-op.
func (t *Task) Stop() {
	t.status.CompareAndSwap(int32(Running), int32(Stopping))
}

// run is the worker's attempt loop.
func (t *Task) run(ctx context.Context) {
	defer close(t.done)

	for i := 0; t.Status() == Running; i++ {
		// Reset per-attempt state.
		t.setResult(nil, "", false)
		t.total.Store(0)
		t.downloaded.Store(0)
		t.reportProgress()

		err := t.attempt(ctx)
		if err == nil {
			t.finish(nil)
			return
		}

		if !t.opts.Policy.Retry(i) || t.Status() != Running || ctx.Err() != nil {
			t.finish(err)
			return
		}

		t.pause(ctx, t.opts.Policy.Delay(i+1))
	}

	// The loop only falls through when Stop arrived between attempts.
	if t.Status() == Stopping {
		t.finish(ErrInterrupted)
		return
	}
	t.finish(ErrFailed)
}

// attempt runs one full request/stream cycle.
func (t *Task) attempt(ctx context.Context) error {
	req, err := t.handler.BuildRequest()
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := t.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := t.handler.BeforeStart(); err != nil {
		return fmt.Errorf("before start: %w", err)
	}

	if resp.ContentLength > 0 {
		t.total.Store(resp.ContentLength)
	}
	t.setResult(nil, resp.Encoding, resp.Chunked)
	t.reportProgress()

	buf := make([]byte, bufferSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if err := t.handler.ProcessChunk(buf[:n]); err != nil {
				return fmt.Errorf("process chunk: %w", err)
			}
			t.addDownloaded(int64(n))
			t.reportProgress()
			if t.opts.RateLimit != nil {
				time.Sleep(t.opts.RateLimit.Take(int64(n)))
			}
			if t.Status() != Running {
				return ErrInterrupted
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}

	if err := t.handler.AfterSuccess(); err != nil {
		return fmt.Errorf("after success: %w", err)
	}
	return nil
}

// finish records the terminal result and fans out the finish notification.
func (t *Task) finish(err error) {
	if err != nil {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
	}
	t.status.Store(int32(Finished))
	t.reportFinish()
}

// pause waits before the next retry, waking early on context cancellation.
func (t *Task) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// reportProgress fans out to monitors, throttled to the report interval.
func (t *Task) reportProgress() {
	if !t.throttle.Allow() {
		return
	}
	for _, m := range t.monitors {
		m.OnProgress(t)
	}
}

// reportFinish fans out unconditionally, exactly once, only when Finished.
func (t *Task) reportFinish() {
	if t.Status() != Finished {
		return
	}
	for _, m := range t.monitors {
		m.OnFinish(t)
	}
}

// addDownloaded advances the downloaded counter, keeping the total clamped
// to at least the downloaded count.
func (t *Task) addDownloaded(n int64) {
	d := t.downloaded.Add(n)
	if t.total.Load() < d {
		t.total.Store(d)
	}
}

func (t *Task) setResult(err error, encoding string, chunked bool) {
	t.mu.Lock()
	t.err = err
	t.encoding = encoding
	t.chunked = chunked
	t.mu.Unlock()
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// URL returns the resource the task is bound to.
func (t *Task) URL() string { return t.url }

// Status returns the current lifecycle state.
func (t *Task) Status() Status { return Status(t.status.Load()) }

// TotalBytes returns the expected byte count, zero when unknown.
func (t *Task) TotalBytes() int64 { return t.total.Load() }

// DownloadedBytes returns the bytes streamed so far in the current attempt.
func (t *Task) DownloadedBytes() int64 { return t.downloaded.Load() }

// Progress returns the completion percentage, never raising a division
// fault on an unknown total.
func (t *Task) Progress() float64 {
	return progress.Percent(t.downloaded.Load(), t.total.Load())
}

// Err returns the last captured failure. It is non-nil only when the task
// finished and the final attempt failed.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Encoding returns the content encoding of the most recent response, empty
// when the default encoding applies.
func (t *Task) Encoding() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoding
}

// Chunked reports whether the most recent response arrived chunked.
func (t *Task) Chunked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.chunked
}

// IsRunning reports whether the worker is still alive.
func (t *Task) IsRunning() bool {
	s := t.Status()
	return s == Running || s == Stopping
}

// IsFinished reports whether the task reached its terminal state.
func (t *Task) IsFinished() bool { return t.Status() == Finished }

// IsSuccess reports whether the task finished without error.
func (t *Task) IsSuccess() bool { return t.IsFinished() && t.Err() == nil }

// IsFailed reports whether the task finished with an error.
func (t *Task) IsFailed() bool { return t.IsFinished() && t.Err() != nil }

// Done returns a channel closed when the task finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finishes.
func (t *Task) Wait() { <-t.done }

func (t *Task) String() string {
	status := t.Status().String()
	if t.IsFailed() {
		status = fmt.Sprintf("failed: %v", t.Err())
	} else if t.IsSuccess() {
		status = "success"
	}
	return fmt.Sprintf("%s : %.2f%% [%s of %s] ~ %s",
		t.url,
		t.Progress(),
		progress.FormatBytes(t.DownloadedBytes()),
		progress.FormatBytes(t.TotalBytes()),
		status,
	)
}
