package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	arenahttp "github.com/amritoo/uva-arena/internal/http"
	"github.com/amritoo/uva-arena/internal/progress"
	"github.com/amritoo/uva-arena/internal/testutils"
)

// memHandler collects the download into a buffer and records hook calls.
type memHandler struct {
	url string
	buf bytes.Buffer

	beforeCalls  int
	successCalls int

	// failChunks makes ProcessChunk fail on the first failChunks attempts.
	failChunks int
	chunkCalls int
}

func (h *memHandler) BuildRequest() (*http.Request, error) {
	return http.NewRequest(http.MethodGet, h.url, nil)
}

func (h *memHandler) BeforeStart() error {
	h.beforeCalls++
	h.buf.Reset()
	return nil
}

func (h *memHandler) ProcessChunk(p []byte) error {
	h.chunkCalls++
	if h.beforeCalls <= h.failChunks {
		return errors.New("chunk rejected")
	}
	h.buf.Write(p)
	return nil
}

func (h *memHandler) AfterSuccess() error {
	h.successCalls++
	return nil
}

// recorder counts monitor callbacks and flags ordering violations.
type recorder struct {
	progressCalls    atomic.Int32
	finishCalls      atomic.Int32
	progressAfterFin atomic.Int32
	lastDownloaded   atomic.Int64
}

func (r *recorder) OnProgress(t *Task) {
	if r.finishCalls.Load() > 0 {
		r.progressAfterFin.Add(1)
	}
	r.progressCalls.Add(1)
	r.lastDownloaded.Store(t.DownloadedBytes())
}

func (r *recorder) OnFinish(t *Task) {
	r.finishCalls.Add(1)
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func unthrottled() time.Duration { return time.Nanosecond }

func TestTaskSuccess(t *testing.T) {
	data := testData(10 * 1024)
	server, requests := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	rec := &recorder{}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		ReportInterval: unthrottled(),
	})
	task.AddMonitor(rec)

	if task.Status() != Waiting {
		t.Fatalf("expected Waiting before start, got %v", task.Status())
	}

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got error %v", task.Err())
	}
	if task.IsFailed() {
		t.Error("IsFailed true on successful task")
	}
	if requests.Load() != 1 {
		t.Errorf("expected 1 request, got %d", requests.Load())
	}
	if task.DownloadedBytes() != int64(len(data)) {
		t.Errorf("downloaded %d bytes, want %d", task.DownloadedBytes(), len(data))
	}
	if task.TotalBytes() != task.DownloadedBytes() {
		t.Errorf("downloaded %d != total %d on success", task.DownloadedBytes(), task.TotalBytes())
	}
	if !bytes.Equal(h.buf.Bytes(), data) {
		t.Error("handler received wrong bytes")
	}
	if h.beforeCalls != 1 || h.successCalls != 1 {
		t.Errorf("hook calls: before=%d success=%d, want 1/1", h.beforeCalls, h.successCalls)
	}
	if rec.finishCalls.Load() != 1 {
		t.Errorf("expected exactly one finish notification, got %d", rec.finishCalls.Load())
	}
	if rec.progressAfterFin.Load() != 0 {
		t.Errorf("%d progress notifications after finish", rec.progressAfterFin.Load())
	}
}

func TestTaskStartTwice(t *testing.T) {
	data := testData(1024)
	server, requests := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{})

	task.Start(context.Background())
	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got %v", task.Err())
	}
	if requests.Load() != 1 {
		t.Errorf("double start issued %d requests, want 1", requests.Load())
	}
}

func TestTaskRetriesExhausted(t *testing.T) {
	server, requests := testutils.FlakyServer(1000, nil)
	defer server.Close()

	const retries = 2

	h := &memHandler{url: server.URL}
	rec := &recorder{}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy:         Policy{Attempts: retries},
		ReportInterval: unthrottled(),
	})
	task.AddMonitor(rec)

	task.Start(context.Background())
	task.Wait()

	if !task.IsFailed() {
		t.Fatal("expected failure after exhausted retries")
	}
	if task.IsSuccess() {
		t.Error("IsSuccess true on failed task")
	}
	if !errors.Is(task.Err(), arenahttp.ErrServerError) {
		t.Errorf("expected server error, got %v", task.Err())
	}
	if requests.Load() != retries+1 {
		t.Errorf("expected %d attempts, got %d", retries+1, requests.Load())
	}
	if rec.finishCalls.Load() != 1 {
		t.Errorf("expected exactly one finish notification, got %d", rec.finishCalls.Load())
	}
}

func TestTaskRecoversAfterFailures(t *testing.T) {
	data := testData(4 * 1024)
	server, requests := testutils.FlakyServer(2, data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	rec := &recorder{}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy:         Policy{Attempts: 2},
		ReportInterval: unthrottled(),
	})
	task.AddMonitor(rec)

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success on 3rd attempt, got %v", task.Err())
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", requests.Load())
	}
	if task.DownloadedBytes() != task.TotalBytes() || task.TotalBytes() != int64(len(data)) {
		t.Errorf("counters: downloaded=%d total=%d, want both %d",
			task.DownloadedBytes(), task.TotalBytes(), len(data))
	}
	if rec.finishCalls.Load() != 1 {
		t.Errorf("expected exactly one finish notification, got %d", rec.finishCalls.Load())
	}
	if !bytes.Equal(h.buf.Bytes(), data) {
		t.Error("handler received wrong bytes after recovery")
	}
}

func TestTaskHookFailureRetried(t *testing.T) {
	data := testData(2 * 1024)
	server, requests := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL, failChunks: 1}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy: Policy{Attempts: 1},
	})

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected hook failure to be retried, got %v", task.Err())
	}
	if requests.Load() != 2 {
		t.Errorf("expected 2 attempts, got %d", requests.Load())
	}
}

func TestTaskStop(t *testing.T) {
	server := testutils.SlowServer(testData(512), 1000, 10*time.Millisecond)
	defer server.Close()

	h := &memHandler{url: server.URL}
	rec := &recorder{}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy:         Policy{Attempts: 5},
		ReportInterval: unthrottled(),
	})
	task.AddMonitor(rec)

	task.Start(context.Background())

	// Let a few chunks through before stopping.
	deadline := time.Now().Add(5 * time.Second)
	for rec.progressCalls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	task.Stop()
	task.Wait()

	if !task.IsFailed() {
		t.Fatal("expected stopped task to finish failed")
	}
	if !errors.Is(task.Err(), ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", task.Err())
	}
	if rec.finishCalls.Load() != 1 {
		t.Errorf("expected exactly one finish notification, got %d", rec.finishCalls.Load())
	}
	if rec.progressAfterFin.Load() != 0 {
		t.Errorf("%d progress notifications after finish", rec.progressAfterFin.Load())
	}
	if task.Chunked() != true {
		t.Error("expected chunked flag from streaming response")
	}
}

func TestTaskStopBeforeFinishNoRetry(t *testing.T) {
	// An interrupted attempt must not consume the retry budget with more
	// requests.
	server := testutils.SlowServer(testData(256), 1000, 10*time.Millisecond)
	defer server.Close()

	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy: Policy{Attempts: 10},
	})

	task.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	task.Stop()
	task.Wait()

	if !errors.Is(task.Err(), ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", task.Err())
	}
}

func TestTaskStopWhenNotRunning(t *testing.T) {
	data := testData(128)
	server, _ := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{})

	// Stop before start is a no-op; the task must still run to success.
	task.Stop()
	if task.Status() != Waiting {
		t.Fatalf("stop before start changed status to %v", task.Status())
	}

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got %v", task.Err())
	}

	// Stop after finish is also a no-op.
	task.Stop()
	if task.Status() != Finished {
		t.Errorf("stop after finish changed status to %v", task.Status())
	}
}

func TestTaskCountersResetPerAttempt(t *testing.T) {
	data := testData(2 * 1024)
	server, _ := testutils.FlakyServer(1, data)
	defer server.Close()

	var resets atomic.Int32
	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		Policy:         Policy{Attempts: 1},
		ReportInterval: unthrottled(),
	})
	task.AddMonitor(MonitorFunc{
		Progress: func(task *Task) {
			if task.DownloadedBytes() == 0 {
				resets.Add(1)
			}
		},
	})

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got %v", task.Err())
	}
	// One zero-counter report at the head of each of the two attempts.
	if resets.Load() < 2 {
		t.Errorf("expected a zeroed progress report per attempt, got %d", resets.Load())
	}
}

func TestTaskProgressValue(t *testing.T) {
	data := testData(1024)
	server, _ := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{})

	if p := task.Progress(); p != progress.Epsilon {
		t.Errorf("expected Epsilon before start, got %v", p)
	}

	task.Start(context.Background())
	task.Wait()

	p := task.Progress()
	if p < 100 || p > 100+2*progress.Epsilon {
		t.Errorf("expected ~100%% after success, got %v", p)
	}
}

func TestTaskThrottledReports(t *testing.T) {
	data := testData(64 * 1024) // many 2KB chunks
	server, _ := testutils.ByteServer(data)
	defer server.Close()

	h := &memHandler{url: server.URL}
	rec := &recorder{}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{
		ReportInterval: time.Hour,
	})
	task.AddMonitor(rec)

	task.Start(context.Background())
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got %v", task.Err())
	}
	// Only the very first report passes an hour-long throttle window, but
	// the finish notification must still arrive.
	if got := rec.progressCalls.Load(); got != 1 {
		t.Errorf("expected 1 progress notification through throttle, got %d", got)
	}
	if rec.finishCalls.Load() != 1 {
		t.Errorf("finish notification dropped by throttle: got %d", rec.finishCalls.Load())
	}
}

func TestTaskMonitorOrder(t *testing.T) {
	data := testData(128)
	server, _ := testutils.ByteServer(data)
	defer server.Close()

	var order []int
	h := &memHandler{url: server.URL}
	task := New(arenahttp.NewClient(arenahttp.DefaultOptions()), server.URL, h, Options{})
	for i := 0; i < 3; i++ {
		i := i
		task.AddMonitor(MonitorFunc{
			Finish: func(*Task) { order = append(order, i) },
		})
	}

	task.Start(context.Background())
	task.Wait()

	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("monitors ran out of registration order: %v", order)
	}
}
