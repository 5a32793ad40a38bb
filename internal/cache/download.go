package cache

import (
	"context"
	"fmt"
	"net/http"

	"gocloud.dev/blob"

	"github.com/amritoo/uva-arena/internal/fetch"
	arenahttp "github.com/amritoo/uva-arena/internal/http"
)

// payloadHandler streams a download into a bucket object. Each attempt
// writes through a fresh writer and the previous attempt's partial write is
// aborted, so the object is only ever replaced by a complete body.
type payloadHandler struct {
	ctx    context.Context
	bucket *blob.Bucket
	key    string
	url    string

	w      *blob.Writer
	cancel context.CancelFunc
}

func (h *payloadHandler) BuildRequest() (*http.Request, error) {
	return http.NewRequest(http.MethodGet, h.url, nil)
}

func (h *payloadHandler) BeforeStart() error {
	h.abort()

	wctx, cancel := context.WithCancel(h.ctx)
	w, err := h.bucket.NewWriter(wctx, h.key, nil)
	if err != nil {
		cancel()
		return fmt.Errorf("open cache writer: %w", err)
	}
	h.w, h.cancel = w, cancel
	return nil
}

func (h *payloadHandler) ProcessChunk(p []byte) error {
	_, err := h.w.Write(p)
	return err
}

func (h *payloadHandler) AfterSuccess() error {
	w, cancel := h.w, h.cancel
	h.w, h.cancel = nil, nil
	if err := w.Close(); err != nil {
		cancel()
		return fmt.Errorf("commit cache object: %w", err)
	}
	cancel()
	return nil
}

// abort discards the previous attempt's partial write, if any.
func (h *payloadHandler) abort() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	if h.w != nil {
		h.w.Close() // returns the cancellation error; the write is gone
		h.w = nil
	}
}

// NewPayloadDownload builds a download task that fetches url into the
// bucket object under key. The caller starts and monitors the task and
// decides when to reload the cache afterwards.
func NewPayloadDownload(ctx context.Context, client *arenahttp.Client, bucket *blob.Bucket, key, url string, opts fetch.Options) *fetch.Task {
	h := &payloadHandler{ctx: ctx, bucket: bucket, key: key, url: url}
	task := fetch.New(client, url, h, opts)
	task.AddMonitor(fetch.MonitorFunc{
		Finish: func(t *fetch.Task) {
			if t.IsFailed() {
				h.abort()
			}
		},
	})
	return task
}
