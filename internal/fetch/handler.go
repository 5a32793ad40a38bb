package fetch

import (
	"fmt"
	"net/http"
	"os"
)

// Handler supplies the per-download hooks a task drives. A failure in any
// hook consumes a retry slot exactly like a transport failure.
type Handler interface {
	// BuildRequest constructs the request for one attempt.
	BuildRequest() (*http.Request, error)

	// BeforeStart runs once per attempt, after the response headers arrive
	// and before the first chunk. Consumers open their output here.
	BeforeStart() error

	// ProcessChunk consumes one chunk of the body stream. The slice is
	// reused between calls and must not be retained.
	ProcessChunk(p []byte) error

	// AfterSuccess runs after the body has been fully streamed.
	AfterSuccess() error
}

// FileHandler streams a download into a local file. Every attempt truncates
// and rewrites the file, so a retried download never leaves a partial
// attempt's bytes behind a completed one.
type FileHandler struct {
	URL  string
	Path string

	f *os.File
}

func (h *FileHandler) BuildRequest() (*http.Request, error) {
	return http.NewRequest(http.MethodGet, h.URL, nil)
}

func (h *FileHandler) BeforeStart() error {
	if h.f != nil {
		h.f.Close()
	}
	f, err := os.Create(h.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", h.Path, err)
	}
	h.f = f
	return nil
}

func (h *FileHandler) ProcessChunk(p []byte) error {
	_, err := h.f.Write(p)
	return err
}

func (h *FileHandler) AfterSuccess() error {
	f := h.f
	h.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close releases the output file after a failed or stopped task. It is a
// no-op after AfterSuccess.
func (h *FileHandler) Close() error {
	if h.f == nil {
		return nil
	}
	f := h.f
	h.f = nil
	return f.Close()
}
