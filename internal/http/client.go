package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrServerError  = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 10
	MaxIdleConnsPerHost int

	// Timeout bounds an entire request including the body read. Zero means
	// no client-side timeout; long downloads are bounded by cooperative
	// stop instead.
	Timeout time.Duration
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 10,
	}
}

// Response exposes the observables a download worker needs from a streamed
// HTTP response.
type Response struct {
	// Body is the response stream. The caller owns it and must close it.
	Body io.ReadCloser

	// ContentLength is the advertised body length. Negative when unknown;
	// callers clamp to zero.
	ContentLength int64

	// Encoding is the Content-Encoding of the body, empty when the default
	// encoding applies.
	Encoding string

	// Chunked reports whether the body arrived chunked-transfer encoded.
	Chunked bool
}

// Client executes download requests.
type Client struct {
	client *http.Client
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	if opts.MaxIdleConnsPerHost == 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true, // byte counters must match the wire
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
	}
}

// Do executes a single request and returns the streamable response. It
// performs exactly one attempt; the body is closed only on error.
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	if err := checkStatusCode(resp.StatusCode, resp.Status); err != nil {
		resp.Body.Close()
		return nil, err
	}

	return &Response{
		Body:          resp.Body,
		ContentLength: resp.ContentLength,
		Encoding:      resp.Header.Get("Content-Encoding"),
		Chunked:       isChunked(resp.TransferEncoding),
	}, nil
}

// checkStatusCode returns an appropriate error for non-success status codes.
func checkStatusCode(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, status)
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return fmt.Errorf("unexpected status code: %d", code)
	}
}

func isChunked(transferEncoding []string) bool {
	for _, te := range transferEncoding {
		if te == "chunked" {
			return true
		}
	}
	return false
}
