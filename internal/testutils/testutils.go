// Package testutils provides shared fake HTTP servers for download tests.
package testutils

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"time"
)

// ByteServer serves the same payload for every request, with an accurate
// Content-Length, and counts requests.
func ByteServer(data []byte) (*httptest.Server, *atomic.Int32) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	return server, &requests
}

// FlakyServer responds 500 to the first failures requests, then serves the
// payload. The counter records every request seen.
func FlakyServer(failures int, data []byte) (*httptest.Server, *atomic.Int32) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if int(requests.Add(1)) <= failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	return server, &requests
}

// SlowServer streams count copies of chunk, flushing and pausing between
// writes, so a test can stop a download mid-stream. The response carries no
// Content-Length and therefore arrives chunked.
func SlowServer(chunk []byte, count int, interval time.Duration) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < count; i++ {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(interval)
		}
	}))
}
