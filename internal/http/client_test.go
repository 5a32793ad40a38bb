package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
)

func newRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func TestDoMetadata(t *testing.T) {
	data := []byte("payload-bytes")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(data)
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Do(context.Background(), newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != int64(len(data)) {
		t.Errorf("expected content length %d, got %d", len(data), resp.ContentLength)
	}
	if resp.Encoding != "gzip" {
		t.Errorf("expected encoding gzip, got %q", resp.Encoding)
	}
	if resp.Chunked {
		t.Error("expected non-chunked response")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != string(data) {
		t.Errorf("body mismatch: got %q", body)
	}
}

func TestDoChunked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Content-Length forces chunked transfer encoding.
		flusher := w.(http.Flusher)
		w.Write([]byte("first"))
		flusher.Flush()
		w.Write([]byte("second"))
	}))
	defer server.Close()

	client := NewClient(DefaultOptions())
	resp, err := client.Do(context.Background(), newRequest(t, server.URL))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if !resp.Chunked {
		t.Error("expected chunked response")
	}
	if resp.ContentLength >= 0 {
		t.Errorf("expected unknown content length, got %d", resp.ContentLength)
	}
}

func TestDoStatusErrors(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusInternalServerError, ErrServerError},
		{http.StatusServiceUnavailable, ErrServerError},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.code)
		}))

		client := NewClient(DefaultOptions())
		_, err := client.Do(context.Background(), newRequest(t, server.URL))
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.code, tt.want, err)
		}
		server.Close()
	}
}

func TestDoContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(DefaultOptions())
	if _, err := client.Do(ctx, newRequest(t, server.URL)); err == nil {
		t.Error("expected error for cancelled context")
	}
}
