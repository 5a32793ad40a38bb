package cache

import (
	"bytes"
	"context"
	"testing"

	"github.com/amritoo/uva-arena/internal/fetch"
	arenahttp "github.com/amritoo/uva-arena/internal/http"
	"github.com/amritoo/uva-arena/internal/testutils"
)

func TestPayloadDownload(t *testing.T) {
	data := []byte(samplePayload)
	server, _ := testutils.ByteServer(data)
	defer server.Close()

	bucket := newBucket(t)
	ctx := context.Background()

	task := NewPayloadDownload(ctx, arenahttp.NewClient(arenahttp.DefaultOptions()),
		bucket, "problems.json", server.URL, fetch.Options{})
	task.Start(ctx)
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success, got %v", task.Err())
	}

	got, err := bucket.ReadAll(ctx, "problems.json")
	if err != nil {
		t.Fatalf("read cached object: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("cached object mismatch: got %d bytes, want %d", len(got), len(data))
	}

	// The refreshed cache loads cleanly.
	loader := NewLoader(bucket, DefaultKeys())
	if err := loader.Load(ctx); err != nil {
		t.Fatalf("Load after download: %v", err)
	}
	if len(loader.Snapshot().Problems) != 5 {
		t.Errorf("expected 5 problems, got %d", len(loader.Snapshot().Problems))
	}
}

func TestPayloadDownloadRetries(t *testing.T) {
	data := []byte(samplePayload)
	server, requests := testutils.FlakyServer(2, data)
	defer server.Close()

	bucket := newBucket(t)
	ctx := context.Background()

	task := NewPayloadDownload(ctx, arenahttp.NewClient(arenahttp.DefaultOptions()),
		bucket, "problems.json", server.URL, fetch.Options{
			Policy: fetch.Policy{Attempts: 2},
		})
	task.Start(ctx)
	task.Wait()

	if !task.IsSuccess() {
		t.Fatalf("expected success on 3rd attempt, got %v", task.Err())
	}
	if requests.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", requests.Load())
	}

	got, err := bucket.ReadAll(ctx, "problems.json")
	if err != nil {
		t.Fatalf("read cached object: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("cached object corrupted by retried attempts")
	}
}

func TestPayloadDownloadFailureLeavesNoObject(t *testing.T) {
	server, _ := testutils.FlakyServer(1000, nil)
	defer server.Close()

	bucket := newBucket(t)
	ctx := context.Background()

	task := NewPayloadDownload(ctx, arenahttp.NewClient(arenahttp.DefaultOptions()),
		bucket, "problems.json", server.URL, fetch.Options{})
	task.Start(ctx)
	task.Wait()

	if !task.IsFailed() {
		t.Fatal("expected failure")
	}

	exists, err := bucket.Exists(ctx, "problems.json")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Error("failed download committed a cache object")
	}
}
