package blob

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"examist/internal/config"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	mem, err := Open(ctx, config.Blob{Driver: "memory"})
	if err != nil || mem.Driver() != DriverMemory {
		t.Fatalf("memory driver: %v", err)
	}
	s3, err := Open(ctx, config.Blob{Driver: "s3", S3Bucket: "papers", S3Endpoint: "http://localhost:9000", S3PathStyle: true})
	if err != nil || s3.Driver() != DriverS3 {
		t.Fatalf("s3 driver: %v", err)
	}
	if _, err := Open(ctx, config.Blob{Driver: "s3"}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
	if _, err := Open(ctx, config.Blob{Driver: "ftp"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestPaperKey(t *testing.T) {
	if got := PaperKey("ct101", 2014, "Summer"); got != "papers/CT101/2014/summer.pdf" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestBackendsShareErrors(t *testing.T) {
	ctx := context.Background()
	for _, store := range []Store{NewMemory(), NewMockS3()} {
		key := PaperKey("CT101", 2014, "summer")
		if _, err := store.Head(ctx, key); !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("pdf")), PutOptions{ContentType: "application/pdf"}); err != nil {
			t.Fatalf("%s: put: %v", store.Driver(), err)
		}
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("pdf")), PutOptions{}); !errors.Is(err, ErrExists) {
			t.Fatalf("%s: expected exists, got %v", store.Driver(), err)
		}
	}
}
