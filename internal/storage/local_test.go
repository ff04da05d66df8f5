package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalMediaStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewLocalMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalMediaStore() error = %v", err)
	}
	ctx := context.Background()

	digest, size, key, err := store.PutStream(ctx, strings.NewReader("image bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("PutStream() error = %v", err)
	}
	if size != int64(len("image bytes")) {
		t.Errorf("size = %d, want %d", size, len("image bytes"))
	}
	if !strings.HasPrefix(digest, "sha256:") {
		t.Errorf("digest = %q, want sha256 prefix", digest)
	}

	f, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("blob = %q, want original bytes", data)
	}
}

func TestLocalMediaStoreContentAddressed(t *testing.T) {
	t.Parallel()

	store, err := NewLocalMediaStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalMediaStore() error = %v", err)
	}
	ctx := context.Background()

	d1, _, k1, err := store.PutStream(ctx, strings.NewReader("same"), "image/png")
	if err != nil {
		t.Fatalf("first PutStream() error = %v", err)
	}
	d2, _, k2, err := store.PutStream(ctx, strings.NewReader("same"), "image/png")
	if err != nil {
		t.Fatalf("second PutStream() error = %v", err)
	}
	if d1 != d2 || k1 != k2 {
		t.Fatalf("same bytes gave (%q,%q) then (%q,%q), want identical", d1, k1, d2, k2)
	}
}
