package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalMediaStore stores media binaries by sha256 digest on local disk.
type LocalMediaStore struct {
	root string
}

var _ MediaStorage = (*LocalMediaStore)(nil)

func NewLocalMediaStore(root string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalMediaStore{root: root}, nil
}

// PutStream spools to a temp file while hashing, then moves the blob
// into its digest-addressed location. The content type is carried by
// the database record, not the filesystem.
func (s *LocalMediaStore) PutStream(_ context.Context, r io.Reader, _ string) (digest string, size int64, key string, err error) {
	tmpDir := filepath.Join(s.root, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("create tmp dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(tmpDir, "media-*")
	if err != nil {
		return "", 0, "", fmt.Errorf("create tmp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmpFile, h), r)
	if err != nil {
		return "", 0, "", fmt.Errorf("write media blob: %w", err)
	}
	sum := h.Sum(nil)
	digest = "sha256:" + hex.EncodeToString(sum)
	size = n

	hexDigest := hex.EncodeToString(sum)
	key = filepath.Join("sha256", hexDigest[:2], hexDigest)
	absPath := filepath.Join(s.root, key)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", 0, "", fmt.Errorf("create blob dir: %w", err)
	}
	if _, statErr := os.Stat(absPath); statErr == nil {
		_ = os.Remove(tmpName)
		return digest, size, key, nil
	}

	if err := tmpFile.Close(); err != nil {
		return "", 0, "", fmt.Errorf("close tmp file: %w", err)
	}

	if err := os.Rename(tmpName, absPath); err != nil {
		return "", 0, "", fmt.Errorf("move media blob: %w", err)
	}
	return digest, size, key, nil
}

func (s *LocalMediaStore) Open(_ context.Context, key string) (*MediaFile, error) {
	absPath := filepath.Join(s.root, key)
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return NewMediaFile(f, info.Size()), nil
}
