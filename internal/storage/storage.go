package storage

import (
	"context"
	"io"
	"os"
)

// MediaFile is an opened media binary. Callers must close it.
type MediaFile struct {
	file *os.File
	size int64
}

func NewMediaFile(f *os.File, size int64) *MediaFile {
	return &MediaFile{file: f, size: size}
}

func (m *MediaFile) Read(p []byte) (int, error) { return m.file.Read(p) }
func (m *MediaFile) Close() error               { return m.file.Close() }
func (m *MediaFile) Size() int64                { return m.size }

// MediaStorage is the interface for media blob backends. Both the
// local-disk and S3-compatible stores implement it. Blobs are content
// addressed: storing the same bytes twice yields the same key.
type MediaStorage interface {
	// PutStream writes data from r, returning the content digest, byte
	// count, and a backend-specific key for later retrieval.
	PutStream(ctx context.Context, r io.Reader, contentType string) (digest string, size int64, key string, err error)

	// Open retrieves a previously stored blob by its key.
	Open(ctx context.Context, key string) (*MediaFile, error)
}
