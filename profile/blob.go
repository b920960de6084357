package profile

import (
	"context"
	"io"
)

// BlobStore is the opaque upload capability for avatar images. The
// upload must complete before the profile mutation is sent; Update
// never uploads anything itself, it only records the resulting URL.
type BlobStore interface {
	// Upload stores the content and returns its public URL.
	Upload(ctx context.Context, name string, content io.Reader) (string, error)
}

// Blob is an avatar image pending upload.
type Blob struct {
	Name    string
	Content io.Reader
}
