package storage

import (
	"context"
	"errors"
)

// Uploader is an interface for storing generated images
type Uploader interface {
	// Upload stores data under the given key and returns the resulting URL
	Upload(ctx context.Context, key string, data []byte) (string, error)

	// Check verifies that the storage backend is reachable
	Check(ctx context.Context) error
}

// Errors
var (
	ErrUpload = errors.New("upload failed")
)
