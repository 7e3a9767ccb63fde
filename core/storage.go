package core

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrCacheMiss  = errors.New("cache miss")
	ErrBlobExists = errors.New("blob already exists")
)

type (
	// BlobInfo describes a stored object.
	BlobInfo struct {
		Key          string
		Size         int64
		ContentType  string
		LastModified time.Time
	}

	// BlobStore persists uploaded files (child photos) and hands out their public URL.
	BlobStore interface {
		Put(ctx context.Context, key string, r io.Reader, contentType string) (BlobInfo, error)
		Get(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
		List(ctx context.Context, prefix string) ([]BlobInfo, error)
		URL(ctx context.Context, key string) (string, error)
	}

	// Cache is a small string KV store with expiry.
	Cache interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
	}
)

// InstitutionBlobPrefix is the key prefix holding every file of an institution.
// Deleting an institution removes everything under it.
func InstitutionBlobPrefix(institutionID string) string {
	return "institutions/" + institutionID + "/"
}
