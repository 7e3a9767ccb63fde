package blobsvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

// NewBlobStore picks the store named by conf.Blob.Driver.
func NewBlobStore(ctx context.Context, conf *core.Config) (core.BlobStore, error) {
	switch conf.Blob.Driver {
	case "s3":
		return NewS3Store(ctx, conf.Blob)
	case "memory", "":
		return NewMemoryStore(conf.Blob.PublicBaseURL), nil
	default:
		return nil, errors.Errorf("unknown blob driver %q", conf.Blob.Driver)
	}
}
