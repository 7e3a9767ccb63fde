package blobsvc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

// presignExpiry applies when no public base URL is configured.
const presignExpiry = 7 * 24 * time.Hour

// S3Store keeps blobs in a single bucket of an S3-compatible backend (AWS S3 or MinIO).
type S3Store struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucket     string
	publicBase string
}

var _ core.BlobStore = (*S3Store)(nil) // interface compliance check

// NewS3Store loads credentials from the default AWS chain (env, shared config, instance role).
func NewS3Store(ctx context.Context, conf core.BlobConfig, optFns ...func(*s3.Options)) (*S3Store, error) {
	if conf.Bucket == "" {
		return nil, pkgerrors.New("s3 bucket required")
	}
	region := conf.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading aws config")
	}

	opts := append([]func(*s3.Options){func(o *s3.Options) {
		o.UsePathStyle = conf.PathStyle
		if conf.Endpoint != "" {
			o.BaseEndpoint = aws.String(conf.Endpoint)
		}
	}}, optFns...)
	client := s3.NewFromConfig(awsCfg, opts...)

	return &S3Store{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucket:     conf.Bucket,
		publicBase: conf.PublicBaseURL,
	}, nil
}

// Put is create-only: it fails with core.ErrBlobExists when key is taken.
func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, contentType string) (core.BlobInfo, error) {
	if _, err := s.head(ctx, key); err == nil {
		return core.BlobInfo{}, core.ErrBlobExists
	} else if !isNotFound(err) {
		return core.BlobInfo{}, pkgerrors.Wrapf(err, "checking blob %s", key)
	}

	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &key, Body: r}
	if contentType != "" {
		input.ContentType = &contentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.BlobInfo{}, pkgerrors.Wrapf(err, "uploading blob %s", key)
	}
	return s.head(ctx, key)
}

func (s *S3Store) head(ctx context.Context, key string) (core.BlobInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.BlobInfo{}, err
	}
	return core.BlobInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified).UTC(),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "downloading blob %s", key)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key})
	return pkgerrors.Wrapf(err, "deleting blob %s", key)
}

// List returns every blob under prefix, sorted by key.
func (s *S3Store) List(ctx context.Context, prefix string) ([]core.BlobInfo, error) {
	var infos []core.BlobInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "listing blobs under %s", prefix)
		}
		for _, obj := range page.Contents {
			infos = append(infos, core.BlobInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// URL returns the public URL of key, or a presigned GET URL when no public base is configured.
func (s *S3Store) URL(ctx context.Context, key string) (string, error) {
	if s.publicBase != "" {
		return publicURL(s.publicBase, key), nil
	}
	out, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key},
		func(po *s3.PresignOptions) { po.Expires = presignExpiry })
	if err != nil {
		return "", pkgerrors.Wrapf(err, "presigning blob %s", key)
	}
	return out.URL, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}
	var re *awshttp.ResponseError
	return errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound
}

func publicURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(parts, "/")
}
