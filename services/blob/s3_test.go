package blobsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/acolher/core"
)

type mockObject struct {
	body        []byte
	contentType string
}

// mockS3 is a path-style fake of the few S3 calls the store makes.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string]mockObject
}

func response(status int, body []byte, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: header}
}

func (m *mockS3) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00Z</LastModified></Contents>",
				k, len(m.objects[k].body))
		}
		b.WriteString("</ListBucketResult>")
		return response(http.StatusOK, []byte(b.String()), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	switch req.Method {
	case http.MethodHead:
		obj, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		return response(http.StatusOK, nil, http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
		}), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.objects[key] = mockObject{body: body, contentType: req.Header.Get("Content-Type")}
		return response(http.StatusOK, nil, http.Header{"ETag": {`"etag"`}}), nil
	case http.MethodGet:
		obj, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, nil, nil), nil
		}
		return response(http.StatusOK, obj.body, http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
		}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return response(http.StatusNoContent, nil, nil), nil
	}
	return response(http.StatusNotImplemented, nil, nil), nil
}

// decodeChunked unwraps a single-chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newMockS3Store(t *testing.T, publicBase string) (*S3Store, *mockS3) {
	t.Helper()
	rt := &mockS3{objects: make(map[string]mockObject)}
	store, err := NewS3Store(context.Background(), core.BlobConfig{
		Bucket:        "acolher-test",
		Region:        "us-east-1",
		Endpoint:      "https://mock.s3.local",
		PathStyle:     true,
		PublicBaseURL: publicBase,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.Credentials = credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})
	require.NoError(t, err)
	return store, rt
}

func TestS3Store(t *testing.T) {
	store, rt := newMockS3Store(t, "https://files.test")
	ctx := context.Background()
	key := "institutions/i1/children/c1/photos/a.png"

	info, err := store.Put(ctx, key, bytes.NewReader([]byte("png-bytes")), "image/png")
	require.NoError(t, err)
	assert.Equal(t, key, info.Key)
	assert.Equal(t, int64(len("png-bytes")), info.Size)
	assert.Equal(t, "image/png", info.ContentType)
	assert.Len(t, rt.objects, 1)

	_, err = store.Put(ctx, key, bytes.NewReader([]byte("other")), "image/png")
	assert.Equal(t, core.ErrBlobExists, err)

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "png-bytes", string(data))

	url, err := store.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/"+key, url)

	_, err = store.Put(ctx, "institutions/i2/x.png", bytes.NewReader([]byte("x")), "image/png")
	require.NoError(t, err)
	list, err := store.List(ctx, "institutions/i1/")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, key, list[0].Key)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.Error(t, err)
}

func TestS3Store_PresignedURL(t *testing.T) {
	store, _ := newMockS3Store(t, "")
	url, err := store.URL(context.Background(), "institutions/i1/a.png")
	require.NoError(t, err)
	assert.Contains(t, url, "institutions/i1/a.png")
	assert.Contains(t, url, "X-Amz-Signature")
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), core.BlobConfig{})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("https://files.test")
	ctx := context.Background()

	info, err := store.Put(ctx, "institutions/i1/a b.png", strings.NewReader("\x89PNG\r\n\x1a\n"), "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", info.ContentType)

	_, err = store.Put(ctx, "institutions/i1/a b.png", strings.NewReader("again"), "")
	assert.Equal(t, core.ErrBlobExists, err)

	url, _ := store.URL(ctx, "institutions/i1/a b.png")
	assert.Equal(t, "https://files.test/institutions/i1/a%20b.png", url)

	list, _ := store.List(ctx, "institutions/i1/")
	assert.Len(t, list, 1)
	require.NoError(t, store.Delete(ctx, "institutions/i1/a b.png"))
	assert.Equal(t, 0, store.Len())
}

func TestNewBlobStore(t *testing.T) {
	conf := core.NewTestConfig()
	store, err := NewBlobStore(context.Background(), conf)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	conf.Blob.Driver = "ftp"
	_, err = NewBlobStore(context.Background(), conf)
	assert.Error(t, err)
}
