package blobsvc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/acolher/core"
)

type memBlob struct {
	data []byte
	info core.BlobInfo
}

// MemoryStore keeps blobs in process memory. Used in dev and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	blobs      map[string]memBlob
	publicBase string
}

var _ core.BlobStore = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore(publicBase string) *MemoryStore {
	return &MemoryStore{blobs: make(map[string]memBlob), publicBase: publicBase}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, contentType string) (core.BlobInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return core.BlobInfo{}, errors.Wrapf(err, "reading blob %s", key)
	}
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; ok {
		return core.BlobInfo{}, core.ErrBlobExists
	}
	info := core.BlobInfo{Key: key, Size: int64(len(data)), ContentType: contentType, LastModified: time.Now().UTC()}
	s.blobs[key] = memBlob{data: data, info: info}
	return info, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, errors.Errorf("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *MemoryStore) List(_ context.Context, prefix string) ([]core.BlobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var infos []core.BlobInfo
	for key, b := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, b.info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *MemoryStore) URL(_ context.Context, key string) (string, error) {
	return publicURL(s.publicBase, key), nil
}

// Len is the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
