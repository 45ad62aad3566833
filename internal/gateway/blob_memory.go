package gateway

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/debemdeboas/race-posts/internal/cache"
)

type memoryBlob struct {
	contentType string
	data        []byte
	stored      time.Time
}

// MemoryBlobStore keeps images in process. It also serves them, so mounting
// it under its base path makes the returned URLs resolvable.
type MemoryBlobStore struct {
	basePath string
	blobs    *cache.Cache[string, memoryBlob]
}

func NewMemoryBlobStore(basePath string) *MemoryBlobStore {
	if !strings.HasSuffix(basePath, "/") {
		basePath += "/"
	}
	return &MemoryBlobStore{
		basePath: basePath,
		blobs:    cache.NewCache[string, memoryBlob](),
	}
}

func (s *MemoryBlobStore) BasePath() string {
	return s.basePath
}

func (s *MemoryBlobStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.blobs.Set(name, memoryBlob{
		contentType: contentType,
		data:        bytes.Clone(data),
		stored:      time.Now(),
	})
	return s.basePath + url.PathEscape(name) + "?" + DefaultMediaSuffix, nil
}

func (s *MemoryBlobStore) Delete(ctx context.Context, publicURL string) error {
	addr, _, _ := strings.Cut(publicURL, "?")
	escaped, ok := strings.CutPrefix(addr, s.basePath)
	if !ok {
		return fmt.Errorf("no blob at %q", publicURL)
	}
	name, err := url.PathUnescape(escaped)
	if err != nil || !s.blobs.Delete(name) {
		return fmt.Errorf("no blob at %q", publicURL)
	}
	return nil
}

func (s *MemoryBlobStore) Len() int {
	return s.blobs.Len()
}

func (s *MemoryBlobStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, s.basePath)
	blob, ok := s.blobs.Get(name)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", blob.contentType)
	http.ServeContent(w, r, name, blob.stored, bytes.NewReader(blob.data))
}
