package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

const DefaultMediaSuffix = "alt=media"

// FirebaseBlobStore uploads objects through the Firebase Storage REST API.
type FirebaseBlobStore struct {
	bucketURL   string
	mediaSuffix string
	rest        restClient
	logger      zerolog.Logger
}

func NewFirebaseBlobStore(bucketURL, mediaSuffix string, client *http.Client, logger zerolog.Logger) *FirebaseBlobStore {
	if mediaSuffix == "" {
		mediaSuffix = DefaultMediaSuffix
	}
	logger = logger.With().Str("component", "firebase_storage").Logger()
	return &FirebaseBlobStore{
		bucketURL:   strings.TrimRight(bucketURL, "/"),
		mediaSuffix: strings.TrimPrefix(mediaSuffix, "?"),
		rest:        newRestClient(client, logger),
		logger:      logger,
	}
}

func (s *FirebaseBlobStore) objectURL(name string) string {
	return s.bucketURL + "/" + url.PathEscape(name)
}

// Put posts the raw bytes. The public URL is built from the upload address
// and the media suffix; the response body is only logged.
func (s *FirebaseBlobStore) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	addr := s.objectURL(name)

	var meta map[string]any
	if err := s.rest.do(ctx, "upload", http.MethodPost, addr, contentType, data, &meta); err != nil {
		return "", err
	}
	s.logger.Debug().Str("url", addr).Interface("metadata", meta).Msg("Upload response")

	return addr + "?" + s.mediaSuffix, nil
}

func (s *FirebaseBlobStore) Delete(ctx context.Context, publicURL string) error {
	addr, _, _ := strings.Cut(publicURL, "?")
	if !strings.HasPrefix(addr, s.bucketURL+"/") {
		return fmt.Errorf("%q is not an object of %s", publicURL, s.bucketURL)
	}
	return s.rest.do(ctx, "delete", http.MethodDelete, addr, "", nil, nil)
}
