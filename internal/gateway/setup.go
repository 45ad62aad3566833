package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/db"
	"github.com/debemdeboas/race-posts/internal/util/compression"
)

// MemoryBlobPath is where the memory blob store serves its objects.
const MemoryBlobPath = "/blobs/"

// Backends is a gateway built from configuration together with the
// resources it owns.
type Backends struct {
	*Gateway

	Blobs BlobStore
	Docs  DocumentStore

	closers []func() error
}

func (b *Backends) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Backends, error) {
	client := &http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second}
	b := &Backends{}

	switch cfg.Blob.Backend {
	case "firebase":
		b.Blobs = NewFirebaseBlobStore(cfg.Blob.Firebase.BucketURL, cfg.Blob.Firebase.MediaSuffix, client, logger)
	case "s3":
		s3cfg := cfg.Blob.S3
		store, err := NewS3BlobStore(ctx, S3Options{
			Bucket:          s3cfg.Bucket,
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			PublicBaseURL:   s3cfg.PublicBaseURL,
			KeyPrefix:       s3cfg.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		b.Blobs = store
	case "memory":
		b.Blobs = NewMemoryBlobStore(MemoryBlobPath)
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
	}

	switch cfg.Documents.Backend {
	case "firebase":
		fb := cfg.Documents.Firebase
		b.Docs = NewFirebaseDocumentStore(fb.CollectionURL, fb.Suffix, fb.AuthToken, client, logger)
	case "sqlite":
		codec, err := compression.ByName(cfg.Documents.SQLite.Compression)
		if err != nil {
			return nil, err
		}
		database := db.NewSQLite(cfg.Documents.SQLite.Path)
		if err := database.InitDB(); err != nil {
			return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
		}
		b.closers = append(b.closers, database.Close)
		b.Docs = NewDBDocumentStore(database, database.Path(), codec, logger)
	case "memory":
		b.Docs = NewMemoryDocumentStore()
	default:
		return nil, fmt.Errorf("unknown document backend %q", cfg.Documents.Backend)
	}

	b.Gateway = New(b.Blobs, b.Docs, logger)
	logger.Info().
		Str("blob_backend", cfg.Blob.Backend).
		Str("document_backend", cfg.Documents.Backend).
		Msg("Persistence gateway ready")
	return b, nil
}
