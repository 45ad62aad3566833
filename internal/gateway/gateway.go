// Package gateway performs the two-phase post write: upload the image to the
// blob store, then create or replace the record in the document store.
package gateway

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/model"
)

// BlobStore holds uploaded images. Put returns the public URL of the object.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// DocumentStore holds post records keyed by store-assigned ids.
type DocumentStore interface {
	Create(ctx context.Context, post *model.Post) (model.PostID, error)
	Replace(ctx context.Context, id model.PostID, post *model.Post) error
	Get(ctx context.Context, id model.PostID) (*model.Post, error)
	List(ctx context.Context) ([]model.Post, error)
}

// Gateway keeps no state of its own; every call is a request/response over
// the two stores.
type Gateway struct {
	blobs  BlobStore
	docs   DocumentStore
	logger zerolog.Logger
}

func New(blobs BlobStore, docs DocumentStore, logger zerolog.Logger) *Gateway {
	return &Gateway{
		blobs:  blobs,
		docs:   docs,
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

func (g *Gateway) UploadImage(ctx context.Context, f intake.File) (string, error) {
	payload, err := intake.ReadPayload(f)
	if err != nil {
		return "", err
	}

	url, err := g.blobs.Put(ctx, payload.Name, payload.ContentType, payload.Data)
	if err != nil {
		return "", fmt.Errorf("upload image %q: %w", payload.Name, err)
	}

	g.logger.Info().
		Str("file", payload.Name).
		Int("bytes", len(payload.Data)).
		Str("image_url", url).
		Msg("Image uploaded")
	return url, nil
}

func (g *Gateway) DiscardImage(ctx context.Context, url string) error {
	if err := g.blobs.Delete(ctx, url); err != nil {
		return fmt.Errorf("discard image: %w", err)
	}
	return nil
}

func (g *Gateway) CreatePost(ctx context.Context, post *model.Post) (model.PostID, error) {
	id, err := g.docs.Create(ctx, post)
	if err != nil {
		g.logger.Error().Err(err).Str("title", post.Title).Msg("Error creating post")
		return "", fmt.Errorf("create post: %w", err)
	}

	g.logger.Info().Str("post_id", string(id)).Str("title", post.Title).Msg("New post created")
	return id, nil
}

func (g *Gateway) UpdatePost(ctx context.Context, id model.PostID, post *model.Post) error {
	if err := g.docs.Replace(ctx, id, post); err != nil {
		g.logger.Error().Err(err).Str("post_id", string(id)).Msg("Error updating post")
		return fmt.Errorf("update post %s: %w", id, err)
	}

	g.logger.Info().Str("post_id", string(id)).Str("title", post.Title).Msg("Post updated")
	return nil
}

func (g *Gateway) FetchPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	post, err := g.docs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, err)
	}
	return post, nil
}

func (g *Gateway) ListPosts(ctx context.Context) ([]model.Post, error) {
	posts, err := g.docs.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}
