package gateway

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/debemdeboas/race-posts/internal/cache"
	"github.com/debemdeboas/race-posts/internal/model"
)

type memoryDoc struct {
	post model.Post
	seq  uint64
}

type MemoryDocumentStore struct {
	docs *cache.Cache[model.PostID, memoryDoc]
	seq  atomic.Uint64
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs: cache.NewCache[model.PostID, memoryDoc](),
	}
}

func (s *MemoryDocumentStore) Create(ctx context.Context, post *model.Post) (model.PostID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	id := model.PostID(uuid.NewString())
	stored := post.Clone()
	stored.ID = id
	s.docs.Set(id, memoryDoc{post: *stored, seq: s.seq.Add(1)})
	return id, nil
}

func (s *MemoryDocumentStore) Replace(ctx context.Context, id model.PostID, post *model.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, ok := s.docs.Get(id)
	if !ok {
		return ErrNotFound
	}
	stored := post.Clone()
	stored.ID = id
	if !s.docs.Replace(id, memoryDoc{post: *stored, seq: current.seq}) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryDocumentStore) Get(ctx context.Context, id model.PostID) (*model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, ok := s.docs.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return doc.post.Clone(), nil
}

func (s *MemoryDocumentStore) List(ctx context.Context) ([]model.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	docs := make([]memoryDoc, 0, s.docs.Len())
	s.docs.Range(func(_ model.PostID, d memoryDoc) bool {
		docs = append(docs, d)
		return true
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].seq > docs[j].seq })

	posts := make([]model.Post, len(docs))
	for i, d := range docs {
		posts[i] = d.post
	}
	return posts, nil
}
