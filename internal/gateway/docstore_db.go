package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/db"
	"github.com/debemdeboas/race-posts/internal/model"
	"github.com/debemdeboas/race-posts/internal/util"
	"github.com/debemdeboas/race-posts/internal/util/compression"
)

// DBDocumentStore keeps each post as a compressed JSON document in SQLite.
// The codec is recorded per row so existing rows stay readable after the
// configured compression changes.
type DBDocumentStore struct {
	db         db.DB
	location   string
	compressor compression.Compressor
	logger     zerolog.Logger
	now        func() time.Time
}

func NewDBDocumentStore(database db.DB, location string, compressor compression.Compressor, logger zerolog.Logger) *DBDocumentStore {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBDocumentStore{
		db:         database,
		location:   "sqlite://" + location,
		compressor: compressor,
		logger:     logger.With().Str("component", "sqlite_store").Logger(),
		now:        time.Now,
	}
}

func (s *DBDocumentStore) encode(post *model.Post) ([]byte, string, error) {
	doc, err := json.Marshal(post)
	if err != nil {
		return nil, "", err
	}
	packed, err := s.compressor.Compress(doc)
	if err != nil {
		return nil, "", fmt.Errorf("compress document: %w", err)
	}
	return packed, util.ContentHash(doc), nil
}

func (s *DBDocumentStore) decode(id string, packed []byte, codec string) (*model.Post, error) {
	c, err := compression.ByName(codec)
	if err != nil {
		return nil, err
	}
	doc, err := c.Decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("decompress post %s: %w", id, err)
	}
	post := &model.Post{}
	if err := json.Unmarshal(doc, post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, err)
	}
	post.ID = model.PostID(id)
	return post, nil
}

func (s *DBDocumentStore) Create(ctx context.Context, post *model.Post) (model.PostID, error) {
	packed, hash, err := s.encode(post)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, uid, document, compression, content_hash, created_at, modified_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(post.UID), packed, s.compressor.Name(), hash, now, now)
	if err != nil {
		return "", &TransportError{Op: "insert", URL: s.location, Err: err}
	}

	s.logger.Debug().Str("post_id", id).Interface("result", res).Msg("Post inserted")
	return model.PostID(id), nil
}

func (s *DBDocumentStore) Replace(ctx context.Context, id model.PostID, post *model.Post) error {
	packed, hash, err := s.encode(post)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE posts SET uid = ?, document = ?, compression = ?, content_hash = ?, modified_at = ? WHERE id = ?`,
		string(post.UID), packed, s.compressor.Name(), hash, s.now().UTC(), string(id))
	if err != nil {
		return &TransportError{Op: "update", URL: s.location, Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &TransportError{Op: "update", URL: s.location, Err: err}
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DBDocumentStore) Get(ctx context.Context, id model.PostID) (*model.Post, error) {
	var packed []byte
	var codec string
	err := s.db.QueryRowContext(ctx, `SELECT document, compression FROM posts WHERE id = ?`, string(id)).
		Scan(&packed, &codec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &TransportError{Op: "select", URL: s.location, Err: err}
	}
	return s.decode(string(id), packed, codec)
}

func (s *DBDocumentStore) List(ctx context.Context) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document, compression FROM posts ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, &TransportError{Op: "select", URL: s.location, Err: err}
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var id, codec string
		var packed []byte
		if err := rows.Scan(&id, &packed, &codec); err != nil {
			return nil, &TransportError{Op: "scan", URL: s.location, Err: err}
		}
		post, err := s.decode(id, packed, codec)
		if err != nil {
			s.logger.Error().Err(err).Str("post_id", id).Msg("Skipping unreadable post")
			continue
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, &TransportError{Op: "select", URL: s.location, Err: err}
	}
	return posts, nil
}
