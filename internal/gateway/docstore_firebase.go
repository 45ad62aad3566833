package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/model"
)

const DefaultDocumentSuffix = ".json"

// FirebaseDocumentStore talks to a Realtime Database collection over REST.
type FirebaseDocumentStore struct {
	collectionURL string
	suffix        string
	authToken     string
	rest          restClient
	logger        zerolog.Logger
}

func NewFirebaseDocumentStore(collectionURL, suffix, authToken string, client *http.Client, logger zerolog.Logger) *FirebaseDocumentStore {
	if suffix == "" {
		suffix = DefaultDocumentSuffix
	}
	logger = logger.With().Str("component", "firebase_rtdb").Logger()
	return &FirebaseDocumentStore{
		collectionURL: strings.TrimRight(collectionURL, "/"),
		suffix:        suffix,
		authToken:     authToken,
		rest:          newRestClient(client, logger),
		logger:        logger,
	}
}

func (s *FirebaseDocumentStore) address(id model.PostID) string {
	addr := s.collectionURL
	if id != "" {
		addr += "/" + url.PathEscape(string(id))
	}
	addr += s.suffix
	if s.authToken != "" {
		addr += "?auth=" + url.QueryEscape(s.authToken)
	}
	return addr
}

type createResponse struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (s *FirebaseDocumentStore) Create(ctx context.Context, post *model.Post) (model.PostID, error) {
	body, err := json.Marshal(post)
	if err != nil {
		return "", err
	}

	addr := s.address("")
	var res createResponse
	if err := s.rest.do(ctx, "create", http.MethodPost, addr, "application/json", body, &res); err != nil {
		return "", err
	}
	s.logger.Debug().Interface("response", res).Msg("Create response")

	id := res.Name
	if id == "" {
		id = res.ID
	}
	if id == "" {
		return "", &TransportError{Op: "create", URL: addr, Err: errors.New("response carries no record id")}
	}
	return model.PostID(id), nil
}

func (s *FirebaseDocumentStore) Replace(ctx context.Context, id model.PostID, post *model.Post) error {
	body, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return s.rest.do(ctx, "replace", http.MethodPut, s.address(id), "application/json", body, nil)
}

func (s *FirebaseDocumentStore) Get(ctx context.Context, id model.PostID) (*model.Post, error) {
	var post *model.Post
	err := s.rest.do(ctx, "get", http.MethodGet, s.address(id), "", nil, &post)
	var te *TransportError
	if errors.As(err, &te) && te.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}
	post.ID = id
	return post, nil
}

// List returns the collection newest first. Push ids sort chronologically.
func (s *FirebaseDocumentStore) List(ctx context.Context) ([]model.Post, error) {
	var byID map[string]*model.Post
	if err := s.rest.do(ctx, "list", http.MethodGet, s.address(""), "", nil, &byID); err != nil {
		return nil, err
	}

	posts := make([]model.Post, 0, len(byID))
	for id, p := range byID {
		if p == nil {
			continue
		}
		p.ID = model.PostID(id)
		posts = append(posts, *p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}
