package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/model"
)

// fakeFirebase serves the storage upload endpoint under /o/ and a realtime
// database collection under /posts.
type fakeFirebase struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	posts   map[string]model.Post
	nextID  int
	failing map[string]int
	calls   []string
}

func newFakeFirebase(t *testing.T) (*fakeFirebase, *httptest.Server) {
	t.Helper()
	f := &fakeFirebase{
		objects: map[string][]byte{},
		types:   map[string]string{},
		posts:   map[string]model.Post{},
		failing: map[string]int{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeFirebase) fail(method string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[method] = status
}

func (f *fakeFirebase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, r.Method+" "+r.URL.EscapedPath())
	if status, ok := f.failing[r.Method]; ok {
		http.Error(w, "backend unavailable", status)
		return
	}

	body, _ := io.ReadAll(r.Body)
	path := r.URL.Path

	switch {
	case strings.HasPrefix(path, "/o/"):
		name := strings.TrimPrefix(path, "/o/")
		switch r.Method {
		case http.MethodPost:
			f.objects[name] = body
			f.types[name] = r.Header.Get("Content-Type")
			fmt.Fprintf(w, `{"name":%q,"bucket":"race-rest.appspot.com","size":"%d"}`, name, len(body))
		case http.MethodDelete:
			if _, ok := f.objects[name]; !ok {
				http.NotFound(w, r)
				return
			}
			delete(f.objects, name)
		}

	case path == "/posts.json":
		switch r.Method {
		case http.MethodPost:
			var p model.Post
			if err := json.Unmarshal(body, &p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.nextID++
			id := fmt.Sprintf("-N%04d", f.nextID)
			f.posts[id] = p
			fmt.Fprintf(w, `{"name":%q}`, id)
		case http.MethodGet:
			if len(f.posts) == 0 {
				w.Write([]byte("null"))
				return
			}
			json.NewEncoder(w).Encode(f.posts)
		}

	case strings.HasPrefix(path, "/posts/") && strings.HasSuffix(path, ".json"):
		id := strings.TrimSuffix(strings.TrimPrefix(path, "/posts/"), ".json")
		switch r.Method {
		case http.MethodPut:
			var p model.Post
			if err := json.Unmarshal(body, &p); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.posts[id] = p
			w.Write(body)
		case http.MethodGet:
			p, ok := f.posts[id]
			if !ok {
				w.Write([]byte("null"))
				return
			}
			json.NewEncoder(w).Encode(p)
		}

	default:
		http.NotFound(w, r)
	}
}

func TestFirebaseBlobStore(t *testing.T) {
	fake, srv := newFakeFirebase(t)
	store := NewFirebaseBlobStore(srv.URL+"/o/", "", srv.Client(), zerolog.Nop())
	ctx := context.Background()

	t.Run("Public URL is upload address plus media suffix", func(t *testing.T) {
		url, err := store.Put(ctx, "race.jpg", "image/jpeg", []byte{0xFF, 0xD8})
		if err != nil {
			t.Fatalf("Expected upload to succeed, got %v", err)
		}
		expected := srv.URL + "/o/race.jpg?alt=media"
		if url != expected {
			t.Errorf("Expected %s, got %s", expected, url)
		}
		if fake.types["race.jpg"] != "image/jpeg" {
			t.Errorf("Expected content type image/jpeg, got %q", fake.types["race.jpg"])
		}
	})

	t.Run("Name is escaped as one segment", func(t *testing.T) {
		url, err := store.Put(ctx, "pit stop/lap 3.png", "image/png", []byte("png"))
		if err != nil {
			t.Fatalf("Expected upload to succeed, got %v", err)
		}
		if !strings.HasSuffix(url, "/o/pit%20stop%2Flap%203.png?alt=media") {
			t.Errorf("Expected escaped object name, got %s", url)
		}
		if _, ok := fake.objects["pit stop/lap 3.png"]; !ok {
			t.Error("Expected object stored under its original name")
		}
	})

	t.Run("Delete strips the suffix", func(t *testing.T) {
		url, _ := store.Put(ctx, "tmp.gif", "image/gif", []byte("GIF89a"))
		if err := store.Delete(ctx, url); err != nil {
			t.Fatalf("Expected delete to succeed, got %v", err)
		}
		if _, ok := fake.objects["tmp.gif"]; ok {
			t.Error("Expected object to be removed")
		}
	})

	t.Run("Delete refuses foreign URLs", func(t *testing.T) {
		if err := store.Delete(ctx, "https://example.com/o/x.jpg?alt=media"); err == nil {
			t.Error("Expected error for URL outside the bucket")
		}
	})

	t.Run("Non-2xx is a transport error", func(t *testing.T) {
		fake.fail(http.MethodPost, http.StatusForbidden)
		defer delete(fake.failing, http.MethodPost)

		_, err := store.Put(ctx, "race.jpg", "image/jpeg", []byte{1})
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("Expected *TransportError, got %T: %v", err, err)
		}
		if te.StatusCode != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", te.StatusCode)
		}
		if !strings.Contains(te.Error(), "backend unavailable") {
			t.Errorf("Expected response body in error, got %q", te.Error())
		}
	})
}

func TestFirebaseBlobStoreUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	store := NewFirebaseBlobStore(addr+"/o", "alt=media", nil, zerolog.Nop())
	_, err := store.Put(context.Background(), "race.jpg", "image/jpeg", []byte{1})
	if !IsTransport(err) {
		t.Errorf("Expected transport error for closed server, got %v", err)
	}
}

func TestFirebaseBlobStoreEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewFirebaseBlobStore(srv.URL+"/o", "alt=media", srv.Client(), zerolog.Nop())
	url, err := store.Put(context.Background(), "race.jpg", "image/jpeg", []byte{1})
	if !IsTransport(err) {
		t.Fatalf("Expected transport error for an empty upload response, got %v", err)
	}
	if url != "" {
		t.Errorf("Expected no public URL, got %q", url)
	}
	if !strings.Contains(err.Error(), "malformed response") {
		t.Errorf("Expected malformed response error, got %q", err.Error())
	}
}

func TestFirebaseDocumentStore(t *testing.T) {
	fake, srv := newFakeFirebase(t)
	store := NewFirebaseDocumentStore(srv.URL+"/posts", "", "", srv.Client(), zerolog.Nop())
	ctx := context.Background()

	t.Run("List on empty collection", func(t *testing.T) {
		posts, err := store.List(ctx)
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(posts) != 0 {
			t.Errorf("Expected no posts, got %d", len(posts))
		}
	})

	var id model.PostID
	t.Run("Create returns the assigned name", func(t *testing.T) {
		var err error
		id, err = store.Create(ctx, &model.Post{Title: "A", Body: "B", Image: "u", UID: "owner"})
		if err != nil {
			t.Fatalf("Expected create to succeed, got %v", err)
		}
		if id != "-N0001" {
			t.Errorf("Expected -N0001, got %s", id)
		}
		if fake.posts["-N0001"].UID != "owner" {
			t.Errorf("Expected uid in stored document, got %+v", fake.posts["-N0001"])
		}
	})

	t.Run("Get sets the id", func(t *testing.T) {
		p, err := store.Get(ctx, id)
		if err != nil {
			t.Fatalf("Expected get to succeed, got %v", err)
		}
		if p.ID != id || p.Title != "A" || p.Image != "u" {
			t.Errorf("Expected stored post, got %+v", p)
		}
	})

	t.Run("Replace addresses by id", func(t *testing.T) {
		if err := store.Replace(ctx, id, &model.Post{Title: "A2", Body: "B2", Image: "u2", UID: "owner"}); err != nil {
			t.Fatalf("Expected replace to succeed, got %v", err)
		}
		if fake.calls[len(fake.calls)-1] != "PUT /posts/-N0001.json" {
			t.Errorf("Expected PUT to the record address, got %s", fake.calls[len(fake.calls)-1])
		}
		if fake.posts[string(id)].Title != "A2" {
			t.Errorf("Expected replaced title, got %q", fake.posts[string(id)].Title)
		}
	})

	t.Run("Null is not found", func(t *testing.T) {
		if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("List newest first", func(t *testing.T) {
		store.Create(ctx, &model.Post{Title: "C", Body: "D", Image: "v"})
		posts, err := store.List(ctx)
		if err != nil {
			t.Fatalf("Expected list to succeed, got %v", err)
		}
		if len(posts) != 2 || posts[0].ID != "-N0002" || posts[1].ID != "-N0001" {
			t.Errorf("Expected [-N0002 -N0001], got %+v", posts)
		}
	})

	t.Run("Failure status", func(t *testing.T) {
		fake.fail(http.MethodPut, http.StatusInternalServerError)
		defer delete(fake.failing, http.MethodPut)

		err := store.Replace(ctx, id, &model.Post{Title: "x", Body: "y", Image: "z"})
		var te *TransportError
		if !errors.As(err, &te) || te.StatusCode != http.StatusInternalServerError {
			t.Errorf("Expected 500 transport error, got %v", err)
		}
	})
}

func TestFirebaseDocumentStoreCreateResponses(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		expected model.PostID
		wantErr  bool
	}{
		{name: "name key", response: `{"name":"-Nabc"}`, expected: "-Nabc"},
		{name: "id key", response: `{"id":"42"}`, expected: "42"},
		{name: "no id", response: `{}`, wantErr: true},
		{name: "malformed", response: `not json`, wantErr: true},
		{name: "empty body", response: ``, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.response))
			}))
			defer srv.Close()

			store := NewFirebaseDocumentStore(srv.URL+"/posts", ".json", "", srv.Client(), zerolog.Nop())
			id, err := store.Create(context.Background(), &model.Post{Title: "t"})
			if tc.wantErr {
				if !IsTransport(err) {
					t.Errorf("Expected transport error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if id != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, id)
			}
		})
	}
}

func TestFirebaseDocumentStoreAuthToken(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	store := NewFirebaseDocumentStore(srv.URL+"/posts", ".json", "s3cr3t", srv.Client(), zerolog.Nop())
	store.List(context.Background())

	if gotQuery != "auth=s3cr3t" {
		t.Errorf("Expected auth query, got %q", gotQuery)
	}
}
