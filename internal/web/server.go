// Package web serves the listing, create and edit pages and binds their form
// fields to the authoring workflow.
package web

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/debemdeboas/race-posts/internal/cache"
	"github.com/debemdeboas/race-posts/internal/config"
	"github.com/debemdeboas/race-posts/internal/form"
	"github.com/debemdeboas/race-posts/internal/intake"
	"github.com/debemdeboas/race-posts/internal/model"
	"github.com/debemdeboas/race-posts/internal/routes"
	"github.com/debemdeboas/race-posts/internal/session"
	"github.com/debemdeboas/race-posts/internal/sse"
	"github.com/debemdeboas/race-posts/internal/util"
	"github.com/debemdeboas/race-posts/internal/workflow"
)

// Backend is everything the pages need from the persistence gateway.
type Backend interface {
	workflow.Persister
	ListPosts(ctx context.Context) ([]model.Post, error)
}

type Options struct {
	Owner          model.UserID
	Policy         intake.Policy
	DiscardOrphans bool
	SessionTTL     time.Duration
	Logger         zerolog.Logger
}

type Server struct {
	backend  Backend
	sessions *session.MemoryStore
	clients  *sse.SSEClients
	static   fs.FS

	pages   map[string]*template.Template
	preview *template.Template

	owner          model.UserID
	policy         intake.Policy
	discardOrphans bool
	logger         zerolog.Logger

	listing singleflight.Group
	extra   map[string]http.Handler
}

// New parses the templates under assets and indexes the static files for
// ETags. assets must contain the templates and static directories.
func New(backend Backend, assets fs.FS, opts Options) (*Server, error) {
	tmplPath := func(name string) string { return config.TemplatesLocalDir + "/" + name }

	pages := map[string]*template.Template{}
	for _, page := range []string{config.TemplateIndex, config.TemplateForm} {
		t, err := template.New(config.TemplateLayout).Funcs(funcs).ParseFS(assets,
			tmplPath(config.TemplateLayout), tmplPath(page), tmplPath(config.TemplatePreview))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", page, err)
		}
		pages[page] = t
	}

	preview, err := template.New(config.TemplatePreview).Funcs(funcs).ParseFS(assets, tmplPath(config.TemplatePreview))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", config.TemplatePreview, err)
	}

	static, err := fs.Sub(assets, config.StaticLocalDir)
	if err != nil {
		return nil, err
	}
	if err := hashStatic(static); err != nil {
		return nil, err
	}

	if opts.Policy.MaxBytes <= 0 {
		opts.Policy = intake.DefaultPolicy()
	}

	return &Server{
		backend:        backend,
		sessions:       session.NewMemoryStore(opts.SessionTTL),
		clients:        sse.NewSSEClients(),
		static:         static,
		pages:          pages,
		preview:        preview,
		owner:          opts.Owner,
		policy:         opts.Policy,
		discardOrphans: opts.DiscardOrphans,
		logger:         opts.Logger.With().Str("component", "web").Logger(),
		extra:          map[string]http.Handler{},
	}, nil
}

func hashStatic(static fs.FS) error {
	return fs.WalkDir(static, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := fs.ReadFile(static, path)
		if err != nil {
			return err
		}
		cache.SetStaticHash(config.StaticUrlPath+path, util.ContentHash(data))
		return nil
	})
}

// Handle mounts an additional read-only handler under path, e.g. the memory
// blob store.
func (s *Server) Handle(path string, h http.Handler) {
	s.extra["GET "+path] = h
}

func (s *Server) Sessions() *session.MemoryStore {
	return s.sessions
}

func (s *Server) Clients() *sse.SSEClients {
	return s.clients
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+routes.RobotsPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("User-agent: *\nDisallow:"))
	})

	mux.Handle("GET "+config.StaticUrlPath, http.StripPrefix(config.StaticUrlPath, http.FileServer(http.FS(s.static))))

	mux.HandleFunc("GET "+routes.RootPath, s.serveIndex)
	mux.HandleFunc("GET "+routes.CreatePost, s.serveCreate)
	mux.HandleFunc("POST "+routes.CreatePost, s.submitCreate)
	mux.HandleFunc("GET "+routes.EditPost, s.serveEdit)
	mux.HandleFunc("POST "+routes.EditPost, s.submitEdit)
	mux.HandleFunc("POST "+routes.PartialsImage, s.servePreview)
	mux.HandleFunc("GET "+routes.SSEPath, s.clients.Handler(s.logger))

	for pattern, h := range s.extra {
		mux.Handle(pattern, h)
	}

	return cacheIt(secureHeaders(mux))
}

// onSaved tells open listing pages to reload.
func (s *Server) onSaved(id model.PostID) {
	go func() {
		n := s.clients.Broadcast(sse.ListingTopic, "reload")
		s.logger.Debug().Str("post_id", string(id)).Int("clients", n).Msg("Reload broadcast")
	}()
}

func (s *Server) flowOptions() []workflow.Option {
	return []workflow.Option{
		workflow.WithLogger(s.logger),
		workflow.WithOnSaved(s.onSaved),
		workflow.WithFormOptions(
			form.WithPolicy(s.policy),
			form.WithOrphanCleanup(s.discardOrphans),
		),
	}
}

func (s *Server) newCreateSession() (*session.Session, error) {
	return s.sessions.Create("", func(nav *session.Redirect) (*form.Form, error) {
		return workflow.NewCreateFlow(s.backend, s.owner, nav, s.flowOptions()...).NewForm(), nil
	})
}

func (s *Server) newEditSession(ctx context.Context, id model.PostID) (*session.Session, error) {
	return s.sessions.Create(id, func(nav *session.Redirect) (*form.Form, error) {
		return workflow.NewUpdateFlow(s.backend, id, nav, s.flowOptions()...).NewForm(ctx)
	})
}

func cacheIt(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCacheControl, "no-cache")

		if hash, ok := cache.GetStaticHash(r.URL.Path); ok {
			w.Header().Set(config.HCacheControl, "public, max-age=3600")
			w.Header().Set(config.HETag, hash)
		}

		h.ServeHTTP(w, r)
	}
}

func secureHeaders(h http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routes.RobotsPath {
			w.Header().Set("X-Frame-Options", "deny")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "same-origin")
		}
		h.ServeHTTP(w, r)
	}
}

var funcs = template.FuncMap{
	"imageURL": imageURL,
	"editPath": func(id model.PostID) string { return routes.EditPostPath(string(id)) },
}

// imageURL passes previews and stored image locations through html/template,
// which would otherwise reject data URIs. Anything else becomes the
// placeholder.
func imageURL(s string) template.URL {
	switch {
	case strings.HasPrefix(s, "data:image/"),
		strings.HasPrefix(s, "https://"),
		strings.HasPrefix(s, "http://"),
		strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//"):
		return template.URL(s)
	default:
		return template.URL(config.ImagePlaceholder)
	}
}
