// Package session keeps the active form sessions in memory. Each session owns
// exactly one form, so a draft is never shared between two editors.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/debemdeboas/race-posts/internal/form"
	"github.com/debemdeboas/race-posts/internal/model"
)

type ID string

const DefaultTTL = 2 * time.Hour

var ErrNotFound = errors.New("session not found")

// Redirect records the route a flow asked to navigate to.
type Redirect struct {
	mu    sync.Mutex
	route string
	set   bool
}

func (r *Redirect) Navigate(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.route, r.set = route, true
}

// Take returns the pending route and resets it.
func (r *Redirect) Take() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.route, r.set
	r.route, r.set = "", false
	return route, ok
}

type Session struct {
	ID     ID
	PostID model.PostID

	Form     *form.Form
	Redirect *Redirect

	lastSeen atomic.Int64
}

func (s *Session) IsUpdate() bool {
	return s.PostID != ""
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// Builder creates the session's form, wired to navigate through nav.
type Builder func(nav *Redirect) (*form.Form, error)

type MemoryStore struct {
	sessions sync.Map
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now}
}

// Create registers a new session for postID (empty for a new post).
func (m *MemoryStore) Create(postID model.PostID, build Builder) (*Session, error) {
	redirect := &Redirect{}
	f, err := build(redirect)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:       ID(uuid.New().String()),
		PostID:   postID,
		Form:     f,
		Redirect: redirect,
	}
	s.touch(m.now())
	m.sessions.Store(s.ID, s)
	return s, nil
}

func (m *MemoryStore) Get(id ID) (*Session, error) {
	v, ok := m.sessions.Load(id)
	if !ok {
		return nil, ErrNotFound
	}
	s := v.(*Session)

	now := m.now()
	if now.Sub(time.Unix(0, s.lastSeen.Load())) > m.ttl {
		m.sessions.Delete(id)
		return nil, ErrNotFound
	}
	s.touch(now)
	return s, nil
}

func (m *MemoryStore) Delete(id ID) {
	m.sessions.Delete(id)
}

func (m *MemoryStore) Len() int {
	n := 0
	m.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep drops sessions idle for longer than the TTL.
func (m *MemoryStore) Sweep() int {
	cutoff := m.now().Add(-m.ttl).UnixNano()
	dropped := 0
	m.sessions.Range(func(k, v any) bool {
		if v.(*Session).lastSeen.Load() < cutoff {
			m.sessions.Delete(k)
			dropped++
		}
		return true
	})
	return dropped
}

// Run sweeps every interval until ctx is done.
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration, onSweep func(dropped int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 && onSweep != nil {
				onSweep(n)
			}
		}
	}
}
