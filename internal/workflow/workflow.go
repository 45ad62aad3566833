// Package workflow binds a post form to the persistence gateway for the two
// authoring pages: creating a new post and updating an existing one. Both
// navigate to the listing once a save succeeds and stay put otherwise.
package workflow

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/race-posts/internal/form"
	"github.com/debemdeboas/race-posts/internal/model"
)

const ListingRoute = "/"

// Persister is the slice of the gateway the flows need.
type Persister interface {
	form.Uploader
	CreatePost(ctx context.Context, post *model.Post) (model.PostID, error)
	UpdatePost(ctx context.Context, id model.PostID, post *model.Post) error
	FetchPost(ctx context.Context, id model.PostID) (*model.Post, error)
}

type Navigator interface {
	Navigate(route string)
}

type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

type Option func(*options)

type options struct {
	logger  zerolog.Logger
	onSaved func(model.PostID)
	formOps []form.Option
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOnSaved registers a hook run after every successful save, before
// navigation.
func WithOnSaved(fn func(model.PostID)) Option {
	return func(o *options) { o.onSaved = fn }
}

// WithFormOptions are passed to every form the flow builds.
func WithFormOptions(opts ...form.Option) Option {
	return func(o *options) { o.formOps = append(o.formOps, opts...) }
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) saved(id model.PostID, nav Navigator) {
	if o.onSaved != nil {
		o.onSaved(id)
	}
	nav.Navigate(ListingRoute)
}

type CreateFlow struct {
	persister Persister
	owner     model.UserID
	nav       Navigator
	opts      options
}

// NewCreateFlow stamps owner on every post it creates.
func NewCreateFlow(p Persister, owner model.UserID, nav Navigator, opts ...Option) *CreateFlow {
	o := buildOptions(opts)
	o.logger = o.logger.With().Str("flow", "create").Logger()
	return &CreateFlow{persister: p, owner: owner, nav: nav, opts: o}
}

func (c *CreateFlow) NewForm() *form.Form {
	return form.New(c.persister, c.Save, c.formOptions()...)
}

func (c *CreateFlow) formOptions() []form.Option {
	return append([]form.Option{form.WithLogger(c.opts.logger)}, c.opts.formOps...)
}

// Save is the form's save callback. post receives the assigned id.
func (c *CreateFlow) Save(ctx context.Context, post *model.Post) error {
	post.UID = c.owner

	id, err := c.persister.CreatePost(ctx, post)
	if err != nil {
		c.opts.logger.Error().Err(err).Str("title", post.Title).Msg("Create failed, staying on page")
		return err
	}
	post.ID = id

	c.opts.saved(id, c.nav)
	return nil
}

type UpdateFlow struct {
	persister Persister
	id        model.PostID
	nav       Navigator
	opts      options

	mu       sync.Mutex
	original *model.Post
}

func NewUpdateFlow(p Persister, id model.PostID, nav Navigator, opts ...Option) *UpdateFlow {
	o := buildOptions(opts)
	o.logger = o.logger.With().Str("flow", "update").Str("post_id", string(id)).Logger()
	return &UpdateFlow{persister: p, id: id, nav: nav, opts: o}
}

func (u *UpdateFlow) ID() model.PostID {
	return u.id
}

// Load fetches the target post and remembers it as the save baseline.
func (u *UpdateFlow) Load(ctx context.Context) (*model.Post, error) {
	post, err := u.persister.FetchPost(ctx, u.id)
	if err != nil {
		u.opts.logger.Error().Err(err).Msg("Failed to load post")
		return nil, err
	}

	u.mu.Lock()
	u.original = post.Clone()
	u.mu.Unlock()
	return post, nil
}

// NewForm loads the post and returns a form prefilled from it. An
// incomplete stored post yields an empty form.
func (u *UpdateFlow) NewForm(ctx context.Context) (*form.Form, error) {
	post, err := u.Load(ctx)
	if err != nil {
		return nil, err
	}

	f := form.New(u.persister, u.Save, append([]form.Option{form.WithLogger(u.opts.logger)}, u.opts.formOps...)...)
	if !f.Prefill(post) {
		u.opts.logger.Warn().Msg("Stored post is incomplete, form left empty")
	}
	return f, nil
}

// Save writes post over the loaded record, keeping the loaded owner.
func (u *UpdateFlow) Save(ctx context.Context, post *model.Post) error {
	u.mu.Lock()
	original := u.original
	u.mu.Unlock()

	if original == nil {
		var err error
		if original, err = u.Load(ctx); err != nil {
			return err
		}
	}

	post.ID = u.id
	post.UID = original.UID

	if err := u.persister.UpdatePost(ctx, u.id, post); err != nil {
		u.opts.logger.Error().Err(err).Msg("Update failed, staying on page")
		return err
	}

	u.mu.Lock()
	u.original = post.Clone()
	u.mu.Unlock()

	u.opts.saved(u.id, u.nav)
	return nil
}
