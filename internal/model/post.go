// Package model defines the post record shared by the form, the gateway and the stores.
package model

type PostID string

type UserID string

// Post is the persisted entity. ID is assigned by the document store and is
// never part of the stored document itself.
type Post struct {
	ID PostID `json:"-" yaml:"-"`

	Title string `json:"title"`
	Body  string `json:"body"`

	// Public URL of the uploaded image once saved.
	Image string `json:"image"`

	// Owner of the post.
	UID UserID `json:"uid"`
}

// Complete reports whether the post carries every field required to persist it.
func (p *Post) Complete() bool {
	return p != nil && p.Title != "" && p.Body != "" && p.Image != ""
}

// Clone returns a shallow copy, safe to mutate.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
