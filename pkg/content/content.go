// Package content models the site content the marketing abilities read:
// posts, pages, attachments, taxonomy terms and comments.
package content

import (
	"context"
	"time"
)

const (
	TypePost       = "post"
	TypePage       = "page"
	TypeAttachment = "attachment"
	// TypeSearchable selects posts and pages together, the types a site
	// search covers.
	TypeSearchable = "any"

	StatusPublish = "publish"
	StatusPrivate = "private"
	StatusDraft   = "draft"
	StatusInherit = "inherit"

	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"

	CommentApproved = "approved"
	CommentHold     = "hold"
	CommentSpam     = "spam"
	CommentTrash    = "trash"
)

type Post struct {
	ID            int       `yaml:"id" json:"id"`
	Type          string    `yaml:"type" json:"type"`
	Status        string    `yaml:"status" json:"status"`
	Title         string    `yaml:"title" json:"title"`
	Content       string    `yaml:"content" json:"content"`
	Excerpt       string    `yaml:"excerpt" json:"excerpt"`
	Slug          string    `yaml:"slug" json:"slug"`
	Date          time.Time `yaml:"date" json:"date"`
	Modified      time.Time `yaml:"modified" json:"modified"`
	Link          string    `yaml:"link" json:"link"`
	MimeType      string    `yaml:"mime_type" json:"mime_type"`
	AttachmentURL string    `yaml:"attachment_url" json:"attachment_url"`
}

type Term struct {
	ID       int    `yaml:"id" json:"id"`
	Taxonomy string `yaml:"taxonomy" json:"taxonomy"`
	Name     string `yaml:"name" json:"name"`
	Slug     string `yaml:"slug" json:"slug"`
	Count    int    `yaml:"count" json:"count"`
}

type Comment struct {
	ID      int       `yaml:"id" json:"id"`
	PostID  int       `yaml:"post_id" json:"post_id"`
	Author  string    `yaml:"author" json:"author"`
	Date    time.Time `yaml:"date" json:"date"`
	Content string    `yaml:"content" json:"content"`
	Status  string    `yaml:"status" json:"status"`
}

// PostQuery selects posts of a single type, or of every searchable type when
// Type is TypeSearchable. Empty Type means "post"; empty Status means
// "publish". MimeType only applies to attachments.
type PostQuery struct {
	Type     string
	Status   string
	Search   string
	MimeType string
	Limit    int
}

type TermQuery struct {
	Taxonomy  string
	HideEmpty bool
}

// CommentQuery selects comments; PostID 0 means every post and empty Status
// means approved.
type CommentQuery struct {
	PostID int
	Status string
	Limit  int
}

// Store is the read side of the content platform.
type Store interface {
	QueryPosts(ctx context.Context, q PostQuery) ([]Post, error)
	QueryTerms(ctx context.Context, q TermQuery) ([]Term, error)
	QueryComments(ctx context.Context, q CommentQuery) ([]Comment, error)
}

// Watcher is implemented by stores that refresh themselves from their backing
// source until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context) error
}

func (q PostQuery) normalized() PostQuery {
	if q.Type == "" {
		q.Type = TypePost
	}
	if q.Status == "" {
		if q.Type == TypeAttachment {
			q.Status = StatusInherit
		} else {
			q.Status = StatusPublish
		}
	}
	return q
}

// MatchesType reports whether a post of type t is selected by q.
func (q PostQuery) MatchesType(t string) bool {
	if q.Type == TypeSearchable {
		return t == TypePost || t == TypePage
	}
	return t == q.Type
}

func (q CommentQuery) normalized() CommentQuery {
	if q.Status == "" {
		q.Status = CommentApproved
	}
	return q
}
