package marketing

import (
	"context"
	"strings"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
)

const excerptWords = 30

var readOnly = abilities.Meta{ReadOnly: true, Idempotent: true, ShowInREST: true}

type PostsInput struct {
	Number int    `json:"number" jsonschema:"minimum=1,maximum=50" jsonschema_description:"Number of posts to return." validate:"min=1,max=50"`
	Status string `json:"status" jsonschema:"enum=publish,enum=private" jsonschema_description:"Post status." validate:"oneof=publish private"`
}

type SearchInput struct {
	S      string `json:"s" jsonschema:"required" jsonschema_description:"Search keywords."`
	Number int    `json:"number" jsonschema:"minimum=1,maximum=50" validate:"min=1,max=50"`
	Status string `json:"status" jsonschema:"enum=publish,enum=private" validate:"oneof=publish private"`
}

type PagesInput struct {
	Number int `json:"number" jsonschema:"minimum=1,maximum=100" validate:"min=1,max=100"`
}

type MediaInput struct {
	Mime   string `json:"mime" jsonschema_description:"MIME type or prefix, e.g. image or image/png."`
	Number int    `json:"number" jsonschema:"minimum=1,maximum=100" validate:"min=1,max=100"`
}

type TermsInput struct {
	HideEmpty bool `json:"hide_empty" jsonschema_description:"Skip terms with no posts."`
}

type CommentsInput struct {
	Number int `json:"number" jsonschema:"minimum=1,maximum=100" validate:"min=1,max=100"`
	PostID int `json:"post_id" jsonschema:"minimum=0" jsonschema_description:"Only comments on this post." validate:"min=0"`
}

// PostSummary is the shared shape of posts, pages and attachments.
type PostSummary struct {
	ID       int    `json:"ID" jsonschema:"required" validate:"gt=0"`
	Title    string `json:"title" jsonschema:"required"`
	Modified string `json:"modified" jsonschema:"required" validate:"required"`
	Link     string `json:"link" jsonschema:"required"`
	Type     string `json:"type,omitempty"`
	Status   string `json:"status,omitempty"`
}

type MediaItem struct {
	PostSummary
	Mime string `json:"mime" jsonschema:"required"`
}

type TermItem struct {
	TermID int    `json:"term_id" jsonschema:"required" validate:"gt=0"`
	Name   string `json:"name" jsonschema:"required"`
	Slug   string `json:"slug" jsonschema:"required"`
	Count  int    `json:"count" jsonschema:"required" validate:"min=0"`
}

type CommentItem struct {
	CommentID int    `json:"comment_ID" jsonschema:"required" validate:"gt=0"`
	PostID    int    `json:"post_ID" jsonschema:"required"`
	Author    string `json:"author" jsonschema:"required"`
	Date      string `json:"date" jsonschema:"required" validate:"required"`
	Excerpt   string `json:"excerpt" jsonschema:"required"`
}

// canReadStatus gates non-public statuses on the private read capability.
func canReadStatus(ctx context.Context, status string) bool {
	if status == content.StatusPublish {
		return true
	}
	return auth.FromContext(ctx).Can(auth.ReadPrivatePosts)
}

func always[In any](context.Context, In) bool { return true }

func summarize(p content.Post) PostSummary {
	return PostSummary{
		ID:       p.ID,
		Title:    content.DecodeEntities(p.Title),
		Modified: content.FormatGMT(p.Modified),
		Link:     p.Link,
		Type:     p.Type,
		Status:   p.Status,
	}
}

func summarizeAll(posts []content.Post) []PostSummary {
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, summarize(p))
	}
	return out
}

func termItems(terms []content.Term) []TermItem {
	out := make([]TermItem, 0, len(terms))
	for _, t := range terms {
		out = append(out, TermItem{
			TermID: t.ID,
			Name:   content.DecodeEntities(t.Name),
			Slug:   t.Slug,
			Count:  t.Count,
		})
	}
	return out
}

// buildAbilities returns the seven definitions bound to store. Comment dates
// are rendered in loc.
func buildAbilities(store content.Store, loc *time.Location) ([]*abilities.Ability, error) {
	if loc == nil {
		loc = time.UTC
	}
	var (
		list []*abilities.Ability
		err  error
	)
	add := func(a *abilities.Ability, e error) {
		if e != nil && err == nil {
			err = e
		}
		if a != nil {
			list = append(list, a)
		}
	}

	add(abilities.New(GetPosts, abilities.Definition[PostsInput, []PostSummary]{
		Label:       "Get Recent Posts",
		Description: "Retrieve recent posts (read-only; publish by default).",
		Category:    Namespace,
		Defaults:    PostsInput{Number: 5, Status: content.StatusPublish},
		Meta:        readOnly,
		Permission: func(ctx context.Context, in PostsInput) bool {
			return canReadStatus(ctx, in.Status)
		},
		Execute: func(ctx context.Context, in PostsInput) ([]PostSummary, error) {
			posts, err := store.QueryPosts(ctx, content.PostQuery{
				Type:   content.TypePost,
				Status: in.Status,
				Limit:  in.Number,
			})
			if err != nil {
				return nil, err
			}
			return summarizeAll(posts), nil
		},
	}))

	add(abilities.New(SearchPosts, abilities.Definition[SearchInput, []PostSummary]{
		Label:       "Search Posts",
		Description: "Full-text search for posts by keyword (read-only).",
		Category:    Namespace,
		Defaults:    SearchInput{Number: 5, Status: content.StatusPublish},
		Meta:        readOnly,
		Permission: func(ctx context.Context, in SearchInput) bool {
			return canReadStatus(ctx, in.Status)
		},
		Execute: func(ctx context.Context, in SearchInput) ([]PostSummary, error) {
			// a keyword search spans pages too; an empty one lists posts
			typ := content.TypePost
			if strings.TrimSpace(in.S) != "" {
				typ = content.TypeSearchable
			}
			posts, err := store.QueryPosts(ctx, content.PostQuery{
				Type:   typ,
				Status: in.Status,
				Search: in.S,
				Limit:  in.Number,
			})
			if err != nil {
				return nil, err
			}
			return summarizeAll(posts), nil
		},
	}))

	add(abilities.New(GetPages, abilities.Definition[PagesInput, []PostSummary]{
		Label:       "Get Pages",
		Description: "List published pages (read-only).",
		Category:    Namespace,
		Defaults:    PagesInput{Number: 10},
		Meta:        readOnly,
		Permission:  always[PagesInput],
		Execute: func(ctx context.Context, in PagesInput) ([]PostSummary, error) {
			pages, err := store.QueryPosts(ctx, content.PostQuery{
				Type:   content.TypePage,
				Status: content.StatusPublish,
				Limit:  in.Number,
			})
			if err != nil {
				return nil, err
			}
			return summarizeAll(pages), nil
		},
	}))

	add(abilities.New(GetMedia, abilities.Definition[MediaInput, []MediaItem]{
		Label:       "Get Media",
		Description: "List media library items (read-only).",
		Category:    Namespace,
		Defaults:    MediaInput{Mime: "image", Number: 10},
		Meta:        readOnly,
		Permission:  always[MediaInput],
		Execute: func(ctx context.Context, in MediaInput) ([]MediaItem, error) {
			items, err := store.QueryPosts(ctx, content.PostQuery{
				Type:     content.TypeAttachment,
				Status:   content.StatusInherit,
				MimeType: in.Mime,
				Limit:    in.Number,
			})
			if err != nil {
				return nil, err
			}
			out := make([]MediaItem, 0, len(items))
			for _, p := range items {
				item := MediaItem{PostSummary: summarize(p), Mime: p.MimeType}
				if p.AttachmentURL != "" {
					item.Link = p.AttachmentURL
				}
				out = append(out, item)
			}
			return out, nil
		},
	}))

	add(abilities.New(GetCategories, abilities.Definition[TermsInput, []TermItem]{
		Label:       "Get Categories",
		Description: "List post categories (read-only).",
		Category:    Namespace,
		Defaults:    TermsInput{HideEmpty: true},
		Meta:        readOnly,
		Permission:  always[TermsInput],
		Execute: func(ctx context.Context, in TermsInput) ([]TermItem, error) {
			terms, err := store.QueryTerms(ctx, content.TermQuery{Taxonomy: content.TaxonomyCategory, HideEmpty: in.HideEmpty})
			if err != nil {
				return nil, err
			}
			return termItems(terms), nil
		},
	}))

	add(abilities.New(GetTags, abilities.Definition[TermsInput, []TermItem]{
		Label:       "Get Tags",
		Description: "List post tags (read-only).",
		Category:    Namespace,
		Defaults:    TermsInput{HideEmpty: true},
		Meta:        readOnly,
		Permission:  always[TermsInput],
		Execute: func(ctx context.Context, in TermsInput) ([]TermItem, error) {
			terms, err := store.QueryTerms(ctx, content.TermQuery{Taxonomy: content.TaxonomyTag, HideEmpty: in.HideEmpty})
			if err != nil {
				return nil, err
			}
			return termItems(terms), nil
		},
	}))

	add(abilities.New(GetComments, abilities.Definition[CommentsInput, []CommentItem]{
		Label:       "Get Recent Comments",
		Description: "List recent approved comments (read-only).",
		Category:    Namespace,
		Defaults:    CommentsInput{Number: 10},
		Meta:        readOnly,
		Permission:  always[CommentsInput],
		Execute: func(ctx context.Context, in CommentsInput) ([]CommentItem, error) {
			comments, err := store.QueryComments(ctx, content.CommentQuery{
				PostID: in.PostID,
				Status: content.CommentApproved,
				Limit:  in.Number,
			})
			if err != nil {
				return nil, err
			}
			out := make([]CommentItem, 0, len(comments))
			for _, c := range comments {
				out = append(out, CommentItem{
					CommentID: c.ID,
					PostID:    c.PostID,
					Author:    c.Author,
					Date:      content.FormatLocal(c.Date, loc),
					Excerpt:   content.TrimWords(c.Content, excerptWords),
				})
			}
			return out, nil
		},
	}))

	if err != nil {
		return nil, err
	}
	return list, nil
}
