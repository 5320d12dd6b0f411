package wordpress

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/registry"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
)

const sourceName = config.SourceWordPress

// the REST API caps term listings, so pagination stops here regardless of
// X-WP-TotalPages
const maxTermPages = 50

type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) Name() string {
	return sourceName
}

func (s *Source) Enabled(cfg *config.Config) bool {
	return cfg.Content.WordPress.BaseURL != ""
}

func (s *Source) Open(_ context.Context, cfg *config.Config, logger *slog.Logger) (content.Store, error) {
	wp := cfg.Content.WordPress
	client, err := NewClient(wp.BaseURL, wp.Username, wp.AppPassword, wp.Timeout, wp.RetryMax, logger)
	if err != nil {
		return nil, fmt.Errorf("invalid wordpress url: %w", err)
	}
	return &Store{client: client}, nil
}

// Store answers content queries live from a WordPress site.
type Store struct {
	client *Client
}

func (s *Store) QueryPosts(ctx context.Context, q content.PostQuery) ([]content.Post, error) {
	if q.Type != content.TypeSearchable {
		return s.queryType(ctx, q)
	}

	// the collection endpoints are per type, so search each and rank the union
	var merged []content.Post
	for _, typ := range []string{content.TypePost, content.TypePage} {
		sub := q
		sub.Type = typ
		posts, err := s.queryType(ctx, sub)
		if err != nil {
			return nil, err
		}
		merged = append(merged, posts...)
	}
	content.SortBySearch(merged, q.Search)
	if q.Limit > 0 && len(merged) > q.Limit {
		merged = merged[:q.Limit]
	}
	return merged, nil
}

func (s *Store) queryType(ctx context.Context, q content.PostQuery) ([]content.Post, error) {
	resource, params := postParams(q)

	var items []wpPost
	if _, err := s.client.get(ctx, resource, params, &items); err != nil {
		return nil, err
	}

	posts := make([]content.Post, 0, len(items))
	for _, item := range items {
		post := content.Post{
			ID:            item.ID,
			Type:          item.Type,
			Status:        item.Status,
			Title:         item.Title.Rendered,
			Content:       item.Content.Rendered,
			Excerpt:       item.Excerpt.Rendered,
			Slug:          item.Slug,
			Date:          parseGMT(item.DateGMT),
			Modified:      parseGMT(item.ModifiedGMT),
			Link:          item.Link,
			MimeType:      item.MimeType,
			AttachmentURL: item.SourceURL,
		}
		if post.Type == content.TypeAttachment && !content.MatchMime(q.MimeType, post.MimeType) {
			continue
		}
		posts = append(posts, post)
	}
	if q.Limit > 0 && len(posts) > q.Limit {
		posts = posts[:q.Limit]
	}
	return posts, nil
}

func postParams(q content.PostQuery) (string, url.Values) {
	params := url.Values{}
	params.Set("orderby", "date")
	params.Set("order", "desc")
	if q.Limit > 0 {
		params.Set("per_page", strconv.Itoa(min(q.Limit, maxPerPage)))
	}

	search := strings.TrimSpace(q.Search)
	if search != "" && q.Type != content.TypeAttachment {
		params.Set("search", search)
		params.Set("orderby", "relevance")
	}

	switch q.Type {
	case content.TypePage:
		params.Set("status", statusOr(q.Status, content.StatusPublish))
		return "pages", params
	case content.TypeAttachment:
		// media is always "inherit"; the endpoint rejects a status filter for it
		mediaType, mimeType := mimeParams(q.MimeType)
		if mediaType != "" {
			params.Set("media_type", mediaType)
		}
		if mimeType != "" {
			params.Set("mime_type", mimeType)
		}
		if mediaType == "" && mimeType == "" && q.MimeType != "" {
			// filtered locally; fetch a full page to leave room for misses
			params.Set("per_page", strconv.Itoa(maxPerPage))
		}
		return "media", params
	default:
		params.Set("status", statusOr(q.Status, content.StatusPublish))
		return "posts", params
	}
}

// mimeParams maps a MIME filter onto the media endpoint's server side filters.
// Lists and wildcards other than "type/*" are left to local filtering.
func mimeParams(filter string) (mediaType, mimeType string) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" || filter == "*" || strings.Contains(filter, ",") {
		return "", ""
	}
	top := strings.TrimSuffix(filter, "/*")
	switch {
	case !strings.Contains(top, "/"):
		switch top {
		case "image", "video", "audio", "text", "application":
			return top, ""
		}
		return "", ""
	case !strings.Contains(filter, "*"):
		return "", filter
	}
	return "", ""
}

func statusOr(status, def string) string {
	if status == "" {
		return def
	}
	return status
}

func (s *Store) QueryTerms(ctx context.Context, q content.TermQuery) ([]content.Term, error) {
	resource := "categories"
	if q.Taxonomy == content.TaxonomyTag {
		resource = "tags"
	}
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(maxPerPage))
	params.Set("orderby", "name")
	params.Set("order", "asc")
	params.Set("hide_empty", strconv.FormatBool(q.HideEmpty))

	var terms []content.Term
	for page := 1; page <= maxTermPages; page++ {
		params.Set("page", strconv.Itoa(page))
		var items []wpTerm
		total, err := s.client.get(ctx, resource, params, &items)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			terms = append(terms, content.Term{
				ID:       item.ID,
				Taxonomy: item.Taxonomy,
				Name:     item.Name,
				Slug:     item.Slug,
				Count:    item.Count,
			})
		}
		if page >= total {
			break
		}
	}
	return terms, nil
}

func (s *Store) QueryComments(ctx context.Context, q content.CommentQuery) ([]content.Comment, error) {
	params := url.Values{}
	params.Set("orderby", "date_gmt")
	params.Set("order", "desc")
	// the endpoint spells the approved status "approve"
	status := statusOr(q.Status, content.CommentApproved)
	if status == content.CommentApproved {
		status = "approve"
	}
	params.Set("status", status)
	if q.Limit > 0 {
		params.Set("per_page", strconv.Itoa(min(q.Limit, maxPerPage)))
	}
	if q.PostID > 0 {
		params.Set("post", strconv.Itoa(q.PostID))
	}

	var items []wpComment
	if _, err := s.client.get(ctx, "comments", params, &items); err != nil {
		return nil, err
	}
	comments := make([]content.Comment, 0, len(items))
	for _, item := range items {
		comments = append(comments, content.Comment{
			ID:      item.ID,
			PostID:  item.Post,
			Author:  item.AuthorName,
			Date:    parseGMT(item.DateGMT),
			Content: item.Content.Rendered,
			Status:  item.Status,
		})
	}
	return comments, nil
}

func init() {
	registry.Register(sourceName, New())
}

var (
	_ types.ContentSource = (*Source)(nil)
	_ content.Store       = (*Store)(nil)
)
