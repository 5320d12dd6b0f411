package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T, handler http.Handler) *Store {
	t.Helper()
	return openLoggedStore(t, handler, slog.New(slog.DiscardHandler))
}

func openLoggedStore(t *testing.T, handler http.Handler, logger *slog.Logger) *Store {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Content.WordPress.BaseURL = srv.URL + "/"
	cfg.Content.WordPress.Username = "editor"
	cfg.Content.WordPress.AppPassword = "abcd efgh ijkl"
	cfg.Content.WordPress.Timeout = 5 * time.Second
	cfg.Content.WordPress.RetryMax = 1

	store, err := New().Open(context.Background(), cfg, logger)
	require.NoError(t, err)
	return store.(*Store)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestQueryPostsSendsFiltersAndAuth(t *testing.T) {
	store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/posts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "private", q.Get("status"))
		assert.Equal(t, "3", q.Get("per_page"))
		assert.Equal(t, "launch", q.Get("search"))
		assert.Equal(t, "relevance", q.Get("orderby"))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "editor", user)
		assert.Equal(t, "abcdefghijkl", pass)

		writeJSON(w, []map[string]any{{
			"id":           12,
			"type":         "post",
			"status":       "private",
			"link":         "https://example.com/launch/",
			"date_gmt":     "2024-05-01T08:00:00",
			"modified_gmt": "2024-05-02T09:30:00",
			"title":        map[string]string{"rendered": "Launch &#8211; plan"},
		}})
	}))

	posts, err := store.QueryPosts(context.Background(), content.PostQuery{Status: "private", Search: " launch ", Limit: 3})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 12, posts[0].ID)
	assert.Equal(t, "Launch &#8211; plan", posts[0].Title)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC), posts[0].Modified)
}

func TestQuerySearchableMergesPostsAndPages(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		assert.Equal(t, "pricing", r.URL.Query().Get("search"))
		assert.Equal(t, "publish", r.URL.Query().Get("status"))
		switch r.URL.Path {
		case "/wp-json/wp/v2/posts":
			writeJSON(w, []map[string]any{
				{"id": 3, "type": "post", "status": "publish", "date_gmt": "2024-05-03T00:00:00", "title": map[string]string{"rendered": "Spring news"}, "content": map[string]string{"rendered": "new pricing"}},
			})
		case "/wp-json/wp/v2/pages":
			writeJSON(w, []map[string]any{
				{"id": 9, "type": "page", "status": "publish", "date_gmt": "2024-01-01T00:00:00", "title": map[string]string{"rendered": "Pricing"}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	posts, err := store.QueryPosts(context.Background(), content.PostQuery{Type: content.TypeSearchable, Search: "pricing", Limit: 5})
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"/wp-json/wp/v2/posts", "/wp-json/wp/v2/pages"}, paths)
	mu.Unlock()
	require.Len(t, posts, 2)
	assert.Equal(t, 9, posts[0].ID, "title match ranks first")
	assert.Equal(t, 3, posts[1].ID)
}

func TestQueryMediaMapsMimeFilter(t *testing.T) {
	tests := []struct {
		filter    string
		mediaType string
		mimeType  string
	}{
		{"image", "image", ""},
		{"image/*", "image", ""},
		{"image/png", "", "image/png"},
		{"image/png,video", "", ""},
	}
	for _, tt := range tests {
		store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/wp-json/wp/v2/media", r.URL.Path)
			assert.Equal(t, tt.mediaType, r.URL.Query().Get("media_type"), tt.filter)
			assert.Equal(t, tt.mimeType, r.URL.Query().Get("mime_type"), tt.filter)
			assert.Empty(t, r.URL.Query().Get("status"))
			writeJSON(w, []map[string]any{
				{"id": 1, "type": "attachment", "status": "inherit", "mime_type": "image/png", "source_url": "https://cdn/x.png"},
				{"id": 2, "type": "attachment", "status": "inherit", "mime_type": "application/pdf", "source_url": "https://cdn/y.pdf"},
			})
		}))

		media, err := store.QueryPosts(context.Background(), content.PostQuery{Type: content.TypeAttachment, MimeType: tt.filter, Limit: 10})
		require.NoError(t, err)
		require.Len(t, media, 1, tt.filter)
		assert.Equal(t, "image/png", media[0].MimeType)
		assert.Equal(t, "https://cdn/x.png", media[0].AttachmentURL)
	}
}

func TestQueryTermsFollowsPagination(t *testing.T) {
	var calls int32
	store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/wp-json/wp/v2/tags", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("hide_empty"))
		w.Header().Set("X-WP-TotalPages", "2")
		if r.URL.Query().Get("page") == "1" {
			writeJSON(w, []map[string]any{{"id": 1, "taxonomy": "post_tag", "name": "a", "slug": "a", "count": 1}})
			return
		}
		writeJSON(w, []map[string]any{{"id": 2, "taxonomy": "post_tag", "name": "b", "slug": "b", "count": 4}})
	}))

	terms, err := store.QueryTerms(context.Background(), content.TermQuery{Taxonomy: content.TaxonomyTag, HideEmpty: true})
	require.NoError(t, err)
	assert.Len(t, terms, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueryCommentsUsesApproveStatus(t *testing.T) {
	store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wp-json/wp/v2/comments", r.URL.Path)
		assert.Equal(t, "approve", r.URL.Query().Get("status"))
		assert.Equal(t, "42", r.URL.Query().Get("post"))
		writeJSON(w, []map[string]any{{
			"id": 7, "post": 42, "author_name": "Ann", "date_gmt": "2024-05-03T10:00:00",
			"status": "approved", "content": map[string]string{"rendered": "<p>Nice</p>"},
		}})
	}))

	comments, err := store.QueryComments(context.Background(), content.CommentQuery{PostID: 42, Limit: 10})
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Ann", comments[0].Author)
	assert.Equal(t, 42, comments[0].PostID)
}

func TestAPIErrorIsSurfaced(t *testing.T) {
	store := openStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"code": "rest_forbidden", "message": "Sorry, you are not allowed to do that."})
	}))

	_, err := store.QueryPosts(context.Background(), content.PostQuery{Status: "private"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "rest_forbidden", apiErr.Code)
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls int32
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := openLoggedStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, []map[string]any{})
	}), logger)

	posts, err := store.QueryPosts(context.Background(), content.PostQuery{})
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Contains(t, logs.String(), "retrying request")
}

func TestBuildBaseURL(t *testing.T) {
	u, err := buildBaseURL("https://example.com/blog/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/blog/wp-json/wp/v2", u.String())

	_, err = buildBaseURL("example.com")
	assert.Error(t, err)
}
