package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	apiPath    = "/wp-json/wp/v2"
	maxPerPage = 100
	// the REST API reports *_gmt fields without an offset
	gmtLayout = "2006-01-02T15:04:05"
)

// Client talks to the WordPress REST API using an application password.
type Client struct {
	base     *url.URL
	username string
	password string
	http     *retryablehttp.Client
}

// NewClient builds a client for the site at baseURL. Retries are logged to
// logger, or to the default logger when it is nil.
func NewClient(baseURL, username, password string, timeout time.Duration, retryMax int, logger *slog.Logger) (*Client, error) {
	base, err := buildBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = retryMax
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.HTTPClient.Timeout = timeout
	if logger == nil {
		logger = slog.Default()
	}
	httpClient.Logger = logger

	return &Client{
		base:     base,
		username: username,
		password: strings.ReplaceAll(password, " ", ""),
		http:     httpClient,
	}, nil
}

func buildBaseURL(baseURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return nil, fmt.Errorf("base url is empty")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base url must include scheme and host")
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + apiPath
	return parsed, nil
}

// get decodes the JSON body of GET <base>/<resource>?<query> into out and
// returns the X-WP-TotalPages header (1 when absent).
func (c *Client) get(ctx context.Context, resource string, query url.Values, out any) (int, error) {
	endpoint := *c.base
	endpoint.Path += "/" + resource
	endpoint.RawQuery = query.Encode()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build wordpress request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to query wordpress: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("failed to decode wordpress response: %w", err)
	}

	pages := 1
	if v := resp.Header.Get("X-WP-TotalPages"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			pages = n
		}
	}
	return pages, nil
}

// APIError is the error body returned by the REST API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("wordpress returned status %d", e.Status)
	}
	return fmt.Sprintf("wordpress returned status %d: %s (%s)", e.Status, e.Message, e.Code)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(body, apiErr)
	return apiErr
}

type rendered struct {
	Rendered string `json:"rendered"`
}

type wpPost struct {
	ID          int      `json:"id"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Slug        string   `json:"slug"`
	Link        string   `json:"link"`
	DateGMT     string   `json:"date_gmt"`
	ModifiedGMT string   `json:"modified_gmt"`
	Title       rendered `json:"title"`
	Content     rendered `json:"content"`
	Excerpt     rendered `json:"excerpt"`
	MimeType    string   `json:"mime_type"`
	SourceURL   string   `json:"source_url"`
}

type wpTerm struct {
	ID       int    `json:"id"`
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Count    int    `json:"count"`
}

type wpComment struct {
	ID         int      `json:"id"`
	Post       int      `json:"post"`
	AuthorName string   `json:"author_name"`
	DateGMT    string   `json:"date_gmt"`
	Status     string   `json:"status"`
	Content    rendered `json:"content"`
}

func parseGMT(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(gmtLayout, value, time.UTC)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, value); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}
