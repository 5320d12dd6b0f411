package marketing

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/adapter"
	"github.com/edgeopslabs/marketing-mcp/pkg/auth"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/lifecycle"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteContent = `
site_url: https://shop.example.com
posts:
  - {id: 1, title: "Spring &amp; Summer launch", content: "New colours for spring.", date: 2024-04-01T09:00:00Z, modified: 2024-04-02T10:30:00Z}
  - {id: 2, title: Pricing explained, content: How the launch tiers work., date: 2024-04-03T09:00:00Z}
  - {id: 3, title: Board notes, status: private, date: 2024-04-04T09:00:00Z}
  - {id: 4, type: page, title: Contact, date: 2024-01-01T00:00:00Z}
  - {id: 5, type: page, title: Draft page, status: draft, date: 2024-01-02T00:00:00Z}
  - {id: 6, type: attachment, title: Logo, mime_type: image/svg+xml, attachment_url: 2024/04/logo.svg, date: 2024-04-05T00:00:00Z}
  - {id: 7, type: attachment, title: Price list, mime_type: application/pdf, attachment_url: https://cdn.example.com/prices.pdf, date: 2024-04-06T00:00:00Z}
  - {id: 8, type: attachment, title: Hero, mime_type: image/webp, attachment_url: 2024/04/hero.webp, date: 2024-04-07T00:00:00Z}
terms:
  - {id: 10, name: Campaigns, slug: campaigns, count: 4}
  - {id: 11, name: Unused, slug: unused, count: 0}
  - {id: 20, taxonomy: post_tag, name: spring, slug: spring, count: 1}
  - {id: 21, taxonomy: post_tag, name: stale, slug: stale, count: 0}
comments:
  - {id: 100, post_id: 42, author: Ann, content: "<p>Love the new colours</p>", date: 2024-04-10T12:00:00Z}
  - {id: 101, post_id: 42, author: Bob, content: "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen seventeen eighteen nineteen twenty twenty-one twenty-two twenty-three twenty-four twenty-five twenty-six twenty-seven twenty-eight twenty-nine thirty thirty-one thirty-two", date: 2024-04-11T12:00:00Z}
  - {id: 102, post_id: 42, author: Bot, content: cheap pills, status: spam, date: 2024-04-12T12:00:00Z}
  - {id: 103, post_id: 42, author: Dee, content: pending, status: hold, date: 2024-04-13T12:00:00Z}
  - {id: 104, post_id: 1, author: Eve, content: elsewhere, date: 2024-04-14T12:00:00Z}
`

var tokyo = time.FixedZone("JST", 9*60*60)

func newStore(t *testing.T) content.Store {
	t.Helper()
	snap, err := content.ParseSnapshot([]byte(siteContent))
	require.NoError(t, err)
	return content.NewMemoryStore(snap)
}

func registered(t *testing.T) *abilities.Registry {
	t.Helper()
	reg := abilities.NewRegistry(nil)
	r := NewRegistrar(types.Available(reg), newStore(t), tokyo, nil)
	require.NoError(t, r.Register(context.Background()))
	return reg
}

func run[T any](t *testing.T, ctx context.Context, reg *abilities.Registry, name, args string) T {
	t.Helper()
	out, err := reg.Execute(ctx, name, json.RawMessage(args))
	require.NoError(t, err)
	typed, ok := out.(T)
	require.True(t, ok, "unexpected output type %T", out)
	return typed
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var abilityErr *abilities.Error
	require.ErrorAs(t, err, &abilityErr)
	return abilityErr.Code
}

func TestRegisterAddsSevenReadOnlyAbilities(t *testing.T) {
	reg := registered(t)

	_, ok := reg.Category(Namespace)
	require.True(t, ok)
	for _, name := range AbilityNames() {
		a, ok := reg.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, Namespace, a.Category())
		assert.True(t, a.Meta().ReadOnly, name)
		assert.True(t, a.Meta().ShowInREST, name)
		assert.False(t, a.Meta().Destructive, name)
	}
	assert.Len(t, reg.List(), 7)
}

func TestRegisterTwiceKeepsOneDefinition(t *testing.T) {
	reg := abilities.NewRegistry(nil)
	store := newStore(t)
	r := NewRegistrar(types.Available(reg), store, nil, nil)

	require.NoError(t, r.Register(context.Background()))
	first, _ := reg.Get(GetPosts)
	require.NoError(t, r.Register(context.Background()))
	assert.True(t, r.Registered())

	// a second registrar bypasses the guard and hits the registry dedup
	other := NewRegistrar(types.Available(reg), store, nil, nil)
	require.NoError(t, other.Register(context.Background()))

	assert.Len(t, reg.List(), 7)
	again, _ := reg.Get(GetPosts)
	assert.Same(t, first, again)
}

func TestRegisterWithoutRegistryIsNoop(t *testing.T) {
	r := NewRegistrar(types.Unavailable[*abilities.Registry](), newStore(t), nil, nil)
	require.NoError(t, r.Register(context.Background()))
	assert.False(t, r.Registered())
}

func TestGetPostsDefaults(t *testing.T) {
	reg := registered(t)
	posts := run[[]PostSummary](t, context.Background(), reg, GetPosts, `{}`)

	require.Len(t, posts, 2)
	assert.Equal(t, 2, posts[0].ID)
	first := posts[1]
	assert.Equal(t, 1, first.ID)
	assert.Equal(t, "Spring & Summer launch", first.Title)
	assert.Equal(t, "2024-04-02T10:30:00+00:00", first.Modified)
	assert.Equal(t, "https://shop.example.com/?p=1", first.Link)
	assert.Equal(t, content.TypePost, first.Type)
	assert.Equal(t, content.StatusPublish, first.Status)
}

func TestGetPostsPrivateRequiresCapability(t *testing.T) {
	reg := registered(t)

	_, err := reg.Execute(context.Background(), GetPosts, json.RawMessage(`{"status":"private"}`))
	assert.Equal(t, abilities.CodeInvalidPermissions, errorCode(t, err))

	editor := auth.WithCaller(context.Background(), auth.Caller{Login: "editor", Capabilities: []string{auth.ReadPrivatePosts}})
	posts := run[[]PostSummary](t, editor, reg, GetPosts, `{"status":"private"}`)
	require.Len(t, posts, 1)
	assert.Equal(t, 3, posts[0].ID)

	// publish needs no capability
	run[[]PostSummary](t, context.Background(), reg, GetPosts, `{"status":"publish","number":1}`)
}

func TestGetPostsIgnoresMiscasedKeys(t *testing.T) {
	reg := registered(t)

	posts := run[[]PostSummary](t, context.Background(), reg, GetPosts, `{"Status":"private","NUMBER":99}`)
	require.Len(t, posts, 2)
	for _, p := range posts {
		assert.Equal(t, content.StatusPublish, p.Status)
	}

	posts = run[[]PostSummary](t, context.Background(), reg, GetPosts, `{"number":1.0}`)
	assert.Len(t, posts, 1)

	_, err := reg.Execute(context.Background(), GetPosts, json.RawMessage(`{"number":null}`))
	assert.Equal(t, abilities.CodeInvalidInput, errorCode(t, err))
}

func TestGetPostsRejectsOutOfRangeNumber(t *testing.T) {
	reg := registered(t)
	for _, args := range []string{`{"number":0}`, `{"number":51}`, `{"status":"draft"}`, `{"number":"five"}`} {
		_, err := reg.Execute(context.Background(), GetPosts, json.RawMessage(args))
		assert.Equal(t, abilities.CodeInvalidInput, errorCode(t, err), args)
	}
}

func TestSearchPosts(t *testing.T) {
	reg := registered(t)

	posts := run[[]PostSummary](t, context.Background(), reg, SearchPosts, `{"s":"launch"}`)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, posts[0].ID, "title match ranks first")

	pages := run[[]PostSummary](t, context.Background(), reg, SearchPosts, `{"s":"contact"}`)
	require.Len(t, pages, 1)
	assert.Equal(t, 4, pages[0].ID)
	assert.Equal(t, content.TypePage, pages[0].Type)

	_, err := reg.Execute(context.Background(), SearchPosts, json.RawMessage(`{}`))
	assert.Equal(t, abilities.CodeInvalidInput, errorCode(t, err))

	_, err = reg.Execute(context.Background(), SearchPosts, json.RawMessage(`{"s":"notes","status":"private"}`))
	assert.Equal(t, abilities.CodeInvalidPermissions, errorCode(t, err))
}

func TestSearchPostsEmptyTermReturnsLatest(t *testing.T) {
	reg := registered(t)
	posts := run[[]PostSummary](t, context.Background(), reg, SearchPosts, `{"s":"","number":1}`)
	require.Len(t, posts, 1)
	assert.Equal(t, 2, posts[0].ID)
}

func TestGetPagesOnlyPublished(t *testing.T) {
	reg := registered(t)
	pages := run[[]PostSummary](t, context.Background(), reg, GetPages, `{}`)
	require.Len(t, pages, 1)
	assert.Equal(t, 4, pages[0].ID)
	assert.Equal(t, content.TypePage, pages[0].Type)
}

func TestGetMediaCarriesActualMimeAndFileURL(t *testing.T) {
	reg := registered(t)

	media := run[[]MediaItem](t, context.Background(), reg, GetMedia, `{}`)
	require.Len(t, media, 2)
	assert.Equal(t, 8, media[0].ID)
	assert.Equal(t, "image/webp", media[0].Mime)
	assert.Equal(t, "https://shop.example.com/wp-content/uploads/2024/04/hero.webp", media[0].Link)
	assert.Equal(t, "image/svg+xml", media[1].Mime)

	pdfs := run[[]MediaItem](t, context.Background(), reg, GetMedia, `{"mime":"application"}`)
	require.Len(t, pdfs, 1)
	assert.Equal(t, "application/pdf", pdfs[0].Mime)
	assert.Equal(t, "https://cdn.example.com/prices.pdf", pdfs[0].Link)

	all := run[[]MediaItem](t, context.Background(), reg, GetMedia, `{"mime":""}`)
	assert.Len(t, all, 3)
}

func TestGetTerms(t *testing.T) {
	reg := registered(t)

	cats := run[[]TermItem](t, context.Background(), reg, GetCategories, `{}`)
	require.Len(t, cats, 1)
	assert.Equal(t, TermItem{TermID: 10, Name: "Campaigns", Slug: "campaigns", Count: 4}, cats[0])

	cats = run[[]TermItem](t, context.Background(), reg, GetCategories, `{"hide_empty":false}`)
	assert.Len(t, cats, 2)

	tags := run[[]TermItem](t, context.Background(), reg, GetTags, `{"hide_empty":false}`)
	require.Len(t, tags, 2)
	for _, tag := range tags {
		assert.NotEqual(t, 10, tag.TermID)
	}
}

func TestGetCommentsForPost(t *testing.T) {
	reg := registered(t)

	comments := run[[]CommentItem](t, context.Background(), reg, GetComments, `{"post_id":42}`)
	require.Len(t, comments, 2)
	assert.Equal(t, []int{101, 100}, []int{comments[0].CommentID, comments[1].CommentID})
	for _, c := range comments {
		assert.Equal(t, 42, c.PostID)
		assert.LessOrEqual(t, len(strings.Fields(c.Excerpt)), 30)
	}
	assert.Equal(t, "2024-04-11T21:00:00+09:00", comments[0].Date)
	assert.True(t, strings.HasSuffix(comments[0].Excerpt, "thirty…"))
	assert.Equal(t, "Love the new colours", comments[1].Excerpt)

	all := run[[]CommentItem](t, context.Background(), reg, GetComments, `{}`)
	assert.Len(t, all, 3)
}

func TestPublisherPrefersStreamableHTTP(t *testing.T) {
	reg := registered(t)
	a := adapter.New(reg)
	p := NewPublisher(types.Available(a), nil, nil)

	require.NoError(t, p.Publish(context.Background()))
	srv, ok := a.Server(ServerID)
	require.True(t, ok)

	cfg := srv.Config()
	assert.Equal(t, []adapter.TransportKind{adapter.TransportStreamableHTTP, adapter.TransportStdio}, cfg.Transports)
	assert.Equal(t, ServerDomain, cfg.Domain)
	assert.Equal(t, adapter.ProtocolMCP, cfg.Protocol)
	assert.Equal(t, ServerName, cfg.Name)
	assert.Equal(t, ServerVersion, cfg.Version)
	assert.Equal(t, AbilityNames(), cfg.Abilities)
	assert.Nil(t, cfg.Observability)
	assert.Len(t, srv.MCP().ListTools(), 7)
}

func TestPublisherFallsBackToSSE(t *testing.T) {
	reg := registered(t)
	a := adapter.New(reg, adapter.WithTransports(adapter.TransportSSE))
	p := NewPublisher(types.Available(a), nil, nil)

	require.NoError(t, p.Publish(context.Background()))
	srv, ok := a.Server(ServerID)
	require.True(t, ok)
	assert.Equal(t, []adapter.TransportKind{adapter.TransportSSE}, srv.Config().Transports)
}

func TestPublishOnce(t *testing.T) {
	a := adapter.New(registered(t))
	p := NewPublisher(types.Available(a), nil, nil)

	require.NoError(t, p.Publish(context.Background()))
	require.NoError(t, p.Publish(context.Background()))
	assert.Len(t, a.Servers(), 1)
}

func TestPublishWithoutAdapterIsNoop(t *testing.T) {
	p := NewPublisher(types.Unavailable[*adapter.Adapter](), nil, nil)
	assert.NoError(t, p.Publish(context.Background()))
}

func TestBootRegistersThenPublishes(t *testing.T) {
	reg := abilities.NewRegistry(nil)
	a := adapter.New(reg)
	r := NewRegistrar(types.Available(reg), newStore(t), nil, nil)
	p := NewPublisher(types.Available(a), nil, nil)

	hooks := lifecycle.New(nil)
	AddHooks(hooks, r, p)
	require.NoError(t, hooks.Boot(context.Background()))

	assert.Equal(t, 1, hooks.DidAction(lifecycle.Init))
	assert.Len(t, reg.List(), 7)
	srv, ok := a.Server(ServerID)
	require.True(t, ok)
	for _, status := range srv.Tools() {
		assert.Equal(t, "allowed", status.Status, status.Ability)
	}
}
