package content

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore answers queries from an in-memory Snapshot. The snapshot can be
// swapped while queries are running.
type MemoryStore struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewMemoryStore(snap *Snapshot) *MemoryStore {
	if snap == nil {
		snap = &Snapshot{}
	}
	return &MemoryStore{snap: snap}
}

// Replace swaps the snapshot served by the store.
func (s *MemoryStore) Replace(snap *Snapshot) {
	if snap == nil {
		snap = &Snapshot{}
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *MemoryStore) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *MemoryStore) QueryPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalized()
	terms := parseSearch(q.Search)
	snap := s.Snapshot()

	var matched []Post
	for _, p := range snap.Posts {
		if !q.MatchesType(p.Type) || p.Status != q.Status {
			continue
		}
		if q.Type == TypeAttachment && !MatchMime(q.MimeType, p.MimeType) {
			continue
		}
		if !terms.matches(p) {
			continue
		}
		matched = append(matched, snap.withLinks(p))
	}

	SortBySearch(matched, q.Search)
	return limit(matched, q.Limit), nil
}

// SortBySearch orders posts the way a keyword search ranks them: an exact
// phrase in the title first, then title matches, then the rest, newest first
// within each group. An empty search orders by date alone.
func SortBySearch(posts []Post, search string) {
	terms := parseSearch(search)
	phrase := strings.ToLower(strings.TrimSpace(search))
	sort.SliceStable(posts, func(i, j int) bool {
		if !terms.empty() {
			ri, rj := terms.rank(posts[i], phrase), terms.rank(posts[j], phrase)
			if ri != rj {
				return ri < rj
			}
		}
		return newer(posts[i].Date, posts[i].ID, posts[j].Date, posts[j].ID)
	})
}

func (s *MemoryStore) QueryTerms(ctx context.Context, q TermQuery) ([]Term, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snap := s.Snapshot()

	var matched []Term
	for _, t := range snap.Terms {
		if t.Taxonomy != q.Taxonomy {
			continue
		}
		if q.HideEmpty && t.Count == 0 {
			continue
		}
		matched = append(matched, t)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ni, nj := strings.ToLower(matched[i].Name), strings.ToLower(matched[j].Name)
		if ni != nj {
			return ni < nj
		}
		return matched[i].ID < matched[j].ID
	})
	return matched, nil
}

func (s *MemoryStore) QueryComments(ctx context.Context, q CommentQuery) ([]Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalized()
	snap := s.Snapshot()

	var matched []Comment
	for _, c := range snap.Comments {
		if c.Status != q.Status {
			continue
		}
		if q.PostID != 0 && c.PostID != q.PostID {
			continue
		}
		matched = append(matched, c)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return newer(matched[i].Date, matched[i].ID, matched[j].Date, matched[j].ID)
	})
	return limit(matched, q.Limit), nil
}

// MatchMime reports whether actual satisfies filter. A filter is a comma
// separated list of full types ("image/png"), wildcards ("image/*") or bare
// top-level types ("image"). An empty filter matches everything.
func MatchMime(filter, actual string) bool {
	filter = strings.TrimSpace(filter)
	if filter == "" || filter == "*" {
		return true
	}
	actual = strings.ToLower(actual)
	for _, part := range strings.Split(filter, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch {
		case part == "":
			continue
		case strings.HasSuffix(part, "/*"):
			if strings.HasPrefix(actual, strings.TrimSuffix(part, "*")) {
				return true
			}
		case strings.Contains(part, "/"):
			if actual == part {
				return true
			}
		default:
			if strings.HasPrefix(actual, part+"/") {
				return true
			}
		}
	}
	return false
}

type searchTerms struct {
	include []string
	exclude []string
}

// parseSearch splits a search string into lower-cased terms. Quoted phrases
// stay together and a leading "-" excludes a term.
func parseSearch(s string) searchTerms {
	var terms searchTerms
	var tokens []string
	var cur strings.Builder
	quoted := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			flush()
		case !quoted && (r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == ','):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()

	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			terms.exclude = append(terms.exclude, tok[1:])
			continue
		}
		if tok != "" && tok != "-" {
			terms.include = append(terms.include, tok)
		}
	}
	return terms
}

func (t searchTerms) empty() bool {
	return len(t.include) == 0 && len(t.exclude) == 0
}

func (t searchTerms) matches(p Post) bool {
	if t.empty() {
		return true
	}
	haystack := strings.ToLower(p.Title + "\n" + p.Excerpt + "\n" + p.Content)
	for _, term := range t.include {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	for _, term := range t.exclude {
		if strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// rank orders search hits: full phrase in the title, then every term in the
// title, then the rest.
func (t searchTerms) rank(p Post, phrase string) int {
	title := strings.ToLower(p.Title)
	if phrase != "" && strings.Contains(title, phrase) {
		return 0
	}
	if len(t.include) == 0 {
		return 2
	}
	for _, term := range t.include {
		if !strings.Contains(title, term) {
			return 2
		}
	}
	return 1
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
