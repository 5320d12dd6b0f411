package content

import (
	"strings"
	"time"

	"golang.org/x/net/html"
)

// ISO8601 always spells out the UTC offset instead of using "Z".
const ISO8601 = "2006-01-02T15:04:05-07:00"

const ellipsis = "…"

// FormatGMT renders t in UTC.
func FormatGMT(t time.Time) string {
	return t.UTC().Format(ISO8601)
}

// FormatLocal renders t in loc, falling back to UTC when loc is nil.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(ISO8601)
}

// StripTags returns the text content of an HTML fragment with entities decoded.
func StripTags(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF ends a well-formed fragment; anything else is truncated input
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// TrimWords strips markup and keeps at most n whitespace separated words,
// marking a cut with an ellipsis attached to the last kept word.
func TrimWords(text string, n int) string {
	words := strings.Fields(StripTags(text))
	if n <= 0 || len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:n], " ") + ellipsis
}

// DecodeEntities turns rendered titles such as "Tom&#8217;s" into plain text.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}
