package content

import (
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is a static copy of site content, usually loaded from YAML.
type Snapshot struct {
	SiteURL  string    `yaml:"site_url"`
	Posts    []Post    `yaml:"posts"`
	Terms    []Term    `yaml:"terms"`
	Comments []Comment `yaml:"comments"`
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse content snapshot: %w", err)
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	snap.fill()
	return &snap, nil
}

func ReadSnapshot(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

func (s *Snapshot) validate() error {
	posts := make(map[int]struct{}, len(s.Posts))
	for _, p := range s.Posts {
		if p.ID <= 0 {
			return fmt.Errorf("post %q has no id", p.Title)
		}
		if _, dup := posts[p.ID]; dup {
			return fmt.Errorf("duplicate post id %d", p.ID)
		}
		posts[p.ID] = struct{}{}
	}
	terms := make(map[int]struct{}, len(s.Terms))
	for _, t := range s.Terms {
		if t.ID <= 0 {
			return fmt.Errorf("term %q has no id", t.Name)
		}
		if _, dup := terms[t.ID]; dup {
			return fmt.Errorf("duplicate term id %d", t.ID)
		}
		terms[t.ID] = struct{}{}
	}
	comments := make(map[int]struct{}, len(s.Comments))
	for _, c := range s.Comments {
		if c.ID <= 0 {
			return fmt.Errorf("comment on post %d has no id", c.PostID)
		}
		if _, dup := comments[c.ID]; dup {
			return fmt.Errorf("duplicate comment id %d", c.ID)
		}
		comments[c.ID] = struct{}{}
	}
	return nil
}

// fill applies the same defaults the content platform would on insert.
func (s *Snapshot) fill() {
	for i := range s.Posts {
		p := &s.Posts[i]
		if p.Type == "" {
			p.Type = TypePost
		}
		if p.Status == "" {
			if p.Type == TypeAttachment {
				p.Status = StatusInherit
			} else {
				p.Status = StatusPublish
			}
		}
		if p.Modified.IsZero() {
			p.Modified = p.Date
		}
		if p.Date.IsZero() {
			p.Date = p.Modified
		}
	}
	for i := range s.Terms {
		if s.Terms[i].Taxonomy == "" {
			s.Terms[i].Taxonomy = TaxonomyCategory
		}
	}
	for i := range s.Comments {
		if s.Comments[i].Status == "" {
			s.Comments[i].Status = CommentApproved
		}
	}
}

// withLinks returns p with a permalink and, for attachments, a file URL. Plain
// query-string permalinks are used when the snapshot does not carry one.
func (s *Snapshot) withLinks(p Post) Post {
	base := strings.TrimRight(s.SiteURL, "/")
	if p.Link == "" {
		switch p.Type {
		case TypePage:
			p.Link = fmt.Sprintf("%s/?page_id=%d", base, p.ID)
		case TypeAttachment:
			p.Link = fmt.Sprintf("%s/?attachment_id=%d", base, p.ID)
		default:
			p.Link = fmt.Sprintf("%s/?p=%d", base, p.ID)
		}
	}
	if p.Type == TypeAttachment && p.AttachmentURL != "" && !strings.Contains(p.AttachmentURL, "://") {
		p.AttachmentURL = base + "/wp-content/uploads/" + strings.TrimLeft(p.AttachmentURL, "/")
	}
	return p
}

func newer(ti time.Time, idi int, tj time.Time, idj int) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}
