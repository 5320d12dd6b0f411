package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/registry"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
	"github.com/fsnotify/fsnotify"
)

const (
	sourceName       = config.SourceFile
	debounceInterval = 250 * time.Millisecond
)

type Source struct{}

func New() *Source {
	return &Source{}
}

func (s *Source) Name() string {
	return sourceName
}

func (s *Source) Enabled(cfg *config.Config) bool {
	return cfg.Content.File.Path != ""
}

func (s *Source) Open(_ context.Context, cfg *config.Config, logger *slog.Logger) (content.Store, error) {
	path, err := resolvePath(cfg.Content.File.Path)
	if err != nil {
		return nil, err
	}
	snap, err := load(path, cfg.Content.SiteURL)
	if err != nil {
		return nil, err
	}
	store := &Store{
		MemoryStore: content.NewMemoryStore(snap),
		path:        path,
		siteURL:     cfg.Content.SiteURL,
		watch:       cfg.Content.File.Watch,
		logger:      logger,
	}
	logger.Info("content snapshot loaded", "path", path, "posts", len(snap.Posts), "terms", len(snap.Terms), "comments", len(snap.Comments))
	return store, nil
}

// Store serves a YAML snapshot from disk and, when watching is enabled,
// reloads it whenever the file changes.
type Store struct {
	*content.MemoryStore
	path    string
	siteURL string
	watch   bool
	logger  *slog.Logger
}

// Reload re-reads the snapshot. A broken file leaves the previous snapshot in
// place.
func (s *Store) Reload() error {
	snap, err := load(s.path, s.siteURL)
	if err != nil {
		return err
	}
	s.Replace(snap)
	return nil
}

// Watch blocks until ctx is done. It returns immediately when watching is
// disabled in config.
func (s *Store) Watch(ctx context.Context) error {
	if !s.watch {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(s.path), err)
	}
	s.logger.Info("watching content snapshot", "path", s.path)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceInterval)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("content watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				s.logger.Warn("content reload failed, keeping previous snapshot", "path", s.path, "error", err)
				continue
			}
			s.logger.Info("content snapshot reloaded", "path", s.path)
		}
	}
}

func load(path, siteURL string) (*content.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content snapshot: %w", err)
	}
	defer f.Close()

	snap, err := content.ReadSnapshot(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if snap.SiteURL == "" {
		snap.SiteURL = siteURL
	}
	return snap, nil
}

func resolvePath(input string) (string, error) {
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", fmt.Errorf("invalid content path: %v", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("content snapshot not readable: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("content path %s is a directory", abs)
	}
	return filepath.Clean(abs), nil
}

func init() {
	registry.Register(sourceName, New())
}

var (
	_ types.ContentSource = (*Source)(nil)
	_ content.Watcher     = (*Store)(nil)
)
