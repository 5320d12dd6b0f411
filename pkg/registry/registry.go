package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
)

var (
	mu       sync.RWMutex
	sources  = make(map[string]types.ContentSource)
	openOnce sync.Once
	opened   content.Store
)

func Register(name string, source types.ContentSource) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := sources[name]; exists {
		panic(fmt.Sprintf("content source already registered: %s", name))
	}
	sources[name] = source
}

// Names lists the registered content sources.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the source named by cfg.Content.Source. The store is opened once
// per process; later calls return the same store.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (content.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var openErr error
	openOnce.Do(func() {
		mu.RLock()
		source, ok := sources[cfg.Content.Source]
		mu.RUnlock()
		if !ok {
			openErr = fmt.Errorf("unknown content source %q (available: %v)", cfg.Content.Source, Names())
			return
		}
		if toggleable, ok := source.(interface {
			Enabled(cfg *config.Config) bool
		}); ok && !toggleable.Enabled(cfg) {
			openErr = fmt.Errorf("content source %s is not configured", source.Name())
			return
		}

		store, err := source.Open(ctx, cfg, logger.With("source", source.Name()))
		if err != nil {
			openErr = fmt.Errorf("failed to open content source %s: %w", source.Name(), err)
			return
		}
		logger.Info("content source opened", "name", source.Name())
		opened = store
	})

	if openErr != nil {
		return nil, openErr
	}
	if opened == nil {
		return nil, fmt.Errorf("content source %q failed to open earlier", cfg.Content.Source)
	}
	return opened, nil
}
