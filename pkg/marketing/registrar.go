package marketing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgeopslabs/marketing-mcp/pkg/abilities"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
	"github.com/edgeopslabs/marketing-mcp/pkg/types"
)

// Category is the registry category every marketing ability belongs to.
var Category = abilities.Category{
	Slug:        Namespace,
	Label:       "Marketing",
	Description: "Read-only access to site content for marketing work.",
}

// Registrar submits the marketing abilities to the registry once.
type Registrar struct {
	registry types.Optional[*abilities.Registry]
	store    content.Store
	location *time.Location
	logger   *slog.Logger

	registered bool
}

func NewRegistrar(registry types.Optional[*abilities.Registry], store content.Store, loc *time.Location, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registrar{
		registry: registry,
		store:    store,
		location: loc,
		logger:   logger,
	}
}

// Registered reports whether Register has already run against a registry.
func (r *Registrar) Registered() bool {
	return r.registered
}

// Register adds the marketing category and abilities. Later calls are no-ops,
// as is a call without a registry.
func (r *Registrar) Register(_ context.Context) error {
	if r.registered {
		r.logger.Debug("marketing abilities already registered")
		return nil
	}
	registry, ok := r.registry.Get()
	if !ok {
		r.logger.Debug("abilities registry unavailable, skipping marketing abilities")
		return nil
	}
	r.registered = true

	list, err := buildAbilities(r.store, r.location)
	if err != nil {
		return fmt.Errorf("failed to build marketing abilities: %w", err)
	}
	if err := registry.RegisterCategory(Category); err != nil && !errors.Is(err, abilities.ErrAlreadyRegistered) {
		return err
	}

	var errs []error
	for _, ability := range list {
		if err := registry.Register(ability); err != nil {
			if errors.Is(err, abilities.ErrAlreadyRegistered) {
				r.logger.Warn("ability already registered", "ability", ability.Name())
				continue
			}
			errs = append(errs, err)
			continue
		}
		r.logger.Debug("ability registered", "ability", ability.Name())
	}
	r.logger.Info("marketing abilities registered", "count", len(list)-len(errs))
	return errors.Join(errs...)
}
