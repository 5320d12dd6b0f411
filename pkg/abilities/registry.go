package abilities

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds categories and abilities by name. It is safe for concurrent
// use; registration normally happens once during boot.
type Registry struct {
	mu         sync.RWMutex
	abilities  map[string]*Ability
	categories map[string]Category
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		abilities:  make(map[string]*Ability),
		categories: make(map[string]Category),
		logger:     logger,
	}
}

// RegisterCategory adds a category. Re-registering a slug keeps the first one.
func (r *Registry) RegisterCategory(c Category) error {
	if c.Slug == "" {
		return fmt.Errorf("category slug is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.categories[c.Slug]; exists {
		r.logger.Debug("category already registered", "category", c.Slug)
		return fmt.Errorf("category %s: %w", c.Slug, ErrAlreadyRegistered)
	}
	r.categories[c.Slug] = c
	return nil
}

// Register adds an ability. The ability's category must already exist and a
// duplicate name is rejected, leaving the first definition in place.
func (r *Registry) Register(a *Ability) error {
	if a == nil {
		return fmt.Errorf("nil ability")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.categories[a.category]; !ok {
		return fmt.Errorf("ability %s: category %s: %w", a.name, a.category, ErrCategoryNotFound)
	}
	if _, exists := r.abilities[a.name]; exists {
		r.logger.Warn("ability already registered", "ability", a.name)
		return fmt.Errorf("ability %s: %w", a.name, ErrAlreadyRegistered)
	}
	r.abilities[a.name] = a
	r.logger.Debug("ability registered", "ability", a.name, "category", a.category)
	return nil
}

func (r *Registry) Get(name string) (*Ability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.abilities[name]
	return a, ok
}

// List returns every ability sorted by name.
func (r *Registry) List() []*Ability {
	r.mu.RLock()
	list := make([]*Ability, 0, len(r.abilities))
	for _, a := range r.abilities {
		list = append(list, a)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	return list
}

func (r *Registry) Category(slug string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.categories[slug]
	return c, ok
}

func (r *Registry) Categories() []Category {
	r.mu.RLock()
	list := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		list = append(list, c)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Slug < list[j].Slug })
	return list
}

// Execute looks up name and runs it with raw JSON arguments.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	a, ok := r.Get(name)
	if !ok {
		return nil, newError(CodeNotFound, nil, "ability %s not found", name)
	}
	return a.Execute(ctx, args)
}
