// Package lifecycle dispatches the boot events plugins attach to.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Boot events in the order Boot fires them.
const (
	PluginsLoaded    = "plugins_loaded"
	AbilitiesAPIInit = "abilities_api_init"
	Init             = "init"
	AdapterInit      = "adapter_init"
)

// DefaultPriority matches the priority most callbacks register with.
const DefaultPriority = 10

type Action func(ctx context.Context) error

type hook struct {
	priority int
	name     string
	fn       Action
	seq      int
}

// Hooks runs named callbacks attached to events. Callbacks with a lower
// priority run first; equal priorities run in the order they were added.
type Hooks struct {
	mu      sync.Mutex
	actions map[string][]hook
	fired   map[string]int
	seq     int
	logger  *slog.Logger
}

func New(logger *slog.Logger) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{
		actions: make(map[string][]hook),
		fired:   make(map[string]int),
		logger:  logger,
	}
}

func (h *Hooks) AddAction(event string, priority int, name string, fn Action) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	h.actions[event] = append(h.actions[event], hook{priority: priority, name: name, fn: fn, seq: h.seq})
}

// Do fires event. Every callback runs even if an earlier one fails; the
// failures are logged and returned together.
func (h *Hooks) Do(ctx context.Context, event string) error {
	h.mu.Lock()
	hooks := append([]hook(nil), h.actions[event]...)
	h.fired[event]++
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].priority != hooks[j].priority {
			return hooks[i].priority < hooks[j].priority
		}
		return hooks[i].seq < hooks[j].seq
	})

	var errs []error
	for _, hk := range hooks {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.logger.Debug("running action", "event", event, "action", hk.name, "priority", hk.priority)
		if err := hk.fn(ctx); err != nil {
			h.logger.Error("action failed", "event", event, "action", hk.name, "error", err)
			errs = append(errs, fmt.Errorf("%s/%s: %w", event, hk.name, err))
		}
	}
	return errors.Join(errs...)
}

// DidAction reports how many times event has fired.
func (h *Hooks) DidAction(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fired[event]
}

// Boot fires the boot events in order.
func (h *Hooks) Boot(ctx context.Context) error {
	var errs []error
	for _, event := range []string{PluginsLoaded, AbilitiesAPIInit, Init, AdapterInit} {
		if err := h.Do(ctx, event); err != nil {
			if ctx.Err() != nil {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
