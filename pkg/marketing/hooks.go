package marketing

import "github.com/edgeopslabs/marketing-mcp/pkg/lifecycle"

// FallbackPriority runs the registrar again on core init, after the registry
// ready event.
const FallbackPriority = lifecycle.DefaultPriority + 10

// AddHooks attaches the registrar and publisher to their lifecycle events.
func AddHooks(h *lifecycle.Hooks, r *Registrar, p *Publisher) {
	h.AddAction(lifecycle.AbilitiesAPIInit, lifecycle.DefaultPriority, "marketing.register", r.Register)
	h.AddAction(lifecycle.Init, FallbackPriority, "marketing.register-fallback", r.Register)
	h.AddAction(lifecycle.AdapterInit, lifecycle.DefaultPriority, "marketing.publish", p.Publish)
}
