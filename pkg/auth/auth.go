// Package auth identifies callers and the capabilities they hold.
package auth

import (
	"context"
	"slices"
)

// ReadPrivatePosts lets a caller list posts that are not public.
const ReadPrivatePosts = "read_private_posts"

// Caller is the identity an ability runs on behalf of. The zero value is the
// anonymous caller with no capabilities.
type Caller struct {
	Login        string
	Capabilities []string
}

func (c Caller) Anonymous() bool {
	return c.Login == ""
}

func (c Caller) Can(capability string) bool {
	return slices.Contains(c.Capabilities, capability)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored in ctx, or the anonymous caller.
func FromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
