package types

import (
	"context"
	"log/slog"

	"github.com/edgeopslabs/marketing-mcp/pkg/config"
	"github.com/edgeopslabs/marketing-mcp/pkg/content"
)

// ContentSource opens the content store the abilities read from. The logger
// is never nil.
type ContentSource interface {
	Name() string
	Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (content.Store, error)
}
