// Package marketing registers the read-only marketing abilities and publishes
// them as an MCP server.
package marketing

const (
	Namespace = "marketing"

	GetPosts      = Namespace + "/get-posts"
	SearchPosts   = Namespace + "/search-posts"
	GetPages      = Namespace + "/get-pages"
	GetMedia      = Namespace + "/get-media"
	GetCategories = Namespace + "/get-categories"
	GetTags       = Namespace + "/get-tags"
	GetComments   = Namespace + "/get-comments"
)

// Server identity.
const (
	ServerID          = "marketing-ro-server"
	ServerDomain      = "marketing"
	ServerName        = "Marketing Readonly MCP Server"
	ServerDescription = "Read-only marketing/content tools"
	ServerVersion     = "0.1.0"
)

// AbilityNames lists the published abilities in tool order.
func AbilityNames() []string {
	return []string{
		GetPosts,
		SearchPosts,
		GetPages,
		GetMedia,
		GetCategories,
		GetTags,
		GetComments,
	}
}
