package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
)

const maxSearchLimit = 50

func searchSectionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_sections",
		Description: "Full-text search over indexed page sections; returns the best chunk of each matching section",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search terms",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of sections to return",
					"minimum":     1,
					"maximum":     maxSearchLimit,
				},
			},
			Required: []string{"query"},
		},
	}
}

func getSectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_section",
		Description: "Fetch a stored section with its heading path, HTML fragment and text chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"section_id": map[string]any{
					"type":        "string",
					"description": "Section id as returned by search_sections",
				},
			},
			Required: []string{"section_id"},
		},
	}
}

func indexContentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_content",
		Description: "Index the configured content tree, skipping unchanged pages unless force is set",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"force": map[string]any{
					"type":        "boolean",
					"description": "Reindex every page regardless of modification time",
					"default":     false,
				},
			},
		},
	}
}
