package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dgallion1/postchunk/internal/store"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeNotFound      = -32001
	ErrorCodeNotConfigured = -32002
	ErrorCodeEmptyQuery    = -32004
)

// MCPError is returned from tool handlers; the framework encodes it.
type MCPError struct {
	Code    int
	Message string
	Data    any
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func newMCPError(code int, message string, data any) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

func (s *Server) handleSearchSections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := strings.TrimSpace(getStringDefault(args, "query", ""))
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]any{
			"param": "query",
		})
	}
	limit := getIntDefault(args, "limit", s.limit)
	if limit < 1 || limit > maxSearchLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", maxSearchLimit), map[string]any{
			"param": "limit",
			"value": limit,
		})
	}

	hits, err := s.store.Search(ctx, query, limit)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]any{"error": err.Error()})
	}

	results := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		results = append(results, map[string]any{
			"section_id":      h.SectionID,
			"page_title":      h.PageTitle,
			"section_heading": h.SectionHeading,
			"heading_href":    h.HeadingHref,
			"snippet":         h.Snippet,
			"text":            h.Text,
		})
	}
	return mcp.NewToolResultText(formatJSON(map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})), nil
}

func (s *Server) handleGetSection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := arguments(request)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	id := getStringDefault(args, "section_id", "")
	if id == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "section_id parameter is required", map[string]any{
			"param": "section_id",
		})
	}

	sec, err := s.store.GetSection(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newMCPError(ErrorCodeNotFound, "section not found", map[string]any{"section_id": id})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read section", map[string]any{"error": err.Error()})
	}
	return mcp.NewToolResultText(formatJSON(sec)), nil
}

func (s *Server) handleIndexContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.indexer == nil {
		return nil, newMCPError(ErrorCodeNotConfigured, "indexing is not configured; set CONTENT_DIR", nil)
	}
	args, _ := arguments(request)
	force := getBoolDefault(args, "force", false)

	stats, err := s.indexer.IndexAll(ctx, force, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]any{"error": err.Error()})
	}

	response := map[string]any{
		"scanned":     stats.Scanned,
		"indexed":     stats.Indexed,
		"up_to_date":  stats.UpToDate,
		"skipped":     stats.Skipped,
		"failed":      stats.Failed,
		"sections":    stats.Sections,
		"chunks":      stats.Chunks,
		"pruned":      stats.Pruned,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if n := len(stats.Errors); n > 0 {
		response["error_count"] = n
		response["errors"] = stats.Errors[:min(n, 5)]
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// arguments returns the tool arguments; a call without arguments yields an
// empty map.
func arguments(request mcp.CallToolRequest) (map[string]any, bool) {
	if request.Params.Arguments == nil {
		return map[string]any{}, true
	}
	args, ok := request.Params.Arguments.(map[string]any)
	return args, ok
}

func formatJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func getBoolDefault(args map[string]any, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault accepts JSON numbers, which decode as float64.
func getIntDefault(args map[string]any, key string, defaultValue int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return defaultValue
}

func getStringDefault(args map[string]any, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
