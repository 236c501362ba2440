// Package mcpserver exposes section search and indexing as MCP tools over stdio.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dgallion1/postchunk/internal/pipeline"
	"github.com/dgallion1/postchunk/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "postchunk"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the store and indexer it serves.
type Server struct {
	mcp     *server.MCPServer
	store   *store.Store
	indexer *pipeline.Indexer
	log     *slog.Logger
	limit   int
}

// New registers the tools on a fresh MCP server. indexer may be nil, in
// which case index_content reports that indexing is not configured.
func New(st *store.Store, ix *pipeline.Indexer, searchLimit int, log *slog.Logger) *Server {
	if searchLimit <= 0 {
		searchLimit = store.DefaultSearchLimit
	}
	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		store:   st,
		indexer: ix,
		log:     log,
		limit:   searchLimit,
	}
	s.mcp.AddTool(searchSectionsTool(), s.handleSearchSections)
	s.mcp.AddTool(getSectionTool(), s.handleGetSection)
	s.mcp.AddTool(indexContentTool(), s.handleIndexContent)
	return s
}

// Serve runs the MCP server on stdio and blocks until the client disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}
