// Package mcp lets other programs embed the qualify MCP server.
package mcp

import (
	"log/slog"

	infra "github.com/felixgeelhaar/qualify/internal/infrastructure/mcp"
)

// Server exposes the MCP server implementation from the infrastructure layer.
type Server = infra.Server

// NewServer constructs an MCP server for the workspace at root, using the
// provider configured there.
func NewServer(root string, logger *slog.Logger) (*Server, error) {
	return infra.NewServer(root, logger)
}
