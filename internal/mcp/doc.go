// Package mcp implements the Model Context Protocol (MCP) server surface.
//
// The server exposes three tools to AI coding assistants:
//   - index_codebase: Index a project tree for semantic search
//   - search_code: Search indexed code with natural language queries
//   - get_status: Check index statistics for a project
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server is
// started via the serve command:
//
//	coderag serve
//
// It then listens on stdin for protocol messages and writes responses to
// stdout. Each project path gets its own index database under
// <root>/.coderag/, opened lazily on first use and shared across tool
// calls for the lifetime of the server.
package mcp
