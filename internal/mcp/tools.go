package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/coderag/internal/indexer"
	"github.com/dshills/coderag/internal/store"
	"github.com/dshills/coderag/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32001 // Another indexing run holds the project lock
	ErrorCodeNotIndexed         = -32002 // Project not indexed
	ErrorCodeEmptyQuery         = -32003 // Query parameter is empty
)

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := extractPath(args)
	if err != nil {
		return nil, err
	}

	force := getBoolDefault(args, "force", false)
	dryRun := getBoolDefault(args, "dry_run", false)

	p, err := s.openProject(root)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	report, err := p.indexer.Run(ctx, indexer.Options{Force: force, DryRun: dryRun})
	if err != nil {
		code := ErrorCodeInternalError
		if errors.Is(err, indexer.ErrRunInProgress) {
			code = ErrorCodeIndexingInProgress
		}
		return nil, newMCPError(code, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	p.searcher.InvalidateCache()

	response := map[string]interface{}{
		"outcome":         string(report.Outcome),
		"dry_run":         report.DryRun,
		"files_scanned":   report.FilesScanned,
		"files_unchanged": report.FilesSkippedUnchanged,
		"chunks_created":  report.ChunksCreated,
		"chunks_updated":  report.ChunksUpdated,
		"chunks_deleted":  report.ChunksDeleted,
		"duration_ms":     report.Elapsed.Milliseconds(),
	}
	if report.EmbeddingErrors > 0 {
		response["embedding_errors"] = report.EmbeddingErrors
	}
	if n := report.ErrorCount(); n > 0 {
		var failures []string
		for _, f := range report.Files {
			if f.Outcome == types.FileFailed {
				failures = append(failures, fmt.Sprintf("%s: %s", f.FilePath, f.Error))
				if len(failures) == 5 {
					break
				}
			}
		}
		response["errors"] = failures
		response["error_count"] = n
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := extractPath(args)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", types.DefaultTopK)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results, err := p.searcher.Search(ctx, types.Query{
		Text:       query,
		TopK:       limit,
		Language:   getStringDefault(args, "language", ""),
		PathPrefix: getStringDefault(args, "path_prefix", ""),
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hits := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		hit := map[string]interface{}{
			"rank":       r.Rank,
			"file_path":  r.Chunk.FilePath,
			"start_line": r.Chunk.StartLine,
			"end_line":   r.Chunk.EndLine,
			"chunk_type": string(r.Chunk.ChunkType),
			"language":   r.Chunk.Language,
			"score":      r.Score,
			"content":    r.Chunk.Content,
		}
		if name := r.Chunk.Metadata["name"]; name != "" {
			hit["name"] = name
		}
		hits = append(hits, hit)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":   query,
		"count":   len(hits),
		"results": hits,
	})), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := extractPath(args)
	if err != nil {
		return nil, err
	}

	if _, serr := os.Stat(filepath.Join(root, ".coderag", "index.db")); os.IsNotExist(serr) {
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"indexed": false,
			"path":    root,
			"message": "Project not indexed. Use index_codebase to index this project.",
		})), nil
	}

	p, err := s.openProject(root)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	stats, err := p.store.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": true,
		"path":    root,
		"state":   string(p.indexer.State()),
		"statistics": map[string]interface{}{
			"files_count":  stats.TotalFiles,
			"chunks_count": stats.TotalChunks,
			"languages":    stats.PerLanguage,
		},
	}

	info, err := p.store.ModelInfo(ctx)
	switch {
	case err == nil:
		response["embedding"] = map[string]interface{}{
			"model":     info.Model,
			"dimension": info.Dimension,
		}
	case errors.Is(err, store.ErrNotFound):
		// index exists but nothing embedded yet
	default:
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// extractPath pulls and validates the required path argument.
func extractPath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// validatePath checks if a path exists and is an accessible directory
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
