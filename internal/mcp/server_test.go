package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	t.Setenv("CODERAG_EMBEDDING_PROVIDER", "local")
	s, err := NewServer()
	require.NoError(t, err)
	t.Cleanup(s.closeAll)
	return s
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultJSON(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results are text content")
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func writeProjectFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestToolDefinitions(t *testing.T) {
	idx := indexCodebaseTool()
	assert.Equal(t, "index_codebase", idx.Name)
	assert.Equal(t, []string{"path"}, idx.InputSchema.Required)
	assert.Contains(t, idx.InputSchema.Properties, "force")
	assert.Contains(t, idx.InputSchema.Properties, "dry_run")

	search := searchCodeTool()
	assert.Equal(t, "search_code", search.Name)
	assert.ElementsMatch(t, []string{"path", "query"}, search.InputSchema.Required)
	assert.Contains(t, search.InputSchema.Properties, "limit")
	assert.Contains(t, search.InputSchema.Properties, "language")
	assert.Contains(t, search.InputSchema.Properties, "path_prefix")

	status := getStatusTool()
	assert.Equal(t, "get_status", status.Name)
	assert.Equal(t, []string{"path"}, status.InputSchema.Required)
}

func TestIndexSearchStatusFlow(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()
	writeProjectFile(t, root, "greet.go", `package greet

// Hello returns a greeting for name.
func Hello(name string) string {
	return "hello " + name
}
`)

	ctx := context.Background()

	res, err := s.handleIndexCodebase(ctx, toolRequest(map[string]interface{}{"path": root}))
	require.NoError(t, err)
	report := resultJSON(t, res)
	assert.Equal(t, "clean", report["outcome"])
	assert.Equal(t, float64(1), report["files_scanned"])
	assert.Greater(t, report["chunks_created"], float64(0))

	res, err = s.handleSearchCode(ctx, toolRequest(map[string]interface{}{
		"path":  root,
		"query": "greeting function",
		"limit": float64(5),
	}))
	require.NoError(t, err)
	found := resultJSON(t, res)
	assert.Equal(t, "greeting function", found["query"])
	assert.Greater(t, found["count"], float64(0))
	hits := found["results"].([]interface{})
	first := hits[0].(map[string]interface{})
	assert.Equal(t, "greet.go", first["file_path"])
	assert.Equal(t, float64(1), first["rank"])

	res, err = s.handleGetStatus(ctx, toolRequest(map[string]interface{}{"path": root}))
	require.NoError(t, err)
	status := resultJSON(t, res)
	assert.Equal(t, true, status["indexed"])
	stats := status["statistics"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["files_count"])
	embedding := status["embedding"].(map[string]interface{})
	assert.NotEmpty(t, embedding["model"])
}

func TestStatusNotIndexed(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()

	res, err := s.handleGetStatus(context.Background(), toolRequest(map[string]interface{}{"path": root}))
	require.NoError(t, err)
	status := resultJSON(t, res)
	assert.Equal(t, false, status["indexed"])
	assert.Contains(t, status["message"], "index_codebase")
}

func TestSearchCodeValidation(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()

	_, err := s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"path": root,
	}))
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeEmptyQuery, mcpErr.Code)

	_, err = s.handleSearchCode(context.Background(), toolRequest(map[string]interface{}{
		"path":  root,
		"query": "x",
		"limit": float64(500),
	}))
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestExtractPathValidation(t *testing.T) {
	_, err := extractPath(map[string]interface{}{})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)

	_, err = extractPath(map[string]interface{}{"path": "relative/path"})
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, validatePath(dir))

	assert.ErrorIs(t, validatePath("not/absolute"), ErrPathNotAbsolute)
	assert.ErrorIs(t, validatePath(filepath.Join(dir, "missing")), ErrPathNotFound)

	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.ErrorIs(t, validatePath(file), ErrNotDirectory)
}

func TestOpenProjectCached(t *testing.T) {
	s := newTestServer(t)
	root := t.TempDir()

	p1, err := s.openProject(root)
	require.NoError(t, err)
	p2, err := s.openProject(root)
	require.NoError(t, err)
	assert.Same(t, p1, p2, "one component bundle per project root")
}

func TestArgumentHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":  true,
		"count": float64(7),
		"name":  "value",
	}
	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.Equal(t, 7, getIntDefault(args, "count", 1))
	assert.Equal(t, 1, getIntDefault(args, "missing", 1))
	assert.Equal(t, "value", getStringDefault(args, "name", ""))
	assert.Equal(t, "fallback", getStringDefault(args, "missing", "fallback"))
}

func TestMCPErrorFormat(t *testing.T) {
	err := newMCPError(ErrorCodeNotIndexed, "project not indexed", nil)
	assert.Equal(t, "MCP error -32002: project not indexed", err.Error())
}
