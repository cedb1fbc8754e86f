package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/coderag/internal/chunker"
	"github.com/dshills/coderag/internal/config"
	"github.com/dshills/coderag/internal/embedder"
	"github.com/dshills/coderag/internal/ignore"
	"github.com/dshills/coderag/internal/indexer"
	"github.com/dshills/coderag/internal/searcher"
	"github.com/dshills/coderag/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "coderag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// project bundles the per-root components. One exists per project path the
// server has touched; each owns its own database under <root>/.coderag/.
type project struct {
	store    *store.SQLiteStore
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	embedder embedder.Embedder

	mu       sync.Mutex
	projects map[string]*project
}

// NewServer creates a new MCP server instance. The embedding provider is
// configured from the environment and shared across projects.
func NewServer() (*Server, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		embedder: emb,
		projects: make(map[string]*project),
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeAll()
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// openProject returns the components for a project root, creating and
// caching them on first use.
func (s *Server) openProject(root string) (*project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.projects[root]; ok {
		return p, nil
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, ".coderag"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	st, err := store.Open(filepath.Join(root, ".coderag", "index.db"))
	if err != nil {
		return nil, err
	}

	filter, err := ignore.New(ignore.Config{
		Include:     cfg.Index.Include,
		Exclude:     cfg.Index.Exclude,
		MaxFileSize: cfg.Index.MaxFileSize,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	srch, err := searcher.New(st, s.embedder)
	if err != nil {
		st.Close()
		return nil, err
	}

	p := &project{
		store:    st,
		indexer:  indexer.New(root, st, s.embedder, chunker.New(), filter),
		searcher: srch,
	}
	s.projects[root] = p
	return p, nil
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		_ = p.store.Close()
	}
	s.projects = make(map[string]*project)
	_ = s.embedder.Close()
}
