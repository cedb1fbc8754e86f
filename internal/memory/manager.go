package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrConversationNotFound indicates no conversation exists with the given ID.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrUnsupportedFormat indicates an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

const indexFile = "index.json"

// Summary is the index entry for one conversation, enough to list and
// filter without loading message bodies.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Agent        string    `json:"agent,omitempty"`
	MessageCount int       `json:"message_count"`
	Tags         []string  `json:"tags,omitempty"`
}

// SearchResult is a conversation matched by a text search.
type SearchResult struct {
	Summary
	MatchType string `json:"match_type"` // "title" or "content"
}

// MemoryStats summarizes stored conversations.
type MemoryStats struct {
	TotalConversations int            `json:"total_conversations"`
	TotalMessages      int            `json:"total_messages"`
	ByAgent            map[string]int `json:"by_agent"`
	StorageBytes       int64          `json:"storage_bytes"`
}

// Manager stores conversations as one JSON file each plus a summary index,
// all under a single directory. Safe for concurrent use within one process;
// it assumes exclusive ownership of the directory.
type Manager struct {
	dir   string
	mu    sync.RWMutex
	index map[string]Summary
}

// NewManager opens or creates a conversation store at dir.
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory directory: %w", err)
	}
	m := &Manager{dir: dir, index: make(map[string]Summary)}
	if err := m.loadIndex(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(m.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read conversation index: %w", err)
	}
	if err := json.Unmarshal(data, &m.index); err != nil {
		return fmt.Errorf("failed to parse conversation index: %w", err)
	}
	return nil
}

// saveIndex persists the index. Callers hold the write lock.
func (m *Manager) saveIndex() error {
	data, err := json.MarshalIndent(m.index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, indexFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation index: %w", err)
	}
	return nil
}

// Create starts a new conversation and persists it immediately.
func (m *Manager) Create(title, agent string) (*Conversation, error) {
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.New().String(),
		Title:     title,
		Agent:     agent,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.Save(conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Save writes a conversation to disk and refreshes its index entry.
func (m *Manager) Save(conv *Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", conv.ID, err)
	}
	if err := os.WriteFile(m.convPath(conv.ID), data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversation %s: %w", conv.ID, err)
	}

	m.index[conv.ID] = Summary{
		ID:           conv.ID,
		Title:        conv.Title,
		CreatedAt:    conv.CreatedAt,
		UpdatedAt:    conv.UpdatedAt,
		Agent:        conv.Agent,
		MessageCount: conv.MessageCount(),
		Tags:         conv.Tags,
	}
	return m.saveIndex()
}

// Load reads a conversation by ID.
func (m *Manager) Load(id string) (*Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(m.convPath(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation %s: %w", id, err)
	}
	return &conv, nil
}

// List returns conversation summaries, most recently updated first. Agent
// and tag filters are exact matches; a limit of zero or less returns all.
func (m *Manager) List(agent, tag string, limit int) []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Summary
	for _, s := range m.index {
		if agent != "" && s.Agent != agent {
			continue
		}
		if tag != "" && !containsTag(s.Tags, tag) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Search matches a case-insensitive query against titles first, then
// message content. Title matches skip the content scan for that
// conversation.
func (m *Manager) Search(query string) ([]SearchResult, error) {
	q := strings.ToLower(query)
	summaries := m.List("", "", 0)

	var results []SearchResult
	for _, s := range summaries {
		if strings.Contains(strings.ToLower(s.Title), q) {
			results = append(results, SearchResult{Summary: s, MatchType: "title"})
			continue
		}
		conv, err := m.Load(s.ID)
		if err != nil {
			continue // index entry without a file; skip
		}
		for _, msg := range conv.Messages {
			if strings.Contains(strings.ToLower(msg.Content), q) {
				results = append(results, SearchResult{Summary: s, MatchType: "content"})
				break
			}
		}
	}
	return results, nil
}

// Delete removes a conversation and its index entry.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return fmt.Errorf("%w: %s", ErrConversationNotFound, id)
	}
	if err := os.Remove(m.convPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete conversation %s: %w", id, err)
	}
	delete(m.index, id)
	return m.saveIndex()
}

// ClearAll deletes every conversation and returns how many were removed.
func (m *Manager) ClearAll() (int, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.index))
	for id := range m.index {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	count := 0
	for _, id := range ids {
		if err := m.Delete(id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Export writes the given conversations (all, when ids is empty) to w in
// the requested format: "json" or "markdown".
func (m *Manager) Export(w io.Writer, format string, ids []string) error {
	if len(ids) == 0 {
		for _, s := range m.List("", "", 0) {
			ids = append(ids, s.ID)
		}
	}
	var convs []*Conversation
	for _, id := range ids {
		conv, err := m.Load(id)
		if err != nil {
			return err
		}
		convs = append(convs, conv)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(convs)
	case "markdown":
		return exportMarkdown(w, convs)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Stats reports conversation counts and storage usage.
func (m *Manager) Stats() (*MemoryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &MemoryStats{ByAgent: make(map[string]int)}
	for _, s := range m.index {
		stats.TotalConversations++
		stats.TotalMessages += s.MessageCount
		agent := s.Agent
		if agent == "" {
			agent = "general"
		}
		stats.ByAgent[agent]++
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if info, ierr := e.Info(); ierr == nil {
			stats.StorageBytes += info.Size()
		}
	}
	return stats, nil
}

func (m *Manager) convPath(id string) string {
	return filepath.Join(m.dir, id+".json")
}

func exportMarkdown(w io.Writer, convs []*Conversation) error {
	var b strings.Builder
	b.WriteString("# Conversation Export\n\n")
	for _, conv := range convs {
		agent := conv.Agent
		if agent == "" {
			agent = "general"
		}
		fmt.Fprintf(&b, "## %s\n\n", conv.Title)
		fmt.Fprintf(&b, "**ID**: %s  \n", conv.ID)
		fmt.Fprintf(&b, "**Created**: %s  \n", conv.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "**Agent**: %s  \n", agent)
		fmt.Fprintf(&b, "**Messages**: %d\n\n", conv.MessageCount())
		for i, msg := range conv.Messages {
			fmt.Fprintf(&b, "### Message %d (%s)\n\n", i+1, msg.Role)
			fmt.Fprintf(&b, "*%s*\n\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(&b, "%s\n\n---\n\n", msg.Content)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
