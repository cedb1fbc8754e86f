package memory

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSaveLoad(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	conv, err := mgr.Create("How does the indexer work?", "code-assistant")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.False(t, conv.CreatedAt.IsZero())

	conv.AddMessage(RoleUser, "How does the indexer work?")
	conv.AddMessage(RoleAssistant, "It diffs files against stored records.")
	require.NoError(t, mgr.Save(conv))

	loaded, err := mgr.Load(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.Title, loaded.Title)
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, RoleAssistant, loaded.Messages[1].Role)
}

func TestLoadNotFound(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	_, err = mgr.Load("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrConversationNotFound)

	_, err = mgr.Load("../../../etc/passwd")
	assert.ErrorIs(t, err, ErrConversationNotFound, "non-UUID IDs never touch the filesystem")
}

func TestPersistenceAcrossManagers(t *testing.T) {
	dir := t.TempDir()

	mgr1, err := NewManager(dir)
	require.NoError(t, err)
	conv, err := mgr1.Create("persisted", "")
	require.NoError(t, err)

	mgr2, err := NewManager(dir)
	require.NoError(t, err)
	loaded, err := mgr2.Load(conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", loaded.Title)
	assert.Len(t, mgr2.List("", "", 0), 1, "index survives reopen")
}

func TestListFiltersAndOrder(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	a, err := mgr.Create("first", "reviewer")
	require.NoError(t, err)
	b, err := mgr.Create("second", "assistant")
	require.NoError(t, err)
	b.Tags = []string{"indexing"}
	require.NoError(t, mgr.Save(b))

	all := mgr.List("", "", 0)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "most recently updated first")

	byAgent := mgr.List("reviewer", "", 0)
	require.Len(t, byAgent, 1)
	assert.Equal(t, a.ID, byAgent[0].ID)

	byTag := mgr.List("", "indexing", 0)
	require.Len(t, byTag, 1)
	assert.Equal(t, b.ID, byTag[0].ID)

	limited := mgr.List("", "", 1)
	assert.Len(t, limited, 1)
}

func TestSearchTitleAndContent(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	titled, err := mgr.Create("Vector store questions", "")
	require.NoError(t, err)

	bodied, err := mgr.Create("misc", "")
	require.NoError(t, err)
	bodied.AddMessage(RoleUser, "explain the vector search tie-break")
	require.NoError(t, mgr.Save(bodied))

	results, err := mgr.Search("vector")
	require.NoError(t, err)
	require.Len(t, results, 2)

	types := map[string]string{}
	for _, r := range results {
		types[r.ID] = r.MatchType
	}
	assert.Equal(t, "title", types[titled.ID])
	assert.Equal(t, "content", types[bodied.ID])
}

func TestDeleteAndClearAll(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	conv, err := mgr.Create("doomed", "")
	require.NoError(t, err)
	require.NoError(t, mgr.Delete(conv.ID))
	_, err = mgr.Load(conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)
	assert.ErrorIs(t, mgr.Delete(conv.ID), ErrConversationNotFound)

	_, err = mgr.Create("one", "")
	require.NoError(t, err)
	_, err = mgr.Create("two", "")
	require.NoError(t, err)
	n, err := mgr.ClearAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, mgr.List("", "", 0))
}

func TestExportJSONAndMarkdown(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	conv, err := mgr.Create("exported", "assistant")
	require.NoError(t, err)
	conv.AddMessage(RoleUser, "question text")
	conv.AddMessage(RoleAssistant, "answer text")
	require.NoError(t, mgr.Save(conv))

	var jsonOut bytes.Buffer
	require.NoError(t, mgr.Export(&jsonOut, "json", nil))
	var decoded []Conversation
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "exported", decoded[0].Title)

	var mdOut bytes.Buffer
	require.NoError(t, mgr.Export(&mdOut, "markdown", []string{conv.ID}))
	md := mdOut.String()
	assert.Contains(t, md, "## exported")
	assert.Contains(t, md, "question text")
	assert.Contains(t, md, "answer text")

	err = mgr.Export(&bytes.Buffer{}, "csv", nil)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestStats(t *testing.T) {
	mgr, err := NewManager(t.TempDir())
	require.NoError(t, err)

	conv, err := mgr.Create("counted", "assistant")
	require.NoError(t, err)
	conv.AddMessage(RoleUser, "hi")
	require.NoError(t, mgr.Save(conv))
	_, err = mgr.Create("anonymous", "")
	require.NoError(t, err)

	stats, err := mgr.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalConversations)
	assert.Equal(t, 1, stats.TotalMessages)
	assert.Equal(t, 1, stats.ByAgent["assistant"])
	assert.Equal(t, 1, stats.ByAgent["general"])
	assert.Greater(t, stats.StorageBytes, int64(0))
}

func TestConversationContext(t *testing.T) {
	conv := &Conversation{}
	for i := 0; i < 15; i++ {
		conv.AddMessage(RoleUser, "msg")
	}
	assert.Len(t, conv.Context(10), 10)
	assert.Len(t, conv.Context(0), 15)
	assert.Len(t, conv.Context(100), 15)
	assert.Equal(t, 15, conv.MessageCount())
}
