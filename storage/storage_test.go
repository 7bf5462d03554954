package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/scribe/chat"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scribe.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadDocument(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	rec := DocumentRecord{
		ID:         NewID(),
		Title:      "Essay",
		Content:    `[{"type":"paragraph","children":[{"text":"hi"}]}]`,
		Font:       "Georgia",
		CreatedAt:  now,
		ModifiedAt: now,
	}
	require.NoError(t, s.SaveDocument(rec))

	got, err := s.LoadDocument(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Title, got.Title)
	assert.Equal(t, rec.Content, got.Content)
	assert.Equal(t, rec.Font, got.Font)
	assert.Equal(t, 1, got.Version)
}

func TestSaveDocumentBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	rec := DocumentRecord{ID: NewID(), Content: "[]", CreatedAt: now, ModifiedAt: now}
	require.NoError(t, s.SaveDocument(rec))

	rec.Title = "renamed"
	require.NoError(t, s.SaveDocument(rec))
	require.NoError(t, s.SaveDocument(rec))

	got, err := s.LoadDocument(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "renamed", got.Title)
}

func TestLoadDocumentNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadDocument("missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestLatestDocument(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()

	older := DocumentRecord{ID: NewID(), CreatedAt: base, ModifiedAt: base}
	newer := DocumentRecord{ID: NewID(), Title: "current", CreatedAt: base, ModifiedAt: base.Add(time.Hour)}
	require.NoError(t, s.SaveDocument(older))
	require.NoError(t, s.SaveDocument(newer))

	got, err := s.LatestDocument()
	require.NoError(t, err)
	assert.Equal(t, "current", got.Title)

	empty := openTestStore(t)
	_, err = empty.LatestDocument()
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestSaveAndLoadMessages(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	docID := NewID()
	require.NoError(t, s.SaveDocument(DocumentRecord{ID: docID, CreatedAt: now, ModifiedAt: now}))

	msgs := []chat.Message{
		{ID: "m1", Sender: chat.SenderUser, Text: "hello", Timestamp: now},
		{ID: "m2", Sender: chat.SenderAI, Text: "hi there", Timestamp: now.Add(time.Second)},
	}
	require.NoError(t, s.SaveMessages(docID, msgs))

	got, err := s.LoadMessages(docID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, chat.SenderUser, got[0].Sender)
	assert.Equal(t, chat.SenderAI, got[1].Sender)
}

func TestSaveMessagesReplacesAndPrunes(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	docID := NewID()
	require.NoError(t, s.SaveDocument(DocumentRecord{ID: docID, CreatedAt: now, ModifiedAt: now}))

	require.NoError(t, s.SaveMessages(docID, []chat.Message{
		{ID: "stale", Sender: chat.SenderUser, Text: "old", Timestamp: now},
	}))

	var many []chat.Message
	for i := 0; i < MaxStoredMessages+5; i++ {
		many = append(many, chat.Message{
			ID:        fmt.Sprintf("m%03d", i),
			Sender:    chat.SenderUser,
			Text:      fmt.Sprintf("message %d", i),
			Timestamp: now.Add(time.Duration(i) * time.Second),
		})
	}
	require.NoError(t, s.SaveMessages(docID, many))

	got, err := s.LoadMessages(docID)
	require.NoError(t, err)
	require.Len(t, got, MaxStoredMessages)
	assert.Equal(t, "message 5", got[0].Text, "oldest overflow must be pruned")
	for _, msg := range got {
		assert.NotEqual(t, "old", msg.Text, "previous transcript must be replaced")
	}
}

func TestNewIDsAreSortableAndUnique(t *testing.T) {
	a := NewID()
	b := NewID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 26)
}
