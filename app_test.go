package main

import (
	"context"
	"strings"
	"testing"

	"github.com/odvcencio/scribe/assistant"
	"github.com/odvcencio/scribe/chat"
)

type stubCompleter struct {
	response string
	calls    int
	history  []chat.HistoryItem
}

func (s *stubCompleter) Complete(ctx context.Context, history []chat.HistoryItem, message string) (string, error) {
	s.calls++
	s.history = history
	return s.response, nil
}

func (s *stubCompleter) Stream(ctx context.Context, history []chat.HistoryItem, message string, onChunk func(string)) error {
	s.calls++
	onChunk(s.response)
	return nil
}

func newTestApp(t *testing.T, upstream *stubCompleter) *scribeApp {
	t.Helper()
	app := newScribeApp(nil, upstream)
	t.Cleanup(app.close)
	return app
}

func TestChatSendDispatchesEditFromResponse(t *testing.T) {
	upstream := &stubCompleter{response: `Sure.` + "\n" + `/edit replace "draft" with "final"`}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("This is a draft."); err != nil {
		t.Fatalf("seeding document: %v", err)
	}

	added, err := app.ChatSend(context.Background(), "make it final")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if upstream.calls != 1 {
		t.Errorf("upstream calls = %d, want 1", upstream.calls)
	}
	if got := app.PlainText(); got != "This is a final." {
		t.Errorf("document = %q, want %q", got, "This is a final.")
	}

	// The stored response carries the confirmation in place of the command.
	if len(added) != 1 {
		t.Fatalf("got %d new messages, want 1", len(added))
	}
	if added[0].Sender != chat.SenderAI {
		t.Errorf("message sender = %q, want ai", added[0].Sender)
	}
	want := "Sure.\n" + `✓ Edited text: replaced "draft" with "final"`
	if added[0].Text != want {
		t.Errorf("message = %q, want %q", added[0].Text, want)
	}
}

func TestChatSendNeverShowsRawCommandSyntax(t *testing.T) {
	upstream := &stubCompleter{response: `/edit replace "draft" with "final"`}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("This is a draft."); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	if _, err := app.ChatSend(context.Background(), "fix it"); err != nil {
		t.Fatalf("ChatSend: %v", err)
	}

	confirmations := 0
	for _, msg := range app.Messages() {
		if msg.Sender == chat.SenderUser {
			continue
		}
		if strings.Contains(msg.Text, `/edit replace`) {
			t.Errorf("raw command syntax leaked into %q message: %q", msg.Sender, msg.Text)
		}
		if strings.Contains(msg.Text, "✓ Edited text") {
			confirmations++
		}
	}
	if confirmations != 1 {
		t.Errorf("confirmation shown %d times, want exactly once", confirmations)
	}
}

func TestChatSendAttachesDocumentContext(t *testing.T) {
	upstream := &stubCompleter{response: "Noted."}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("xylophone zebra quartz"); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	if _, err := app.ChatSend(context.Background(), "what does the document say?"); err != nil {
		t.Fatalf("ChatSend: %v", err)
	}

	if len(upstream.history) == 0 {
		t.Fatal("no history sent upstream")
	}
	last := upstream.history[len(upstream.history)-1]
	if last.Role != "system" {
		t.Errorf("context item role = %q, want system", last.Role)
	}
	if !strings.Contains(last.Content, "document_data") {
		t.Errorf("context item is not the structured payload: %q", last.Content)
	}
	if !strings.Contains(last.Content, "xylophone zebra quartz") {
		t.Error("document content missing from the upstream context")
	}
}

func TestChatSendReusesContextPromptWhileUnchanged(t *testing.T) {
	upstream := &stubCompleter{response: "ok"}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("stable content"); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	key := assistant.ContextKey(app.Title(), app.WordCount())
	app.promptCache.Set(key, "cached-context-sentinel")

	if _, err := app.ChatSend(context.Background(), "first question"); err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	last := upstream.history[len(upstream.history)-1]
	if last.Content != "cached-context-sentinel" {
		t.Errorf("context item = %q, want the cached prompt", last.Content)
	}

	// A word-count change moves the key, forcing a rebuild.
	if err := app.ApplyWrite(" grew"); err != nil {
		t.Fatalf("growing document: %v", err)
	}
	if _, err := app.ChatSend(context.Background(), "second question"); err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	last = upstream.history[len(upstream.history)-1]
	if last.Content == "cached-context-sentinel" {
		t.Error("stale context prompt reused after the document changed")
	}
	if !strings.Contains(last.Content, "document_data") {
		t.Errorf("rebuilt context item = %q, want the structured payload", last.Content)
	}
}

func TestChatSendMalformedCommandShowsHelp(t *testing.T) {
	upstream := &stubCompleter{response: "Try this:\n/edit replace draft with final"}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("a draft sentence"); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	rev := app.doc.Revision()

	added, err := app.ChatSend(context.Background(), "change it")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if app.doc.Revision() != rev {
		t.Error("malformed command must not mutate the document")
	}
	if len(added) != 1 {
		t.Fatalf("got %d new messages, want 1", len(added))
	}
	if !strings.Contains(added[0].Text, assistant.HelpText) {
		t.Errorf("message = %q, want the help text appended", added[0].Text)
	}
}

func TestChatSendFailedEditKeepsRawLineAndReportsError(t *testing.T) {
	upstream := &stubCompleter{response: `/edit replace "missing" with "found"`}
	app := newTestApp(t, upstream)

	if err := app.ApplyWrite("nothing to match here"); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	added, err := app.ChatSend(context.Background(), "edit please")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("got %d new messages, want 2", len(added))
	}
	if added[0].Text != upstream.response {
		t.Errorf("failed command must keep its raw line, got %q", added[0].Text)
	}
	if added[1].Sender != chat.SenderSystem || !strings.HasPrefix(added[1].Text, "Error:") {
		t.Errorf("got %q from %q, want a system error", added[1].Text, added[1].Sender)
	}
}

func TestChatSendRoutesSlashCommandLocally(t *testing.T) {
	upstream := &stubCompleter{response: "should not be called"}
	app := newTestApp(t, upstream)

	added, err := app.ChatSend(context.Background(), "/help")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if upstream.calls != 0 {
		t.Errorf("upstream calls = %d, want 0", upstream.calls)
	}
	if len(added) != 1 {
		t.Fatalf("got %d new messages, want 1", len(added))
	}
	if !strings.Contains(added[0].Text, "/edit") {
		t.Errorf("help response missing command list: %q", added[0].Text)
	}
}

func TestChatSendEditCommandGoesThroughChannel(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})

	if err := app.ApplyWrite("keep the old word here"); err != nil {
		t.Fatalf("seeding document: %v", err)
	}
	added, err := app.ChatSend(context.Background(), `/edit replace "old" with "new"`)
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if got := app.PlainText(); got != "keep the new word here" {
		t.Errorf("document = %q", got)
	}
	if len(added) != 2 {
		t.Fatalf("got %d new messages, want 2", len(added))
	}
}

func TestChatSendUpstreamErrorBecomesSystemMessage(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})
	app.upstream = failingCompleter{}

	added, err := app.ChatSend(context.Background(), "hello")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("got %d new messages, want 1", len(added))
	}
	if added[0].Sender != chat.SenderSystem || !strings.HasPrefix(added[0].Text, "Error:") {
		t.Errorf("got %q from %q, want system error message", added[0].Text, added[0].Sender)
	}
}

func TestChatSendEmptyMessageIsNoOp(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})

	added, err := app.ChatSend(context.Background(), "   ")
	if err != nil {
		t.Fatalf("ChatSend: %v", err)
	}
	if added != nil {
		t.Errorf("got %d messages, want none", len(added))
	}
	if app.transcript.Len() != 0 {
		t.Errorf("transcript length = %d, want 0", app.transcript.Len())
	}
}

type failingCompleter struct{}

func (failingCompleter) Complete(ctx context.Context, history []chat.HistoryItem, message string) (string, error) {
	return "", context.DeadlineExceeded
}

func (failingCompleter) Stream(ctx context.Context, history []chat.HistoryItem, message string, onChunk func(string)) error {
	return context.DeadlineExceeded
}
