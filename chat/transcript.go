package chat

import "sync"

// MaxMessages bounds the retained transcript; older messages are pruned
// oldest-first.
const MaxMessages = 50

// HistoryWindow is how many recent conversation messages accompany an
// upstream request.
const HistoryWindow = 10

// HistoryItem is a transcript entry in the role/content shape the upstream
// chat API expects.
type HistoryItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript is the bounded message log. Safe for concurrent use; the web
// layer reads it while the chat flow appends.
type Transcript struct {
	mu       sync.Mutex
	messages []Message
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds a message, pruning the oldest entries past MaxMessages.
func (t *Transcript) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, msg)
	if len(t.messages) > MaxMessages {
		t.messages = append([]Message(nil), t.messages[len(t.messages)-MaxMessages:]...)
	}
}

// AddUser appends a user message and returns it.
func (t *Transcript) AddUser(text string) Message {
	msg := NewMessage(SenderUser, text)
	t.Append(msg)
	return msg
}

// AddAI appends an assistant message and returns it.
func (t *Transcript) AddAI(text string) Message {
	msg := NewMessage(SenderAI, text)
	t.Append(msg)
	return msg
}

// AddSystem appends a system notice (errors, command confirmations) and
// returns it.
func (t *Transcript) AddSystem(text string) Message {
	msg := NewMessage(SenderSystem, text)
	t.Append(msg)
	return msg
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages...)
}

// Replace swaps in a persisted transcript, pruning to MaxMessages.
func (t *Transcript) Replace(msgs []Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(msgs) > MaxMessages {
		msgs = msgs[len(msgs)-MaxMessages:]
	}
	t.messages = append([]Message(nil), msgs...)
}

// Len returns the number of retained messages.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

// History builds the upstream request history: the system prompt first, then
// the last HistoryWindow user and assistant messages mapped to API roles.
// System notices are local to the transcript and never sent upstream.
func (t *Transcript) History() []HistoryItem {
	t.mu.Lock()
	defer t.mu.Unlock()

	var conversation []HistoryItem
	for _, msg := range t.messages {
		switch msg.Sender {
		case SenderUser:
			conversation = append(conversation, HistoryItem{Role: "user", Content: msg.Text})
		case SenderAI:
			conversation = append(conversation, HistoryItem{Role: "assistant", Content: msg.Text})
		}
	}
	if len(conversation) > HistoryWindow {
		conversation = conversation[len(conversation)-HistoryWindow:]
	}

	history := make([]HistoryItem, 0, len(conversation)+1)
	history = append(history, HistoryItem{Role: "system", Content: SystemPrompt})
	return append(history, conversation...)
}
