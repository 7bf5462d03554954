// Package chat manages the conversation transcript between the user and the
// assistant: message identity, history windowing for upstream requests, and
// the slash commands routed before a message ever reaches the model.
package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderSystem Sender = "system"
)

// Message is one transcript entry. Streaming marks an AI message still being
// filled in; it is cleared when the response completes.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	Streaming bool      `json:"streaming,omitempty"`
}

// NewMessage returns a message with a fresh id and the current time.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		Timestamp: time.Now(),
	}
}

// SystemPrompt frames every upstream conversation.
const SystemPrompt = `You are a helpful AI assistant integrated into a document editor.
You can help with writing, editing, and answering questions about the document.
Keep your responses clear and concise.

You have access to the following document context:
- Selected text
- Current paragraph
- Total word count
- Current formatting
- Document title
- Last edit timestamp

Use this context to provide more relevant assistance.`
