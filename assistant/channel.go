package assistant

// Channel is the typed command channel between the chat side and the editor
// side, replacing an implicit global event bus with explicit registration.
// Delivery is fire-and-forget: outcomes are reported through the chat
// transcript, never back to the dispatcher.
type Channel struct {
	onEdit  func(oldText, newText string)
	onWrite func(content string)
}

// NewChannel returns a channel with no handlers registered.
func NewChannel() *Channel {
	return &Channel{}
}

// HandleEdit registers the edit-command handler.
func (c *Channel) HandleEdit(fn func(oldText, newText string)) {
	c.onEdit = fn
}

// HandleWrite registers the write-command handler.
func (c *Channel) HandleWrite(fn func(content string)) {
	c.onWrite = fn
}

// DispatchEdit delivers an edit command. Commands with empty old or new text
// and commands arriving before a handler is registered are dropped.
func (c *Channel) DispatchEdit(oldText, newText string) {
	if c.onEdit == nil || oldText == "" || newText == "" {
		return
	}
	c.onEdit(oldText, newText)
}

// DispatchWrite delivers a write command.
func (c *Channel) DispatchWrite(content string) {
	if c.onWrite == nil || content == "" {
		return
	}
	c.onWrite(content)
}
