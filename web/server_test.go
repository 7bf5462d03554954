package web

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/odvcencio/scribe/assistant"
	"github.com/odvcencio/scribe/chat"
	"github.com/odvcencio/scribe/document"
)

type fakeWorkspace struct {
	content  string
	title    string
	calls    []string
	chatResp []chat.Message
	err      error
}

func (f *fakeWorkspace) LoadDocument() (string, string, error) {
	f.calls = append(f.calls, "load")
	return f.content, f.title, f.err
}

func (f *fakeWorkspace) SetContent(content string) error {
	f.calls = append(f.calls, "setContent:"+content)
	return f.err
}

func (f *fakeWorkspace) SetTitle(title string) {
	f.calls = append(f.calls, "setTitle:"+title)
}

func (f *fakeWorkspace) ApplyEdit(oldText, newText string) error {
	f.calls = append(f.calls, "edit:"+oldText+"->"+newText)
	return f.err
}

func (f *fakeWorkspace) ApplyWrite(content string) error {
	f.calls = append(f.calls, "write:"+content)
	return f.err
}

func (f *fakeWorkspace) StreamWrite(content string) error {
	f.calls = append(f.calls, "stream:"+content)
	return f.err
}

func (f *fakeWorkspace) CancelStream() {
	f.calls = append(f.calls, "cancel")
}

func (f *fakeWorkspace) SelectionChange(_ *document.Selection) error {
	f.calls = append(f.calls, "selection")
	return nil
}

func (f *fakeWorkspace) FocusEditor() {
	f.calls = append(f.calls, "focus")
}

func (f *fakeWorkspace) BlurEditor(focusInChat bool) bool {
	f.calls = append(f.calls, "blur")
	return focusInChat
}

func (f *fakeWorkspace) ChatSend(_ context.Context, message string) ([]chat.Message, error) {
	f.calls = append(f.calls, "chat:"+message)
	return f.chatResp, f.err
}

func (f *fakeWorkspace) Context() assistant.Context {
	return assistant.Context{TotalWords: 7}
}

func (f *fakeWorkspace) Messages() []chat.Message {
	return f.chatResp
}

func rpc(t *testing.T, s *Server, method string, params any) rpcResponse {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return s.handleRPC(context.Background(), rpcRequest{ID: 1, Method: method, Params: raw})
}

func TestRPCLoadDocument(t *testing.T) {
	ws := &fakeWorkspace{content: `[{"type":"paragraph"}]`, title: "Draft"}
	s := NewServer(ws)

	resp := rpc(t, s, "loadDocument", nil)
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	result := resp.Result.(map[string]string)
	if result["content"] != ws.content || result["title"] != "Draft" {
		t.Errorf("result = %v", result)
	}
}

func TestRPCApplyEdit(t *testing.T) {
	ws := &fakeWorkspace{}
	s := NewServer(ws)

	resp := rpc(t, s, "applyEdit", map[string]string{"oldText": "a", "newText": "b"})
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	if len(ws.calls) != 1 || ws.calls[0] != "edit:a->b" {
		t.Errorf("calls = %v", ws.calls)
	}
}

func TestRPCApplyEditPropagatesError(t *testing.T) {
	ws := &fakeWorkspace{err: assistant.ErrNotFound}
	s := NewServer(ws)

	resp := rpc(t, s, "applyEdit", map[string]string{"oldText": "a", "newText": "b"})
	if resp.Error == nil {
		t.Fatal("error should propagate to the client")
	}
	if !strings.Contains(resp.Error.Message, "not found") {
		t.Errorf("error message = %q", resp.Error.Message)
	}
}

func TestRPCWriteAndStream(t *testing.T) {
	ws := &fakeWorkspace{}
	s := NewServer(ws)

	rpc(t, s, "applyWrite", map[string]string{"content": "text"})
	rpc(t, s, "streamWrite", map[string]string{"content": "more"})
	rpc(t, s, "cancelStream", nil)

	want := []string{"write:text", "stream:more", "cancel"}
	for i, w := range want {
		if ws.calls[i] != w {
			t.Errorf("calls[%d] = %q, want %q", i, ws.calls[i], w)
		}
	}
}

func TestRPCBlurEditor(t *testing.T) {
	ws := &fakeWorkspace{}
	s := NewServer(ws)

	resp := rpc(t, s, "blurEditor", map[string]bool{"focusInChat": true})
	result := resp.Result.(map[string]bool)
	if !result["suppress"] {
		t.Error("blur into chat should be suppressed by the fake")
	}
}

func TestRPCChatSend(t *testing.T) {
	ws := &fakeWorkspace{chatResp: []chat.Message{{Text: "reply", Sender: chat.SenderAI}}}
	s := NewServer(ws)

	resp := rpc(t, s, "chatSend", map[string]string{"message": "hello"})
	if resp.Error != nil {
		t.Fatalf("error: %+v", resp.Error)
	}
	if ws.calls[0] != "chat:hello" {
		t.Errorf("calls = %v", ws.calls)
	}
}

func TestRPCGetContext(t *testing.T) {
	s := NewServer(&fakeWorkspace{})
	resp := rpc(t, s, "getContext", nil)
	ctx := resp.Result.(assistant.Context)
	if ctx.TotalWords != 7 {
		t.Errorf("context = %+v", ctx)
	}
}

func TestRPCUnknownMethod(t *testing.T) {
	s := NewServer(&fakeWorkspace{})
	resp := rpc(t, s, "nope", nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Errorf("response = %+v", resp)
	}
}

func TestRPCMalformedParams(t *testing.T) {
	s := NewServer(&fakeWorkspace{})
	resp := s.handleRPC(context.Background(), rpcRequest{
		ID: 1, Method: "applyEdit", Params: json.RawMessage(`{`),
	})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("response = %+v", resp)
	}
}
