// Package web serves the browser editing surface: static assets plus a
// WebSocket RPC channel carrying document operations, selection events, and
// chat turns. Context updates are pushed to every connected client.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/assistant"
	"github.com/odvcencio/scribe/chat"
	"github.com/odvcencio/scribe/document"
)

//go:embed static/*
var staticFS embed.FS

// Workspace is the server-side editing session the RPC methods act on. All
// mutating calls are expected to serialize internally; the web layer never
// touches the document tree directly.
type Workspace interface {
	LoadDocument() (content, title string, err error)
	SetContent(content string) error
	SetTitle(title string)
	ApplyEdit(oldText, newText string) error
	ApplyWrite(content string) error
	StreamWrite(content string) error
	CancelStream()
	SelectionChange(sel *document.Selection) error
	FocusEditor()
	BlurEditor(focusInChat bool) bool
	ChatSend(ctx context.Context, message string) ([]chat.Message, error)
	Context() assistant.Context
	Messages() []chat.Message
}

// Server is the HTTP + WebSocket frontend server.
type Server struct {
	ws       Workspace
	upgrader websocket.Upgrader
	log      commonlog.Logger
	mu       sync.Mutex
	clients  []*wsClient
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type rpcRequest struct {
	ID     any             `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	ID     any       `json:"id"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewServer creates a web server backed by the given workspace.
func NewServer(ws Workspace) *Server {
	return &Server{
		ws: ws,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: commonlog.GetLogger("scribe.web"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		s.handleWebSocket(w, r)
		return
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "static files unavailable", 500)
		return
	}
	http.FileServer(http.FS(sub)).ServeHTTP(w, r)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("websocket upgrade: %v", err)
		return
	}
	client := &wsClient{conn: conn}
	s.mu.Lock()
	s.clients = append(s.clients, client)
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		for i, c := range s.clients {
			if c == client {
				s.clients = append(s.clients[:i], s.clients[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			continue
		}
		resp := s.handleRPC(r.Context(), req)
		data, _ := json.Marshal(resp)
		client.mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
	}
}

func (s *Server) handleRPC(ctx context.Context, req rpcRequest) rpcResponse {
	switch req.Method {
	case "loadDocument":
		return s.rpcLoadDocument(req)
	case "setContent":
		return s.rpcSetContent(req)
	case "setTitle":
		return s.rpcSetTitle(req)
	case "applyEdit":
		return s.rpcApplyEdit(req)
	case "applyWrite":
		return s.rpcApplyWrite(req)
	case "streamWrite":
		return s.rpcStreamWrite(req)
	case "cancelStream":
		s.ws.CancelStream()
		return okResponse(req, "cancelled")
	case "selectionChange":
		return s.rpcSelectionChange(req)
	case "focusEditor":
		s.ws.FocusEditor()
		return okResponse(req, "ok")
	case "blurEditor":
		return s.rpcBlurEditor(req)
	case "chatSend":
		return s.rpcChatSend(ctx, req)
	case "getContext":
		return rpcResponse{ID: req.ID, Result: s.ws.Context()}
	case "getMessages":
		return rpcResponse{ID: req.ID, Result: map[string]any{"messages": s.ws.Messages()}}
	default:
		return rpcResponse{
			ID:    req.ID,
			Error: &rpcError{Code: -32601, Message: fmt.Sprintf("unknown method: %s", req.Method)},
		}
	}
}

func okResponse(req rpcRequest, status string) rpcResponse {
	return rpcResponse{ID: req.ID, Result: map[string]string{"status": status}}
}

func errResponse(req rpcRequest, code int, err error) rpcResponse {
	return rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: err.Error()}}
}

func (s *Server) rpcLoadDocument(req rpcRequest) rpcResponse {
	content, title, err := s.ws.LoadDocument()
	if err != nil {
		return errResponse(req, -32000, err)
	}
	return rpcResponse{ID: req.ID, Result: map[string]string{"content": content, "title": title}}
}

func (s *Server) rpcSetContent(req rpcRequest) rpcResponse {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	if err := s.ws.SetContent(p.Content); err != nil {
		return errResponse(req, -32000, err)
	}
	return okResponse(req, "ok")
}

func (s *Server) rpcSetTitle(req rpcRequest) rpcResponse {
	var p struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	s.ws.SetTitle(p.Title)
	return okResponse(req, "ok")
}

func (s *Server) rpcApplyEdit(req rpcRequest) rpcResponse {
	var p struct {
		OldText string `json:"oldText"`
		NewText string `json:"newText"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	if err := s.ws.ApplyEdit(p.OldText, p.NewText); err != nil {
		return errResponse(req, -32000, err)
	}
	return okResponse(req, "edited")
}

func (s *Server) rpcApplyWrite(req rpcRequest) rpcResponse {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	if err := s.ws.ApplyWrite(p.Content); err != nil {
		return errResponse(req, -32000, err)
	}
	return okResponse(req, "written")
}

func (s *Server) rpcStreamWrite(req rpcRequest) rpcResponse {
	var p struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	if err := s.ws.StreamWrite(p.Content); err != nil {
		return errResponse(req, -32000, err)
	}
	return okResponse(req, "streaming")
}

func (s *Server) rpcSelectionChange(req rpcRequest) rpcResponse {
	var p struct {
		Selection *document.Selection `json:"selection"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	if err := s.ws.SelectionChange(p.Selection); err != nil {
		return errResponse(req, -32000, err)
	}
	return okResponse(req, "ok")
}

func (s *Server) rpcBlurEditor(req rpcRequest) rpcResponse {
	var p struct {
		FocusInChat bool `json:"focusInChat"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	suppress := s.ws.BlurEditor(p.FocusInChat)
	return rpcResponse{ID: req.ID, Result: map[string]bool{"suppress": suppress}}
}

func (s *Server) rpcChatSend(ctx context.Context, req rpcRequest) rpcResponse {
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req, -32602, err)
	}
	msgs, err := s.ws.ChatSend(ctx, p.Message)
	if err != nil {
		return errResponse(req, -32000, err)
	}
	return rpcResponse{ID: req.ID, Result: map[string]any{"messages": msgs}}
}

// Broadcast sends a notification to all connected WebSocket clients.
func (s *Server) Broadcast(method string, params any) {
	msg, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		return
	}
	s.mu.Lock()
	clients := append([]*wsClient(nil), s.clients...)
	s.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
		c.mu.Unlock()
	}
}
