package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/assistant"
	"github.com/odvcencio/scribe/chat"
)

const (
	responseCacheSize = 200
	responseCacheTTL  = 10 * time.Minute
	cacheHistoryDepth = 3
)

// Completer is the upstream the server proxies to. Satisfied by *Client.
type Completer interface {
	Complete(ctx context.Context, history []chat.HistoryItem, message string) (string, error)
	Stream(ctx context.Context, history []chat.HistoryItem, message string, onChunk func(string)) error
}

// Server exposes the chat endpoints consumed by the browser. Responses are
// cached on the message plus the tail of the history, so a repeated question
// against an unchanged conversation skips the upstream round-trip.
type Server struct {
	upstream Completer
	cache    *assistant.Cache[string]
	limiter  *ipLimiter
	log      commonlog.Logger
}

// NewServer wraps the upstream completer.
func NewServer(upstream Completer) *Server {
	return &Server{
		upstream: upstream,
		cache:    assistant.NewCache[string](responseCacheSize, responseCacheTTL),
		limiter:  newIPLimiter(),
		log:      commonlog.GetLogger("scribe.relay"),
	}
}

// Register installs the chat routes on the mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stream", s.handleStream)
}

type chatBody struct {
	Message string             `json:"message"`
	History []chat.HistoryItem `json:"history"`
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) (chatBody, bool) {
	var body chatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return body, false
	}
	if body.Message == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return body, false
	}
	return body, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(w, r) {
		writeError(w, http.StatusTooManyRequests, limitMessageBody)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.log.Infof("chat request, message length %d", len(body.Message))

	key := cacheKey(body.Message, body.History)
	if cached, ok := s.cache.Get(key); ok {
		s.log.Debugf("cache hit for message")
		writeJSON(w, http.StatusOK, map[string]string{"message": cached})
		return
	}

	response, err := s.upstream.Complete(r.Context(), body.History, body.Message)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrTimeout) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}

	s.cache.Set(key, response)
	writeJSON(w, http.StatusOK, map[string]string{"message": response})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(w, r) {
		writeError(w, http.StatusTooManyRequests, limitMessageBody)
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}
	s.log.Infof("streaming chat request, message length %d", len(body.Message))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, flusher, "connected", "{}")

	var full string
	err := s.upstream.Stream(r.Context(), body.History, body.Message, func(content string) {
		full += content
		data, _ := json.Marshal(map[string]string{"content": content})
		writeEvent(w, flusher, "message", string(data))
	})
	if err != nil {
		s.log.Errorf("streaming error: %v", err)
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		writeEvent(w, flusher, "error", string(data))
		return
	}

	if full != "" {
		s.cache.Set(cacheKey(body.Message, body.History), full)
	}
	writeEvent(w, flusher, "complete", "{}")
}

// cacheKey derives the response-cache key from the message and the last few
// history items, so the cache invalidates as the conversation moves on.
func cacheKey(message string, history []chat.HistoryItem) string {
	if len(history) > cacheHistoryDepth {
		history = history[len(history)-cacheHistoryDepth:]
	}
	data, _ := json.Marshal(struct {
		Message string             `json:"message"`
		History []chat.HistoryItem `json:"history"`
	}{message, history})
	return string(data)
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
