// Package relay fronts the upstream chat-completion API: a thin client with
// timeouts and error mapping, and an HTTP server exposing cached, rate-limited
// chat endpoints to the browser.
package relay

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tliron/commonlog"

	"github.com/odvcencio/scribe/chat"
)

// ErrTimeout reports that the upstream did not answer within the configured
// deadline. Callers surface it differently from other failures so the user
// knows a retry may work.
var ErrTimeout = errors.New("relay: upstream timed out")

// ErrUpstream wraps non-timeout upstream failures.
var ErrUpstream = errors.New("relay: upstream error")

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 10 * time.Second
	maxTokens      = 800
	temperature    = 0.7
)

// Config holds upstream connection settings.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client talks to an OpenAI-compatible chat-completion endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	log  commonlog.Logger
}

// NewClient returns a client with defaults filled in.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  commonlog.GetLogger("scribe.relay"),
	}
}

type chatRequest struct {
	Model       string             `json:"model"`
	Messages    []chat.HistoryItem `json:"messages"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	Stream      bool               `json:"stream,omitempty"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the history plus the new user message and returns the full
// response text.
func (c *Client) Complete(ctx context.Context, history []chat.HistoryItem, message string) (string, error) {
	resp, err := c.send(ctx, history, message, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	if len(body.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return body.Choices[0].Message.Content, nil
}

// Stream sends the request in streaming mode, invoking onChunk for each piece
// of content as it arrives, and returns once the stream completes.
func (c *Client) Stream(ctx context.Context, history []chat.HistoryItem, message string, onChunk func(string)) error {
	resp, err := c.send(ctx, history, message, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}
		var body chatResponse
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			c.log.Debugf("skipping malformed stream chunk: %v", err)
			continue
		}
		if len(body.Choices) > 0 && body.Choices[0].Delta.Content != "" {
			onChunk(body.Choices[0].Delta.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return c.mapError(err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, history []chat.HistoryItem, message string, stream bool) (*http.Response, error) {
	messages := append(append([]chat.HistoryItem(nil), history...), chat.HistoryItem{
		Role:    "user",
		Content: message,
	})
	payload, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.mapError(err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var body chatResponse
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != nil {
			msg = body.Error.Message
		}
		c.log.Errorf("upstream returned %d: %s", resp.StatusCode, msg)
		return nil, fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	return resp, nil
}

// mapError folds transport failures into the package sentinels.
func (c *Client) mapError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.log.Infof("upstream timeout: %v", err)
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
