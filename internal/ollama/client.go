// Package ollama is the HTTP transport adapter for the local Ollama
// daemon. Endpoints used:
//   - POST /api/chat    — chat completion, streaming and non-streaming
//   - GET  /api/tags    — lists locally available models
//   - GET  /api/version — daemon reachability probe
//
// Streamed responses arrive as line-delimited JSON objects, each carrying
// an incremental message fragment and a done flag on the final object.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"smolchat/internal/config"
	"smolchat/internal/conversation"
)

const (
	requestTimeout = 60 * time.Second
	probeTimeout   = 2 * time.Second

	// NDJSON lines are normally tiny; the cap guards against a runaway line.
	maxChunkSize = 1024 * 1024
)

// Client talks to one Ollama daemon on behalf of one configured model.
// It performs network I/O only and never mutates the conversation.
type Client struct {
	baseURL    string
	model      string
	options    map[string]any
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient builds a Client from the resolved session configuration.
func NewClient(cfg *config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL(),
		model:   cfg.Model,
		options: buildOptions(cfg),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		log: log,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// buildOptions converts generation parameters into the Ollama options map.
// Zero values are omitted so the daemon applies its own defaults.
func buildOptions(cfg *config.Config) map[string]any {
	opts := map[string]any{}
	if cfg.Temperature != 0 {
		opts["temperature"] = cfg.Temperature
	}
	if cfg.NumCtx != 0 {
		opts["num_ctx"] = cfg.NumCtx
	}
	if cfg.NumPredict != 0 {
		opts["num_predict"] = cfg.NumPredict
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

// ─── wire types ──────────────────────────────────────────────────────────────

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// chatChunk is one streamed NDJSON object; the non-streaming response
// uses the same shape with done=true.
type chatChunk struct {
	Message    chatMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason"`
	Error      string      `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type versionResponse struct {
	Version string `json:"version"`
}

// ─── chat ────────────────────────────────────────────────────────────────────

// Chat performs a non-streaming completion and returns the full
// assistant text.
func (c *Client) Chat(ctx context.Context, msgs []conversation.Message) (string, error) {
	resp, err := c.postChat(ctx, msgs, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatChunk
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if result.Error != "" {
		return "", payloadError(resp.StatusCode, result.Error)
	}
	return result.Message.Content, nil
}

// ChatStream performs a streaming completion, invoking onFragment for
// each incremental piece of text as it arrives, and returns the
// concatenated assistant text once the daemon signals done.
//
// The fragment sequence is lazy, finite, and non-restartable; a decode
// failure aborts the stream and the partial text is discarded by the
// caller.
func (c *Client) ChatStream(ctx context.Context, msgs []conversation.Message, onFragment func(string)) (string, error) {
	resp, err := c.postChat(ctx, msgs, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxChunkSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
		}
		if chunk.Error != "" {
			return "", payloadError(resp.StatusCode, chunk.Error)
		}

		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if onFragment != nil {
				onFragment(chunk.Message.Content)
			}
		}
		if chunk.Done {
			c.log.Debug("stream complete",
				zap.String("model", c.model),
				zap.String("done_reason", chunk.DoneReason),
				zap.Int("response_len", full.Len()))
			return full.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	return "", fmt.Errorf("%w: stream ended before completion", ErrMalformedChunk)
}

// postChat sends the chat request and returns the raw response with a
// 2xx status. Error responses are drained and mapped here.
func (c *Client) postChat(ctx context.Context, msgs []conversation.Message, stream bool) (*http.Response, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("conversation must not be empty")
	}

	wire := make([]chatMessage, len(msgs))
	for i, m := range msgs {
		wire[i] = chatMessage(m)
	}

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: wire,
		Stream:   stream,
		Options:  c.options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("chat request",
		zap.String("model", c.model),
		zap.Int("messages", len(msgs)),
		zap.Bool("stream", stream))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		return nil, payloadError(resp.StatusCode, errorMessage(data))
	}
	return resp, nil
}

// errorMessage extracts the daemon's error string from a response body,
// falling back to the raw body.
func errorMessage(data []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(data))
}

// payloadError maps a daemon error payload to ErrModelNotFound or a
// StatusError rejection.
func payloadError(code int, msg string) error {
	if strings.Contains(msg, "not found") {
		return fmt.Errorf("%w: %s", ErrModelNotFound, msg)
	}
	return &StatusError{Code: code, Message: msg}
}

// ─── probes ──────────────────────────────────────────────────────────────────

// Version returns the daemon version via GET /api/version. Used as the
// startup reachability probe.
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: version probe returned status %d", ErrDaemonUnreachable, resp.StatusCode)
	}

	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("failed to decode version response: %w", err)
	}
	return v.Version, nil
}

// HasModel reports whether the daemon has the named model locally,
// via GET /api/tags. A bare name matches any tag of the same model.
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDaemonUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return false, payloadError(resp.StatusCode, errorMessage(data))
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("failed to decode tags response: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true, nil
		}
	}
	return false, nil
}
