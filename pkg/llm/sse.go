package llm

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
)

// Client talks to an OpenAI-compatible chat completion endpoint with
// streaming enabled.
type Client struct {
	url        string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL, key and model.
func NewClient(url, apiKey, model string, maxTokens int) *Client {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &Client{
		url:        strings.TrimSuffix(url, "/"),
		apiKey:     apiKey,
		model:      model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Generate opens a streaming completion for the prompt. The returned
// Stream is bound to ctx: cancelling ctx aborts the generation and
// unblocks Recv.
func (c *Client) Generate(ctx context.Context, system, prompt string) (Stream, error) {
	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Stream:      true,
		MaxTokens:   c.maxTokens,
		Temperature: 0.6,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("upstream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return &sseStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
		start:   time.Now(),
	}, nil
}

// sseStream reads "data:" lines off a text/event-stream body and
// yields the non-empty content deltas.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	start   time.Time
	meta    Meta
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.finish()
			return "", io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		if s.meta.Fragments == 0 {
			s.meta.FirstFragment = time.Since(s.start)
		}
		s.meta.Fragments++
		return chunk.Choices[0].Delta.Content, nil
	}

	err := s.scanner.Err()
	s.finish()
	if err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return "", io.EOF
}

func (s *sseStream) finish() {
	if !s.done {
		s.done = true
		s.meta.Total = time.Since(s.start)
		s.body.Close()
	}
}

// Meta reports the generation's timing and fragment count.
func (s *sseStream) Meta() Meta {
	return s.meta
}

// Close aborts the generation early. Safe to call more than once.
func (s *sseStream) Close() error {
	s.finish()
	return nil
}
