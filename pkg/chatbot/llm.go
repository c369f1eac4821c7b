package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/juju/errors"
)

const chatCompletionsPath = "/v1/chat/completions"

// LLM is a minimal client for an OpenAI-compatible chat completions endpoint.
type LLM struct {
	url    string
	apiKey string
	model  string
	http   *http.Client
}

// NewLLM accepts either a base URL or the full completions URL. A nil
// client gets a 20 second timeout.
func NewLLM(baseURL, apiKey, model string, client *http.Client) (*LLM, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.NotValidf("empty LLM base url")
	}
	if model == "" {
		return nil, errors.NotValidf("empty LLM model")
	}
	url := baseURL
	if !strings.HasSuffix(url, "/chat/completions") {
		url += chatCompletionsPath
	}
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &LLM{url: url, apiKey: strings.TrimSpace(apiKey), model: model, http: client}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends one system and one user message and returns the first choice.
func (c *LLM) Complete(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.3,
		MaxTokens:   400,
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Trace(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Annotate(err, "llm request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Annotate(err, "llm read")
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", errors.Annotatef(err, "llm decode (status %d)", resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("llm status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", errors.New("llm returned no content")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
