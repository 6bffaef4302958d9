package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cognicore/resintel/pkg/resintel/internalerr"
)

// DefaultBaseURL is the OpenAI-compatible chat endpoint used when none is configured.
const DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string

	HTTPClient *http.Client
}

// Request is a single chat completion. A nil Temperature and a zero MaxTokens
// use the endpoint defaults; Model overrides the client model.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature *float64
	MaxTokens   int
}

// Temperature returns a pointer for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends a system and a user message with the endpoint's default sampling.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	return c.Complete(ctx, Request{System: system, User: user})
}

// Complete sends req and returns the trimmed content of the first choice.
// Transport failures, non-2xx statuses, API errors and empty content are
// reported as ErrUpstream.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.Model
	}
	if c.BaseURL == "" || model == "" {
		return "", fmt.Errorf("%w: llm base URL and model required", internalerr.ErrInvalidConfig)
	}
	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.User})

	payload, err := c.send(ctx, chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", internalerr.ErrUpstream, err)
	}
	if len(payload.Choices) == 0 {
		return "", fmt.Errorf("%w: llm: empty response", internalerr.ErrUpstream)
	}
	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: llm: empty content", internalerr.ErrUpstream)
	}
	return content, nil
}

func (c *Client) send(ctx context.Context, body chatRequest) (*chatResponse, error) {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("llm: http %d", resp.StatusCode)
		}
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("llm error: %s", payload.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm: http %d", resp.StatusCode)
	}
	return &payload, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}
