package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spec-kit/support-assistant/internal/config"
	apperrors "github.com/spec-kit/support-assistant/pkg/util"
)

// Client speaks the OpenAI-compatible chat-completions wire format used
// by the configured provider (Groq by default). One request per reply;
// failures are surfaced to the caller and never retried here.
type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	url        string
}

// NewClient builds a provider client bounded by the configured timeout.
func NewClient(cfg config.AIConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		url:        cfg.URL,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message and returns the
// assistant reply text.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	payload := completionRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NewUpstream("error communicating with completion provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		diagnostic, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", apperrors.NewUpstream(
			fmt.Sprintf("completion provider error: %s", string(diagnostic)), nil)
	}

	var decoded completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", apperrors.NewUpstream("malformed completion provider response", err)
	}
	if len(decoded.Choices) == 0 {
		return "", apperrors.NewUpstream("completion provider returned no choices", nil)
	}
	return decoded.Choices[0].Message.Content, nil
}
