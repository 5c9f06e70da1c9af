package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOllamaModel = "gemma3:4b"

// OllamaClient talks to an Ollama server's chat endpoint without streaming.
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Generator = (*OllamaClient)(nil)

func NewOllamaClient(baseURL, model string) *OllamaClient {
	if model == "" {
		model = defaultOllamaModel
	}
	return &OllamaClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		// Deadlines come from the per-call context.
		httpClient: &http.Client{},
	}
}

type ollamaChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string   `json:"model"`
	Message *Message `json:"message"`
	Done    bool     `json:"done"`
}

func (c *OllamaClient) Generate(ctx context.Context, messages []Message, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
	})
	if err != nil {
		return "", &GenerationError{Cause: CauseTransportError, Err: fmt.Errorf("failed to marshal chat request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &GenerationError{Cause: CauseTransportError, Err: fmt.Errorf("failed to create chat request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", requestFailure(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestFailure(ctx, fmt.Errorf("failed to read chat response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GenerationError{
			Cause:      CauseHTTPError,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200)),
		}
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", &GenerationError{Cause: CauseEmptyResponse, Err: fmt.Errorf("failed to decode chat response: %w", err)}
	}
	if chatResp.Message == nil {
		return "", &GenerationError{Cause: CauseEmptyResponse, Err: fmt.Errorf("chat response carried no message")}
	}

	return chatResp.Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
