package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gwi.com/interview-coach/internal/config"
	"gwi.com/interview-coach/internal/utils"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one role-tagged turn of a generation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces free text for an ordered list of messages, system
// message first. The timeout bounds the whole call and cancels it when hit.
type Generator interface {
	Generate(ctx context.Context, messages []Message, timeout time.Duration) (string, error)
}

type FailureCause string

const (
	CauseTimeout        FailureCause = "timeout"
	CauseHTTPError      FailureCause = "http-error"
	CauseTransportError FailureCause = "transport-error"
	CauseEmptyResponse  FailureCause = "empty-response"
)

// GenerationError is the only error a Generator returns.
type GenerationError struct {
	Cause      FailureCause
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	msg := "generation failed: " + string(e.Cause)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// causeOf reports the failure cause of err, or "" when err is not a GenerationError.
func causeOf(err error) FailureCause {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Cause
	}
	return ""
}

// requestFailure classifies an error raised while the request was in flight.
func requestFailure(ctx context.Context, err error) *GenerationError {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Cause: CauseTimeout, Err: err}
	}
	return &GenerationError{Cause: CauseTransportError, Err: err}
}

// NewGenerator builds the backend named by cfg.LLMProvider.
func NewGenerator(ctx context.Context, cfg config.Config, logger utils.Logger) (Generator, error) {
	switch cfg.LLMProvider {
	case "mock":
		logger.Info("LLM_PROVIDER=mock, using canned generator")
		return NewMockGenerator(), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	case "ollama", "":
		return NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// MockGenerator answers without any backend: a numbered list for question
// prompts and a fixed remark otherwise.
type MockGenerator struct{}

var _ Generator = (*MockGenerator)(nil)

func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

var mockQuestions = []string{
	"Walk me through how you would design a URL shortening service.",
	"How do you decide between a relational and a document database?",
	"Explain how you would find the cause of a memory leak in production.",
	"What trade-offs do you consider when adding a cache to a service?",
	"How do you keep a large codebase maintainable over time?",
	"Describe how you would roll out a breaking API change safely.",
	"How do you test code that depends on external services?",
	"What does a good code review look like to you?",
	"How would you make a slow endpoint faster?",
	"Tell me about a technical decision you would make differently today.",
}

func (m *MockGenerator) Generate(ctx context.Context, messages []Message, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", requestFailure(ctx, err)
	}
	if len(messages) == 0 {
		return "", &GenerationError{Cause: CauseEmptyResponse}
	}

	last := messages[len(messages)-1].Content
	if strings.Contains(last, "numbered list") {
		var sb strings.Builder
		for i, q := range mockQuestions {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
		return sb.String(), nil
	}
	return "Clear structure and a relevant example. Quantify the outcome and mention one alternative you considered.", nil
}
