package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"gwi.com/interview-coach/internal/utils"
)

const defaultGeminiModel = "gemini-1.5-flash-latest"

// GeminiClient generates text through the Gemini chat API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
	logger    utils.Logger
}

var _ Generator = (*GeminiClient)(nil)

// NewGeminiClient connects with apiKey; opts are applied after it (e.g. a
// custom endpoint).
func NewGeminiClient(ctx context.Context, apiKey, modelName string, logger utils.Logger, opts ...option.ClientOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}

	return &GeminiClient{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close GenAI client: %w", err)
	}
	c.logger.Info("GenAI client closed")
	return nil
}

func (c *GeminiClient) Generate(ctx context.Context, messages []Message, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	system, history, last, err := splitConversation(messages)
	if err != nil {
		return "", &GenerationError{Cause: CauseTransportError, Err: err}
	}

	model := c.client.GenerativeModel(c.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}

	chatSession := model.StartChat()
	chatSession.History = history

	resp, err := chatSession.SendMessage(ctx, genai.Text(last))
	if err != nil {
		var blocked *genai.BlockedError
		if errors.As(err, &blocked) {
			return "", &GenerationError{Cause: CauseEmptyResponse, Err: err}
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return "", &GenerationError{Cause: CauseHTTPError, StatusCode: apiErr.Code, Err: err}
		}
		return "", requestFailure(ctx, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &GenerationError{Cause: CauseEmptyResponse, Err: fmt.Errorf("gemini response had no candidates")}
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			c.logger.Debug("Gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}
	return responseText.String(), nil
}

// splitConversation maps role-tagged messages onto Gemini's shape: system
// messages become the system instruction, the final user message is sent and
// everything in between becomes chat history.
func splitConversation(messages []Message) (string, []*genai.Content, string, error) {
	var (
		system []string
		turns  []Message
	)
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", nil, "", fmt.Errorf("conversation has no user message")
	}

	last := turns[len(turns)-1]
	if last.Role != RoleUser {
		return "", nil, "", fmt.Errorf("last message in conversation is from %q, not user", last.Role)
	}

	history := make([]*genai.Content, 0, len(turns)-1)
	for _, m := range turns[:len(turns)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return strings.Join(system, "\n\n"), history, last.Content, nil
}
