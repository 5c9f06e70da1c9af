package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMessages = []Message{
	{Role: RoleSystem, Content: "You are a senior technical interviewer."},
	{Role: RoleUser, Content: "Question: What is a closure?"},
}

func requireCause(t *testing.T, err error, want FailureCause) *GenerationError {
	t.Helper()
	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr), "expected *GenerationError, got %T: %v", err, err)
	assert.Equal(t, want, genErr.Cause)
	return genErr
}

func TestOllamaClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req ollamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma3:4b", req.Model)
		assert.False(t, req.Stream)
		assert.Equal(t, testMessages, req.Messages)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"gemma3:4b","message":{"role":"assistant","content":"Solid answer. Add an example."},"done":true}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL+"/", "")
	text, err := client.Generate(context.Background(), testMessages, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Solid answer. Add an example.", text)
}

func TestOllamaClientEmptyContentIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer server.Close()

	text, err := NewOllamaClient(server.URL, "gemma3:4b").Generate(context.Background(), testMessages, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

func TestOllamaClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error":"model not loaded"}`)
	}))
	defer server.Close()

	_, err := NewOllamaClient(server.URL, "gemma3:4b").Generate(context.Background(), testMessages, time.Second)
	genErr := requireCause(t, err, CauseHTTPError)
	assert.Equal(t, http.StatusInternalServerError, genErr.StatusCode)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestOllamaClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	start := time.Now()
	_, err := NewOllamaClient(server.URL, "gemma3:4b").Generate(context.Background(), testMessages, 50*time.Millisecond)
	requireCause(t, err, CauseTimeout)
	assert.Less(t, time.Since(start), time.Second, "the request must be cancelled at the deadline")
}

func TestOllamaClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewOllamaClient(url, "gemma3:4b").Generate(context.Background(), testMessages, time.Second)
	requireCause(t, err, CauseTransportError)
}

func TestOllamaClientEmptyResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no message", `{"model":"gemma3:4b","done":true}`},
		{"not json", `<html>proxy error</html>`},
		{"empty body", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewOllamaClient(server.URL, "gemma3:4b").Generate(context.Background(), testMessages, time.Second)
			requireCause(t, err, CauseEmptyResponse)
		})
	}
}

func TestMockGenerator(t *testing.T) {
	gen := NewMockGenerator()

	text, err := gen.Generate(context.Background(), BuildQuestionPrompt(InterviewConfig{Role: "backend", Level: "mid"}), time.Second)
	require.NoError(t, err)
	assert.Len(t, ParseQuestions(text), 10)

	text, err = gen.Generate(context.Background(), BuildFeedbackPrompt("What is a closure?", "A function with state."), time.Second)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
	assert.Empty(t, ParseQuestions(text))
}

func TestSplitConversation(t *testing.T) {
	system, history, last, err := splitConversation([]Message{
		{Role: RoleSystem, Content: "Be brief."},
		{Role: RoleUser, Content: "Hi"},
		{Role: RoleAssistant, Content: "Hello"},
		{Role: RoleUser, Content: "Rate my answer."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", system)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "Rate my answer.", last)

	_, _, _, err = splitConversation([]Message{{Role: RoleSystem, Content: "Be brief."}})
	assert.Error(t, err)
}

func TestGenerationErrorMessage(t *testing.T) {
	err := &GenerationError{Cause: CauseHTTPError, StatusCode: 503, Err: errors.New("unavailable")}
	assert.Equal(t, "generation failed: http-error (status 503): unavailable", err.Error())
	assert.Equal(t, CauseHTTPError, causeOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, FailureCause(""), causeOf(errors.New("plain")))
}
