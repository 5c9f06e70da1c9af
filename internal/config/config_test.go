package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, "5001", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "ollama", cfg.LLMProvider)
	assert.Equal(t, "gemma3:4b", cfg.OllamaModel)
	assert.Equal(t, 120*time.Second, cfg.QuestionTimeout)
	assert.Equal(t, 60*time.Second, cfg.FeedbackTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FeedbackCeiling)
	assert.False(t, cfg.SeedOnEmpty)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LLM_PROVIDER", "mock")
	t.Setenv("QUESTION_TIMEOUT", "90s")
	t.Setenv("FEEDBACK_TIMEOUT", "1500")
	t.Setenv("FEEDBACK_CEILING", "later")
	t.Setenv("SEED_ON_EMPTY", "true")

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "mock", cfg.LLMProvider)
	assert.Equal(t, 90*time.Second, cfg.QuestionTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.FeedbackTimeout)
	assert.Equal(t, 2*time.Minute, cfg.FeedbackCeiling, "unparseable values keep the default")
	assert.True(t, cfg.SeedOnEmpty)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, "STORE_DRIVER"},
		{"unknown provider", func(c *Config) { c.LLMProvider = "openai" }, "LLM_PROVIDER"},
		{"gemini without key", func(c *Config) { c.LLMProvider = "gemini"; c.GeminiAPIKey = "" }, "GEMINI_API_KEY"},
		{"zero timeout", func(c *Config) { c.FeedbackTimeout = 0 }, "FEEDBACK_TIMEOUT"},
		{"zero ceiling", func(c *Config) { c.FeedbackCeiling = 0 }, "FEEDBACK_CEILING"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := FromEnv()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	cfg := FromEnv()
	cfg.LLMProvider = "gemini"
	cfg.GeminiAPIKey = "key"
	assert.NoError(t, cfg.Validate())
}
