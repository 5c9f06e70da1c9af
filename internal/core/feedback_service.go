package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gwi.com/interview-coach/internal/catalog"
	"gwi.com/interview-coach/internal/metrics"
	"gwi.com/interview-coach/internal/store"
	"gwi.com/interview-coach/internal/utils"
)

const (
	FeedbackGenerated = "generated"
	FeedbackDatabase  = "database"
	FeedbackGeneric   = "generic"

	feedbackSystemInstruction = "You are a senior technical interviewer. Provide constructive feedback on interview answers in 2-3 sentences."
)

// ErrInvalidInput is returned when a feedback request lacks its question or answer.
var ErrInvalidInput = errors.New("question and answer are required")

type FeedbackRequest struct {
	Question string
	Answer   string
	// SessionUsedFallback is the owning session's flag, fixed when its
	// questions were resolved.
	SessionUsedFallback bool
	ReferenceAnswer     string
}

type FeedbackResult struct {
	Feedback string `json:"feedback"`
	Source   string `json:"source"`
}

type FeedbackService struct {
	store     store.QuestionStore
	generator Generator
	catalog   *catalog.Catalog
	metrics   *metrics.Metrics
	logger    utils.Logger
	timeout   time.Duration
}

func NewFeedbackService(qs store.QuestionStore, gen Generator, cat *catalog.Catalog, m *metrics.Metrics, logger utils.Logger, timeout time.Duration) *FeedbackService {
	return &FeedbackService{
		store:     qs,
		generator: gen,
		catalog:   cat,
		metrics:   m,
		logger:    logger,
		timeout:   timeout,
	}
}

// Resolve returns feedback for an answer. The only error is ErrInvalidInput.
func (s *FeedbackService) Resolve(ctx context.Context, req FeedbackRequest) (FeedbackResult, error) {
	if strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Answer) == "" {
		return FeedbackResult{}, ErrInvalidInput
	}

	result := s.resolve(ctx, req)
	s.metrics.IncrementFeedback(result.Source)
	s.logger.DebugContext(ctx, "Feedback resolved", "source", result.Source)
	return result, nil
}

func (s *FeedbackService) resolve(ctx context.Context, req FeedbackRequest) FeedbackResult {
	// Sessions running on store-backed questions use their reference answers
	// without asking the backend.
	if req.SessionUsedFallback && strings.TrimSpace(req.ReferenceAnswer) != "" {
		return FeedbackResult{Feedback: req.ReferenceAnswer, Source: FeedbackDatabase}
	}

	text, err := s.generator.Generate(ctx, BuildFeedbackPrompt(req.Question, req.Answer), s.timeout)
	if err == nil {
		return FeedbackResult{Feedback: text, Source: FeedbackGenerated}
	}
	s.metrics.IncrementGenerationFailure("feedback", string(causeOf(err)))
	s.logger.WarnContext(ctx, "Feedback generation failed, looking up reference answer", "error", err)

	record, err := s.store.FindOne(ctx, store.Filter{Text: req.Question, WithReferenceAnswer: true})
	if err != nil {
		s.metrics.IncrementStoreFailure("feedback")
		s.logger.WarnContext(ctx, "Reference answer lookup failed", "error", err)
	} else if record != nil {
		return FeedbackResult{Feedback: record.ReferenceAnswer, Source: FeedbackDatabase}
	}

	return FeedbackResult{Feedback: s.catalog.GenericFeedback, Source: FeedbackGeneric}
}

func BuildFeedbackPrompt(question, answer string) []Message {
	return []Message{
		{Role: RoleSystem, Content: feedbackSystemInstruction},
		{Role: RoleUser, Content: fmt.Sprintf("Question: %s\n\nCandidate Answer: %s\n\nProvide brief, actionable feedback (2-3 sentences).", question, answer)},
	}
}
