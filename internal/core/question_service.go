package core

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"gwi.com/interview-coach/internal/catalog"
	"gwi.com/interview-coach/internal/metrics"
	"gwi.com/interview-coach/internal/store"
	"gwi.com/interview-coach/internal/utils"
)

const (
	SourceGenerated          = "generated"
	SourceDatabaseCategory   = "database:category"
	SourceDatabaseDifficulty = "database:difficulty"
	SourceDatabaseKind       = "database:kind"
	SourceStatic             = "static"

	maxQuestions      = 12
	minQuestionLength = 10

	questionSystemInstruction = "You are an expert technical interviewer. Generate interview questions exactly as requested."
)

var numberedLine = regexp.MustCompile(`^\s*\d+\.\s*(.+)`)

// InterviewConfig is what the candidate asks to be interviewed on.
type InterviewConfig struct {
	Role      string `json:"role" validate:"required"`
	Level     string `json:"level" validate:"required"`
	TechStack string `json:"techStack,omitempty"`
}

// QuestionSet is an ordered list of questions plus where it came from.
// ReferenceAnswers is aligned with Questions and only set for store-backed sets.
type QuestionSet struct {
	Questions        []string `json:"questions"`
	ReferenceAnswers []string `json:"referenceAnswers,omitempty"`
	UsedFallback     bool     `json:"usedFallback"`
	Source           string   `json:"source"`
}

// fallbackStage is one store query of the question cascade.
type fallbackStage struct {
	source string
	filter func(difficulty store.Difficulty, categories []string) store.Filter
}

// questionStages run in order; the first non-empty result wins.
var questionStages = []fallbackStage{
	{
		source: SourceDatabaseCategory,
		filter: func(d store.Difficulty, cats []string) store.Filter {
			return store.Filter{Kind: store.KindTechnical, Difficulty: d, Categories: cats, Limit: maxQuestions}
		},
	},
	{
		source: SourceDatabaseDifficulty,
		filter: func(d store.Difficulty, _ []string) store.Filter {
			return store.Filter{Kind: store.KindTechnical, Difficulty: d, Limit: maxQuestions}
		},
	},
	{
		source: SourceDatabaseKind,
		filter: func(store.Difficulty, []string) store.Filter {
			return store.Filter{Kind: store.KindTechnical, Limit: maxQuestions}
		},
	},
}

type QuestionService struct {
	store     store.QuestionStore
	generator Generator
	catalog   *catalog.Catalog
	metrics   *metrics.Metrics
	logger    utils.Logger
	timeout   time.Duration
}

func NewQuestionService(qs store.QuestionStore, gen Generator, cat *catalog.Catalog, m *metrics.Metrics, logger utils.Logger, timeout time.Duration) *QuestionService {
	return &QuestionService{
		store:     qs,
		generator: gen,
		catalog:   cat,
		metrics:   m,
		logger:    logger,
		timeout:   timeout,
	}
}

// Resolve always returns a non-empty question set: generated questions when
// the backend delivers, then store-backed questions, then the static list.
func (s *QuestionService) Resolve(ctx context.Context, cfg InterviewConfig) QuestionSet {
	set := s.resolve(ctx, cfg)
	s.metrics.IncrementQuestions(set.Source)
	s.logger.InfoContext(ctx, "Questions resolved",
		"role", cfg.Role, "level", cfg.Level, "source", set.Source, "count", len(set.Questions))
	return set
}

func (s *QuestionService) resolve(ctx context.Context, cfg InterviewConfig) QuestionSet {
	text, err := s.generator.Generate(ctx, BuildQuestionPrompt(cfg), s.timeout)
	if err != nil {
		s.metrics.IncrementGenerationFailure("questions", string(causeOf(err)))
		s.logger.WarnContext(ctx, "Question generation failed, falling back to store", "error", err)
	} else {
		if questions := ParseQuestions(text); len(questions) > 0 {
			return QuestionSet{Questions: questions, UsedFallback: false, Source: SourceGenerated}
		}
		s.logger.WarnContext(ctx, "Generated text contained no usable questions, falling back to store")
	}

	difficulty := s.catalog.DifficultyFor(cfg.Level)
	categories := s.catalog.CategoriesFor(cfg.Role)

	for _, stage := range questionStages {
		records, err := s.store.Find(ctx, stage.filter(difficulty, categories))
		if err != nil {
			s.metrics.IncrementStoreFailure(stage.source)
			s.logger.WarnContext(ctx, "Question store stage failed", "stage", stage.source, "error", err)
			continue
		}
		if len(records) == 0 {
			continue
		}

		if len(records) > maxQuestions {
			records = records[:maxQuestions]
		}
		set := QuestionSet{
			Questions:        make([]string, len(records)),
			ReferenceAnswers: make([]string, len(records)),
			UsedFallback:     true,
			Source:           stage.source,
		}
		for i, r := range records {
			set.Questions[i] = r.Text
			set.ReferenceAnswers[i] = r.ReferenceAnswer
		}
		return set
	}

	return QuestionSet{Questions: s.catalog.StaticQuestions(), UsedFallback: true, Source: SourceStatic}
}

func BuildQuestionPrompt(cfg InterviewConfig) []Message {
	prompt := fmt.Sprintf("Generate exactly 10 technical interview questions for a %s developer at %s level", cfg.Role, cfg.Level)
	if stack := strings.TrimSpace(cfg.TechStack); stack != "" {
		prompt += ", focusing on: " + stack
	}
	prompt += ". Return ONLY a numbered list (1. 2. 3. ... 10.) with one question per line. No explanations, no text before or after the list."

	return []Message{
		{Role: RoleSystem, Content: questionSystemInstruction},
		{Role: RoleUser, Content: prompt},
	}
}

// ParseQuestions extracts numbered lines from generated text. Items shorter
// than ten characters are dropped and at most twelve are kept.
func ParseQuestions(text string) []string {
	questions := []string{}
	for _, line := range strings.Split(text, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		q := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(q) < minQuestionLength {
			continue
		}
		questions = append(questions, q)
		if len(questions) == maxQuestions {
			break
		}
	}
	return questions
}
