package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gwi.com/interview-coach/internal/metrics"
	"gwi.com/interview-coach/internal/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrAlreadyAnswered = errors.New("question already answered")
)

// FeedbackTask is the background resolution of feedback for one answer.
// Done is closed once the result has been written to the session.
type FeedbackTask struct {
	Index int
	done  chan struct{}
}

func (t *FeedbackTask) Done() <-chan struct{} { return t.done }

// Session is one interview run held in memory. Questions, ReferenceAnswers
// and UsedFallback are fixed at creation.
type Session struct {
	ID               string
	Config           InterviewConfig
	Questions        []string
	ReferenceAnswers []string
	UsedFallback     bool
	Source           string
	CreatedAt        time.Time

	// ctx scopes every feedback task; cancelled when the session is discarded.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	answers    map[int]string
	feedback   map[int]FeedbackResult
	tasks      []*FeedbackTask
	lastActive time.Time
}

func newSession(cfg InterviewConfig, set QuestionSet, now time.Time) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:               uuid.NewString(),
		Config:           cfg,
		Questions:        set.Questions,
		ReferenceAnswers: set.ReferenceAnswers,
		UsedFallback:     set.UsedFallback,
		Source:           set.Source,
		CreatedAt:        now,
		ctx:              ctx,
		cancel:           cancel,
		answers:          make(map[int]string),
		feedback:         make(map[int]FeedbackResult),
		lastActive:       now,
	}
}

func (s *Session) referenceAnswer(index int) string {
	if index < len(s.ReferenceAnswers) {
		return s.ReferenceAnswers[index]
	}
	return ""
}

// SubmitAnswer records the answer for a question and starts resolving its
// feedback in the background. Each question accepts one answer.
func (s *Session) SubmitAnswer(index int, answer string, feedback *FeedbackService) (*FeedbackTask, error) {
	if index < 0 || index >= len(s.Questions) {
		return nil, ErrIndexOutOfRange
	}
	if strings.TrimSpace(answer) == "" {
		return nil, ErrInvalidInput
	}

	s.mu.Lock()
	if _, ok := s.answers[index]; ok {
		s.mu.Unlock()
		return nil, ErrAlreadyAnswered
	}
	s.answers[index] = answer
	task := &FeedbackTask{Index: index, done: make(chan struct{})}
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()

	req := FeedbackRequest{
		Question:            s.Questions[index],
		Answer:              answer,
		SessionUsedFallback: s.UsedFallback,
		ReferenceAnswer:     s.referenceAnswer(index),
	}
	go s.runFeedback(task, req, feedback)
	return task, nil
}

func (s *Session) runFeedback(task *FeedbackTask, req FeedbackRequest, feedback *FeedbackService) {
	defer close(task.done)

	result, err := feedback.Resolve(s.ctx, req)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.feedback[task.Index] = result
	s.mu.Unlock()
}

// AwaitFeedback blocks until every dispatched task has finished, the ceiling
// elapses or ctx is done. It reports whether all tasks finished.
func (s *Session) AwaitFeedback(ctx context.Context, ceiling time.Duration) bool {
	s.mu.Lock()
	tasks := append([]*FeedbackTask(nil), s.tasks...)
	s.mu.Unlock()

	timer := time.NewTimer(ceiling)
	defer timer.Stop()

	for _, task := range tasks {
		select {
		case <-task.done:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
	return true
}

type SessionView struct {
	ID               string    `json:"id"`
	Role             string    `json:"role"`
	Level            string    `json:"level"`
	TechStack        string    `json:"techStack,omitempty"`
	Questions        []string  `json:"questions"`
	ReferenceAnswers []string  `json:"referenceAnswers,omitempty"`
	UsedFallback     bool      `json:"usedFallback"`
	Source           string    `json:"source"`
	Answered         int       `json:"answered"`
	FeedbackReady    int       `json:"feedbackReady"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionView{
		ID:               s.ID,
		Role:             s.Config.Role,
		Level:            s.Config.Level,
		TechStack:        s.Config.TechStack,
		Questions:        s.Questions,
		ReferenceAnswers: s.ReferenceAnswers,
		UsedFallback:     s.UsedFallback,
		Source:           s.Source,
		Answered:         len(s.answers),
		FeedbackReady:    len(s.feedback),
		CreatedAt:        s.CreatedAt,
	}
}

type SummaryEntry struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Answer   string `json:"answer,omitempty"`
	Answered bool   `json:"answered"`
	Feedback string `json:"feedback,omitempty"`
	Source   string `json:"source,omitempty"`
	// Pending marks an answer whose feedback had not arrived in time.
	Pending bool `json:"pending"`
	// ReferenceSubstituted marks feedback that is a stored reference answer.
	ReferenceSubstituted bool `json:"referenceSubstituted"`
}

type Summary struct {
	SessionID    string         `json:"sessionId"`
	Role         string         `json:"role"`
	Level        string         `json:"level"`
	UsedFallback bool           `json:"usedFallback"`
	Complete     bool           `json:"complete"`
	Entries      []SummaryEntry `json:"entries"`
}

// Summary waits for outstanding feedback up to the ceiling and reports every
// question with whatever answer and feedback exist by then.
func (s *Session) Summary(ctx context.Context, ceiling time.Duration) Summary {
	complete := s.AwaitFeedback(ctx, ceiling)

	s.mu.Lock()
	defer s.mu.Unlock()

	summary := Summary{
		SessionID:    s.ID,
		Role:         s.Config.Role,
		Level:        s.Config.Level,
		UsedFallback: s.UsedFallback,
		Complete:     complete,
		Entries:      make([]SummaryEntry, len(s.Questions)),
	}
	for i, q := range s.Questions {
		entry := SummaryEntry{Index: i, Question: q}
		if answer, ok := s.answers[i]; ok {
			entry.Answer = answer
			entry.Answered = true
			if fb, ok := s.feedback[i]; ok {
				entry.Feedback = fb.Feedback
				entry.Source = fb.Source
				entry.ReferenceSubstituted = fb.Source == FeedbackDatabase
			} else {
				entry.Pending = true
			}
		}
		summary.Entries[i] = entry
	}
	return summary
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastActive = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// SessionManager owns the in-memory sessions. Sessions end on Discard or
// after sitting idle for longer than the TTL.
type SessionManager struct {
	questions *QuestionService
	feedback  *FeedbackService
	metrics   *metrics.Metrics
	logger    utils.Logger
	ttl       time.Duration
	ceiling   time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager(q *QuestionService, f *FeedbackService, m *metrics.Metrics, logger utils.Logger, ttl, ceiling time.Duration) *SessionManager {
	return &SessionManager{
		questions: q,
		feedback:  f,
		metrics:   m,
		logger:    logger,
		ttl:       ttl,
		ceiling:   ceiling,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}
}

// Create resolves the questions for cfg and registers a new session.
func (m *SessionManager) Create(ctx context.Context, cfg InterviewConfig) *Session {
	set := m.questions.Resolve(ctx, cfg)
	session := newSession(cfg, set, m.now())

	m.mu.Lock()
	m.sessions[session.ID] = session
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.logger.InfoContext(ctx, "Session created",
		"session_id", session.ID, "used_fallback", session.UsedFallback, "source", session.Source)
	return session
}

func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	session, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	session.touch(m.now())
	return session, nil
}

func (m *SessionManager) SubmitAnswer(id string, index int, answer string) (*FeedbackTask, error) {
	session, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return session.SubmitAnswer(index, answer, m.feedback)
}

// Summary waits at most wait (capped by the configured ceiling) for pending
// feedback. A non-positive wait means the full ceiling.
func (m *SessionManager) Summary(ctx context.Context, id string, wait time.Duration) (Summary, error) {
	session, err := m.Get(id)
	if err != nil {
		return Summary{}, err
	}
	if wait <= 0 || wait > m.ceiling {
		wait = m.ceiling
	}
	return session.Summary(ctx, wait), nil
}

// Discard removes the session and cancels its outstanding feedback tasks.
func (m *SessionManager) Discard(id string) error {
	m.mu.Lock()
	session, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	session.cancel()
	m.metrics.SetActiveSessions(n)
	m.logger.Info("Session discarded", "session_id", id)
	return nil
}

func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RunExpiryMonitor sweeps idle sessions until ctx is done.
func (m *SessionManager) RunExpiryMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepExpired()
		}
	}
}

func (m *SessionManager) sweepExpired() int {
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, session := range m.sessions {
		if session.idleSince().Before(cutoff) {
			expired = append(expired, session)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, session := range expired {
		session.cancel()
		m.logger.Info("Session expired", "session_id", session.ID)
	}
	if len(expired) > 0 {
		m.metrics.SetActiveSessions(n)
	}
	return len(expired)
}

// Close cancels every session. Used on shutdown.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, session := range m.sessions {
		session.cancel()
		delete(m.sessions, id)
	}
	m.metrics.SetActiveSessions(0)
}
