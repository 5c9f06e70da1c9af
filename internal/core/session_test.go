package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gwi.com/interview-coach/internal/store"
	"gwi.com/interview-coach/internal/utils"
)

// blockingGenerator holds every call until released or cancelled.
type blockingGenerator struct {
	release chan struct{}
	once    sync.Once
}

func newBlockingGenerator() *blockingGenerator {
	return &blockingGenerator{release: make(chan struct{})}
}

func (g *blockingGenerator) Generate(ctx context.Context, messages []Message, timeout time.Duration) (string, error) {
	select {
	case <-g.release:
		return "Released feedback.", nil
	case <-ctx.Done():
		return "", requestFailure(ctx, ctx.Err())
	}
}

func (g *blockingGenerator) Release() {
	g.once.Do(func() { close(g.release) })
}

func newTestManager(gen Generator, qs store.QuestionStore, ceiling time.Duration) (*SessionManager, testServices) {
	svc := newTestServices(gen, qs)
	return NewSessionManager(svc.questions, svc.feedback, svc.metrics, utils.NewNopLogger(), time.Hour, ceiling), svc
}

func waitTask(t *testing.T, task *FeedbackTask) {
	t.Helper()
	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("feedback task did not finish")
	}
}

func TestSessionGeneratedFlow(t *testing.T) {
	gen := &stubGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(msgs []Message) bool {
		return msgs[0].Content == questionSystemInstruction
	}), mock.Anything).Return("1. What is a goroutine in Go?\n2. How do channels synchronise work?", nil)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("Nice and concise.", nil)

	mgr, svc := newTestManager(gen, &mockStore{}, time.Second)
	session := mgr.Create(context.Background(), InterviewConfig{Role: "backend", Level: "mid", TechStack: "Go"})
	assert.False(t, session.UsedFallback)
	assert.Equal(t, SourceGenerated, session.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.ActiveSessions))

	task, err := mgr.SubmitAnswer(session.ID, 0, "A lightweight thread managed by the runtime.")
	require.NoError(t, err)
	waitTask(t, task)

	summary, err := mgr.Summary(context.Background(), session.ID, 0)
	require.NoError(t, err)
	assert.True(t, summary.Complete)
	assert.False(t, summary.UsedFallback)
	require.Len(t, summary.Entries, 2)

	first := summary.Entries[0]
	assert.True(t, first.Answered)
	assert.False(t, first.Pending)
	assert.Equal(t, "Nice and concise.", first.Feedback)
	assert.Equal(t, FeedbackGenerated, first.Source)
	assert.False(t, first.ReferenceSubstituted)

	second := summary.Entries[1]
	assert.False(t, second.Answered)
	assert.False(t, second.Pending)
	assert.Empty(t, second.Feedback)
}

func TestSessionFallbackFlagDrivesFeedback(t *testing.T) {
	gen := failingGenerator(CauseTimeout)
	mgr, _ := newTestManager(gen, newSeededStore(t, nil), time.Second)

	session := mgr.Create(context.Background(), InterviewConfig{Role: "frontend", Level: "mid"})
	require.True(t, session.UsedFallback)
	require.Equal(t, SourceDatabaseCategory, session.Source)
	gen.AssertNumberOfCalls(t, "Generate", 1)

	var tasks []*FeedbackTask
	for i := range session.Questions {
		task, err := mgr.SubmitAnswer(session.ID, i, "My answer.")
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		waitTask(t, task)
	}

	// Reference answers were substituted without another generator call.
	gen.AssertNumberOfCalls(t, "Generate", 1)

	summary, err := mgr.Summary(context.Background(), session.ID, 0)
	require.NoError(t, err)
	assert.True(t, summary.UsedFallback)
	for i, entry := range summary.Entries {
		assert.Equal(t, FeedbackDatabase, entry.Source)
		assert.True(t, entry.ReferenceSubstituted)
		assert.Equal(t, session.ReferenceAnswers[i], entry.Feedback)
	}
}

func TestSessionSummaryCeiling(t *testing.T) {
	gen := newBlockingGenerator()
	qs := &mockStore{}
	qs.On("Find", mock.Anything, mock.Anything).Return([]store.QuestionRecord{}, nil)
	mgr, _ := newTestManager(gen, qs, 50*time.Millisecond)

	// Questions resolve from the static list once the creation context expires.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	session := mgr.Create(ctx, InterviewConfig{Role: "backend", Level: "mid"})
	cancel()
	require.Equal(t, SourceStatic, session.Source)

	_, err := mgr.SubmitAnswer(session.ID, 0, "An answer that will wait.")
	require.NoError(t, err)

	start := time.Now()
	summary, err := mgr.Summary(context.Background(), session.ID, time.Hour)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second, "wait is capped by the ceiling")
	assert.False(t, summary.Complete)
	assert.True(t, summary.Entries[0].Answered)
	assert.True(t, summary.Entries[0].Pending)
	assert.Empty(t, summary.Entries[0].Feedback)

	gen.Release()
	session.AwaitFeedback(context.Background(), time.Second)
	summary, err = mgr.Summary(context.Background(), session.ID, 0)
	require.NoError(t, err)
	assert.True(t, summary.Complete)
	assert.False(t, summary.Entries[0].Pending)
	assert.Equal(t, "Released feedback.", summary.Entries[0].Feedback)
}

func TestSessionSubmitAnswerErrors(t *testing.T) {
	mgr, _ := newTestManager(replyingGenerator("1. What is a goroutine in Go?"), &mockStore{}, time.Second)
	session := mgr.Create(context.Background(), InterviewConfig{Role: "backend", Level: "mid"})

	_, err := mgr.SubmitAnswer("missing", 0, "answer")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = mgr.SubmitAnswer(session.ID, 1, "answer")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = mgr.SubmitAnswer(session.ID, -1, "answer")
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = mgr.SubmitAnswer(session.ID, 0, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	task, err := mgr.SubmitAnswer(session.ID, 0, "A lightweight thread.")
	require.NoError(t, err)
	waitTask(t, task)
	_, err = mgr.SubmitAnswer(session.ID, 0, "A second attempt.")
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
}

func TestSessionDiscardCancelsTasks(t *testing.T) {
	gen := newBlockingGenerator()
	qs := &mockStore{}
	qs.On("Find", mock.Anything, mock.Anything).Return([]store.QuestionRecord{}, nil)
	qs.On("FindOne", mock.Anything, mock.Anything).Return(nil, nil)
	mgr, svc := newTestManager(gen, qs, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	session := mgr.Create(ctx, InterviewConfig{Role: "backend", Level: "mid"})
	cancel()

	task, err := mgr.SubmitAnswer(session.ID, 2, "Pending answer.")
	require.NoError(t, err)

	require.NoError(t, mgr.Discard(session.ID))
	waitTask(t, task)

	_, err = mgr.Get(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, mgr.Discard(session.ID), ErrSessionNotFound)
	assert.Zero(t, mgr.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(svc.metrics.ActiveSessions))
}

func TestSessionExpirySweep(t *testing.T) {
	mgr, _ := newTestManager(replyingGenerator("1. What is a goroutine in Go?"), &mockStore{}, time.Second)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	stale := mgr.Create(context.Background(), InterviewConfig{Role: "backend", Level: "mid"})
	now = now.Add(30 * time.Minute)
	fresh := mgr.Create(context.Background(), InterviewConfig{Role: "backend", Level: "mid"})

	now = now.Add(45 * time.Minute)
	assert.Equal(t, 1, mgr.sweepExpired())

	_, err := mgr.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = mgr.Get(fresh.ID)
	assert.NoError(t, err)
	assert.Error(t, stale.ctx.Err(), "expired sessions are cancelled")
}

func TestSessionExpiryMonitorStops(t *testing.T) {
	mgr, _ := newTestManager(NewMockGenerator(), &mockStore{}, time.Second)
	mgr.ttl = time.Millisecond
	mgr.Create(context.Background(), InterviewConfig{Role: "backend", Level: "mid"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.RunExpiryMonitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return mgr.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}

func TestSessionView(t *testing.T) {
	mgr, _ := newTestManager(failingGenerator(CauseTimeout), newSeededStore(t, nil), time.Second)
	session := mgr.Create(context.Background(), InterviewConfig{Role: "frontend", Level: "mid", TechStack: "React"})

	task, err := mgr.SubmitAnswer(session.ID, 1, "Hooks add state to functions.")
	require.NoError(t, err)
	waitTask(t, task)

	view := session.View()
	assert.Equal(t, session.ID, view.ID)
	assert.Equal(t, "frontend", view.Role)
	assert.Equal(t, "React", view.TechStack)
	assert.True(t, view.UsedFallback)
	assert.Equal(t, 1, view.Answered)
	assert.Equal(t, 1, view.FeedbackReady)
	assert.Len(t, view.ReferenceAnswers, len(view.Questions))
}
