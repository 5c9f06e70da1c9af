package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := NewMetrics()

	m.IncrementQuestions("generated")
	m.IncrementQuestions("static")
	m.IncrementQuestions("static")
	m.IncrementFeedback("database")
	m.IncrementGenerationFailure("feedback", "timeout")
	m.IncrementStoreFailure("database:category")
	m.SetActiveSessions(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.QuestionsResolved.WithLabelValues("generated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.QuestionsResolved.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedbackResolved.WithLabelValues("database")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GenerationFailures.WithLabelValues("feedback", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures.WithLabelValues("database:category")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.IncrementFeedback("generic")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `interview_coach_feedback_total{source="generic"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
