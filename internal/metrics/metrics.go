package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts how content was resolved. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	QuestionsResolved  *prometheus.CounterVec
	FeedbackResolved   *prometheus.CounterVec
	GenerationFailures *prometheus.CounterVec
	StoreFailures      *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QuestionsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview_coach",
			Name:      "question_sets_total",
			Help:      "Question sets served, by source.",
		}, []string{"source"}),
		FeedbackResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview_coach",
			Name:      "feedback_total",
			Help:      "Feedback messages served, by source.",
		}, []string{"source"}),
		GenerationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview_coach",
			Name:      "generation_failures_total",
			Help:      "Failed generative backend calls, by purpose and cause.",
		}, []string{"purpose", "cause"}),
		StoreFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interview_coach",
			Name:      "store_failures_total",
			Help:      "Question store failures absorbed by a fallback stage.",
		}, []string{"stage"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interview_coach",
			Name:      "active_sessions",
			Help:      "Interview sessions currently held in memory.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.QuestionsResolved,
		m.FeedbackResolved,
		m.GenerationFailures,
		m.StoreFailures,
		m.ActiveSessions,
	)
	return m
}

func (m *Metrics) IncrementQuestions(source string) {
	m.QuestionsResolved.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementFeedback(source string) {
	m.FeedbackResolved.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementGenerationFailure(purpose, cause string) {
	m.GenerationFailures.WithLabelValues(purpose, cause).Inc()
}

func (m *Metrics) IncrementStoreFailure(stage string) {
	m.StoreFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
