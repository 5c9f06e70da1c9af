package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gwi.com/interview-coach/internal/auth"
	"gwi.com/interview-coach/internal/utils"
)

func NewRouter(apiHandler *APIHandler, metricsHandler http.Handler, jwtSecret string, logger utils.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(utils.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Get("/health", apiHandler.HealthHandler)

		// Gated when a JWT secret is configured
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))

			r.Post("/generate-questions", apiHandler.GenerateQuestionsHandler)
			r.Post("/ai-feedback", apiHandler.FeedbackHandler)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", apiHandler.CreateSessionHandler)
				r.Get("/{sessionID}", apiHandler.GetSessionHandler)
				r.Delete("/{sessionID}", apiHandler.DeleteSessionHandler)
				r.Post("/{sessionID}/answers", apiHandler.SubmitAnswerHandler)
				r.Get("/{sessionID}/summary", apiHandler.SummaryHandler)
				r.Get("/{sessionID}/summary.xlsx", apiHandler.SummaryExportHandler)
			})

			r.Route("/questions", func(r chi.Router) {
				r.Get("/", apiHandler.ListQuestionsHandler)
				r.Post("/", apiHandler.CreateQuestionHandler)
				r.Post("/seed", apiHandler.SeedQuestionsHandler)
				r.Put("/{id}", apiHandler.UpdateQuestionHandler)
				r.Delete("/{id}", apiHandler.DeleteQuestionHandler)
			})
		})
	})

	return r
}
