package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/metrics"
)

// NewRouter wires the websocket endpoint, the leaderboard API, health and
// metrics onto one chi router.
func NewRouter(service *app.QuizService, log *zap.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	ws := NewWSHandler(service, log)
	lb := NewLeaderboardHandler(service, log)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	r.Get("/leaderboard", lb.ServeHTTP)
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
