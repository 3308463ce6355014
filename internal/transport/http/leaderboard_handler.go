package http

import (
	"net/http"

	"go.uber.org/zap"

	"morse-quiz-service/internal/app"
)

type LeaderboardHandler struct {
	service *app.QuizService
	log     *zap.Logger
}

func NewLeaderboardHandler(service *app.QuizService, log *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{service: service, log: log}
}

// ServeHTTP returns the current top standings. The request context bounds the
// retries, so a client that hangs up stops them.
func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.log.Warn("leaderboard request failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, newError(err).Payload)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
