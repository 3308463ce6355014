package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"morse-quiz-service/internal/app"
	"morse-quiz-service/internal/domain"
)

// Inbound messages are limited per connection.
const (
	messagesPerSecond = 20
	messageBurst      = 40
)

type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type inputPayload struct {
	Symbol string `json:"symbol"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type answerResult struct {
	QuestionID       string `json:"questionId"`
	Answer           string `json:"answer"`
	Correct          bool   `json:"correct"`
	TimeTakenSeconds int    `json:"timeTakenSeconds"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func newError(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{
		Message:   err.Error(),
		Retryable: errors.Is(err, domain.ErrLeaderboardFetch) || errors.Is(err, domain.ErrSubmitPersist),
	}}
}

func newState(snap app.Snapshot) outboundMessage[any] {
	return outboundMessage[any]{Type: "state", Payload: NewSessionView(snap)}
}

// ServeWS upgrades HTTP requests to websockets and drives one user's session.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity := domain.Identity{
		UserID:      r.URL.Query().Get("userId"),
		DisplayName: r.URL.Query().Get("name"),
		Email:       r.URL.Query().Get("email"),
	}
	if identity.UserID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	// Server read timeouts apply to the HTTP handshake only.
	_ = conn.SetReadDeadline(time.Time{})

	log := h.log.With(
		zap.String("conn_id", uuid.NewString()),
		zap.String("user_id", identity.UserID),
	)
	// Cancelled when the connection goes away so pending leaderboard retries stop.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap, err := h.service.Start(ctx, identity)
	if err != nil {
		log.Warn("session start failed", zap.Error(err))
		_ = conn.WriteJSON(newError(err))
		return
	}
	defer h.service.Leave(ctx, identity.UserID)

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write error", zap.Error(err))
				return
			}
		}
	}()
	emit := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	var background sync.WaitGroup
	limiter := rate.NewLimiter(rate.Limit(messagesPerSecond), messageBurst)

	emit(newState(snap))
	log.Info("session connected", zap.String("state", string(snap.State)))

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !limiter.Allow() {
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "too many messages", Retryable: true}})
			continue
		}

		switch inbound.Type {
		case "input":
			var payload inputPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid input payload"}})
				continue
			}
			h.emitState(emit)(h.service.Append(ctx, identity.UserID, domain.Symbol(payload.Symbol)))

		case "backspace":
			h.emitState(emit)(h.service.Backspace(ctx, identity.UserID))

		case "submit":
			res, err := h.service.Submit(ctx, identity.UserID)
			if err != nil {
				emit(newError(err))
				continue
			}
			emit(outboundMessage[any]{Type: "answerResult", Payload: answerResult{
				QuestionID:       res.Record.QuestionID,
				Answer:           res.Record.SubmittedAnswer,
				Correct:          res.Correct,
				TimeTakenSeconds: res.Record.TimeTakenSeconds,
			}})
			emit(newState(res.Snapshot))

		case "navigate":
			var payload navigatePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid navigate payload"}})
				continue
			}
			h.emitState(emit)(h.service.Navigate(ctx, identity.UserID, payload.Index))

		case "recover":
			h.emitState(emit)(h.service.Recover(ctx, identity.UserID))

		case "leaderboard":
			background.Add(1)
			go func() {
				defer background.Done()
				lb, err := h.service.Leaderboard(ctx)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					log.Warn("leaderboard failed", zap.Error(err))
					emit(newError(err))
					return
				}
				emit(outboundMessage[any]{Type: "leaderboard", Payload: lb})
			}()

		default:
			emit(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	cancel()
	background.Wait()
	close(send)
	<-writerDone
	log.Info("session disconnected")
}

func (h *WSHandler) emitState(emit func(outboundMessage[any])) func(app.Snapshot, error) {
	return func(snap app.Snapshot, err error) {
		if err != nil {
			emit(newError(err))
			return
		}
		emit(newState(snap))
	}
}
