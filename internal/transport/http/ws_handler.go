package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	clamp    func(int) int
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closed  bool
	closing chan struct{}
	active  sync.WaitGroup
}

// NewWSHandler serves one quiz session per websocket connection. clamp maps
// the requested question count to the allowed one; nil keeps it as is.
func NewWSHandler(service *app.QuizService, logger *zap.Logger, clamp func(int) int) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clamp == nil {
		clamp = func(n int) int { return n }
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		clamp:   clamp,
		closing: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Answer string `json:"answer"`
}

type startedPayload struct {
	SessionID string `json:"sessionId"`
	Requested int    `json:"requested"`
	Selected  int    `json:"selected"`
	Truncated bool   `json:"truncated"`
}

type questionPayload struct {
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	FlashcardID string   `json:"flashcardId"`
	Question    string   `json:"question"`
	Topic       string   `json:"topic,omitempty"`
	Options     []string `json:"options,omitempty"`
}

type attemptPayload struct {
	FlashcardID string `json:"flashcardId"`
	Correct     bool   `json:"correct"`
	Skipped     bool   `json:"skipped"`
	Feedback    string `json:"feedback"`
	Streak      int    `json:"streak"`
}

type resultPayload struct {
	domain.QuizSessionResult
	Warning string `json:"warning,omitempty"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Close stops every running quiz: each session is aborted, recorded and its
// result sent before the connection closes. New connections are refused.
// http.Server.Shutdown does not track hijacked connections, so register
// Close with RegisterOnShutdown and call Wait after Shutdown.
func (h *WSHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		close(h.closing)
	}
}

// Wait blocks until every quiz handler has returned or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.active.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *WSHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.active.Add(1)
	return true
}

// ServeWS upgrades HTTP requests to websockets and runs a quiz over them.
// Dropping the connection or closing the handler aborts the session; whatever
// was answered is recorded. mode=mcq quizzes on a multiple-choice set.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("deck")
	if source == "" {
		http.Error(w, "missing deck", http.StatusBadRequest)
		return
	}
	count := 0
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}
	order, err := app.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := h.service.StartQuiz
	switch domain.Mode(r.URL.Query().Get("mode")).OrDefault() {
	case domain.ModeFlashcard:
	case domain.ModeChoice:
		start = h.service.StartChoiceQuiz
	default:
		http.Error(w, "unknown mode", http.StatusBadRequest)
		return
	}

	if !h.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.active.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	session, info, err := start(ctx, source, h.clamp(count), order)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	log := h.logger.With(zap.String("session_id", session.ID()), zap.String("deck", source))
	log.Info("ws quiz started", zap.Int("selected", info.Selected))

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})

	// single writer; gorilla connections do not allow concurrent writes
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write error", zap.Error(err))
				failed = true
			}
		}
	}()

	// shutdown interrupts a pending read and any evaluation in flight
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-h.closing:
			log.Info("server shutting down, aborting ws quiz")
			cancel()
			_ = conn.SetReadDeadline(time.Now())
		case <-stopWatch:
		}
	}()

	finish := func() {
		res, err := h.service.Finish(context.WithoutCancel(ctx), session)
		payload := resultPayload{QuizSessionResult: res}
		if err != nil {
			payload.Warning = "progress not recorded: " + err.Error()
		}
		send <- outboundMessage[any]{Type: "result", Payload: payload}
		log.Info("ws quiz finished", zap.Int("correct", res.Correct), zap.Int("total", res.Total), zap.Bool("aborted", res.Aborted))
	}

	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		SessionID: session.ID(),
		Requested: info.Requested,
		Selected:  info.Selected,
		Truncated: info.Truncated,
	}}
	h.sendQuestion(send, session)

loop:
	for session.State() == app.StateInProgress {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}

		var (
			attempt domain.QuizAttempt
			err     error
		)
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload", Retryable: true}}
				continue
			}
			attempt, err = session.Submit(ctx, payload.Answer)
		case "skip":
			attempt, err = session.Skip()
		case "quit":
			break loop
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type", Retryable: true}}
			continue
		}

		if err != nil {
			retryable := errors.Is(err, domain.ErrEvaluationTimeout) ||
				errors.Is(err, domain.ErrEvaluationFormat) ||
				errors.Is(err, domain.ErrEvaluatorUnavailable) ||
				errors.Is(err, domain.ErrInvalidChoice)
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error(), Retryable: retryable}}
			if !retryable {
				break
			}
			continue
		}

		send <- outboundMessage[any]{Type: "attempt", Payload: attemptPayload{
			FlashcardID: attempt.FlashcardID,
			Correct:     attempt.JudgedCorrect,
			Skipped:     attempt.Skipped,
			Feedback:    attempt.Feedback,
			Streak:      attempt.Streak,
		}}
		h.sendQuestion(send, session)
	}

	finish()
	close(send)
	<-writerDone
}

func (h *WSHandler) sendQuestion(send chan<- outboundMessage[any], session *app.Session) {
	card, err := session.Current()
	if err != nil {
		return
	}
	index, total := session.Position()
	send <- outboundMessage[any]{Type: "question", Payload: questionPayload{
		Index:       index,
		Total:       total,
		FlashcardID: card.ID,
		Question:    card.Question,
		Topic:       card.Topic,
		Options:     card.Options,
	}}
}
