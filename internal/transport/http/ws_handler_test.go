package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"memory-palace/internal/app"
	"memory-palace/internal/domain"
	"memory-palace/internal/evaluator/keyword"
	"memory-palace/internal/infra/memory"
)

func TestWebSocketQuizFlow(t *testing.T) {
	service, progress := newTestService(t)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, nil, nil), nil))
	defer server.Close()

	conn := dial(t, server, "/ws?deck=biology&count=5")
	defer conn.Close()

	typ, payload := readNext(conn, t)
	if typ != "started" || payload["truncated"] != true || payload["selected"] != float64(2) {
		t.Fatalf("unexpected start %s %v", typ, payload)
	}
	typ, payload = readNext(conn, t)
	if typ != "question" || payload["question"] != "What is photosynthesis?" {
		t.Fatalf("expected first question, got %s %v", typ, payload)
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"answer": "turning light into sugar"}})
	typ, payload = readNext(conn, t)
	if typ != "attempt" || payload["correct"] != true || payload["streak"] != float64(1) {
		t.Fatalf("expected correct attempt, got %s %v", typ, payload)
	}
	if typ, _ = readNext(conn, t); typ != "question" {
		t.Fatalf("expected second question, got %s", typ)
	}

	send(t, conn, map[string]any{"type": "skip"})
	typ, payload = readNext(conn, t)
	if typ != "attempt" || payload["skipped"] != true || payload["correct"] != false {
		t.Fatalf("expected skipped attempt, got %s %v", typ, payload)
	}

	typ, payload = readNext(conn, t)
	if typ != "result" || payload["correct"] != float64(1) || payload["total"] != float64(2) || payload["aborted"] != nil {
		t.Fatalf("unexpected result %s %v", typ, payload)
	}

	history, _ := progress.History(context.Background())
	if len(history) != 1 || history[0].Correct != 1 {
		t.Fatalf("expected recorded session, got %+v", history)
	}
}

func TestWebSocketDisconnectRecordsAbortedSession(t *testing.T) {
	service, progress := newTestService(t)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, nil, nil), nil))
	defer server.Close()

	conn := dial(t, server, "/ws?deck=biology&order=random")
	readNext(conn, t) // started
	readNext(conn, t) // question
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"answer": "no idea"}})
	if typ, _ := readNext(conn, t); typ != "attempt" {
		t.Fatalf("expected attempt, got %s", typ)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		history, _ := progress.History(context.Background())
		if len(history) == 1 {
			if history[0].Total != 1 || history[0].Correct != 0 {
				t.Fatalf("unexpected record %+v", history[0])
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("aborted session was not recorded")
}

func TestWebSocketShutdownFinishesRunningSessions(t *testing.T) {
	service, progress := newTestService(t)
	handler := NewWSHandler(service, nil, nil)
	server := httptest.NewServer(NewRouter(service, handler, nil))
	defer server.Close()
	server.Config.RegisterOnShutdown(handler.Close)

	conn := dial(t, server, "/ws?deck=biology")
	defer conn.Close()
	readNext(conn, t) // started
	readNext(conn, t) // question
	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"answer": "turning light into sugar"}})
	if typ, _ := readNext(conn, t); typ != "attempt" {
		t.Fatalf("expected attempt, got %s", typ)
	}
	readNext(conn, t) // second question

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Config.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	typ, payload := readNext(conn, t)
	if typ != "result" || payload["aborted"] != true || payload["total"] != float64(1) {
		t.Fatalf("expected aborted result, got %s %v", typ, payload)
	}
	if err := handler.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	history, _ := progress.History(context.Background())
	if len(history) != 1 || history[0].Total != 1 || history[0].Correct != 1 {
		t.Fatalf("expected the aborted session to be recorded, got %+v", history)
	}

	rec := httptest.NewRecorder()
	handler.ServeWS(rec, httptest.NewRequest(http.MethodGet, "/ws?deck=biology", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 after close, got %d", rec.Code)
	}
}

func TestWebSocketChoiceQuiz(t *testing.T) {
	service, progress := newTestService(t)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, nil, nil), nil))
	defer server.Close()

	conn := dial(t, server, "/ws?deck=biology-mcq&mode=mcq")
	defer conn.Close()
	readNext(conn, t) // started
	typ, payload := readNext(conn, t)
	options, _ := payload["options"].([]any)
	if typ != "question" || len(options) != 2 || options[1] != "Mitochondria" {
		t.Fatalf("expected question with options, got %s %v", typ, payload)
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"answer": "E"}})
	typ, payload = readNext(conn, t)
	if typ != "error" || payload["retryable"] != true {
		t.Fatalf("expected retryable error for unknown option, got %s %v", typ, payload)
	}

	send(t, conn, map[string]any{"type": "answer", "payload": map[string]any{"answer": "B"}})
	if typ, payload = readNext(conn, t); typ != "attempt" || payload["correct"] != true {
		t.Fatalf("expected correct attempt, got %s %v", typ, payload)
	}
	typ, payload = readNext(conn, t)
	if typ != "result" || payload["mode"] != "mcq" {
		t.Fatalf("unexpected result %s %v", typ, payload)
	}

	history, _ := progress.History(context.Background())
	if len(history) != 1 || history[0].Mode != domain.ModeChoice {
		t.Fatalf("expected mcq record, got %+v", history)
	}
}

func TestWebSocketUnknownDeck(t *testing.T) {
	service, _ := newTestService(t)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service, nil, nil), nil))
	defer server.Close()

	conn := dial(t, server, "/ws?deck=chemistry")
	defer conn.Close()
	typ, payload := readNext(conn, t)
	if typ != "error" || !strings.Contains(payload["message"].(string), "deck not found") {
		t.Fatalf("expected deck error, got %s %v", typ, payload)
	}
}

func TestRouterRejectsBadRequests(t *testing.T) {
	service, _ := newTestService(t)
	router := NewRouter(service, NewWSHandler(service, nil, nil), nil)

	for _, target := range []string{"/ws", "/ws?deck=biology&count=many", "/ws?deck=biology&order=alphabetical", "/ws?deck=biology&mode=essay"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "ok") {
		t.Fatalf("unexpected health response %d %q", rec.Code, rec.Body.String())
	}
}

func newTestService(t *testing.T) (*app.QuizService, *memory.ProgressStore) {
	t.Helper()
	decks := memory.NewDeckStore()
	if err := decks.Save(context.Background(), "biology", domain.Deck{
		{ID: "c1", Question: "What is photosynthesis?", Answer: "Turning light into sugar", Topic: "biology"},
		{ID: "c2", Question: "What is ATP?", Answer: "The cell's energy currency", Topic: "biology"},
	}); err != nil {
		t.Fatalf("save deck: %v", err)
	}
	questions := memory.NewQuestionStore()
	if err := questions.Save(context.Background(), "biology-mcq", domain.QuestionSet{
		{ID: "q1", Prompt: "Which organelle makes ATP?", Options: []string{"Nucleus", "Mitochondria"}, AnswerIndex: 1, Topic: "cells"},
	}); err != nil {
		t.Fatalf("save questions: %v", err)
	}
	progress := memory.NewProgressStore()
	service := app.NewQuizService(decks, progress, keyword.New(),
		app.WithSessionRepository(memory.NewSessionStore()),
		app.WithQuestionStore(questions))
	return service, progress
}

func dial(t *testing.T, server *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + path
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg.Type, msg.Payload
}
