package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"memory-palace/internal/app"
)

// NewRouter wires the health, websocket and (optional) metrics endpoints.
func NewRouter(service *app.QuizService, ws *WSHandler, metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok active_sessions=" + strconv.Itoa(service.ActiveSessions())))
	})
	r.Get("/ws", ws.ServeWS)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}
