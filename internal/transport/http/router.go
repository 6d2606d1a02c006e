package http

import (
	"net/http"
	"time"

	httpmw "github.com/cwrk-planet/match-service/internal/transport/http/middleware"
	"github.com/cwrk-planet/match-service/internal/transport/ws"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler, toucher httpmw.HeartbeatToucher, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewareChi.RequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(middlewareChi.Recoverer)

	// WS endpoint
	r.Get("/ws/rooms/{id}", wsServer.HandleWS)

	// Все маршруты требуют access_token и user_id
	r.Group(func(pr chi.Router) {
		pr.Use(httpmw.AuthMiddleware)
		pr.Use(httpmw.HeartbeatMiddleware(toucher))
		pr.Use(middlewareChi.Timeout(30 * time.Second))

		pr.Route("/rooms/{id}", func(rr chi.Router) {
			rr.Post("/votes", h.SubmitVote)
			rr.Get("/votes", h.GetVoteHistory)
			rr.Get("/state", h.GetRoomState)
			rr.Post("/sync", h.RequestSync)
			rr.Get("/connection", h.GetConnectionStatus)
		})
	})

	// health
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
