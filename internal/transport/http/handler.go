package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwrk-planet/match-service/internal/domain"
	"github.com/cwrk-planet/match-service/internal/postgres"
	"github.com/cwrk-planet/match-service/internal/service"
	httpmw "github.com/cwrk-planet/match-service/internal/transport/http/middleware"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	voteSvc  *service.VoteService
	stateSvc *service.StateService
	connSvc  *service.ConnectionService
}

func NewHandler(vote *service.VoteService, state *service.StateService, conn *service.ConnectionService) *Handler {
	return &Handler{
		voteSvc:  vote,
		stateSvc: state,
		connSvc:  conn,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDomainError — стабильный вид ошибки наружу; детали стора не утекают.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "room not found"})
	case errors.Is(err, domain.ErrRoomClosed):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "room no longer accepts votes"})
	case errors.Is(err, domain.ErrNotMember):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "not a member of the room"})
	case errors.Is(err, domain.ErrDuplicateVote):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "already voted for this movie"})
	case errors.Is(err, domain.ErrInvalidVote):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid vote"})
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "service temporarily unavailable"})
	default:
		return false
	}
	return true
}

// POST /rooms/{id}/votes
func (h *Handler) SubmitVote(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req SubmitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}

	out, err := h.voteSvc.SubmitVote(r.Context(), roomID, userID, req.MovieID, domain.VoteType(req.VoteType))
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		slog.Error("handler.SubmitVote:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, SubmitVoteResponse{
		RoomID:        out.RoomID,
		Status:        string(out.Status),
		MovieID:       out.MovieID,
		VoteType:      string(out.VoteType),
		CurrentVotes:  out.CurrentVotes,
		RequiredVotes: out.RequiredVotes,
		Percentage:    out.Percentage,
		Matched:       out.Matched,
		ResultMovieID: out.ResultMovieID,
	})
}

// GET /rooms/{id}/state
func (h *Handler) GetRoomState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")

	state, err := h.stateSvc.BuildState(r.Context(), roomID)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		slog.Error("handler.GetRoomState:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, RoomStateResponse{State: state})
}

// POST /rooms/{id}/sync
func (h *Handler) RequestSync(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	var req SyncRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // пустое тело — не ошибка
	}

	syncID, err := h.connSvc.TriggerSync(r.Context(), roomID, userID, req.Force)
	if err != nil {
		if writeDomainError(w, err) {
			return
		}
		slog.Error("handler.RequestSync:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	// Пустой syncID — запрос схлопнут дебаунсом; для клиента это успех.
	writeJSON(w, http.StatusOK, SyncResponse{Success: true, SyncID: syncID})
}

// GET /rooms/{id}/connection
func (h *Handler) GetConnectionStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	userID := httpmw.UserIDFromCtx(r.Context())
	if userID == 0 {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing user id"})
		return
	}

	info, err := h.connSvc.Status(r.Context(), roomID, userID)
	if err != nil {
		slog.Error("handler.GetConnectionStatus:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, ConnectionStatusResponse{
		Connected:            info.Connected,
		Status:               string(info.Status),
		ConnectionID:         info.ConnectionID,
		LastSeen:             info.LastSeen,
		ReconnectionAttempts: info.ReconnectionAttempts,
		RoomMembers:          info.RoomMembers,
		RoomConnections:      info.RoomConnections,
	})
}

// GET /rooms/{id}/votes?after=&limit=
func (h *Handler) GetVoteHistory(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	after := r.URL.Query().Get("after")
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	items, next, err := h.voteSvc.VoteHistory(r.Context(), roomID, after, limit)
	if err != nil {
		if errors.Is(err, postgres.ErrInvalidCursor) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_cursor"})
			return
		}
		if writeDomainError(w, err) {
			return
		}
		slog.Error("handler.GetVoteHistory:", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	resp := VoteHistoryResponse{Items: make([]VoteHistoryItem, 0, len(items)), NextCursor: next}
	for _, v := range items {
		resp.Items = append(resp.Items, VoteHistoryItem{
			UserID:    strconv.FormatInt(v.UserID, 10),
			MovieID:   v.MovieID,
			VoteType:  string(v.VoteType),
			CreatedAt: v.CreatedAt.Truncate(time.Millisecond),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
