package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

type LeaderboardHandler struct {
	service *services.LeaderboardService
}

func NewLeaderboardHandler(service *services.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{service: service}
}

func (h *LeaderboardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	rows, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, rows)
}

func (h *LeaderboardHandler) UserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UserStats(r.Context(), mux.Vars(r)["email"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, stats)
}

func (h *LeaderboardHandler) LatestWinners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.service.LatestWinners(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, winners)
}
