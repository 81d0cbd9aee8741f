package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

type ContestHandler struct {
	service *services.ContestService
}

func NewContestHandler(service *services.ContestService) *ContestHandler {
	return &ContestHandler{service: service}
}

// ListContests serves GET /contests?email=&winnerEmail=&search=&type=&status=.
func (h *ContestHandler) ListContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.service.List(r.Context(), models.ContestFilter{
		CreatorEmail: queryParam(r, "email"),
		WinnerEmail:  queryParam(r, "winnerEmail"),
		Search:       queryParam(r, "search"),
		ContestType:  queryParam(r, "type"),
		Status:       queryParam(r, "status"),
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, contests)
}

func (h *ContestHandler) Popular(w http.ResponseWriter, r *http.Request) {
	contests, err := h.service.Popular(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, contests)
}

func (h *ContestHandler) GetContest(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, c)
}

func (h *ContestHandler) CreateContest(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var in models.ContestInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	c, err := h.service.Create(r.Context(), email, in)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusCreated, c)
}

// AdminUpdate sets approval status and/or the winner.
func (h *ContestHandler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	var p models.AdminPatch
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := h.service.AdminUpdate(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

func (h *ContestHandler) EditContest(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var p models.ContestPatch
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := h.service.Edit(r.Context(), mux.Vars(r)["id"], email, p)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

func (h *ContestHandler) DeleteContest(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	n, err := h.service.Delete(r.Context(), mux.Vars(r)["id"], email)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]int64{"deletedCount": n})
}

func (h *ContestHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ReconcileParticipants(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

func (h *ContestHandler) Repair(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.RepairEntries(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}
