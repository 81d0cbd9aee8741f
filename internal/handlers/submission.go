package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/contesthub/contesthub-gobackend/internal/httputil"
	"github.com/contesthub/contesthub-gobackend/internal/models"
	"github.com/contesthub/contesthub-gobackend/internal/services"
)

type SubmissionHandler struct {
	service *services.SubmissionService
}

func NewSubmissionHandler(service *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{service: service}
}

func (h *SubmissionHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	email, err := principalEmail(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var req models.SubmitTaskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	res, err := h.service.SubmitTask(r.Context(), email, req)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, res)
}

func (h *SubmissionHandler) IsRegistered(w http.ResponseWriter, r *http.Request) {
	ok, err := h.service.IsRegistered(r.Context(), queryParam(r, "contestId"), queryParam(r, "email"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, map[string]bool{"registered": ok})
}

func (h *SubmissionHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.service.GetEntry(r.Context(), queryParam(r, "contestId"), queryParam(r, "email"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, entry)
}

func (h *SubmissionHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListRegistrations(r.Context(), mux.Vars(r)["contestId"])
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, entries)
}

func (h *SubmissionHandler) MyParticipated(w http.ResponseWriter, r *http.Request) {
	contests, err := h.service.MyParticipated(r.Context(), queryParam(r, "email"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, r, http.StatusOK, contests)
}
